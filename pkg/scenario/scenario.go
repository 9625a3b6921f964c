// Package scenario builds a small scripted skirmish and plays it through
// the action log, the way the game loop would.
package scenario

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/actionlog"
	"github.com/daviddao/turnwheel/pkg/model"
	"github.com/daviddao/turnwheel/pkg/movement"
)

// settleTicks bounds how long a scripted move may stay in flight.
const settleTicks = 64

// Session bundles the live objects of one game.
type Session struct {
	World     *model.World
	Log       *actionlog.Log
	Game      *action.Game
	Scheduler *movement.Scheduler
}

// NewSession wires a world and log to a movement scheduler. The log is the
// scheduler's handoff tracker.
func NewSession(w *model.World, l *actionlog.Log, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	sched := movement.New(w, l, movement.WithLogger(logger.Named("movement")))
	return &Session{
		World:     w,
		Log:       l,
		Scheduler: sched,
		Game: &action.Game{
			World: w,
			Mover: sched,
			Cues:  CueLogger{Logger: logger.Named("cue")},
		},
	}
}

// CueLogger writes presentation cues to a logger at debug level.
type CueLogger struct {
	Logger *zap.Logger
}

func (c CueLogger) Cue(name string, unit model.UnitID) {
	c.Logger.Debug("cue", zap.String("name", name), zap.String("unit", string(unit)))
}

// Items of the skirmish, by nid.
const (
	Rapier      = "rapier"
	Vulnerary   = "vulnerary"
	SilverLance = "silver_lance"
	Elixir      = "elixir"
)

// Skirmish returns the starting world: three player units against one
// Bonewalker, plus an unowned elixir.
func Skirmish() (*model.World, error) {
	w := model.NewWorld()
	units := []*model.Unit{
		{ID: "eirika", Team: "player", Position: model.Pos{X: 1, Y: 1}, MovementLeft: 5, HP: 16, MaxHP: 16, Level: 1,
			Stats: map[string]int{"str": 4, "spd": 9}},
		{ID: "seth", Team: "player", Position: model.Pos{X: 1, Y: 2}, MovementLeft: 8, HP: 30, MaxHP: 30, Level: 1,
			Stats: map[string]int{"str": 13, "spd": 12}},
		{ID: "franz", Team: "player", Position: model.Pos{X: 2, Y: 3}, MovementLeft: 7, HP: 20, MaxHP: 20, Level: 1},
		{ID: "bone", Team: "enemy", Position: model.Pos{X: 6, Y: 1}, MovementLeft: 5, HP: 10, MaxHP: 10, Level: 2},
	}
	for _, u := range units {
		u.PreviousPosition = u.Position
		if err := w.AddUnit(u); err != nil {
			return nil, err
		}
	}
	give := func(owner model.UnitID, nid, name string, uses int) error {
		it := model.NewItem(nid, name, uses)
		it.Droppable = true
		if err := w.AddItem(it); err != nil {
			return err
		}
		if owner == "" {
			return nil
		}
		u, err := w.Unit(owner)
		if err != nil {
			return err
		}
		w.InsertItem(u, len(u.Items), it)
		return nil
	}
	for _, it := range []struct {
		owner model.UnitID
		nid   string
		name  string
		uses  int
	}{
		{"eirika", Rapier, "Rapier", 40},
		{"eirika", Vulnerary, "Vulnerary", 3},
		{"seth", SilverLance, "Silver Lance", 20},
		{"", Elixir, "Elixir", 3},
	} {
		if err := give(it.owner, it.nid, it.name, it.uses); err != nil {
			return nil, fmt.Errorf("skirmish item %s: %w", it.nid, err)
		}
	}
	return w, nil
}

// ItemByNID returns the first item with the given nid.
func ItemByNID(w *model.World, nid string) (model.ItemID, error) {
	snap := w.Snapshot()
	for _, it := range snap.Items {
		if it.NID == nid {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("item %s: %w", nid, model.ErrDanglingReference)
}

// do applies a freshly constructed action and waits out any motion it
// started.
func (s *Session) do(a action.Action, err error) error {
	if err != nil {
		return err
	}
	if err := s.Log.Do(s.Game, a); err != nil {
		return fmt.Errorf("%s: %w", a.Kind(), err)
	}
	return s.Scheduler.Settle(settleTicks)
}

func (s *Session) doAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// roll advances the combat RNG and records the change.
func (s *Session) roll() error {
	prev := s.World.RandomState
	s.World.RandomState = prev*6364136223846793005 + 1442695040888963407
	return s.do(action.NewRecordRandomState(prev, s.World.RandomState), nil)
}

// Setup records the level start and moves the rewind floor past it.
func (s *Session) Setup() error {
	g := s.Game
	err := s.doAll(
		func() error { return s.do(action.NewIncrementTurn(g), nil) },
		func() error { return s.do(action.NewMarkPhase(g, "player"), nil) },
	)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return s.Log.SetFirstFree(s.Log.Len())
}

// Play runs two scripted turns.
func (s *Session) Play() error {
	g := s.Game
	w := s.World
	rapier, err := ItemByNID(w, Rapier)
	if err != nil {
		return err
	}
	vuln, err := ItemByNID(w, Vulnerary)
	if err != nil {
		return err
	}
	elixir, err := ItemByNID(w, Elixir)
	if err != nil {
		return err
	}
	p := func(x, y int) model.Pos { return model.Pos{X: x, Y: y} }

	err = s.doAll(
		// Eirika advances and strikes.
		func() error { return s.do(action.NewGroupStart("eirika", "free"), nil) },
		func() error { return s.do(action.NewMove(g, "eirika", p(4, 1), []model.Pos{p(2, 1), p(3, 1)})) },
		func() error { return s.do(action.NewMessage("Eirika strikes the Bonewalker"), nil) },
		s.roll,
		func() error { return s.do(action.NewUseItem(g, rapier)) },
		func() error { return s.do(action.NewChangeHP(g, "bone", -8)) },
		func() error { return s.do(action.NewGainExp(g, "eirika", 30)) },
		func() error { return s.do(action.NewWait(g, "eirika")) },
		func() error { return s.do(action.NewGroupEnd("free"), nil) },

		// Seth carries Franz.
		func() error { return s.do(action.NewGroupStart("seth", "free"), nil) },
		func() error { return s.do(action.NewMove(g, "seth", p(2, 2), nil)) },
		func() error { return s.do(action.NewRescue(g, "seth", "franz")) },
		func() error { return s.do(action.NewWait(g, "seth")) },
		func() error { return s.do(action.NewGroupEnd("free"), nil) },

		// A village gift and a scripted scene the turnwheel may not undo
		// past.
		func() error { return s.do(action.NewGiveItem(g, "eirika", elixir)) },
		func() error { return s.do(action.NewLockTurnwheel(true), nil) },
		func() error { return s.do(action.NewMessage("A shadow passes over the field"), nil) },
		func() error { return s.do(action.NewLockTurnwheel(false), nil) },

		// Enemy phase: the Bonewalker attacks and falls to the counter.
		func() error { return s.do(action.NewMarkPhase(g, "enemy"), nil) },
		func() error { return s.do(action.NewResetAll(g, w.Team("enemy"))) },
		func() error { return s.do(action.NewGroupStart("bone", "ai"), nil) },
		func() error { return s.do(action.NewMove(g, "bone", p(5, 1), nil)) },
		s.roll,
		func() error { return s.do(action.NewChangeHP(g, "eirika", -5)) },
		func() error { return s.do(action.NewChangeHP(g, "bone", -12)) },
		func() error { return s.do(action.NewDie(g, "bone")) },
		func() error { return s.do(action.NewGainExp(g, "eirika", 80)) },
		func() error { return s.do(action.NewIncLevel(g, "eirika")) },
		func() error { return s.do(action.NewApplyLevelUp(g, "eirika", map[string]int{"str": 1, "spd": 1})) },
		func() error { return s.do(action.NewGroupEnd("ai"), nil) },

		// Turn two.
		func() error { return s.do(action.NewMarkPhase(g, "player"), nil) },
		func() error { return s.do(action.NewIncrementTurn(g), nil) },
		func() error { return s.do(action.NewResetAll(g, w.Team("player"))) },
		func() error { return s.do(action.NewGroupStart("seth", "free"), nil) },
		func() error { return s.do(action.NewMove(g, "seth", p(2, 4), []model.Pos{p(2, 3)})) },
		func() error { return s.do(action.NewDrop(g, "seth", p(3, 4))) },
		func() error { return s.do(action.NewWait(g, "seth")) },
		func() error { return s.do(action.NewGroupEnd("free"), nil) },
		func() error { return s.do(action.NewGroupStart("eirika", "free"), nil) },
		func() error { return s.do(action.NewEquipItem(g, "eirika", vuln)) },
		func() error { return s.do(action.NewUseItem(g, vuln)) },
		func() error { return s.do(action.NewChangeHP(g, "eirika", 10)) },
		func() error { return s.do(action.NewWait(g, "eirika")) },
		func() error { return s.do(action.NewGroupEnd("free"), nil) },
		func() error { return s.do(action.NewDiscardItem(g, "eirika", elixir)) },
	)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
