package action

import (
	"maps"

	"github.com/daviddao/turnwheel/pkg/model"
)

// ChangeHP adds Num (which may be negative) to a unit's HP, clamped to
// [0, MaxHP].
type ChangeHP struct {
	base
	Unit  model.UnitID
	Num   int
	OldHP int
}

func NewChangeHP(g *Game, id model.UnitID, num int) (*ChangeHP, error) {
	u, err := unit(g, KindChangeHP, id)
	if err != nil {
		return nil, err
	}
	return &ChangeHP{Unit: id, Num: num, OldHP: u.HP}, nil
}

func (a *ChangeHP) Kind() Kind { return KindChangeHP }

func (a *ChangeHP) newHP(u *model.Unit) int {
	return max(0, min(a.OldHP+a.Num, u.MaxHP))
}

func (a *ChangeHP) Do(g *Game) (err error) {
	if err := a.claim(KindChangeHP); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *ChangeHP) Execute(g *Game) error {
	u, err := unit(g, KindChangeHP, a.Unit)
	if err != nil {
		return err
	}
	u.HP = a.newHP(u)
	return nil
}

func (a *ChangeHP) Reverse(g *Game) error {
	u, err := unit(g, KindChangeHP, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindChangeHP, "hp", a.newHP(u), u.HP); err != nil {
		return err
	}
	u.HP = a.OldHP
	return nil
}

// GainExp adds experience, wrapping at 100.
type GainExp struct {
	base
	Unit   model.UnitID
	Gain   int
	OldExp int
}

func NewGainExp(g *Game, id model.UnitID, gain int) (*GainExp, error) {
	u, err := unit(g, KindGainExp, id)
	if err != nil {
		return nil, err
	}
	return &GainExp{Unit: id, Gain: gain, OldExp: u.Exp}, nil
}

func (a *GainExp) Kind() Kind { return KindGainExp }

func (a *GainExp) Do(g *Game) (err error) {
	if err := a.claim(KindGainExp); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *GainExp) Execute(g *Game) error {
	u, err := unit(g, KindGainExp, a.Unit)
	if err != nil {
		return err
	}
	u.Exp = (a.OldExp + a.Gain) % 100
	return nil
}

func (a *GainExp) Reverse(g *Game) error {
	u, err := unit(g, KindGainExp, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindGainExp, "exp", (a.OldExp+a.Gain)%100, u.Exp); err != nil {
		return err
	}
	u.Exp = a.OldExp
	return nil
}

// SetExp overwrites a unit's experience.
type SetExp struct {
	base
	Unit   model.UnitID
	Exp    int
	OldExp int
}

func NewSetExp(g *Game, id model.UnitID, exp int) (*SetExp, error) {
	u, err := unit(g, KindSetExp, id)
	if err != nil {
		return nil, err
	}
	return &SetExp{Unit: id, Exp: exp, OldExp: u.Exp}, nil
}

func (a *SetExp) Kind() Kind { return KindSetExp }

func (a *SetExp) Do(g *Game) (err error) {
	if err := a.claim(KindSetExp); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *SetExp) Execute(g *Game) error {
	u, err := unit(g, KindSetExp, a.Unit)
	if err != nil {
		return err
	}
	u.Exp = a.Exp
	return nil
}

func (a *SetExp) Reverse(g *Game) error {
	u, err := unit(g, KindSetExp, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindSetExp, "exp", a.Exp, u.Exp); err != nil {
		return err
	}
	u.Exp = a.OldExp
	return nil
}

// IncLevel raises a unit's level by one.
type IncLevel struct {
	base
	Unit     model.UnitID
	OldLevel int
}

func NewIncLevel(g *Game, id model.UnitID) (*IncLevel, error) {
	u, err := unit(g, KindIncLevel, id)
	if err != nil {
		return nil, err
	}
	return &IncLevel{Unit: id, OldLevel: u.Level}, nil
}

func (a *IncLevel) Kind() Kind { return KindIncLevel }

func (a *IncLevel) Do(g *Game) (err error) {
	if err := a.claim(KindIncLevel); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.Execute(g); err != nil {
		return err
	}
	g.cue("level_up", a.Unit)
	return nil
}

func (a *IncLevel) Execute(g *Game) error {
	u, err := unit(g, KindIncLevel, a.Unit)
	if err != nil {
		return err
	}
	u.Level = a.OldLevel + 1
	return nil
}

func (a *IncLevel) Reverse(g *Game) error {
	u, err := unit(g, KindIncLevel, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindIncLevel, "level", a.OldLevel+1, u.Level); err != nil {
		return err
	}
	u.Level = a.OldLevel
	return nil
}

// ApplyLevelUp adds stat gains to a unit.
type ApplyLevelUp struct {
	base
	Unit     model.UnitID
	Changes  map[string]int
	OldStats map[string]int
}

func NewApplyLevelUp(g *Game, id model.UnitID, changes map[string]int) (*ApplyLevelUp, error) {
	u, err := unit(g, KindApplyLevelUp, id)
	if err != nil {
		return nil, err
	}
	return &ApplyLevelUp{Unit: id, Changes: maps.Clone(changes), OldStats: maps.Clone(u.Stats)}, nil
}

func (a *ApplyLevelUp) Kind() Kind { return KindApplyLevelUp }

func (a *ApplyLevelUp) stats() map[string]int {
	out := maps.Clone(a.OldStats)
	if out == nil {
		out = make(map[string]int, len(a.Changes))
	}
	for k, v := range a.Changes {
		out[k] += v
	}
	return out
}

func (a *ApplyLevelUp) Do(g *Game) (err error) {
	if err := a.claim(KindApplyLevelUp); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *ApplyLevelUp) Execute(g *Game) error {
	u, err := unit(g, KindApplyLevelUp, a.Unit)
	if err != nil {
		return err
	}
	u.Stats = a.stats()
	return nil
}

func (a *ApplyLevelUp) Reverse(g *Game) error {
	u, err := unit(g, KindApplyLevelUp, a.Unit)
	if err != nil {
		return err
	}
	if !maps.Equal(a.stats(), u.Stats) {
		return &SymmetryError{Kind: KindApplyLevelUp, Field: "stats", Want: a.stats(), Got: u.Stats}
	}
	u.Stats = maps.Clone(a.OldStats)
	return nil
}

// Die kills a unit: it drops any carried unit, leaves the board and is
// marked dead.
type Die struct {
	base
	Unit  model.UnitID
	Leave *LeaveMap
	Drop  *Drop
}

func NewDie(g *Game, id model.UnitID) (*Die, error) {
	u, err := unit(g, KindDie, id)
	if err != nil {
		return nil, err
	}
	d := &Die{Unit: id}
	if u.Traveler != "" {
		if d.Drop, err = NewDrop(g, id, u.Position); err != nil {
			return nil, err
		}
	}
	if d.Leave, err = NewLeaveMap(g, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (a *Die) Kind() Kind { return KindDie }

// The dying unit leaves before dropping, so the carried unit can take the
// vacated tile.
func (a *Die) Do(g *Game) (err error) {
	if err := a.claim(KindDie); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.Leave.Do(g); err != nil {
		return err
	}
	if a.Drop != nil {
		if err := a.Drop.Do(g); err != nil {
			return err
		}
	}
	g.cue("death", a.Unit)
	return a.mark(g, true)
}

func (a *Die) Execute(g *Game) error {
	if err := a.Leave.Execute(g); err != nil {
		return err
	}
	if a.Drop != nil {
		if err := a.Drop.Execute(g); err != nil {
			return err
		}
	}
	return a.mark(g, true)
}

func (a *Die) mark(g *Game, dead bool) error {
	u, err := unit(g, KindDie, a.Unit)
	if err != nil {
		return err
	}
	u.Dead = dead
	return nil
}

func (a *Die) Reverse(g *Game) error {
	u, err := unit(g, KindDie, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindDie, "dead", true, u.Dead); err != nil {
		return err
	}
	u.Dead = false
	if a.Drop != nil {
		if err := a.Drop.Reverse(g); err != nil {
			return err
		}
	}
	return a.Leave.Reverse(g)
}

// Resurrect clears a unit's dead flag. Reverse restores the flag the unit
// had when the action was built, so resurrecting a living unit undoes to a
// living unit.
type Resurrect struct {
	base
	Unit    model.UnitID
	OldDead bool
}

func NewResurrect(g *Game, id model.UnitID) (*Resurrect, error) {
	u, err := unit(g, KindResurrect, id)
	if err != nil {
		return nil, err
	}
	return &Resurrect{Unit: id, OldDead: u.Dead}, nil
}

func (a *Resurrect) Kind() Kind { return KindResurrect }

func (a *Resurrect) Do(g *Game) (err error) {
	if err := a.claim(KindResurrect); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *Resurrect) Execute(g *Game) error {
	u, err := unit(g, KindResurrect, a.Unit)
	if err != nil {
		return err
	}
	u.Dead = false
	return nil
}

func (a *Resurrect) Reverse(g *Game) error {
	u, err := unit(g, KindResurrect, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindResurrect, "dead", false, u.Dead); err != nil {
		return err
	}
	u.Dead = a.OldDead
	return nil
}

// RecordRandomState logs a change of the combat RNG state. The combat
// code advances the generator itself, so Do only records.
type RecordRandomState struct {
	base
	Old int64
	New int64
}

func NewRecordRandomState(prev, next int64) *RecordRandomState {
	return &RecordRandomState{Old: prev, New: next}
}

func (a *RecordRandomState) Kind() Kind { return KindRecordRandomState }

func (a *RecordRandomState) Do(g *Game) error { return a.claim(KindRecordRandomState) }

func (a *RecordRandomState) Execute(g *Game) error {
	g.World.RandomState = a.New
	return nil
}

func (a *RecordRandomState) Reverse(g *Game) error {
	if err := expect(KindRecordRandomState, "random_state", a.New, g.World.RandomState); err != nil {
		return err
	}
	g.World.RandomState = a.Old
	return nil
}
