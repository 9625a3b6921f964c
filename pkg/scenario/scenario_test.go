package scenario

import (
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/daviddao/turnwheel/pkg/actionlog"
	"github.com/daviddao/turnwheel/pkg/model"
)

func newPlayedSession(t *testing.T) (*Session, model.Snapshot) {
	t.Helper()
	w, err := Skirmish()
	if err != nil {
		t.Fatalf("Skirmish: %v", err)
	}
	initial := w.Snapshot()
	s := NewSession(w, actionlog.New(), zaptest.NewLogger(t))
	if err := s.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	return s, initial
}

func TestPlayOutcome(t *testing.T) {
	s, _ := newPlayedSession(t)
	w := s.World
	if s.Log.Len() != 47 || s.Log.FirstFree() != 2 {
		t.Fatalf("Len %d FirstFree %d, want 47 2", s.Log.Len(), s.Log.FirstFree())
	}
	if s.Log.Busy() {
		t.Fatal("log busy after play")
	}
	bone, _ := w.Unit("bone")
	if !bone.Dead || bone.OnMap() {
		t.Errorf("bone dead %v on map %v", bone.Dead, bone.OnMap())
	}
	franz, _ := w.Unit("franz")
	if franz.Position != (model.Pos{X: 3, Y: 4}) || !franz.Finished {
		t.Errorf("franz at %v finished %v", franz.Position, franz.Finished)
	}
	eirika, _ := w.Unit("eirika")
	if eirika.Level != 2 || eirika.Exp != 10 || eirika.HP != 16 || eirika.Stats["str"] != 5 {
		t.Errorf("eirika = %+v", eirika)
	}
	if w.TurnCount != 2 || w.Phase != "player" {
		t.Errorf("turn %d phase %q", w.TurnCount, w.Phase)
	}
	elixir, _ := ItemByNID(w, Elixir)
	if w.ConvoyIndex(elixir) != 0 {
		t.Errorf("elixir not in convoy: %v", w.Convoy)
	}
}

func TestPlayGroups(t *testing.T) {
	s, _ := newPlayedSession(t)
	want := []actionlog.Group{
		actionlog.Move{Actor: "eirika", Mode: "free", Begin: 2, End: 11},
		actionlog.Move{Actor: "seth", Mode: "free", Begin: 11, End: 16},
		actionlog.Extra{LastMoveIndex: 16, ActionIndex: 16},
		actionlog.Extra{LastMoveIndex: 16, ActionIndex: 17},
		actionlog.Extra{LastMoveIndex: 16, ActionIndex: 18},
		actionlog.Extra{LastMoveIndex: 16, ActionIndex: 19},
		actionlog.Phase{Name: "enemy", ActionIndex: 20},
		actionlog.Extra{LastMoveIndex: 16, ActionIndex: 21},
		actionlog.Move{Actor: "bone", Mode: "ai", Begin: 22, End: 32},
		actionlog.Phase{Name: "player", ActionIndex: 32},
		actionlog.Extra{LastMoveIndex: 32, ActionIndex: 33},
		actionlog.Extra{LastMoveIndex: 32, ActionIndex: 34},
		actionlog.Move{Actor: "seth", Mode: "free", Begin: 35, End: 40},
		actionlog.Move{Actor: "eirika", Mode: "free", Begin: 40, End: 46},
		actionlog.Extra{LastMoveIndex: 46, ActionIndex: 46},
	}
	if got := s.Log.Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("Groups:\n got: %v\nwant: %v", got, want)
	}
}

// Replaying the recorded history with Execute on a copy of the starting
// world reproduces the played world exactly.
func TestReplayMatchesPlay(t *testing.T) {
	s, initial := newPlayedSession(t)
	final := s.World.Snapshot()

	w, err := model.FromSnapshot(initial)
	if err != nil {
		t.Fatal(err)
	}
	replay := NewSession(w, actionlog.New(), nil)
	for i, a := range s.Log.Actions() {
		if err := a.Execute(replay.Game); err != nil {
			t.Fatalf("Execute %d (%s): %v", i, a.Kind(), err)
		}
	}
	if got := w.Snapshot(); !reflect.DeepEqual(got, final) {
		t.Errorf("replayed world differs\n got: %+v\nwant: %+v", got, final)
	}
}

func TestItemByNIDMissing(t *testing.T) {
	if _, err := ItemByNID(model.NewWorld(), Rapier); err == nil {
		t.Fatal("want error for missing item")
	}
}
