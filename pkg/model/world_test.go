package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w := NewWorld()
	for _, u := range []*Unit{
		{ID: "eirika", Team: "player", Position: Pos{1, 1}, HP: 16, MaxHP: 16, Level: 1},
		{ID: "seth", Team: "player", Position: Pos{1, 2}, HP: 30, MaxHP: 30, Level: 1},
		{ID: "franz", Team: "player", Position: NoPos, HP: 20, MaxHP: 20, Level: 1},
	} {
		if err := w.AddUnit(u); err != nil {
			t.Fatalf("AddUnit(%q): %v", u.ID, err)
		}
	}
	return w
}

func TestPosValid(t *testing.T) {
	tests := []struct {
		pos  Pos
		want bool
	}{
		{Pos{0, 0}, true},
		{Pos{3, 7}, true},
		{NoPos, false},
		{Pos{-1, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.pos.String(), func(t *testing.T) {
			if got := tt.pos.Valid(); got != tt.want {
				t.Errorf("%v.Valid() = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(Pos{1, 1}, Pos{3, 4}); got != 5 {
		t.Errorf("Distance = %d, want 5", got)
	}
}

func TestAddUnitDuplicate(t *testing.T) {
	w := newTestWorld(t)
	err := w.AddUnit(&Unit{ID: "seth", Position: NoPos})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("AddUnit duplicate: got %v, want ErrDuplicate", err)
	}
}

func TestAddUnitOccupied(t *testing.T) {
	w := newTestWorld(t)
	err := w.AddUnit(&Unit{ID: "ross", Position: Pos{1, 1}})
	if !errors.Is(err, ErrOccupied) {
		t.Fatalf("AddUnit on held tile: got %v, want ErrOccupied", err)
	}
	if w.HasUnit("ross") {
		t.Error("unit registered despite failed arrival")
	}
}

func TestUnitDangling(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.Unit("lyon"); !errors.Is(err, ErrDanglingReference) {
		t.Errorf("Unit(lyon): got %v, want ErrDanglingReference", err)
	}
	if _, err := w.Item("nope"); !errors.Is(err, ErrDanglingReference) {
		t.Errorf("Item(nope): got %v, want ErrDanglingReference", err)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	u, _ := w.Unit("eirika")
	w.Leave(u)
	w.Leave(u)
	if _, ok := w.UnitAt(Pos{1, 1}); ok {
		t.Fatal("tile still held after Leave")
	}
	if err := w.Arrive(u); err != nil {
		t.Fatalf("Arrive: %v", err)
	}
	if id, ok := w.UnitAt(Pos{1, 1}); !ok || id != "eirika" {
		t.Errorf("UnitAt = %q, %v; want eirika", id, ok)
	}
}

func TestLeaveDoesNotEvictOthers(t *testing.T) {
	w := newTestWorld(t)
	u, _ := w.Unit("eirika")
	u.Position = Pos{1, 2} // seth's tile, without arriving
	w.Leave(u)
	if id, _ := w.UnitAt(Pos{1, 2}); id != "seth" {
		t.Errorf("Leave evicted %q", id)
	}
}

func TestInventory(t *testing.T) {
	w := newTestWorld(t)
	u, _ := w.Unit("eirika")
	rapier := NewItem("rapier", "Rapier", 40)
	vuln := NewItem("vulnerary", "Vulnerary", 3)
	for _, it := range []*Item{rapier, vuln} {
		if err := w.AddItem(it); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}
	w.InsertItem(u, 0, vuln)
	w.InsertItem(u, 0, rapier)
	if !reflect.DeepEqual(u.Items, []ItemID{rapier.ID, vuln.ID}) {
		t.Fatalf("Items = %v", u.Items)
	}
	if vuln.Owner != "eirika" {
		t.Errorf("Owner = %q", vuln.Owner)
	}
	idx, err := w.TakeItem(u, vuln)
	if err != nil || idx != 1 {
		t.Fatalf("TakeItem = %d, %v", idx, err)
	}
	if _, err := w.TakeItem(u, vuln); !errors.Is(err, ErrNotHeld) {
		t.Errorf("second TakeItem: got %v, want ErrNotHeld", err)
	}
	w.PutInConvoy(vuln)
	if w.ConvoyIndex(vuln.ID) != 0 {
		t.Errorf("ConvoyIndex = %d", w.ConvoyIndex(vuln.ID))
	}
	if err := w.TakeFromConvoy(vuln); err != nil {
		t.Fatalf("TakeFromConvoy: %v", err)
	}
	if w.Convoy != nil {
		t.Errorf("Convoy = %v, want nil", w.Convoy)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	u, _ := w.Unit("seth")
	lance := NewItem("iron_lance", "Iron Lance", 45)
	if err := w.AddItem(lance); err != nil {
		t.Fatal(err)
	}
	w.InsertItem(u, 0, lance)
	u.Stats = map[string]int{"str": 13}
	u.Traveler = "franz"
	w.TurnCount = 3
	w.RandomState = 42

	snap := w.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	w2, err := FromSnapshot(decoded)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if got := w2.Snapshot(); !reflect.DeepEqual(got, snap) {
		t.Errorf("snapshot mismatch\n got: %+v\nwant: %+v", got, snap)
	}
	if id, ok := w2.UnitAt(Pos{1, 2}); !ok || id != "seth" {
		t.Errorf("board not restored: %q %v", id, ok)
	}
}

func TestSnapshotIsDeep(t *testing.T) {
	w := newTestWorld(t)
	u, _ := w.Unit("eirika")
	u.Stats = map[string]int{"spd": 9}
	snap := w.Snapshot()
	u.Stats["spd"] = 10
	if snap.Units[0].Stats["spd"] != 9 {
		t.Error("snapshot shares stats map with live unit")
	}
}

func TestFromSnapshotRejectsBadBoard(t *testing.T) {
	snap := Snapshot{
		Units: []Unit{{ID: "a"}},
		Board: []Placement{{Pos: Pos{0, 0}, Unit: "b"}},
	}
	if _, err := FromSnapshot(snap); !errors.Is(err, ErrDanglingReference) {
		t.Errorf("got %v, want ErrDanglingReference", err)
	}
}
