package action

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/daviddao/turnwheel/pkg/model"
)

func roundTrip(t *testing.T, a Action, r Resolver) Action {
	t.Helper()
	rec, err := Encode(a)
	if err != nil {
		t.Fatalf("Encode(%s): %v", a.Kind(), err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := Decode(back, r)
	if err != nil {
		t.Fatalf("Decode(%s): %v", a.Kind(), err)
	}
	return got
}

func TestCodecRoundTrip(t *testing.T) {
	f := newFixture(t)
	g := f.g
	actions := []Action{
		NewGroupStart("eirika", "free"),
		must(NewMove(g, "eirika", model.Pos{X: 1, Y: 3}, []model.Pos{{X: 1, Y: 2}})),
		must(NewWarp(g, "gilliam", model.Pos{X: 0, Y: 0})),
		must(NewApplyLevelUp(g, "eirika", map[string]int{"str": 1})),
		must(NewTradeItem(g, "eirika", "seth", f.rapier, f.lance)),
		NewMessage("Eirika advances"),
		NewGroupEnd("free"),
		NewMarkPhase(g, "enemy"),
		must(NewDie(g, "seth")),
		must(NewDie(g, "bone")),
		must(NewResetAll(g, g.World.Team("player"))),
		must(NewUseItem(g, f.vuln)),
		NewLockTurnwheel(true),
	}
	for _, a := range actions {
		if err := a.Do(g); err != nil {
			t.Fatalf("Do(%s): %v", a.Kind(), err)
		}
	}
	for _, a := range actions {
		t.Run(string(a.Kind()), func(t *testing.T) {
			got := roundTrip(t, a, g.World)
			if !reflect.DeepEqual(got, a) {
				t.Errorf("round trip:\n got: %#v\nwant: %#v", got, a)
			}
		})
	}
}

func TestDecodedActionIsDone(t *testing.T) {
	f := newFixture(t)
	a := must(NewWait(f.g, "eirika"))
	got := roundTrip(t, a, f.g.World)
	if err := got.Do(f.g); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("Do on decoded action: got %v, want ErrAlreadyDone", err)
	}
}

func TestEncodeTags(t *testing.T) {
	f := newFixture(t)
	d := must(NewDie(f.g, "seth"))
	rec, err := Encode(d)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		field string
		tag   Tag
	}{
		{"Unit", TagUnit},
		{"Leave", TagAction},
		{"Drop", TagAction},
	}
	for _, tt := range tests {
		if got := rec.Fields[tt.field].Tag; got != tt.tag {
			t.Errorf("%s tag = %q, want %q", tt.field, got, tt.tag)
		}
	}
	if ref := rec.Fields["Unit"].Ref; ref != "seth" {
		t.Errorf("Unit ref = %q", ref)
	}
	drop := rec.Fields["Drop"].Action
	if drop.Kind != KindDrop || drop.Fields["Wait"].Tag != TagAction {
		t.Errorf("nested drop = %+v", drop)
	}

	m := must(NewMove(f.g, "eirika", model.Pos{X: 1, Y: 2}, nil))
	rec, err = Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Fields["Path"].Tag != TagList || len(rec.Fields["Path"].List) != 2 {
		t.Errorf("Path = %+v", rec.Fields["Path"])
	}
	if rec.Fields["OldPos"].Tag != TagGeneric {
		t.Errorf("OldPos tag = %q", rec.Fields["OldPos"].Tag)
	}

	bone := must(NewDie(f.g, "bone"))
	rec, err = Encode(bone)
	if err != nil {
		t.Fatal(err)
	}
	if v := rec.Fields["Drop"]; v.Tag != TagGeneric || string(v.Generic) != "null" {
		t.Errorf("nil Drop = %+v", v)
	}
}

func TestDecodeDangling(t *testing.T) {
	tests := []struct {
		name   string
		remove func(w *model.World, f *fixture)
		make   func(t *testing.T, f *fixture) Action
	}{
		{
			name:   "unit",
			remove: func(w *model.World, f *fixture) { w.RemoveUnit("bone") },
			make:   func(t *testing.T, f *fixture) Action { return must(NewChangeHP(f.g, "bone", -3)) },
		},
		{
			name:   "item",
			remove: func(w *model.World, f *fixture) { w.RemoveItem(f.vuln) },
			make:   func(t *testing.T, f *fixture) Action { return must(NewUseItem(f.g, f.vuln)) },
		},
		{
			name:   "nested",
			remove: func(w *model.World, f *fixture) { w.RemoveUnit("franz") },
			make:   func(t *testing.T, f *fixture) Action { return must(NewDie(f.g, "seth")) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec, err := Encode(tt.make(t, f))
			if err != nil {
				t.Fatal(err)
			}
			tt.remove(f.g.World, f)
			if _, err := Decode(rec, f.g.World); !errors.Is(err, model.ErrDanglingReference) {
				t.Fatalf("Decode: got %v, want ErrDanglingReference", err)
			}
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(Record{Kind: "summon_dragon"}, model.NewWorld())
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("got %v, want ErrUnknownKind", err)
	}
}

func TestDecodeMismatchedTag(t *testing.T) {
	rec := Record{Kind: KindWait, Fields: map[string]Value{
		"Unit": {Tag: TagItem, Ref: "x"},
	}}
	if _, err := Decode(rec, model.NewWorld()); !errors.Is(err, ErrBadRecord) {
		t.Fatalf("got %v, want ErrBadRecord", err)
	}
}
