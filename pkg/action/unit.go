package action

import (
	"fmt"

	"github.com/daviddao/turnwheel/pkg/model"
)

// IncrementTurn advances the turn counter.
type IncrementTurn struct {
	base
	Old int
}

func NewIncrementTurn(g *Game) *IncrementTurn { return &IncrementTurn{Old: g.World.TurnCount} }

func (a *IncrementTurn) Kind() Kind { return KindIncrementTurn }

func (a *IncrementTurn) Do(g *Game) (err error) {
	if err := a.claim(KindIncrementTurn); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *IncrementTurn) Execute(g *Game) error {
	g.World.TurnCount = a.Old + 1
	return nil
}

func (a *IncrementTurn) Reverse(g *Game) error {
	if err := expect(KindIncrementTurn, "turn_count", a.Old+1, g.World.TurnCount); err != nil {
		return err
	}
	g.World.TurnCount = a.Old
	return nil
}

// stateChange is the shared shape of the actions that only rewrite a
// unit's turn flags.
type stateChange struct {
	base
	Unit   model.UnitID
	Before model.ActionState
	After  model.ActionState
}

func newStateChange(g *Game, k Kind, id model.UnitID, after func(model.ActionState) model.ActionState) (stateChange, error) {
	u, err := unit(g, k, id)
	if err != nil {
		return stateChange{}, err
	}
	before := u.State()
	return stateChange{Unit: id, Before: before, After: after(before)}, nil
}

func (a *stateChange) apply(g *Game, k Kind) error {
	u, err := unit(g, k, a.Unit)
	if err != nil {
		return err
	}
	u.SetState(a.After)
	return nil
}

func (a *stateChange) undo(g *Game, k Kind) error {
	u, err := unit(g, k, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(k, "action_state", a.After, u.State()); err != nil {
		return err
	}
	u.SetState(a.Before)
	return nil
}

// Wait ends a unit's turn.
type Wait struct{ stateChange }

func NewWait(g *Game, id model.UnitID) (*Wait, error) {
	sc, err := newStateChange(g, KindWait, id, func(model.ActionState) model.ActionState {
		return model.ActionState{HasMoved: true, HasTraded: true, HasAttacked: true, Finished: true}
	})
	if err != nil {
		return nil, err
	}
	return &Wait{sc}, nil
}

func (a *Wait) Kind() Kind { return KindWait }

func (a *Wait) Do(g *Game) (err error) {
	if err := a.claim(KindWait); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.apply(g, KindWait); err != nil {
		return err
	}
	g.cue("sprite:gray", a.Unit)
	return nil
}

func (a *Wait) Execute(g *Game) error { return a.apply(g, KindWait) }

func (a *Wait) Reverse(g *Game) error { return a.undo(g, KindWait) }

// Reset clears a unit's turn flags.
type Reset struct{ stateChange }

func NewReset(g *Game, id model.UnitID) (*Reset, error) {
	sc, err := newStateChange(g, KindReset, id, func(model.ActionState) model.ActionState {
		return model.ActionState{}
	})
	if err != nil {
		return nil, err
	}
	return &Reset{sc}, nil
}

func (a *Reset) Kind() Kind { return KindReset }

func (a *Reset) Do(g *Game) (err error) {
	if err := a.claim(KindReset); err != nil {
		return err
	}
	defer a.release(&err)
	return a.apply(g, KindReset)
}

func (a *Reset) Execute(g *Game) error { return a.apply(g, KindReset) }

func (a *Reset) Reverse(g *Game) error { return a.undo(g, KindReset) }

// HasAttacked marks that a unit has attacked this turn.
type HasAttacked struct{ stateChange }

func NewHasAttacked(g *Game, id model.UnitID) (*HasAttacked, error) {
	sc, err := newStateChange(g, KindHasAttacked, id, func(s model.ActionState) model.ActionState {
		s.HasAttacked = true
		return s
	})
	if err != nil {
		return nil, err
	}
	return &HasAttacked{sc}, nil
}

func (a *HasAttacked) Kind() Kind { return KindHasAttacked }

func (a *HasAttacked) Do(g *Game) (err error) {
	if err := a.claim(KindHasAttacked); err != nil {
		return err
	}
	defer a.release(&err)
	return a.apply(g, KindHasAttacked)
}

func (a *HasAttacked) Execute(g *Game) error { return a.apply(g, KindHasAttacked) }

func (a *HasAttacked) Reverse(g *Game) error { return a.undo(g, KindHasAttacked) }

// HasTraded marks that a unit has traded this turn.
type HasTraded struct{ stateChange }

func NewHasTraded(g *Game, id model.UnitID) (*HasTraded, error) {
	sc, err := newStateChange(g, KindHasTraded, id, func(s model.ActionState) model.ActionState {
		s.HasTraded = true
		return s
	})
	if err != nil {
		return nil, err
	}
	return &HasTraded{sc}, nil
}

func (a *HasTraded) Kind() Kind { return KindHasTraded }

func (a *HasTraded) Do(g *Game) (err error) {
	if err := a.claim(KindHasTraded); err != nil {
		return err
	}
	defer a.release(&err)
	return a.apply(g, KindHasTraded)
}

func (a *HasTraded) Execute(g *Game) error { return a.apply(g, KindHasTraded) }

func (a *HasTraded) Reverse(g *Game) error { return a.undo(g, KindHasTraded) }

// ResetAll resets every unit of a set. It is a composite: each operation
// delegates to its children, in reverse order for Reverse.
type ResetAll struct {
	base
	Actions []Action
}

func NewResetAll(g *Game, units []*model.Unit) (*ResetAll, error) {
	ra := &ResetAll{}
	for _, u := range units {
		r, err := NewReset(g, u.ID)
		if err != nil {
			return nil, err
		}
		ra.Actions = append(ra.Actions, r)
	}
	return ra, nil
}

func (a *ResetAll) Kind() Kind { return KindResetAll }

func (a *ResetAll) Do(g *Game) (err error) {
	if err := a.claim(KindResetAll); err != nil {
		return err
	}
	defer a.release(&err)
	for _, c := range a.Actions {
		if err := c.Do(g); err != nil {
			return err
		}
	}
	return nil
}

func (a *ResetAll) Execute(g *Game) error {
	for _, c := range a.Actions {
		if err := c.Execute(g); err != nil {
			return err
		}
	}
	return nil
}

func (a *ResetAll) Reverse(g *Game) error {
	for i := len(a.Actions) - 1; i >= 0; i-- {
		if err := a.Actions[i].Reverse(g); err != nil {
			return err
		}
	}
	return nil
}

// Rescue has Unit pick up Rescuee, taking it off the board.
type Rescue struct {
	base
	Unit    model.UnitID
	Rescuee model.UnitID
	OldPos  model.Pos
	Before  model.ActionState
}

func NewRescue(g *Game, id, rescuee model.UnitID) (*Rescue, error) {
	u, err := unit(g, KindRescue, id)
	if err != nil {
		return nil, err
	}
	r, err := unit(g, KindRescue, rescuee)
	if err != nil {
		return nil, err
	}
	if u.Traveler != "" {
		return nil, fmt.Errorf("rescue: %q already carries %q: %w", id, u.Traveler, ErrInvalid)
	}
	return &Rescue{Unit: id, Rescuee: rescuee, OldPos: r.Position, Before: u.State()}, nil
}

func (a *Rescue) Kind() Kind { return KindRescue }

func (a *Rescue) Do(g *Game) (err error) {
	if err := a.claim(KindRescue); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.Execute(g); err != nil {
		return err
	}
	g.cue("rescue", a.Rescuee)
	return nil
}

func (a *Rescue) Execute(g *Game) error {
	u, err := unit(g, KindRescue, a.Unit)
	if err != nil {
		return err
	}
	r, err := unit(g, KindRescue, a.Rescuee)
	if err != nil {
		return err
	}
	u.Traveler = a.Rescuee
	u.HasAttacked = true
	g.World.Leave(r)
	r.Position = model.NoPos
	return nil
}

func (a *Rescue) Reverse(g *Game) error {
	u, err := unit(g, KindRescue, a.Unit)
	if err != nil {
		return err
	}
	r, err := unit(g, KindRescue, a.Rescuee)
	if err != nil {
		return err
	}
	if err := expect(KindRescue, "traveler", a.Rescuee, u.Traveler); err != nil {
		return err
	}
	if err := free(g, KindRescue, a.Rescuee, a.OldPos); err != nil {
		return err
	}
	r.Position = a.OldPos
	if err := g.World.Arrive(r); err != nil {
		return err
	}
	u.Traveler = ""
	u.SetState(a.Before)
	return nil
}

// Drop sets a carried unit down on a tile. The dropped unit's turn ends.
type Drop struct {
	base
	Unit    model.UnitID
	Droppee model.UnitID
	Pos     model.Pos
	Before  model.ActionState
	Wait    *Wait
}

func NewDrop(g *Game, id model.UnitID, pos model.Pos) (*Drop, error) {
	u, err := unit(g, KindDrop, id)
	if err != nil {
		return nil, err
	}
	if u.Traveler == "" {
		return nil, fmt.Errorf("drop: %q carries nobody: %w", id, ErrInvalid)
	}
	w, err := NewWait(g, u.Traveler)
	if err != nil {
		return nil, err
	}
	return &Drop{Unit: id, Droppee: u.Traveler, Pos: pos, Before: u.State(), Wait: w}, nil
}

func (a *Drop) Kind() Kind { return KindDrop }

func (a *Drop) Do(g *Game) (err error) {
	if err := a.claim(KindDrop); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.place(g); err != nil {
		return err
	}
	if err := a.Wait.Do(g); err != nil {
		return err
	}
	if u, err := g.World.Unit(a.Unit); err == nil && u.OnMap() && model.Distance(u.Position, a.Pos) == 1 {
		g.cue("fake_in", a.Droppee)
	}
	return a.mark(g)
}

func (a *Drop) Execute(g *Game) error {
	if err := a.place(g); err != nil {
		return err
	}
	if err := a.Wait.Execute(g); err != nil {
		return err
	}
	return a.mark(g)
}

func (a *Drop) place(g *Game) error {
	d, err := unit(g, KindDrop, a.Droppee)
	if err != nil {
		return err
	}
	if err := free(g, KindDrop, a.Droppee, a.Pos); err != nil {
		return err
	}
	d.Position = a.Pos
	return g.World.Arrive(d)
}

func (a *Drop) mark(g *Game) error {
	u, err := unit(g, KindDrop, a.Unit)
	if err != nil {
		return err
	}
	u.Traveler = ""
	u.HasTraded = true
	u.HasAttacked = true
	return nil
}

func (a *Drop) Reverse(g *Game) error {
	u, err := unit(g, KindDrop, a.Unit)
	if err != nil {
		return err
	}
	d, err := unit(g, KindDrop, a.Droppee)
	if err != nil {
		return err
	}
	if err := expect(KindDrop, "traveler", model.UnitID(""), u.Traveler); err != nil {
		return err
	}
	if err := expect(KindDrop, "droppee position", a.Pos, d.Position); err != nil {
		return err
	}
	if err := a.Wait.Reverse(g); err != nil {
		return err
	}
	g.World.Leave(d)
	d.Position = model.NoPos
	u.Traveler = a.Droppee
	u.SetState(a.Before)
	return nil
}

// transfer moves a carried unit between two carriers.
type transfer struct {
	base
	From     model.UnitID
	To       model.UnitID
	Traveler model.UnitID
	Before   model.ActionState
}

func (a *transfer) apply(g *Game, k Kind, actor model.UnitID) error {
	from, err := unit(g, k, a.From)
	if err != nil {
		return err
	}
	to, err := unit(g, k, a.To)
	if err != nil {
		return err
	}
	act, err := unit(g, k, actor)
	if err != nil {
		return err
	}
	to.Traveler = a.Traveler
	from.Traveler = ""
	act.HasTraded = true
	return nil
}

func (a *transfer) undo(g *Game, k Kind, actor model.UnitID) error {
	from, err := unit(g, k, a.From)
	if err != nil {
		return err
	}
	to, err := unit(g, k, a.To)
	if err != nil {
		return err
	}
	act, err := unit(g, k, actor)
	if err != nil {
		return err
	}
	if err := expect(k, "traveler", a.Traveler, to.Traveler); err != nil {
		return err
	}
	from.Traveler = a.Traveler
	to.Traveler = ""
	act.SetState(a.Before)
	return nil
}

func newTransfer(g *Game, k Kind, actor, from, to model.UnitID) (transfer, error) {
	f, err := unit(g, k, from)
	if err != nil {
		return transfer{}, err
	}
	t, err := unit(g, k, to)
	if err != nil {
		return transfer{}, err
	}
	act, err := unit(g, k, actor)
	if err != nil {
		return transfer{}, err
	}
	if f.Traveler == "" || t.Traveler != "" {
		return transfer{}, fmt.Errorf("%s: %q -> %q: %w", k, from, to, ErrInvalid)
	}
	return transfer{From: from, To: to, Traveler: f.Traveler, Before: act.State()}, nil
}

// Give hands Unit's carried unit to Other.
type Give struct{ transfer }

func NewGive(g *Game, id, other model.UnitID) (*Give, error) {
	t, err := newTransfer(g, KindGive, id, id, other)
	if err != nil {
		return nil, err
	}
	return &Give{t}, nil
}

func (a *Give) Kind() Kind { return KindGive }

func (a *Give) Do(g *Game) (err error) {
	if err := a.claim(KindGive); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *Give) Execute(g *Game) error { return a.apply(g, KindGive, a.From) }

func (a *Give) Reverse(g *Game) error { return a.undo(g, KindGive, a.From) }

// Take has Unit take Other's carried unit.
type Take struct{ transfer }

func NewTake(g *Game, id, other model.UnitID) (*Take, error) {
	t, err := newTransfer(g, KindTake, id, other, id)
	if err != nil {
		return nil, err
	}
	return &Take{t}, nil
}

func (a *Take) Kind() Kind { return KindTake }

func (a *Take) Do(g *Game) (err error) {
	if err := a.claim(KindTake); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *Take) Execute(g *Game) error { return a.apply(g, KindTake, a.To) }

func (a *Take) Reverse(g *Game) error { return a.undo(g, KindTake, a.To) }
