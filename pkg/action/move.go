package action

import (
	"fmt"

	"github.com/daviddao/turnwheel/pkg/model"
)

// Move walks a unit along a path. Do hands the motion to Game.Mover and
// finishes asynchronously; the durable outcome (Stop, Interrupted) is
// filled in once when the motion completes and is what Execute replays.
type Move struct {
	base
	Unit             model.UnitID
	Path             []model.Pos
	OldPos           model.Pos
	NewPos           model.Pos
	PrevMovementLeft int
	NewMovementLeft  int
	Before           model.ActionState
	Stop             model.Pos
	Interrupted      bool
}

// NewMove captures the unit's pre-move state. path may omit the starting
// tile; a nil path is a direct step to dest.
func NewMove(g *Game, id model.UnitID, dest model.Pos, path []model.Pos) (*Move, error) {
	u, err := unit(g, KindMove, id)
	if err != nil {
		return nil, err
	}
	if !u.OnMap() {
		return nil, fmt.Errorf("move %q: not on map: %w", id, ErrInvalid)
	}
	if !dest.Valid() {
		return nil, fmt.Errorf("move %q to %s: %w", id, dest, ErrInvalid)
	}
	full := make([]model.Pos, 0, len(path)+2)
	if len(path) == 0 || path[0] != u.Position {
		full = append(full, u.Position)
	}
	full = append(full, path...)
	if full[len(full)-1] != dest {
		full = append(full, dest)
	}
	cost := len(full) - 1
	return &Move{
		Unit:             id,
		Path:             full,
		OldPos:           u.Position,
		NewPos:           dest,
		PrevMovementLeft: u.MovementLeft,
		NewMovementLeft:  max(0, u.MovementLeft-cost),
		Before:           u.State(),
		Stop:             dest,
	}, nil
}

func (a *Move) Kind() Kind { return KindMove }

func (a *Move) Do(g *Game) (err error) {
	if err := a.claim(KindMove); err != nil {
		return err
	}
	defer a.release(&err)
	u, err := unit(g, KindMove, a.Unit)
	if err != nil {
		return err
	}
	if err := free(g, KindMove, a.Unit, a.NewPos); err != nil {
		return err
	}
	g.World.Leave(u)
	if g.Mover == nil {
		return a.finish(g, a.NewPos, false)
	}
	return g.Mover.BeginMove(a.Unit, a.Path, func(stop model.Pos, interrupted bool) error {
		return a.finish(g, stop, interrupted)
	})
}

func (a *Move) finish(g *Game, stop model.Pos, interrupted bool) error {
	a.Stop = stop
	a.Interrupted = interrupted
	if interrupted {
		g.cue("interrupt", a.Unit)
	}
	return a.Execute(g)
}

func (a *Move) Execute(g *Game) error {
	u, err := unit(g, KindMove, a.Unit)
	if err != nil {
		return err
	}
	if err := free(g, KindMove, a.Unit, a.Stop); err != nil {
		return err
	}
	g.World.Leave(u)
	u.MovementLeft = a.NewMovementLeft
	u.HasMoved = true
	if a.Interrupted {
		u.Finished = true
	}
	u.Position = a.Stop
	return g.World.Arrive(u)
}

func (a *Move) Reverse(g *Game) error {
	u, err := unit(g, KindMove, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindMove, "position", a.Stop, u.Position); err != nil {
		return err
	}
	if err := expect(KindMove, "movement_left", a.NewMovementLeft, u.MovementLeft); err != nil {
		return err
	}
	if err := free(g, KindMove, a.Unit, a.OldPos); err != nil {
		return err
	}
	g.World.Leave(u)
	u.MovementLeft = a.PrevMovementLeft
	u.SetState(a.Before)
	u.Position = a.OldPos
	return g.World.Arrive(u)
}

// Teleport moves a unit instantly.
type Teleport struct {
	base
	Unit   model.UnitID
	OldPos model.Pos
	NewPos model.Pos
}

func NewTeleport(g *Game, id model.UnitID, dest model.Pos) (*Teleport, error) {
	u, err := unit(g, KindTeleport, id)
	if err != nil {
		return nil, err
	}
	return &Teleport{Unit: id, OldPos: u.Position, NewPos: dest}, nil
}

func (a *Teleport) Kind() Kind { return KindTeleport }

func (a *Teleport) Do(g *Game) (err error) {
	if err := a.claim(a.Kind()); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *Teleport) Execute(g *Game) error {
	u, err := unit(g, KindTeleport, a.Unit)
	if err != nil {
		return err
	}
	if err := free(g, KindTeleport, a.Unit, a.NewPos); err != nil {
		return err
	}
	g.World.Leave(u)
	u.Position = a.NewPos
	return g.World.Arrive(u)
}

func (a *Teleport) Reverse(g *Game) error {
	u, err := unit(g, KindTeleport, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindTeleport, "position", a.NewPos, u.Position); err != nil {
		return err
	}
	if err := free(g, KindTeleport, a.Unit, a.OldPos); err != nil {
		return err
	}
	g.World.Leave(u)
	u.Position = a.OldPos
	return g.World.Arrive(u)
}

// Warp is a Teleport with a visible warp effect on first application.
type Warp struct {
	Teleport
}

func NewWarp(g *Game, id model.UnitID, dest model.Pos) (*Warp, error) {
	t, err := NewTeleport(g, id, dest)
	if err != nil {
		return nil, err
	}
	return &Warp{Teleport: *t}, nil
}

func (a *Warp) Kind() Kind { return KindWarp }

func (a *Warp) Do(g *Game) (err error) {
	if err := a.claim(KindWarp); err != nil {
		return err
	}
	defer a.release(&err)
	if err := free(g, KindWarp, a.Unit, a.NewPos); err != nil {
		return err
	}
	g.cue("warp_out", a.Unit)
	if err := a.Execute(g); err != nil {
		return err
	}
	g.cue("warp_in", a.Unit)
	return nil
}

// PlaceOnMap sets a unit's position without touching the occupancy board.
type PlaceOnMap struct {
	base
	Unit        model.UnitID
	Pos         model.Pos
	OldPos      model.Pos
	OldPrevious model.Pos
}

func NewPlaceOnMap(g *Game, id model.UnitID, pos model.Pos) (*PlaceOnMap, error) {
	u, err := unit(g, KindPlaceOnMap, id)
	if err != nil {
		return nil, err
	}
	return &PlaceOnMap{Unit: id, Pos: pos, OldPos: u.Position, OldPrevious: u.PreviousPosition}, nil
}

func (a *PlaceOnMap) Kind() Kind { return KindPlaceOnMap }

func (a *PlaceOnMap) Do(g *Game) (err error) {
	if err := a.claim(KindPlaceOnMap); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *PlaceOnMap) Execute(g *Game) error {
	u, err := unit(g, KindPlaceOnMap, a.Unit)
	if err != nil {
		return err
	}
	u.Position = a.Pos
	if a.Pos.Valid() {
		u.PreviousPosition = a.Pos
	}
	return nil
}

func (a *PlaceOnMap) Reverse(g *Game) error {
	u, err := unit(g, KindPlaceOnMap, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindPlaceOnMap, "position", a.Pos, u.Position); err != nil {
		return err
	}
	u.Position = a.OldPos
	u.PreviousPosition = a.OldPrevious
	return nil
}

// RemoveFromMap clears a unit's position without touching the occupancy
// board.
type RemoveFromMap struct {
	base
	Unit   model.UnitID
	OldPos model.Pos
}

func NewRemoveFromMap(g *Game, id model.UnitID) (*RemoveFromMap, error) {
	u, err := unit(g, KindRemoveFromMap, id)
	if err != nil {
		return nil, err
	}
	return &RemoveFromMap{Unit: id, OldPos: u.Position}, nil
}

func (a *RemoveFromMap) Kind() Kind { return KindRemoveFromMap }

func (a *RemoveFromMap) Do(g *Game) (err error) {
	if err := a.claim(KindRemoveFromMap); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *RemoveFromMap) Execute(g *Game) error {
	u, err := unit(g, KindRemoveFromMap, a.Unit)
	if err != nil {
		return err
	}
	u.Position = model.NoPos
	return nil
}

func (a *RemoveFromMap) Reverse(g *Game) error {
	u, err := unit(g, KindRemoveFromMap, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindRemoveFromMap, "position", model.NoPos, u.Position); err != nil {
		return err
	}
	u.Position = a.OldPos
	return nil
}

// ArriveOnMap places a unit and claims its tile.
type ArriveOnMap struct {
	base
	Unit  model.UnitID
	Place *PlaceOnMap
}

func NewArriveOnMap(g *Game, id model.UnitID, pos model.Pos) (*ArriveOnMap, error) {
	place, err := NewPlaceOnMap(g, id, pos)
	if err != nil {
		return nil, err
	}
	return &ArriveOnMap{Unit: id, Place: place}, nil
}

func (a *ArriveOnMap) Kind() Kind { return KindArriveOnMap }

func (a *ArriveOnMap) Do(g *Game) (err error) {
	if err := a.claim(KindArriveOnMap); err != nil {
		return err
	}
	defer a.release(&err)
	if err := free(g, KindArriveOnMap, a.Unit, a.Place.Pos); err != nil {
		return err
	}
	if err := a.Place.Do(g); err != nil {
		return err
	}
	return a.arrive(g)
}

func (a *ArriveOnMap) Execute(g *Game) error {
	if err := free(g, KindArriveOnMap, a.Unit, a.Place.Pos); err != nil {
		return err
	}
	if err := a.Place.Execute(g); err != nil {
		return err
	}
	return a.arrive(g)
}

func (a *ArriveOnMap) arrive(g *Game) error {
	u, err := unit(g, KindArriveOnMap, a.Unit)
	if err != nil {
		return err
	}
	return g.World.Arrive(u)
}

func (a *ArriveOnMap) Reverse(g *Game) error {
	u, err := unit(g, KindArriveOnMap, a.Unit)
	if err != nil {
		return err
	}
	if err := expect(KindArriveOnMap, "position", a.Place.Pos, u.Position); err != nil {
		return err
	}
	g.World.Leave(u)
	return a.Place.Reverse(g)
}

// LeaveMap releases a unit's tile and takes it off the board.
type LeaveMap struct {
	base
	Unit   model.UnitID
	Remove *RemoveFromMap
}

func NewLeaveMap(g *Game, id model.UnitID) (*LeaveMap, error) {
	rm, err := NewRemoveFromMap(g, id)
	if err != nil {
		return nil, err
	}
	return &LeaveMap{Unit: id, Remove: rm}, nil
}

func (a *LeaveMap) Kind() Kind { return KindLeaveMap }

func (a *LeaveMap) Do(g *Game) (err error) {
	if err := a.claim(KindLeaveMap); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.leave(g); err != nil {
		return err
	}
	return a.Remove.Do(g)
}

func (a *LeaveMap) Execute(g *Game) error {
	if err := a.leave(g); err != nil {
		return err
	}
	return a.Remove.Execute(g)
}

func (a *LeaveMap) leave(g *Game) error {
	u, err := unit(g, KindLeaveMap, a.Unit)
	if err != nil {
		return err
	}
	g.World.Leave(u)
	return nil
}

func (a *LeaveMap) Reverse(g *Game) error {
	if err := free(g, KindLeaveMap, a.Unit, a.Remove.OldPos); err != nil {
		return err
	}
	if err := a.Remove.Reverse(g); err != nil {
		return err
	}
	u, err := unit(g, KindLeaveMap, a.Unit)
	if err != nil {
		return err
	}
	return g.World.Arrive(u)
}
