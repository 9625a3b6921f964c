// Package action implements the reversible game actions recorded by the
// action log.
//
// Every action follows the same contract:
//
//   - Do applies the action for the first time and may fire one-shot
//     presentation cues. It is legal exactly once per value.
//   - Execute re-applies the durable effect with no cues. It is used when
//     replaying forward and must be idempotent from the pre-state.
//   - Reverse restores the exact pre-state. It checks that the world is in
//     the post-state it expects and returns a *SymmetryError otherwise.
//
// Actions reference units and items by identifier and resolve them through
// Game.World on each call.
package action

import (
	"errors"
	"fmt"

	"github.com/daviddao/turnwheel/pkg/model"
)

// Kind is the closed set of action types.
type Kind string

const (
	KindGroupStart    Kind = "group_start"
	KindGroupEnd      Kind = "group_end"
	KindMarkPhase     Kind = "mark_phase"
	KindLockTurnwheel Kind = "lock_turnwheel"
	KindMessage       Kind = "message"

	KindMove          Kind = "move"
	KindTeleport      Kind = "teleport"
	KindWarp          Kind = "warp"
	KindPlaceOnMap    Kind = "place_on_map"
	KindRemoveFromMap Kind = "remove_from_map"
	KindArriveOnMap   Kind = "arrive_on_map"
	KindLeaveMap      Kind = "leave_map"

	KindIncrementTurn Kind = "increment_turn"
	KindWait          Kind = "wait"
	KindReset         Kind = "reset"
	KindResetAll      Kind = "reset_all"
	KindHasAttacked   Kind = "has_attacked"
	KindHasTraded     Kind = "has_traded"

	KindRescue Kind = "rescue"
	KindDrop   Kind = "drop"
	KindGive   Kind = "give"
	KindTake   Kind = "take"

	KindGiveItem        Kind = "give_item"
	KindDiscardItem     Kind = "discard_item"
	KindRemoveItem      Kind = "remove_item"
	KindEquipItem       Kind = "equip_item"
	KindTradeItem       Kind = "trade_item"
	KindUseItem         Kind = "use_item"
	KindPutItemInConvoy Kind = "put_item_in_convoy"

	KindChangeHP          Kind = "change_hp"
	KindGainExp           Kind = "gain_exp"
	KindSetExp            Kind = "set_exp"
	KindIncLevel          Kind = "inc_level"
	KindApplyLevelUp      Kind = "apply_level_up"
	KindDie               Kind = "die"
	KindResurrect         Kind = "resurrect"
	KindRecordRandomState Kind = "record_random_state"
)

// Action is one reversible state change.
type Action interface {
	Kind() Kind
	Do(g *Game) error
	Execute(g *Game) error
	Reverse(g *Game) error
}

// Mover animates a unit along a path. The implementation must call done
// exactly once, with the tile the unit stopped on and whether the move was
// cut short, once the motion has finished.
type Mover interface {
	BeginMove(unit model.UnitID, path []model.Pos, done func(stop model.Pos, interrupted bool) error) error
}

// Cues receives one-shot presentation events fired by Do.
type Cues interface {
	Cue(name string, unit model.UnitID)
}

// Game is the explicit state handle passed to every action.
type Game struct {
	World *model.World
	// Mover is optional. Without one, moves complete immediately.
	Mover Mover
	// Cues is optional.
	Cues Cues
}

func (g *Game) cue(name string, unit model.UnitID) {
	if g.Cues != nil {
		g.Cues.Cue(name, unit)
	}
}

var (
	// ErrAlreadyDone is returned when Do is called on an action that has
	// already been applied.
	ErrAlreadyDone = errors.New("action already done")

	// ErrSymmetry matches every *SymmetryError.
	ErrSymmetry = errors.New("symmetry violation")

	// ErrInvalid is returned by constructors given arguments that can not
	// describe a legal action.
	ErrInvalid = errors.New("invalid action")
)

// SymmetryError reports that Reverse found the world in a state other than
// the post-state of the action it was asked to undo.
type SymmetryError struct {
	Kind  Kind
	Field string
	Want  any
	Got   any
}

func (e *SymmetryError) Error() string {
	return fmt.Sprintf("reverse %s: %s is %v, want %v", e.Kind, e.Field, e.Got, e.Want)
}

func (e *SymmetryError) Is(target error) bool { return target == ErrSymmetry }

func expect[T comparable](k Kind, field string, want, got T) error {
	if want != got {
		return &SymmetryError{Kind: k, Field: field, Want: want, Got: got}
	}
	return nil
}

// base tracks the constructed -> applied transition that makes Do legal
// only once.
type base struct {
	done bool
}

func (b *base) claim(k Kind) error {
	if b.done {
		return fmt.Errorf("%s: %w", k, ErrAlreadyDone)
	}
	b.done = true
	return nil
}

// release undoes a claim when Do fails, so a rejected action is still
// unapplied and may be retried.
func (b *base) release(err *error) {
	if *err != nil {
		b.done = false
	}
}

// free fails with ErrOccupied when p is held by a unit other than id.
func free(g *Game, k Kind, id model.UnitID, p model.Pos) error {
	if occ, ok := g.World.UnitAt(p); ok && occ != id {
		return fmt.Errorf("%s %q at %s held by %q: %w", k, id, p, occ, model.ErrOccupied)
	}
	return nil
}

func (b *base) restored() { b.done = true }

// Done reports whether Do has been called, or whether the action was
// decoded from a saved log.
func (b *base) Done() bool { return b.done }

func unit(g *Game, k Kind, id model.UnitID) (*model.Unit, error) {
	u, err := g.World.Unit(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return u, nil
}

func item(g *Game, k Kind, id model.ItemID) (*model.Item, error) {
	it, err := g.World.Item(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return it, nil
}
