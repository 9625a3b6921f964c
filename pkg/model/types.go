// Package model defines the live entity arena that the action log mutates.
//
// Units and items live in registries keyed by stable identifiers. Actions
// never hold pointers into the arena: they carry UnitID and ItemID values
// and resolve them through the World on every operation, so an identifier
// that no longer exists is a checked ErrDanglingReference rather than a
// stale pointer.
package model

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// UnitID is the stable unique identifier of a unit (its nid).
type UnitID string

// ItemID is the stable unique identifier of an item instance (its uid).
type ItemID string

// NewItemID returns a fresh item instance identifier.
func NewItemID() ItemID { return ItemID(uuid.NewString()) }

// Pos is a board coordinate. NoPos marks a unit that is not on the board.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoPos is the position of a unit that is off the board.
var NoPos = Pos{X: -1, Y: -1}

// Valid reports whether p names a board tile.
func (p Pos) Valid() bool { return p.X >= 0 && p.Y >= 0 }

func (p Pos) String() string {
	if !p.Valid() {
		return "(off)"
	}
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Distance returns the Manhattan distance between two tiles.
func Distance(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ActionState is the per-turn set of flags that decide what a unit may
// still do this phase.
type ActionState struct {
	HasMoved    bool `json:"has_moved"`
	HasTraded   bool `json:"has_traded"`
	HasAttacked bool `json:"has_attacked"`
	Finished    bool `json:"finished"`
}

// Unit is a live combatant.
type Unit struct {
	ID               UnitID         `json:"id"`
	Team             string         `json:"team"`
	Position         Pos            `json:"position"`
	PreviousPosition Pos            `json:"previous_position"`
	MovementLeft     int            `json:"movement_left"`
	HP               int            `json:"hp"`
	MaxHP            int            `json:"max_hp"`
	Exp              int            `json:"exp"`
	Level            int            `json:"level"`
	Stats            map[string]int `json:"stats,omitempty"`
	Items            []ItemID       `json:"items,omitempty"`
	Traveler         UnitID         `json:"traveler,omitempty"`
	Dead             bool           `json:"dead"`
	ActionState
}

// State returns a copy of the unit's turn flags.
func (u *Unit) State() ActionState { return u.ActionState }

// SetState overwrites the unit's turn flags.
func (u *Unit) SetState(s ActionState) { u.ActionState = s }

// ResetState clears the unit's turn flags for a new phase.
func (u *Unit) ResetState() { u.ActionState = ActionState{} }

// OnMap reports whether the unit currently occupies a tile.
func (u *Unit) OnMap() bool { return u.Position.Valid() }

// ItemIndex returns the inventory slot holding id, or -1.
func (u *Unit) ItemIndex(id ItemID) int {
	for i, it := range u.Items {
		if it == id {
			return i
		}
	}
	return -1
}

func (u *Unit) clone() Unit {
	c := *u
	c.Stats = maps.Clone(u.Stats)
	if u.Items != nil {
		c.Items = append([]ItemID(nil), u.Items...)
	}
	return c
}

// Item is a live item instance.
type Item struct {
	ID        ItemID `json:"id"`
	NID       string `json:"nid"`
	Name      string `json:"name"`
	Uses      int    `json:"uses"`
	MaxUses   int    `json:"max_uses"`
	Droppable bool   `json:"droppable"`
	Owner     UnitID `json:"owner,omitempty"`
}

// NewItem creates an item instance with a fresh identifier. maxUses of 0
// means the item never breaks.
func NewItem(nid, name string, maxUses int) *Item {
	return &Item{
		ID:      NewItemID(),
		NID:     nid,
		Name:    name,
		Uses:    maxUses,
		MaxUses: maxUses,
	}
}

// Breakable reports whether the item tracks remaining uses.
func (it *Item) Breakable() bool { return it.MaxUses > 0 }
