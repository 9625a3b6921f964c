package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrDanglingReference is returned when an identifier no longer names a
	// live unit or item.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrOccupied is returned when a unit arrives on a tile another unit holds.
	ErrOccupied = errors.New("tile occupied")

	// ErrDuplicate is returned when registering an identifier twice.
	ErrDuplicate = errors.New("duplicate identifier")

	// ErrNotHeld is returned when an item is not where an operation expects it.
	ErrNotHeld = errors.New("item not held")
)

// World is the registry of live units and items plus the board occupancy
// and the few pieces of global state that actions touch.
type World struct {
	units map[UnitID]*Unit
	items map[ItemID]*Item
	board map[Pos]UnitID

	Convoy      []ItemID
	TurnCount   int
	Phase       string
	RandomState int64
}

// NewWorld returns an empty world in the player phase of turn 0.
func NewWorld() *World {
	return &World{
		units: make(map[UnitID]*Unit),
		items: make(map[ItemID]*Item),
		board: make(map[Pos]UnitID),
		Phase: "player",
	}
}

// AddUnit registers u and places it on the board if it has a position.
func (w *World) AddUnit(u *Unit) error {
	if u.ID == "" {
		return fmt.Errorf("add unit: empty id")
	}
	if _, ok := w.units[u.ID]; ok {
		return fmt.Errorf("add unit %q: %w", u.ID, ErrDuplicate)
	}
	if err := w.Arrive(u); err != nil {
		return fmt.Errorf("add unit %q: %w", u.ID, err)
	}
	w.units[u.ID] = u
	return nil
}

// AddItem registers it.
func (w *World) AddItem(it *Item) error {
	if it.ID == "" {
		return fmt.Errorf("add item: empty id")
	}
	if _, ok := w.items[it.ID]; ok {
		return fmt.Errorf("add item %q: %w", it.ID, ErrDuplicate)
	}
	w.items[it.ID] = it
	return nil
}

// RemoveUnit drops a unit from the registry entirely. Actions that still
// name it will fail with ErrDanglingReference.
func (w *World) RemoveUnit(id UnitID) {
	if u, ok := w.units[id]; ok {
		w.Leave(u)
		delete(w.units, id)
	}
}

// RemoveItem drops an item from the registry entirely.
func (w *World) RemoveItem(id ItemID) { delete(w.items, id) }

// Unit resolves a unit identifier.
func (w *World) Unit(id UnitID) (*Unit, error) {
	u, ok := w.units[id]
	if !ok {
		return nil, fmt.Errorf("unit %q: %w", id, ErrDanglingReference)
	}
	return u, nil
}

// Item resolves an item identifier.
func (w *World) Item(id ItemID) (*Item, error) {
	it, ok := w.items[id]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", id, ErrDanglingReference)
	}
	return it, nil
}

// HasUnit reports whether id names a live unit.
func (w *World) HasUnit(id UnitID) bool {
	_, ok := w.units[id]
	return ok
}

// HasItem reports whether id names a live item.
func (w *World) HasItem(id ItemID) bool {
	_, ok := w.items[id]
	return ok
}

// Units returns all units ordered by identifier.
func (w *World) Units() []*Unit {
	out := make([]*Unit, 0, len(w.units))
	for _, u := range w.units {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *Unit) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// Team returns the living units of a team ordered by identifier.
func (w *World) Team(team string) []*Unit {
	var out []*Unit
	for _, u := range w.Units() {
		if u.Team == team && !u.Dead {
			out = append(out, u)
		}
	}
	return out
}

// UnitAt returns the unit occupying p, if any.
func (w *World) UnitAt(p Pos) (UnitID, bool) {
	id, ok := w.board[p]
	return id, ok
}

// Leave removes u from the occupancy board. It is a no-op if u does not
// hold its tile, so it is safe to call more than once.
func (w *World) Leave(u *Unit) {
	if !u.Position.Valid() {
		return
	}
	if w.board[u.Position] == u.ID {
		delete(w.board, u.Position)
	}
}

// Arrive records u on the occupancy board at its current position.
func (w *World) Arrive(u *Unit) error {
	if !u.Position.Valid() {
		return nil
	}
	if occ, ok := w.board[u.Position]; ok && occ != u.ID {
		return fmt.Errorf("arrive %q at %s held by %q: %w", u.ID, u.Position, occ, ErrOccupied)
	}
	w.board[u.Position] = u.ID
	return nil
}

// InsertItem puts it into u's inventory at index (clamped) and sets the
// owner.
func (w *World) InsertItem(u *Unit, index int, it *Item) {
	index = max(0, min(index, len(u.Items)))
	u.Items = slices.Insert(u.Items, index, it.ID)
	it.Owner = u.ID
}

// TakeItem removes it from u's inventory and returns the slot it held.
func (w *World) TakeItem(u *Unit, it *Item) (int, error) {
	idx := u.ItemIndex(it.ID)
	if idx < 0 {
		return -1, fmt.Errorf("take %q from %q: %w", it.ID, u.ID, ErrNotHeld)
	}
	u.Items = slices.Delete(u.Items, idx, idx+1)
	if len(u.Items) == 0 {
		u.Items = nil
	}
	it.Owner = ""
	return idx, nil
}

// ConvoyIndex returns the position of id in the convoy, or -1.
func (w *World) ConvoyIndex(id ItemID) int { return slices.Index(w.Convoy, id) }

// PutInConvoy appends it to the convoy.
func (w *World) PutInConvoy(it *Item) {
	w.Convoy = append(w.Convoy, it.ID)
	it.Owner = ""
}

// TakeFromConvoy removes it from the convoy.
func (w *World) TakeFromConvoy(it *Item) error {
	idx := w.ConvoyIndex(it.ID)
	if idx < 0 {
		return fmt.Errorf("take %q from convoy: %w", it.ID, ErrNotHeld)
	}
	w.Convoy = slices.Delete(w.Convoy, idx, idx+1)
	if len(w.Convoy) == 0 {
		w.Convoy = nil
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Placement is one occupied tile.
type Placement struct {
	Pos  Pos    `json:"pos"`
	Unit UnitID `json:"unit"`
}

// Snapshot is a deep, ordered copy of a World. Two worlds in the same
// state produce reflect.DeepEqual snapshots.
type Snapshot struct {
	Units       []Unit      `json:"units"`
	Items       []Item      `json:"items"`
	Board       []Placement `json:"board"`
	Convoy      []ItemID    `json:"convoy,omitempty"`
	TurnCount   int         `json:"turn_count"`
	Phase       string      `json:"phase"`
	RandomState int64       `json:"random_state"`
}

// Snapshot copies the world.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		TurnCount:   w.TurnCount,
		Phase:       w.Phase,
		RandomState: w.RandomState,
	}
	for _, u := range w.Units() {
		s.Units = append(s.Units, u.clone())
	}
	for _, it := range w.items {
		s.Items = append(s.Items, *it)
	}
	slices.SortFunc(s.Items, func(a, b Item) int { return strings.Compare(string(a.ID), string(b.ID)) })
	for p, id := range w.board {
		s.Board = append(s.Board, Placement{Pos: p, Unit: id})
	}
	slices.SortFunc(s.Board, func(a, b Placement) int {
		if a.Pos.X != b.Pos.X {
			return a.Pos.X - b.Pos.X
		}
		return a.Pos.Y - b.Pos.Y
	})
	if w.Convoy != nil {
		s.Convoy = append([]ItemID(nil), w.Convoy...)
	}
	return s
}

// FromSnapshot rebuilds a world from a snapshot.
func FromSnapshot(s Snapshot) (*World, error) {
	w := NewWorld()
	w.TurnCount = s.TurnCount
	w.Phase = s.Phase
	w.RandomState = s.RandomState
	if s.Convoy != nil {
		w.Convoy = append([]ItemID(nil), s.Convoy...)
	}
	for i := range s.Units {
		u := s.Units[i].clone()
		if _, ok := w.units[u.ID]; ok {
			return nil, fmt.Errorf("snapshot unit %q: %w", u.ID, ErrDuplicate)
		}
		w.units[u.ID] = &u
	}
	for i := range s.Items {
		it := s.Items[i]
		if err := w.AddItem(&it); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	for _, pl := range s.Board {
		if !w.HasUnit(pl.Unit) {
			return nil, fmt.Errorf("snapshot board %s: unit %q: %w", pl.Pos, pl.Unit, ErrDanglingReference)
		}
		if occ, ok := w.board[pl.Pos]; ok {
			return nil, fmt.Errorf("snapshot board %s held by %q and %q: %w", pl.Pos, occ, pl.Unit, ErrOccupied)
		}
		w.board[pl.Pos] = pl.Unit
	}
	return w, nil
}
