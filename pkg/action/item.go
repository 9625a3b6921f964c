package action

import (
	"fmt"

	"github.com/daviddao/turnwheel/pkg/model"
)

// GiveItem appends an item to a unit's inventory.
type GiveItem struct {
	base
	Unit model.UnitID
	Item model.ItemID
}

func NewGiveItem(g *Game, id model.UnitID, it model.ItemID) (*GiveItem, error) {
	if _, err := unit(g, KindGiveItem, id); err != nil {
		return nil, err
	}
	i, err := item(g, KindGiveItem, it)
	if err != nil {
		return nil, err
	}
	if i.Owner != "" {
		return nil, fmt.Errorf("give item %q: held by %q: %w", it, i.Owner, ErrInvalid)
	}
	return &GiveItem{Unit: id, Item: it}, nil
}

func (a *GiveItem) Kind() Kind { return KindGiveItem }

func (a *GiveItem) Do(g *Game) (err error) {
	if err := a.claim(KindGiveItem); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.Execute(g); err != nil {
		return err
	}
	g.cue("banner:acquired", a.Unit)
	return nil
}

func (a *GiveItem) Execute(g *Game) error {
	u, err := unit(g, KindGiveItem, a.Unit)
	if err != nil {
		return err
	}
	it, err := item(g, KindGiveItem, a.Item)
	if err != nil {
		return err
	}
	if u.ItemIndex(a.Item) < 0 {
		g.World.InsertItem(u, len(u.Items), it)
	}
	return nil
}

func (a *GiveItem) Reverse(g *Game) error {
	u, err := unit(g, KindGiveItem, a.Unit)
	if err != nil {
		return err
	}
	it, err := item(g, KindGiveItem, a.Item)
	if err != nil {
		return err
	}
	if err := expect(KindGiveItem, "owner", a.Unit, it.Owner); err != nil {
		return err
	}
	_, err = g.World.TakeItem(u, it)
	return err
}

// slotted is the shared shape of item actions that remember the
// inventory slot the item came from.
type slotted struct {
	base
	Unit  model.UnitID
	Item  model.ItemID
	Index int
}

func newSlotted(g *Game, k Kind, id model.UnitID, it model.ItemID) (slotted, error) {
	u, err := unit(g, k, id)
	if err != nil {
		return slotted{}, err
	}
	if _, err := item(g, k, it); err != nil {
		return slotted{}, err
	}
	idx := u.ItemIndex(it)
	if idx < 0 {
		return slotted{}, fmt.Errorf("%s: %q not held by %q: %w", k, it, id, model.ErrNotHeld)
	}
	return slotted{Unit: id, Item: it, Index: idx}, nil
}

func (a *slotted) resolve(g *Game, k Kind) (*model.Unit, *model.Item, error) {
	u, err := unit(g, k, a.Unit)
	if err != nil {
		return nil, nil, err
	}
	it, err := item(g, k, a.Item)
	if err != nil {
		return nil, nil, err
	}
	return u, it, nil
}

// take removes the item from the unit unless it is already gone.
func (a *slotted) take(g *Game, k Kind) (*model.Unit, *model.Item, error) {
	u, it, err := a.resolve(g, k)
	if err != nil {
		return nil, nil, err
	}
	if u.ItemIndex(a.Item) >= 0 {
		if _, err := g.World.TakeItem(u, it); err != nil {
			return nil, nil, err
		}
	}
	return u, it, nil
}

// RemoveItem takes an item out of a unit's inventory.
type RemoveItem struct{ slotted }

func NewRemoveItem(g *Game, id model.UnitID, it model.ItemID) (*RemoveItem, error) {
	s, err := newSlotted(g, KindRemoveItem, id, it)
	if err != nil {
		return nil, err
	}
	return &RemoveItem{s}, nil
}

func (a *RemoveItem) Kind() Kind { return KindRemoveItem }

func (a *RemoveItem) Do(g *Game) (err error) {
	if err := a.claim(KindRemoveItem); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *RemoveItem) Execute(g *Game) error {
	_, _, err := a.take(g, KindRemoveItem)
	return err
}

func (a *RemoveItem) Reverse(g *Game) error {
	u, it, err := a.resolve(g, KindRemoveItem)
	if err != nil {
		return err
	}
	if err := expect(KindRemoveItem, "owner", model.UnitID(""), it.Owner); err != nil {
		return err
	}
	g.World.InsertItem(u, a.Index, it)
	return nil
}

// DiscardItem sends an item from a unit's inventory to the convoy.
type DiscardItem struct{ slotted }

func NewDiscardItem(g *Game, id model.UnitID, it model.ItemID) (*DiscardItem, error) {
	s, err := newSlotted(g, KindDiscardItem, id, it)
	if err != nil {
		return nil, err
	}
	return &DiscardItem{s}, nil
}

func (a *DiscardItem) Kind() Kind { return KindDiscardItem }

func (a *DiscardItem) Do(g *Game) (err error) {
	if err := a.claim(KindDiscardItem); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *DiscardItem) Execute(g *Game) error {
	_, it, err := a.take(g, KindDiscardItem)
	if err != nil {
		return err
	}
	if g.World.ConvoyIndex(a.Item) < 0 {
		g.World.PutInConvoy(it)
	}
	return nil
}

func (a *DiscardItem) Reverse(g *Game) error {
	u, it, err := a.resolve(g, KindDiscardItem)
	if err != nil {
		return err
	}
	if err := g.World.TakeFromConvoy(it); err != nil {
		return &SymmetryError{Kind: KindDiscardItem, Field: "convoy", Want: a.Item, Got: "absent"}
	}
	g.World.InsertItem(u, a.Index, it)
	return nil
}

// EquipItem moves an item to the front of the inventory.
type EquipItem struct{ slotted }

func NewEquipItem(g *Game, id model.UnitID, it model.ItemID) (*EquipItem, error) {
	s, err := newSlotted(g, KindEquipItem, id, it)
	if err != nil {
		return nil, err
	}
	return &EquipItem{s}, nil
}

func (a *EquipItem) Kind() Kind { return KindEquipItem }

func (a *EquipItem) Do(g *Game) (err error) {
	if err := a.claim(KindEquipItem); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *EquipItem) Execute(g *Game) error {
	u, it, err := a.take(g, KindEquipItem)
	if err != nil {
		return err
	}
	g.World.InsertItem(u, 0, it)
	return nil
}

func (a *EquipItem) Reverse(g *Game) error {
	u, it, err := a.resolve(g, KindEquipItem)
	if err != nil {
		return err
	}
	if err := expect(KindEquipItem, "slot", 0, u.ItemIndex(a.Item)); err != nil {
		return err
	}
	if _, err := g.World.TakeItem(u, it); err != nil {
		return err
	}
	g.World.InsertItem(u, a.Index, it)
	return nil
}

// TradeItem swaps two inventory entries between units. Either item may be
// empty, which trades into a free slot.
type TradeItem struct {
	base
	Unit1  model.UnitID
	Unit2  model.UnitID
	Item1  model.ItemID
	Item2  model.ItemID
	Index1 int
	Index2 int
}

func NewTradeItem(g *Game, u1, u2 model.UnitID, it1, it2 model.ItemID) (*TradeItem, error) {
	if u1 == u2 {
		return nil, fmt.Errorf("trade item: %q with itself: %w", u1, ErrInvalid)
	}
	a, err := unit(g, KindTradeItem, u1)
	if err != nil {
		return nil, err
	}
	b, err := unit(g, KindTradeItem, u2)
	if err != nil {
		return nil, err
	}
	t := &TradeItem{Unit1: u1, Unit2: u2, Item1: it1, Item2: it2, Index1: len(a.Items), Index2: len(b.Items)}
	if it1 != "" {
		if t.Index1 = a.ItemIndex(it1); t.Index1 < 0 {
			return nil, fmt.Errorf("trade item: %q not held by %q: %w", it1, u1, model.ErrNotHeld)
		}
	}
	if it2 != "" {
		if t.Index2 = b.ItemIndex(it2); t.Index2 < 0 {
			return nil, fmt.Errorf("trade item: %q not held by %q: %w", it2, u2, model.ErrNotHeld)
		}
	}
	return t, nil
}

func (a *TradeItem) Kind() Kind { return KindTradeItem }

func (a *TradeItem) Do(g *Game) (err error) {
	if err := a.claim(KindTradeItem); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *TradeItem) Execute(g *Game) error {
	return a.swap(g, a.Unit1, a.Unit2, a.Item1, a.Item2, a.Index1, a.Index2)
}

func (a *TradeItem) Reverse(g *Game) error {
	if a.Item1 != "" {
		it, err := item(g, KindTradeItem, a.Item1)
		if err != nil {
			return err
		}
		if err := expect(KindTradeItem, "item1 owner", a.Unit2, it.Owner); err != nil {
			return err
		}
	}
	if a.Item2 != "" {
		it, err := item(g, KindTradeItem, a.Item2)
		if err != nil {
			return err
		}
		if err := expect(KindTradeItem, "item2 owner", a.Unit1, it.Owner); err != nil {
			return err
		}
	}
	return a.swap(g, a.Unit2, a.Unit1, a.Item1, a.Item2, a.Index2, a.Index1)
}

// swap moves item1 from src to dst at dstIdx and item2 from dst to src at
// srcIdx, keeping each item in the slot the other vacated.
func (a *TradeItem) swap(g *Game, src, dst model.UnitID, item1, item2 model.ItemID, srcIdx, dstIdx int) error {
	s, err := unit(g, KindTradeItem, src)
	if err != nil {
		return err
	}
	d, err := unit(g, KindTradeItem, dst)
	if err != nil {
		return err
	}
	var it1, it2 *model.Item
	if item1 != "" {
		if it1, err = item(g, KindTradeItem, item1); err != nil {
			return err
		}
		if it1.Owner != src {
			return nil // already applied
		}
	}
	if item2 != "" {
		if it2, err = item(g, KindTradeItem, item2); err != nil {
			return err
		}
		if it1 == nil && it2.Owner != dst {
			return nil
		}
	}
	if it1 != nil {
		if _, err := g.World.TakeItem(s, it1); err != nil {
			return err
		}
		g.World.InsertItem(d, dstIdx, it1)
	}
	if it2 != nil {
		if _, err := g.World.TakeItem(d, it2); err != nil {
			return err
		}
		g.World.InsertItem(s, srcIdx, it2)
	}
	return nil
}

// UseItem spends one use of a breakable item.
type UseItem struct {
	base
	Item    model.ItemID
	OldUses int
	Tracked bool
}

func NewUseItem(g *Game, it model.ItemID) (*UseItem, error) {
	i, err := item(g, KindUseItem, it)
	if err != nil {
		return nil, err
	}
	return &UseItem{Item: it, OldUses: i.Uses, Tracked: i.Breakable()}, nil
}

func (a *UseItem) Kind() Kind { return KindUseItem }

func (a *UseItem) Do(g *Game) (err error) {
	if err := a.claim(KindUseItem); err != nil {
		return err
	}
	defer a.release(&err)
	return a.Execute(g)
}

func (a *UseItem) Execute(g *Game) error {
	it, err := item(g, KindUseItem, a.Item)
	if err != nil {
		return err
	}
	if a.Tracked {
		it.Uses = a.OldUses - 1
	}
	return nil
}

func (a *UseItem) Reverse(g *Game) error {
	it, err := item(g, KindUseItem, a.Item)
	if err != nil {
		return err
	}
	if !a.Tracked {
		return nil
	}
	if err := expect(KindUseItem, "uses", a.OldUses-1, it.Uses); err != nil {
		return err
	}
	it.Uses = a.OldUses
	return nil
}

// PutItemInConvoy sends an unowned item to the convoy.
type PutItemInConvoy struct {
	base
	Item model.ItemID
}

func NewPutItemInConvoy(g *Game, it model.ItemID) (*PutItemInConvoy, error) {
	i, err := item(g, KindPutItemInConvoy, it)
	if err != nil {
		return nil, err
	}
	if i.Owner != "" || g.World.ConvoyIndex(it) >= 0 {
		return nil, fmt.Errorf("put item in convoy %q: %w", it, ErrInvalid)
	}
	return &PutItemInConvoy{Item: it}, nil
}

func (a *PutItemInConvoy) Kind() Kind { return KindPutItemInConvoy }

func (a *PutItemInConvoy) Do(g *Game) (err error) {
	if err := a.claim(KindPutItemInConvoy); err != nil {
		return err
	}
	defer a.release(&err)
	if err := a.Execute(g); err != nil {
		return err
	}
	g.cue("banner:sent_to_convoy", "")
	return nil
}

func (a *PutItemInConvoy) Execute(g *Game) error {
	it, err := item(g, KindPutItemInConvoy, a.Item)
	if err != nil {
		return err
	}
	if g.World.ConvoyIndex(a.Item) < 0 {
		g.World.PutInConvoy(it)
	}
	return nil
}

func (a *PutItemInConvoy) Reverse(g *Game) error {
	it, err := item(g, KindPutItemInConvoy, a.Item)
	if err != nil {
		return err
	}
	if err := g.World.TakeFromConvoy(it); err != nil {
		return &SymmetryError{Kind: KindPutItemInConvoy, Field: "convoy", Want: a.Item, Got: "absent"}
	}
	return nil
}
