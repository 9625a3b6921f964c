package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/daviddao/turnwheel/pkg/model"
)

// Tag says how a field value is stored in a Record.
type Tag string

const (
	TagUnit    Tag = "unit"
	TagItem    Tag = "item"
	TagAction  Tag = "action"
	TagList    Tag = "list"
	TagGeneric Tag = "generic"
)

var (
	// ErrUnknownKind is returned when decoding a record of a kind this
	// build does not know.
	ErrUnknownKind = errors.New("unknown action kind")

	// ErrBadRecord is returned for a record whose values do not fit the
	// fields of its kind.
	ErrBadRecord = errors.New("malformed action record")
)

// Value is one encoded field value.
type Value struct {
	Tag     Tag             `json:"tag"`
	Ref     string          `json:"ref,omitempty"`
	List    []Value         `json:"list,omitempty"`
	Action  *Record         `json:"action,omitempty"`
	Generic json.RawMessage `json:"generic,omitempty"`
}

// Record is the serialized form of one action: its kind plus every
// exported field, references kept as identifiers.
type Record struct {
	Kind   Kind             `json:"kind"`
	Fields map[string]Value `json:"fields"`
}

// Resolver answers whether identifiers still name live entities.
// *model.World implements it.
type Resolver interface {
	HasUnit(model.UnitID) bool
	HasItem(model.ItemID) bool
}

var (
	unitIDType = reflect.TypeOf(model.UnitID(""))
	itemIDType = reflect.TypeOf(model.ItemID(""))
	actionType = reflect.TypeOf((*Action)(nil)).Elem()
)

var nullJSON = json.RawMessage("null")

// newAction returns a zero value of the given kind.
func newAction(k Kind) (Action, error) {
	switch k {
	case KindGroupStart:
		return &GroupStart{}, nil
	case KindGroupEnd:
		return &GroupEnd{}, nil
	case KindMarkPhase:
		return &MarkPhase{}, nil
	case KindLockTurnwheel:
		return &LockTurnwheel{}, nil
	case KindMessage:
		return &Message{}, nil
	case KindMove:
		return &Move{}, nil
	case KindTeleport:
		return &Teleport{}, nil
	case KindWarp:
		return &Warp{}, nil
	case KindPlaceOnMap:
		return &PlaceOnMap{}, nil
	case KindRemoveFromMap:
		return &RemoveFromMap{}, nil
	case KindArriveOnMap:
		return &ArriveOnMap{}, nil
	case KindLeaveMap:
		return &LeaveMap{}, nil
	case KindIncrementTurn:
		return &IncrementTurn{}, nil
	case KindWait:
		return &Wait{}, nil
	case KindReset:
		return &Reset{}, nil
	case KindResetAll:
		return &ResetAll{}, nil
	case KindHasAttacked:
		return &HasAttacked{}, nil
	case KindHasTraded:
		return &HasTraded{}, nil
	case KindRescue:
		return &Rescue{}, nil
	case KindDrop:
		return &Drop{}, nil
	case KindGive:
		return &Give{}, nil
	case KindTake:
		return &Take{}, nil
	case KindGiveItem:
		return &GiveItem{}, nil
	case KindDiscardItem:
		return &DiscardItem{}, nil
	case KindRemoveItem:
		return &RemoveItem{}, nil
	case KindEquipItem:
		return &EquipItem{}, nil
	case KindTradeItem:
		return &TradeItem{}, nil
	case KindUseItem:
		return &UseItem{}, nil
	case KindPutItemInConvoy:
		return &PutItemInConvoy{}, nil
	case KindChangeHP:
		return &ChangeHP{}, nil
	case KindGainExp:
		return &GainExp{}, nil
	case KindSetExp:
		return &SetExp{}, nil
	case KindIncLevel:
		return &IncLevel{}, nil
	case KindApplyLevelUp:
		return &ApplyLevelUp{}, nil
	case KindDie:
		return &Die{}, nil
	case KindResurrect:
		return &Resurrect{}, nil
	case KindRecordRandomState:
		return &RecordRandomState{}, nil
	}
	return nil, fmt.Errorf("%q: %w", k, ErrUnknownKind)
}

// Encode serializes an action. It never consults the world: references
// are written as the identifiers the action already holds.
func Encode(a Action) (Record, error) {
	v := reflect.ValueOf(a)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Record{}, fmt.Errorf("encode %T: %w", a, ErrBadRecord)
	}
	rec := Record{Kind: a.Kind(), Fields: make(map[string]Value)}
	err := eachField(v.Elem(), func(name string, f reflect.Value) error {
		val, err := encodeValue(f)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", rec.Kind, name, err)
		}
		rec.Fields[name] = val
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Decode rebuilds an action from a record, checking every unit and item
// reference against r. A reference to an entity r does not know fails with
// model.ErrDanglingReference. The decoded action counts as already done.
func Decode(rec Record, r Resolver) (Action, error) {
	a, err := newAction(rec.Kind)
	if err != nil {
		return nil, err
	}
	err = eachField(reflect.ValueOf(a).Elem(), func(name string, f reflect.Value) error {
		val, ok := rec.Fields[name]
		if !ok {
			return nil
		}
		if err := decodeValue(val, f, r); err != nil {
			return fmt.Errorf("decode %s.%s: %w", rec.Kind, name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if d, ok := a.(interface{ restored() }); ok {
		d.restored()
	}
	return a, nil
}

// eachField visits the exported fields of a struct, flattening embedded
// structs.
func eachField(v reflect.Value, fn func(name string, f reflect.Value) error) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if err := eachField(v.Field(i), fn); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if err := fn(sf.Name, v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(f reflect.Value) (Value, error) {
	switch {
	case f.Type() == unitIDType:
		return Value{Tag: TagUnit, Ref: f.String()}, nil
	case f.Type() == itemIDType:
		return Value{Tag: TagItem, Ref: f.String()}, nil
	case f.Type().Implements(actionType):
		if f.IsNil() {
			return Value{Tag: TagGeneric, Generic: nullJSON}, nil
		}
		nested, err := Encode(f.Interface().(Action))
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: TagAction, Action: &nested}, nil
	case f.Kind() == reflect.Slice && f.Type().Elem().Kind() != reflect.Uint8:
		if f.IsNil() {
			return Value{Tag: TagGeneric, Generic: nullJSON}, nil
		}
		out := Value{Tag: TagList, List: make([]Value, f.Len())}
		for i := range f.Len() {
			ev, err := encodeValue(f.Index(i))
			if err != nil {
				return Value{}, err
			}
			out.List[i] = ev
		}
		return out, nil
	}
	raw, err := json.Marshal(f.Interface())
	if err != nil {
		return Value{}, err
	}
	return Value{Tag: TagGeneric, Generic: raw}, nil
}

func decodeValue(val Value, dst reflect.Value, r Resolver) error {
	switch val.Tag {
	case TagUnit:
		if dst.Type() != unitIDType {
			return fmt.Errorf("unit reference into %s: %w", dst.Type(), ErrBadRecord)
		}
		id := model.UnitID(val.Ref)
		if id != "" && !r.HasUnit(id) {
			return fmt.Errorf("unit %q: %w", id, model.ErrDanglingReference)
		}
		dst.SetString(val.Ref)
	case TagItem:
		if dst.Type() != itemIDType {
			return fmt.Errorf("item reference into %s: %w", dst.Type(), ErrBadRecord)
		}
		id := model.ItemID(val.Ref)
		if id != "" && !r.HasItem(id) {
			return fmt.Errorf("item %q: %w", id, model.ErrDanglingReference)
		}
		dst.SetString(val.Ref)
	case TagAction:
		if val.Action == nil {
			return fmt.Errorf("empty nested action: %w", ErrBadRecord)
		}
		nested, err := Decode(*val.Action, r)
		if err != nil {
			return err
		}
		nv := reflect.ValueOf(nested)
		if !nv.Type().AssignableTo(dst.Type()) {
			return fmt.Errorf("%s into %s: %w", nested.Kind(), dst.Type(), ErrBadRecord)
		}
		dst.Set(nv)
	case TagList:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("list into %s: %w", dst.Type(), ErrBadRecord)
		}
		s := reflect.MakeSlice(dst.Type(), len(val.List), len(val.List))
		for i, ev := range val.List {
			if err := decodeValue(ev, s.Index(i), r); err != nil {
				return err
			}
		}
		dst.Set(s)
	case TagGeneric:
		if err := json.Unmarshal(val.Generic, dst.Addr().Interface()); err != nil {
			return fmt.Errorf("%w: %w", ErrBadRecord, err)
		}
	default:
		return fmt.Errorf("tag %q: %w", val.Tag, ErrBadRecord)
	}
	return nil
}
