package rt

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Instance
// ---------------------------------------------------------------------------

// Instance is a slot-backed object of a resolved Type. Slot layout follows
// the supertype chain: inherited fields occupy the leading slots, the type's
// own declared instance fields follow.
type Instance struct {
	typ   *Type
	mu    sync.RWMutex
	slots []Value
}

// NewInstance allocates an instance of t with every field at its declared
// type's default value. The type must have completed resolution so its slot
// layout is known.
func NewInstance(t *Type) (*Instance, error) {
	if s := t.State(); s < StateResolved || s == StateFailed {
		return nil, fmt.Errorf("rt: cannot instantiate %s in state %s", t, t.State())
	}
	if t.IsInterface() {
		return nil, fmt.Errorf("rt: cannot instantiate interface %s", t)
	}
	slots := make([]Value, t.numSlots)
	for cur := t; cur != nil; cur = cur.Super() {
		for name, slot := range cur.fieldSlots {
			slots[slot] = zeroValue(cur.desc.Field(name).Type)
		}
	}
	return &Instance{typ: t, slots: slots}, nil
}

// Type returns the instance's dynamic type.
func (in *Instance) Type() *Type { return in.typ }

// Field returns the value of the named instance field, searching the
// supertype chain for the declaring type.
func (in *Instance) Field(name string) (Value, error) {
	owner, slot := in.typ.findFieldSlot(name)
	if owner == nil {
		return Void, &NoSuchMemberError{TypeName: in.typ.name, Member: name}
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.slots[slot], nil
}

// SetField stores a value into the named instance field, reconciling it
// with the field's declared type.
func (in *Instance) SetField(name string, v Value) error {
	owner, slot := in.typ.findFieldSlot(name)
	if owner == nil {
		return &NoSuchMemberError{TypeName: in.typ.name, Member: name}
	}
	fd := owner.desc.Field(name)
	coerced, err := in.typ.loader.graph.coerce(v, fd.Type, owner.loader)
	if err != nil {
		return &ArgumentError{TypeName: owner.name, Member: name, Index: -1, Got: v.TypeName(), Want: fd.Type}
	}
	in.mu.Lock()
	in.slots[slot] = coerced
	in.mu.Unlock()
	return nil
}

// setFieldRaw stores without coercion. Used internally where the value is
// already of the declared type (boxing).
func (in *Instance) setFieldRaw(slot int, v Value) {
	in.mu.Lock()
	in.slots[slot] = v
	in.mu.Unlock()
}

// findFieldSlot locates the declaring type and slot index of an instance
// field.
func (t *Type) findFieldSlot(name string) (*Type, int) {
	for cur := t; cur != nil; cur = cur.Super() {
		if slot, ok := cur.fieldSlots[name]; ok {
			return cur, slot
		}
	}
	return nil, -1
}
