package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// Value is anything that flows through the runtime: slot contents,
// arguments and results. Instances appear as *Object and methods read as
// attributes appear as *BoundMethod.
type Value = any

// Object is an instance of a Class.
//
// Instance variables are stored in slots laid out by the class hierarchy:
// inherited variables first, then the class's own (see Class.InstVarIndex).
// Slot access through Object methods is raw storage access and never goes
// through dispatch; use Context.Get and Context.Set for attribute semantics.
type Object struct {
	id    uuid.UUID
	class *Class
	slots []Value
}

func newObject(c *Class) *Object {
	return &Object{
		id:    uuid.New(),
		class: c,
		slots: make([]Value, c.NumSlots),
	}
}

// ID returns the object's identity.
func (obj *Object) ID() uuid.UUID { return obj.id }

// Class returns the object's dynamic class.
func (obj *Object) Class() *Class { return obj.class }

// NumSlots returns the number of instance variable slots.
func (obj *Object) NumSlots() int { return len(obj.slots) }

// SlotAt returns the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) SlotAt(index int) Value {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.SlotAt: index out of range")
	}
	return obj.slots[index]
}

// SetSlotAt sets the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) SetSlotAt(index int, v Value) {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.SetSlotAt: index out of range")
	}
	obj.slots[index] = v
}

// Slot reads an instance variable by name.
func (obj *Object) Slot(name string) (Value, bool) {
	i := obj.class.InstVarIndex(name)
	if i < 0 {
		return nil, false
	}
	return obj.slots[i], true
}

// SetSlot writes an instance variable by name. It reports false if the
// class declares no such variable.
func (obj *Object) SetSlot(name string, v Value) bool {
	i := obj.class.InstVarIndex(name)
	if i < 0 {
		return false
	}
	obj.slots[i] = v
	return true
}

func (obj *Object) String() string {
	if obj == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%s", obj.class.FullName(), obj.id.String()[:8])
}
