package vm

// VTable holds the member table for a class.
//
// Members are stored in an array indexed by selector ID, so a local lookup
// is a single index operation. Inheritance is handled by walking the parent
// chain when a member is not found locally; the first hit is the class's
// view of that name.
type VTable struct {
	class   *Class   // The class this vtable belongs to
	parent  *VTable  // Parent vtable for inheritance lookup
	members []Member // Members indexed by selector ID
}

// NewVTable creates a new vtable for a class.
func NewVTable(class *Class, parent *VTable) *VTable {
	return &VTable{
		class:   class,
		parent:  parent,
		members: make([]Member, 0, 16),
	}
}

// Lookup finds a member by selector ID, walking the inheritance chain.
// Returns nil if no class in the chain defines it.
func (vt *VTable) Lookup(selector int) Member {
	for v := vt; v != nil; v = v.parent {
		if m := v.LookupLocal(selector); m != nil {
			return m
		}
	}
	return nil
}

// LookupLocal finds a member by selector ID in this vtable only.
func (vt *VTable) LookupLocal(selector int) Member {
	if selector >= 0 && selector < len(vt.members) {
		return vt.members[selector]
	}
	return nil
}

// add stores a member at the given selector ID, growing the table as
// needed. Only ClassBuilder.Build adds members; tables are frozen afterwards.
func (vt *VTable) add(selector int, m Member) {
	if selector >= len(vt.members) {
		grown := make([]Member, selector+1)
		copy(grown, vt.members)
		vt.members = grown
	}
	vt.members[selector] = m
}

// HasMember returns true if this vtable (not parents) defines selector.
func (vt *VTable) HasMember(selector int) bool {
	return vt.LookupLocal(selector) != nil
}

// Parent returns the parent vtable.
func (vt *VTable) Parent() *VTable {
	return vt.parent
}

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class {
	return vt.class
}

// LocalMembers returns the members defined in this vtable keyed by
// selector ID.
func (vt *VTable) LocalMembers() map[int]Member {
	result := make(map[int]Member)
	for i, m := range vt.members {
		if m != nil {
			result[i] = m
		}
	}
	return result
}
