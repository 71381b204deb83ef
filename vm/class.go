package vm

import (
	"fmt"
	"sort"
	"sync"
)

// Class is a class of the runtime. Classes are created by ClassBuilder.Build
// and are immutable once built.
type Class struct {
	Name       string   // Class name
	Namespace  string   // Namespace (empty for default)
	Superclass *Class   // Parent class (nil for a root class)
	VTable     *VTable  // Member table
	InstVars   []string // Instance variable names declared by this class
	NumSlots   int      // Total number of slots, inherited included

	vm         *VM
	policy     Policy
	governed   bool
	intercepts *Intercepts
	hooks      map[Hook]*Method
}

func newClass(v *VM, name string, superclass *Class) *Class {
	var parentVT *VTable
	var numSlots int
	if superclass != nil {
		parentVT = superclass.VTable
		numSlots = superclass.NumSlots
	}
	c := &Class{
		Name:       name,
		Superclass: superclass,
		NumSlots:   numSlots,
		vm:         v,
		hooks:      make(map[Hook]*Method),
	}
	c.VTable = NewVTable(c, parentVT)
	return c
}

// VM returns the runtime the class was built in.
func (c *Class) VM() *VM { return c.vm }

// Policy returns the class-wide binding for untagged members.
func (c *Class) Policy() Policy { return c.policy }

// Governed reports whether the class was built with non-virtual support.
// Methods of ungoverned classes never establish a calling class.
func (c *Class) Governed() bool { return c.governed }

// ---------------------------------------------------------------------------
// Instance variables
// ---------------------------------------------------------------------------

// InstVarIndex returns the slot index for an instance variable by name.
// Returns -1 if the variable is not found.
func (c *Class) InstVarIndex(name string) int {
	for current := c; current != nil; current = current.Superclass {
		for i, n := range current.InstVars {
			if n == name {
				return current.instVarOffset() + i
			}
		}
	}
	return -1
}

// instVarOffset returns the first slot index of this class's own variables.
func (c *Class) instVarOffset() int {
	if c.Superclass == nil {
		return 0
	}
	return c.Superclass.NumSlots
}

// AllInstVarNames returns all instance variable names in slot order.
func (c *Class) AllInstVarNames() []string {
	if c.Superclass == nil {
		return append([]string(nil), c.InstVars...)
	}
	return append(c.Superclass.AllInstVarNames(), c.InstVars...)
}

// ---------------------------------------------------------------------------
// Member lookup
// ---------------------------------------------------------------------------

// Lookup returns this class's view of name: its own definition or the
// nearest inherited one. Returns nil if no class in the chain defines it.
func (c *Class) Lookup(name string) Member {
	id := c.vm.Selectors.Lookup(name)
	if id < 0 {
		return nil
	}
	return c.VTable.Lookup(id)
}

// LookupLocal returns the member defined directly by this class.
func (c *Class) LookupLocal(name string) Member {
	id := c.vm.Selectors.Lookup(name)
	if id < 0 {
		return nil
	}
	return c.VTable.LookupLocal(id)
}

// LocalMembers returns the members defined directly by this class, sorted
// by name.
func (c *Class) LocalMembers() []Member {
	local := c.VTable.LocalMembers()
	result := make([]Member, 0, len(local))
	for _, m := range local {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// LookupHook returns this class's view of a hook.
func (c *Class) LookupHook(h Hook) *Method {
	for current := c; current != nil; current = current.Superclass {
		if m := current.hooks[h]; m != nil {
			return m
		}
	}
	return nil
}

// LocalHooks returns the hooks defined directly by this class, sorted by
// hook name.
func (c *Class) LocalHooks() []*Method {
	result := make([]*Method, 0, len(c.hooks))
	for _, m := range c.hooks {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

// ---------------------------------------------------------------------------
// Intercepts
// ---------------------------------------------------------------------------

// Intercepts returns the attribute intercepts in force for instances of
// this class: its own or the nearest ancestor's. Nil means plain dynamic
// attribute access.
func (c *Class) Intercepts() *Intercepts {
	for current := c; current != nil; current = current.Superclass {
		if current.intercepts != nil {
			return current.intercepts
		}
	}
	return nil
}

// InterceptOwner returns the class that installed the intercepts in force,
// or nil.
func (c *Class) InterceptOwner() *Class {
	if ic := c.Intercepts(); ic != nil {
		return ic.owner
	}
	return nil
}

// InstallsIntercepts reports whether this class itself installed
// intercepts (as opposed to inheriting them).
func (c *Class) InstallsIntercepts() bool {
	return c.intercepts != nil
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// IsSuperclassOf returns true if c is a superclass of other (or is the same class).
func (c *Class) IsSuperclassOf(other *Class) bool {
	return other.IsSubclassOf(c)
}

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.Superclass; current != nil; current = current.Superclass {
		result = append(result, current)
	}
	return result
}

// Depth returns the inheritance depth (0 for a root class).
func (c *Class) Depth() int {
	depth := 0
	for current := c.Superclass; current != nil; current = current.Superclass {
		depth++
	}
	return depth
}

// FullName returns the fully qualified class name (namespace::name or just name).
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

func (c *Class) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.FullName()
}

// ---------------------------------------------------------------------------
// ClassTable: per-VM class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by qualified name.
// It's safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table. Classes are immutable, so a name can
// only be registered once.
func (ct *ClassTable) Register(c *Class) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := c.FullName()
	if _, ok := ct.classes[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrDuplicateClass)
	}
	ct.classes[key] = c
	return nil
}

// Lookup finds a class by qualified name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// LookupInNamespace finds a class by name and namespace.
func (ct *ClassTable) LookupInNamespace(namespace, name string) *Class {
	if namespace != "" {
		name = namespace + "::" + name
	}
	return ct.Lookup(name)
}

// Has returns true if a class with this qualified name is registered.
func (ct *ClassTable) Has(name string) bool {
	return ct.Lookup(name) != nil
}

// All returns all registered classes, ordered so that every class follows
// its superclass and siblings are sorted by name.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	ct.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		di, dj := result[i].Depth(), result[j].Depth()
		if di != dj {
			return di < dj
		}
		return result[i].FullName() < result[j].FullName()
	})
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
