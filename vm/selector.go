package vm

import "sync"

// SelectorTable interns member names to numeric IDs.
//
// Every class of a VM shares the VM's table, so the same name has the same
// ID in every vtable and a lookup up the inheritance chain is a sequence of
// array index operations rather than string comparisons.
//
// The table is append-only. Interning is safe from multiple goroutines.
type SelectorTable struct {
	mu     sync.RWMutex
	byName map[string]int
	byID   []string
}

// NewSelectorTable creates a new empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byName: make(map[string]int),
		byID:   make([]string, 0, 64),
	}
}

// Intern returns the ID for a name, assigning the next free ID if the name
// has not been seen.
func (st *SelectorTable) Intern(name string) int {
	st.mu.RLock()
	id, ok := st.byName[name]
	st.mu.RUnlock()
	if ok {
		return id
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if id, ok := st.byName[name]; ok {
		return id
	}
	id = len(st.byID)
	st.byName[name] = id
	st.byID = append(st.byID, name)
	return id
}

// Lookup returns the ID for a name, or -1 if it was never interned. A name
// that was never interned cannot be defined by any class.
func (st *SelectorTable) Lookup(name string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id, ok := st.byName[name]; ok {
		return id
	}
	return -1
}

// Name returns the name for an ID, or "" if the ID is invalid.
func (st *SelectorTable) Name(id int) string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id < 0 || id >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned names.
func (st *SelectorTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}

// All returns all names in ID order.
func (st *SelectorTable) All() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	result := make([]string, len(st.byID))
	copy(result, st.byID)
	return result
}
