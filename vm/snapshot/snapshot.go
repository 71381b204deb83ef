// Package snapshot exports the dispatch metadata of a VM: every class with
// its policy, intercept owner and members, each member with its owner, tag
// and resolved binding. Snapshots are encoded as canonical CBOR so that two
// VMs built from the same definitions produce identical bytes.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/chazu/virtualmethods/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is the snapshot format version.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the dispatch metadata of one VM.
type Snapshot struct {
	Version       int     `cbor:"1,keyasint"`
	DefaultPolicy string  `cbor:"2,keyasint"`
	Classes       []Class `cbor:"3,keyasint"`
}

// Class describes one class. Classes appear superclass first.
type Class struct {
	Name           string   `cbor:"1,keyasint"`
	Superclass     string   `cbor:"2,keyasint,omitempty"`
	Policy         string   `cbor:"3,keyasint"`
	Governed       bool     `cbor:"4,keyasint"`
	InterceptOwner string   `cbor:"5,keyasint,omitempty"`
	InstVars       []string `cbor:"6,keyasint,omitempty"`
	Members        []Member `cbor:"7,keyasint,omitempty"`
	Hooks          []Member `cbor:"8,keyasint,omitempty"`
}

// Member describes one body defined directly by a class. Properties are
// flattened into one entry per accessor.
type Member struct {
	Name       string `cbor:"1,keyasint"`
	Kind       string `cbor:"2,keyasint"`
	Owner      string `cbor:"3,keyasint"`
	Tag        string `cbor:"4,keyasint"`
	NonVirtual bool   `cbor:"5,keyasint"`
	Wrapped    bool   `cbor:"6,keyasint,omitempty"`
	Arity      int    `cbor:"7,keyasint"`
}

// Capture records the metadata of every class registered in v.
func Capture(v *vm.VM) *Snapshot {
	s := &Snapshot{Version: Version, DefaultPolicy: v.DefaultPolicy().String()}
	for _, c := range v.Classes.All() {
		s.Classes = append(s.Classes, captureClass(c))
	}
	return s
}

func captureClass(c *vm.Class) Class {
	out := Class{
		Name:     c.FullName(),
		Policy:   c.Policy().String(),
		Governed: c.Governed(),
		InstVars: append([]string(nil), c.InstVars...),
	}
	if c.Superclass != nil {
		out.Superclass = c.Superclass.FullName()
	}
	if owner := c.InterceptOwner(); owner != nil {
		out.InterceptOwner = owner.FullName()
	}
	for _, m := range c.LocalMembers() {
		switch m := m.(type) {
		case *vm.Method:
			out.Members = append(out.Members, captureMethod(m))
		case *vm.Property:
			for _, acc := range m.Accessors() {
				out.Members = append(out.Members, captureMethod(acc))
			}
		}
	}
	for _, h := range c.LocalHooks() {
		out.Hooks = append(out.Hooks, captureMethod(h))
	}
	return out
}

func captureMethod(m *vm.Method) Member {
	return Member{
		Name:       m.Name(),
		Kind:       m.Kind().String(),
		Owner:      m.Owner().FullName(),
		Tag:        m.Tag().String(),
		NonVirtual: m.NonVirtual(),
		Wrapped:    m.Wrapped(),
		Arity:      m.Arity(),
	}
}

// Class returns the class with the given qualified name, or nil.
func (s *Snapshot) Class(name string) *Class {
	for i := range s.Classes {
		if s.Classes[i].Name == name {
			return &s.Classes[i]
		}
	}
	return nil
}

// Member returns the member entry for name and kind, or nil.
func (c *Class) Member(name, kind string) *Member {
	for i := range c.Members {
		if c.Members[i].Name == name && c.Members[i].Kind == kind {
			return &c.Members[i]
		}
	}
	return nil
}

// Hook returns the hook entry for name, or nil.
func (c *Class) Hook(name string) *Member {
	for i := range c.Hooks {
		if c.Hooks[i].Name == name {
			return &c.Hooks[i]
		}
	}
	return nil
}

// Marshal serializes a snapshot to canonical CBOR.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", s.Version)
	}
	return &s, nil
}

// WriteFile writes the snapshot to path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return Unmarshal(data)
}

// Diff lists the differences between two snapshots, one line each, sorted.
// An empty result means the dispatch metadata is identical.
func Diff(prev, next *Snapshot) []string {
	var out []string
	if prev.DefaultPolicy != next.DefaultPolicy {
		out = append(out, fmt.Sprintf("default policy: %s -> %s", prev.DefaultPolicy, next.DefaultPolicy))
	}
	for _, oc := range prev.Classes {
		nc := next.Class(oc.Name)
		if nc == nil {
			out = append(out, fmt.Sprintf("- class %s", oc.Name))
			continue
		}
		out = append(out, diffClass(&oc, nc)...)
	}
	for _, nc := range next.Classes {
		if prev.Class(nc.Name) == nil {
			out = append(out, fmt.Sprintf("+ class %s", nc.Name))
		}
	}
	sort.Strings(out)
	return out
}

func diffClass(prev, next *Class) []string {
	var out []string
	if prev.Superclass != next.Superclass {
		out = append(out, fmt.Sprintf("%s superclass: %q -> %q", prev.Name, prev.Superclass, next.Superclass))
	}
	if prev.Policy != next.Policy {
		out = append(out, fmt.Sprintf("%s policy: %s -> %s", prev.Name, prev.Policy, next.Policy))
	}
	if prev.InterceptOwner != next.InterceptOwner {
		out = append(out, fmt.Sprintf("%s intercepts: %q -> %q", prev.Name, prev.InterceptOwner, next.InterceptOwner))
	}
	out = append(out, diffMembers(prev.Name, prev.Members, next.Members)...)
	out = append(out, diffMembers(prev.Name, prev.Hooks, next.Hooks)...)
	return out
}

func diffMembers(class string, prev, next []Member) []string {
	key := func(m Member) string { return m.Name + "/" + m.Kind }
	index := make(map[string]Member, len(next))
	for _, m := range next {
		index[key(m)] = m
	}
	var out []string
	for _, om := range prev {
		nm, ok := index[key(om)]
		delete(index, key(om))
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("- %s.%s (%s)", class, om.Name, om.Kind))
		case om != nm:
			out = append(out, fmt.Sprintf("%s.%s (%s): %s -> %s", class, om.Name, om.Kind, binding(om), binding(nm)))
		}
	}
	for _, nm := range index {
		out = append(out, fmt.Sprintf("+ %s.%s (%s)", class, nm.Name, nm.Kind))
	}
	return out
}

func binding(m Member) string {
	b := "virtual"
	if m.NonVirtual {
		b = "non-virtual"
	}
	return fmt.Sprintf("%s tag=%s arity=%d", b, m.Tag, m.Arity)
}

// WriteText prints a human-readable listing of the snapshot.
func (s *Snapshot) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "snapshot v%d, default policy %s\n", s.Version, s.DefaultPolicy); err != nil {
		return err
	}
	for _, c := range s.Classes {
		super := c.Superclass
		if super == "" {
			super = "-"
		}
		intercepts := c.InterceptOwner
		if intercepts == "" {
			intercepts = "-"
		}
		if _, err := fmt.Fprintf(w, "\nclass %s < %s  policy=%s governed=%t intercepts=%s\n",
			c.Name, super, c.Policy, c.Governed, intercepts); err != nil {
			return err
		}
		for _, m := range c.Members {
			if _, err := fmt.Fprintf(w, "  %-8s %-20s %s\n", m.Kind, m.Name, binding(m)); err != nil {
				return err
			}
		}
		for _, h := range c.Hooks {
			if _, err := fmt.Fprintf(w, "  %-8s %-20s %s wrapped=%t\n", h.Kind, "<"+h.Name+">", binding(h), h.Wrapped); err != nil {
				return err
			}
		}
	}
	return nil
}
