package vm

import "fmt"

// Policy is the class-wide binding applied to members without an explicit tag.
type Policy uint8

const (
	// PolicyInherit takes the superclass's policy, or the VM default for
	// root classes. Only meaningful on a ClassBuilder.
	PolicyInherit Policy = iota
	PolicyVirtual
	PolicyNonVirtual
)

func (p Policy) String() string {
	switch p {
	case PolicyVirtual:
		return "virtual"
	case PolicyNonVirtual:
		return "non-virtual"
	default:
		return "inherit"
	}
}

// ParsePolicy parses "virtual" or "non-virtual".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "virtual":
		return PolicyVirtual, nil
	case "non-virtual":
		return PolicyNonVirtual, nil
	case "", "inherit":
		return PolicyInherit, nil
	}
	return PolicyInherit, fmt.Errorf("unknown binding policy %q", s)
}

// Tag is an explicit per-member binding that overrides the class policy.
type Tag uint8

const (
	TagNone Tag = iota
	TagVirtual
	TagNonVirtual
)

func (t Tag) String() string {
	switch t {
	case TagVirtual:
		return "virtual"
	case TagNonVirtual:
		return "non-virtual"
	default:
		return "none"
	}
}

// MemberOption configures one member declared on a ClassBuilder.
type MemberOption func(*memberFlags)

type memberFlags struct {
	virtual    bool
	nonVirtual bool
}

// Virtual forces ordinary dynamic dispatch for the member, whatever the
// class policy says.
func Virtual() MemberOption {
	return func(s *memberFlags) { s.virtual = true }
}

// NonVirtual binds the member statically: calls made from code owned by the
// declaring class (or a class inheriting this declaration) always run this
// body, even when the receiver's class overrides it.
func NonVirtual() MemberOption {
	return func(s *memberFlags) { s.nonVirtual = true }
}

func applyOptions(opts []MemberOption) memberFlags {
	var s memberFlags
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

func (s memberFlags) tag() (Tag, error) {
	switch {
	case s.virtual && s.nonVirtual:
		return TagNone, ErrConflictingTags
	case s.virtual:
		return TagVirtual, nil
	case s.nonVirtual:
		return TagNonVirtual, nil
	}
	return TagNone, nil
}

// resolveBinding reports whether a member with the given tag is non-virtual
// under policy p.
func resolveBinding(tag Tag, p Policy) bool {
	switch tag {
	case TagVirtual:
		return false
	case TagNonVirtual:
		return true
	}
	return p == PolicyNonVirtual
}
