package vm

import "errors"

// Dispatch errors.
var (
	ErrNoSuchAttribute = errors.New("no such attribute")
	ErrNoSuchHook      = errors.New("hook not implemented")
	ErrNotCallable     = errors.New("value is not callable")
	ErrReadOnly        = errors.New("property has no setter")
	ErrWriteOnly       = errors.New("property has no getter")
	ErrNotDeletable    = errors.New("attribute cannot be deleted")
	ErrNotAssignable   = errors.New("attribute is not assignable")
	ErrNotStatic       = errors.New("not a static method")
	ErrArity           = errors.New("wrong number of arguments")
	ErrStackOverflow   = errors.New("maximum call depth exceeded")
	ErrNoSuper         = errors.New("no superclass implementation")
	ErrNotInMethod     = errors.New("super send outside a method")
	ErrNilReceiver     = errors.New("nil receiver")
)

// Class construction errors, reported by ClassBuilder.Build.
var (
	ErrInvalidClass    = errors.New("invalid class definition")
	ErrDuplicateMember = errors.New("duplicate member")
	ErrConflictingTags = errors.New("member tagged both virtual and non-virtual")
	ErrEmptyProperty   = errors.New("property defines no accessors")
	ErrForeignClass    = errors.New("superclass belongs to a different VM")
	ErrDuplicateClass  = errors.New("class already defined")
	ErrAlreadyBuilt    = errors.New("class builder already used")
)
