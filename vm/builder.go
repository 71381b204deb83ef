package vm

import (
	"errors"
	"fmt"
)

// ClassBuilder collects a class definition. Build turns it into an
// immutable Class.
//
// A builder produces a governed class unless Plain is called: its methods
// establish a calling class, its hooks take part in redirection and, unless
// an ancestor already did, it installs the attribute intercepts.
type ClassBuilder struct {
	vm         *VM
	name       string
	namespace  string
	superclass *Class
	policy     Policy
	plain      bool
	instVars   []string
	decls      []memberDecl
	hooks      []hookDecl
	built      bool
}

type memberDecl struct {
	name     string
	kind     MethodKind
	fn       Func
	arity    int
	opts     []MemberOption
	property bool
	parts    []PropertyPart
}

type hookDecl struct {
	hook  Hook
	fn    Func
	arity int
	opts  []MemberOption
}

// DefineClass starts the definition of a class. superclass may be nil.
func (v *VM) DefineClass(name string, superclass *Class) *ClassBuilder {
	return &ClassBuilder{vm: v, name: name, superclass: superclass}
}

// Namespace places the class in a namespace.
func (b *ClassBuilder) Namespace(ns string) *ClassBuilder {
	b.namespace = ns
	return b
}

// Policy sets the class-wide binding of untagged members. Without it the
// superclass's policy is used, or the VM default for root classes.
func (b *ClassBuilder) Policy(p Policy) *ClassBuilder {
	b.policy = p
	return b
}

// Plain builds an ordinary class with no non-virtual support. Its members
// are still stamped with their owner, but code running in them never
// establishes a calling class.
func (b *ClassBuilder) Plain() *ClassBuilder {
	b.plain = true
	return b
}

// InstVars declares instance variables.
func (b *ClassBuilder) InstVars(names ...string) *ClassBuilder {
	b.instVars = append(b.instVars, names...)
	return b
}

// Method declares a variadic method.
func (b *ClassBuilder) Method(name string, fn Func, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindMethod, fn, -1, opts)
}

// Method0 declares a method taking no arguments.
func (b *ClassBuilder) Method0(name string, fn Func0, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindMethod, fn.body(), 0, opts)
}

// Method1 declares a method taking one argument.
func (b *ClassBuilder) Method1(name string, fn Func1, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindMethod, fn.body(), 1, opts)
}

// Method2 declares a method taking two arguments.
func (b *ClassBuilder) Method2(name string, fn Func2, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindMethod, fn.body(), 2, opts)
}

// Static declares a variadic static method. Its body receives a nil self.
func (b *ClassBuilder) Static(name string, fn Func, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindStatic, fn, -1, opts)
}

// Static0 declares a static method taking no arguments.
func (b *ClassBuilder) Static0(name string, fn Func0, opts ...MemberOption) *ClassBuilder {
	return b.member(name, KindStatic, fn.body(), 0, opts)
}

// Property declares a property from its accessors.
func (b *ClassBuilder) Property(name string, parts ...PropertyPart) *ClassBuilder {
	b.decls = append(b.decls, memberDecl{name: name, property: true, parts: parts})
	return b
}

// Hook declares a variadic hook.
func (b *ClassBuilder) Hook(h Hook, fn Func, opts ...MemberOption) *ClassBuilder {
	b.hooks = append(b.hooks, hookDecl{hook: h, fn: fn, arity: -1, opts: opts})
	return b
}

// Hook0 declares a hook taking no arguments.
func (b *ClassBuilder) Hook0(h Hook, fn Func0, opts ...MemberOption) *ClassBuilder {
	b.hooks = append(b.hooks, hookDecl{hook: h, fn: fn.body(), arity: 0, opts: opts})
	return b
}

// Hook1 declares a hook taking one argument.
func (b *ClassBuilder) Hook1(h Hook, fn Func1, opts ...MemberOption) *ClassBuilder {
	b.hooks = append(b.hooks, hookDecl{hook: h, fn: fn.body(), arity: 1, opts: opts})
	return b
}

func (b *ClassBuilder) member(name string, kind MethodKind, fn Func, arity int, opts []MemberOption) *ClassBuilder {
	b.decls = append(b.decls, memberDecl{name: name, kind: kind, fn: fn, arity: arity, opts: opts})
	return b
}

func (b *ClassBuilder) qualifiedName() string {
	if b.namespace == "" {
		return b.name
	}
	return b.namespace + "::" + b.name
}

// MustBuild is like Build but panics on error.
func (b *ClassBuilder) MustBuild() *Class {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// Build validates the definition and creates the class:
//
//  1. hooks other than the lifecycle hooks are wrapped for redirection;
//  2. the class is created and linked to its superclass;
//  3. attribute intercepts are installed unless an ancestor installed them;
//  4. every member defined here is stamped with this class as owner and
//     with its binding: its explicit tag, else the class policy.
//
// The class is then registered with the VM and never changes again.
func (b *ClassBuilder) Build() (*Class, error) {
	if b.built {
		return nil, fmt.Errorf("%s: %w", b.qualifiedName(), ErrAlreadyBuilt)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.built = true
	policy := b.resolvePolicy()
	governed := !b.plain

	hooks := make(map[Hook]*Method, len(b.hooks))
	for _, d := range b.hooks {
		tag, _ := applyOptions(d.opts).tag()
		hooks[d.hook] = &Method{
			name:    string(d.hook),
			kind:    KindHook,
			fn:      d.fn,
			arity:   d.arity,
			tag:     tag,
			wrapped: governed && !d.hook.Lifecycle(),
		}
		if d.hook.Lifecycle() && tag != TagNone {
			b.vm.log.Warningf("%s: %s tag on lifecycle hook %q has no effect", b.qualifiedName(), tag, d.hook)
		}
	}

	c := newClass(b.vm, b.name, b.superclass)
	c.Namespace = b.namespace
	c.InstVars = append([]string(nil), b.instVars...)
	c.NumSlots += len(b.instVars)
	c.policy = policy
	c.governed = governed
	c.hooks = hooks

	if governed {
		if owner := c.InterceptOwner(); owner != nil {
			b.vm.log.Debugf("%s: attribute intercepts inherited from %s", c, owner)
		} else {
			c.intercepts = newIntercepts(c)
		}
	}

	for _, h := range hooks {
		stamp(h, c, h.tag, policy)
	}
	for _, d := range b.decls {
		id := b.vm.Selectors.Intern(d.name)
		if !d.property {
			tag, _ := applyOptions(d.opts).tag()
			m := &Method{name: d.name, kind: d.kind, fn: d.fn, arity: d.arity}
			stamp(m, c, tag, policy)
			c.VTable.add(id, m)
			continue
		}
		p := &Property{name: d.name, owner: c}
		for _, part := range d.parts {
			tag, _ := applyOptions(part.opts).tag()
			m := &Method{name: d.name, kind: part.kind, fn: part.fn, property: d.name}
			switch part.kind {
			case KindGetter:
				m.arity = 0
				p.getter = m
			case KindSetter:
				m.arity = 1
				p.setter = m
			case KindDeleter:
				m.arity = 0
				p.deleter = m
			}
			stamp(m, c, tag, policy)
		}
		c.VTable.add(id, p)
	}

	if err := b.vm.Classes.Register(c); err != nil {
		return nil, err
	}
	b.vm.log.Infof("defined class %s (superclass %v, policy %s, governed %t, intercepts %v)",
		c, c.Superclass, policy, governed, c.InterceptOwner())
	return c, nil
}

func stamp(m *Method, owner *Class, tag Tag, p Policy) {
	m.owner = owner
	m.tag = tag
	m.nonVirtual = resolveBinding(tag, p)
}

func (b *ClassBuilder) resolvePolicy() Policy {
	if b.policy != PolicyInherit {
		return b.policy
	}
	if b.superclass != nil {
		return b.superclass.policy
	}
	return b.vm.defaultPolicy
}

// validate reports every problem with the definition at once.
func (b *ClassBuilder) validate() error {
	qn := b.qualifiedName()
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %w", qn, fmt.Errorf(format, args...)))
	}

	if b.name == "" {
		fail("%w: empty class name", ErrInvalidClass)
	}
	if b.superclass != nil && b.superclass.vm != b.vm {
		fail("%w: %s", ErrForeignClass, b.superclass)
	}
	if b.vm.Classes.Has(qn) {
		fail("%w", ErrDuplicateClass)
	}
	if b.policy > PolicyNonVirtual {
		fail("%w: unknown policy %d", ErrInvalidClass, b.policy)
	}

	vars := make(map[string]bool)
	if b.superclass != nil {
		for _, n := range b.superclass.AllInstVarNames() {
			vars[n] = true
		}
	}
	for _, n := range b.instVars {
		if n == "" {
			fail("%w: empty instance variable name", ErrInvalidClass)
		} else if vars[n] {
			fail("%w: instance variable %q", ErrDuplicateMember, n)
		}
		vars[n] = true
	}

	seen := make(map[string]bool)
	for _, d := range b.decls {
		if d.name == "" {
			fail("%w: empty member name", ErrInvalidClass)
			continue
		}
		if seen[d.name] {
			fail("%w: %q", ErrDuplicateMember, d.name)
		}
		seen[d.name] = true

		if !d.property {
			if d.fn == nil {
				fail("%w: %s has no body", ErrInvalidClass, d.name)
			}
			if _, err := applyOptions(d.opts).tag(); err != nil {
				fail("%s: %w", d.name, err)
			}
			continue
		}
		if len(d.parts) == 0 {
			fail("%s: %w", d.name, ErrEmptyProperty)
		}
		kinds := make(map[MethodKind]bool)
		for _, part := range d.parts {
			if kinds[part.kind] {
				fail("%w: property %s declares %s twice", ErrDuplicateMember, d.name, part.kind)
			}
			kinds[part.kind] = true
			if part.fn == nil {
				fail("%w: property %s %s has no body", ErrInvalidClass, d.name, part.kind)
			}
			if _, err := applyOptions(part.opts).tag(); err != nil {
				fail("%s %s: %w", d.name, part.kind, err)
			}
		}
	}

	hooks := make(map[Hook]bool)
	for _, d := range b.hooks {
		if d.hook == "" {
			fail("%w: empty hook name", ErrInvalidClass)
			continue
		}
		if hooks[d.hook] {
			fail("%w: hook %q", ErrDuplicateMember, d.hook)
		}
		hooks[d.hook] = true
		if d.fn == nil {
			fail("%w: hook %s has no body", ErrInvalidClass, d.hook)
		}
		if _, err := applyOptions(d.opts).tag(); err != nil {
			fail("<%s>: %w", d.hook, err)
		}
	}

	return errors.Join(errs...)
}
