package vm

import "fmt"

// Intercepts are the attribute access handlers a governed class installs
// for itself and all of its subclasses. Each rule decides, from the calling
// class's view of an attribute, whether the access binds statically to that
// view.
type Intercepts struct {
	owner  *Class
	read   viewRule
	write  viewRule
	delete viewRule
}

// viewRule reports whether the calling class's view m binds an access
// statically.
type viewRule func(m Member) bool

func newIntercepts(owner *Class) *Intercepts {
	return &Intercepts{
		owner:  owner,
		read:   readsStatically,
		write:  writesStatically,
		delete: deletesStatically,
	}
}

// Owner returns the class that installed the intercepts.
func (ic *Intercepts) Owner() *Class { return ic.owner }

func (ic *Intercepts) rule(a accessKind) viewRule {
	switch a {
	case accessWrite:
		return ic.write
	case accessDelete:
		return ic.delete
	}
	return ic.read
}

func readsStatically(m Member) bool {
	switch m := m.(type) {
	case *Method:
		return m.nonVirtual
	case *Property:
		return m.getter != nil && m.getter.nonVirtual
	}
	return false
}

func writesStatically(m Member) bool {
	p, ok := m.(*Property)
	return ok && p.setter != nil && p.setter.nonVirtual
}

func deletesStatically(m Member) bool {
	p, ok := m.(*Property)
	return ok && p.deleter != nil && p.deleter.nonVirtual
}

// resolution is the outcome of resolving one attribute access: a member,
// or an instance variable slot when member is nil.
type resolution struct {
	member   Member
	slot     int
	redirect bool
}

// resolve binds an access to name on self issued from c.
//
// When c has a calling class and self's class carries intercepts, the
// calling class's own view of name is consulted first; if the intercept
// rule says that view binds statically, it wins over whatever self's class
// defines. Otherwise the access resolves through self's class: a member,
// then an instance variable.
func (c *Context) resolve(access accessKind, self *Object, name string) (resolution, CallSite, error) {
	site, ok := ResolveCallSite(c)
	ic := self.class.Intercepts()

	var caller *Class
	if ok && ic != nil && self.class.IsSubclassOf(site.Class) {
		caller = site.Class
	}

	key := siteKey{caller: caller, access: access, name: name}
	cache := c.vm.cache
	if cache != nil {
		if res, hit := cache.lookup(key, self.class); hit {
			return res, site, nil
		}
	}

	var res resolution
	if caller != nil {
		if m := caller.Lookup(name); m != nil && ic.rule(access)(m) {
			res = resolution{member: m, slot: -1, redirect: true}
		}
	}
	if res.member == nil {
		var err error
		res, err = resolveDynamic(self.class, name)
		if err != nil {
			return res, site, err
		}
	}

	if cache != nil {
		cache.store(key, self.class, res)
	}
	return res, site, nil
}

func resolveDynamic(receiver *Class, name string) (resolution, error) {
	if m := receiver.Lookup(name); m != nil {
		return resolution{member: m, slot: -1}, nil
	}
	if i := receiver.InstVarIndex(name); i >= 0 {
		return resolution{slot: i}, nil
	}
	return resolution{slot: -1}, fmt.Errorf("%s.%s: %w", receiver, name, ErrNoSuchAttribute)
}

func receiverFor(m *Method, self *Object) *Object {
	if m.kind == KindStatic {
		return nil
	}
	return self
}

// ---------------------------------------------------------------------------
// Attribute access
// ---------------------------------------------------------------------------

// Get reads an attribute of self. Properties run their getter, methods are
// returned bound to self, instance variables are read from their slot.
func (c *Context) Get(self *Object, name string) (Value, error) {
	if self == nil {
		return nil, fmt.Errorf("get %s: %w", name, ErrNilReceiver)
	}
	res, site, err := c.resolve(accessRead, self, name)
	if err != nil {
		return nil, err
	}
	c.traceAccess(ShapeGet, site, self, name, res)
	return c.read(self, res)
}

func (c *Context) read(self *Object, res resolution) (Value, error) {
	switch m := res.member.(type) {
	case *Property:
		if m.getter == nil {
			return nil, fmt.Errorf("%s: %w", m, ErrWriteOnly)
		}
		return m.getter.invoke(c, self, nil)
	case *Method:
		return &BoundMethod{method: m, receiver: receiverFor(m, self)}, nil
	}
	return self.slots[res.slot], nil
}

// Set assigns an attribute of self. Properties run their setter and
// instance variables are written to their slot; methods cannot be assigned.
func (c *Context) Set(self *Object, name string, value Value) error {
	if self == nil {
		return fmt.Errorf("set %s: %w", name, ErrNilReceiver)
	}
	res, site, err := c.resolve(accessWrite, self, name)
	if err != nil {
		return err
	}
	c.traceAccess(ShapeSet, site, self, name, res)
	switch m := res.member.(type) {
	case *Property:
		if m.setter == nil {
			return fmt.Errorf("%s: %w", m, ErrReadOnly)
		}
		_, err := m.setter.invoke(c, self, []Value{value})
		return err
	case *Method:
		return fmt.Errorf("%s: %w", m, ErrNotAssignable)
	}
	self.slots[res.slot] = value
	return nil
}

// Delete removes an attribute of self. Properties run their deleter and
// instance variables are reset to nil.
func (c *Context) Delete(self *Object, name string) error {
	if self == nil {
		return fmt.Errorf("delete %s: %w", name, ErrNilReceiver)
	}
	res, site, err := c.resolve(accessDelete, self, name)
	if err != nil {
		return err
	}
	c.traceAccess(ShapeDelete, site, self, name, res)
	switch m := res.member.(type) {
	case *Property:
		if m.deleter == nil {
			return fmt.Errorf("%s: %w", m, ErrNotDeletable)
		}
		_, err := m.deleter.invoke(c, self, nil)
		return err
	case *Method:
		return fmt.Errorf("%s: %w", m, ErrNotDeletable)
	}
	self.slots[res.slot] = nil
	return nil
}

// Send reads selector from self and calls the result with args. It is the
// equivalent of `self.selector(args...)`.
func (c *Context) Send(self *Object, selector string, args ...Value) (Value, error) {
	if self == nil {
		return nil, fmt.Errorf("send %s: %w", selector, ErrNilReceiver)
	}
	res, site, err := c.resolve(accessRead, self, selector)
	if err != nil {
		return nil, err
	}
	c.traceAccess(ShapeSend, site, self, selector, res)
	if m, ok := res.member.(*Method); ok {
		return m.invoke(c, receiverFor(m, self), args)
	}
	v, err := c.read(self, res)
	if err != nil {
		return nil, err
	}
	return c.Apply(v, args...)
}

// Apply calls a callable value: a bound method, or an object through its
// call hook.
func (c *Context) Apply(fn Value, args ...Value) (Value, error) {
	switch f := fn.(type) {
	case *BoundMethod:
		return f.Invoke(c, args...)
	case *Object:
		return c.Call(f, args...)
	}
	return nil, fmt.Errorf("%T: %w", fn, ErrNotCallable)
}

func (c *Context) traceAccess(shape Shape, site CallSite, self *Object, name string, res resolution) {
	if res.redirect {
		c.vm.log.Debugf("%s: %s %s.%s bound to %s", site.methodName(), shape, self.class, name, res.member)
	}
	if c.vm.tracer == nil {
		return
	}
	target := self.class.FullName()
	if res.member != nil {
		target = res.member.Owner().FullName()
	}
	binding := BindingDynamic
	if res.redirect {
		binding = BindingStatic
	}
	c.vm.emit(Event{
		Shape:         shape,
		Name:          name,
		CallerClass:   site.className(),
		CallerMethod:  site.methodName(),
		ReceiverClass: self.class.FullName(),
		TargetClass:   target,
		Binding:       binding,
	})
}
