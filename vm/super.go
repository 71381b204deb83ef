package vm

import "fmt"

// Super sends and static sends bind directly to a definition and never go
// through the attribute intercepts.

func (c *Context) superclass(what string) (*Class, error) {
	if c.method == nil {
		return nil, fmt.Errorf("super %s: %w", what, ErrNotInMethod)
	}
	sc := c.method.owner.Superclass
	if sc == nil {
		return nil, fmt.Errorf("%s: super %s: %w", c.method, what, ErrNoSuper)
	}
	return sc, nil
}

func (c *Context) superMember(name string) (Member, error) {
	sc, err := c.superclass(name)
	if err != nil {
		return nil, err
	}
	m := sc.Lookup(name)
	if m == nil {
		return nil, fmt.Errorf("%s: super %s: %w", c.method, name, ErrNoSuper)
	}
	c.traceDirect(ShapeSuper, name, m.Owner())
	return m, nil
}

// Super invokes the superclass implementation of selector on the current
// receiver. Lookup starts at the superclass of the class that owns the
// executing method.
func (c *Context) Super(selector string, args ...Value) (Value, error) {
	m, err := c.superMember(selector)
	if err != nil {
		return nil, err
	}
	switch m := m.(type) {
	case *Method:
		return m.invoke(c, receiverFor(m, c.receiver), args)
	case *Property:
		if m.getter == nil {
			return nil, fmt.Errorf("%s: %w", m, ErrWriteOnly)
		}
		v, err := m.getter.invoke(c, c.receiver, nil)
		if err != nil {
			return nil, err
		}
		return c.Apply(v, args...)
	}
	return nil, fmt.Errorf("%s: super %s: %w", c.method, selector, ErrNotCallable)
}

// SuperGet reads the superclass definition of name on the current receiver.
func (c *Context) SuperGet(name string) (Value, error) {
	m, err := c.superMember(name)
	if err != nil {
		return nil, err
	}
	switch m := m.(type) {
	case *Method:
		return &BoundMethod{method: m, receiver: receiverFor(m, c.receiver)}, nil
	case *Property:
		if m.getter == nil {
			return nil, fmt.Errorf("%s: %w", m, ErrWriteOnly)
		}
		return m.getter.invoke(c, c.receiver, nil)
	}
	return nil, fmt.Errorf("%s: super %s: %w", c.method, name, ErrNoSuchAttribute)
}

// SuperSet assigns through the superclass definition of name.
func (c *Context) SuperSet(name string, value Value) error {
	m, err := c.superMember(name)
	if err != nil {
		return err
	}
	p, ok := m.(*Property)
	if !ok {
		return fmt.Errorf("%s: %w", m, ErrNotAssignable)
	}
	if p.setter == nil {
		return fmt.Errorf("%s: %w", p, ErrReadOnly)
	}
	_, err = p.setter.invoke(c, c.receiver, []Value{value})
	return err
}

// SuperHook runs the superclass implementation of hook h on the current
// receiver. It is subject to hook redirection like any hook invocation,
// except that a hook chaining to its own superclass implementation is never
// redirected.
func (c *Context) SuperHook(h Hook, args ...Value) (Value, error) {
	sc, err := c.superclass("<" + string(h) + ">")
	if err != nil {
		return nil, err
	}
	m := sc.LookupHook(h)
	if m == nil {
		return nil, fmt.Errorf("%s: super <%s>: %w", c.method, h, ErrNoSuper)
	}
	if c.receiver == nil {
		return nil, fmt.Errorf("%s: super <%s>: %w", c.method, h, ErrNilReceiver)
	}
	return c.dispatchHook(ShapeSuper, c.receiver, m, args)
}

// SendStatic invokes the static method selector as seen by cls.
func (c *Context) SendStatic(cls *Class, selector string, args ...Value) (Value, error) {
	if cls == nil {
		return nil, fmt.Errorf("static %s: %w", selector, ErrInvalidClass)
	}
	m, ok := cls.Lookup(selector).(*Method)
	if !ok || m.kind != KindStatic {
		return nil, fmt.Errorf("%s.%s: %w", cls, selector, ErrNotStatic)
	}
	c.traceDirect(ShapeStatic, selector, m.owner)
	return m.invoke(c, nil, args)
}

func (c *Context) traceDirect(shape Shape, name string, target *Class) {
	if c.vm.tracer == nil {
		return
	}
	site, _ := ResolveCallSite(c)
	var receiver string
	if c.receiver != nil {
		receiver = c.receiver.class.FullName()
	}
	if shape == ShapeStatic {
		receiver = target.FullName()
	}
	c.vm.emit(Event{
		Shape:         shape,
		Name:          name,
		CallerClass:   site.className(),
		CallerMethod:  site.methodName(),
		ReceiverClass: receiver,
		TargetClass:   target.FullName(),
		Binding:       BindingDirect,
	})
}
