package vm

import "fmt"

// Func is the body of a method, property accessor or hook. ctx is the
// activation record of this body; self is the receiver (nil for static
// methods).
type Func func(ctx *Context, self *Object, args []Value) (Value, error)

// Func0 is a body taking no arguments.
type Func0 func(ctx *Context, self *Object) (Value, error)

// Func1 is a body taking one argument.
type Func1 func(ctx *Context, self *Object, arg Value) (Value, error)

// Func2 is a body taking two arguments.
type Func2 func(ctx *Context, self *Object, arg1, arg2 Value) (Value, error)

func (fn Func0) body() Func {
	if fn == nil {
		return nil
	}
	return func(ctx *Context, self *Object, args []Value) (Value, error) {
		return fn(ctx, self)
	}
}

func (fn Func1) body() Func {
	if fn == nil {
		return nil
	}
	return func(ctx *Context, self *Object, args []Value) (Value, error) {
		return fn(ctx, self, args[0])
	}
}

func (fn Func2) body() Func {
	if fn == nil {
		return nil
	}
	return func(ctx *Context, self *Object, args []Value) (Value, error) {
		return fn(ctx, self, args[0], args[1])
	}
}

// MethodKind distinguishes the shapes of member a Method can implement.
type MethodKind uint8

const (
	KindMethod MethodKind = iota
	KindStatic
	KindGetter
	KindSetter
	KindDeleter
	KindHook
)

func (k MethodKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindStatic:
		return "static"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	case KindDeleter:
		return "deleter"
	case KindHook:
		return "hook"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Method describes one user-defined body. Owner, tag and binding are
// stamped by ClassBuilder.Build and never change afterwards.
type Method struct {
	name     string
	kind     MethodKind
	fn       Func
	arity    int // -1 for variadic
	property string

	owner      *Class
	tag        Tag
	nonVirtual bool
	wrapped    bool // hook participates in call-site redirection
}

// Name returns the member name (the hook name for hooks).
func (m *Method) Name() string { return m.name }

// Kind returns what the method implements.
func (m *Method) Kind() MethodKind { return m.kind }

// Owner returns the class whose definition contains this body.
func (m *Method) Owner() *Class { return m.owner }

// Tag returns the explicit tag given at definition, if any.
func (m *Method) Tag() Tag { return m.tag }

// NonVirtual reports the resolved binding.
func (m *Method) NonVirtual() bool { return m.nonVirtual }

// Arity returns the expected argument count, or -1 when variadic.
func (m *Method) Arity() int { return m.arity }

// Property returns the property name for accessors, "" otherwise.
func (m *Method) Property() string { return m.property }

// Wrapped reports whether a hook takes part in call-site redirection.
// Lifecycle hooks and hooks of plain classes are never wrapped.
func (m *Method) Wrapped() bool { return m.wrapped }

func (m *Method) String() string {
	owner := "?"
	if m.owner != nil {
		owner = m.owner.FullName()
	}
	switch m.kind {
	case KindGetter:
		return owner + "." + m.property + ".get"
	case KindSetter:
		return owner + "." + m.property + ".set"
	case KindDeleter:
		return owner + "." + m.property + ".delete"
	case KindHook:
		return owner + ".<" + m.name + ">"
	}
	return owner + "." + m.name
}

// invoke runs the body in a fresh activation record whose sender is ctx.
func (m *Method) invoke(ctx *Context, self *Object, args []Value) (Value, error) {
	if m.arity >= 0 && len(args) != m.arity {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", m, ErrArity, len(args), m.arity)
	}
	frame, err := ctx.push(m, self)
	if err != nil {
		return nil, err
	}
	return m.fn(frame, self, args)
}

// ---------------------------------------------------------------------------
// BoundMethod
// ---------------------------------------------------------------------------

// BoundMethod is a method paired with the receiver it was read from. It is
// what an attribute read returns for methods.
type BoundMethod struct {
	method   *Method
	receiver *Object
}

// Method returns the method that will run.
func (b *BoundMethod) Method() *Method { return b.method }

// Receiver returns the bound receiver (nil for static methods).
func (b *BoundMethod) Receiver() *Object { return b.receiver }

// Invoke runs the method with ctx as the calling activation.
func (b *BoundMethod) Invoke(ctx *Context, args ...Value) (Value, error) {
	return b.method.invoke(ctx, b.receiver, args)
}

func (b *BoundMethod) String() string {
	if b.receiver == nil {
		return "<function " + b.method.String() + ">"
	}
	return "<bound " + b.method.String() + " of " + b.receiver.String() + ">"
}
