package vm

import "fmt"

// Hook names a special method the runtime invokes implicitly: on
// construction, on disposal, around a scoped block, when an object is called
// or when it is rendered as a string. Hooks live in their own namespace and
// never collide with ordinary members.
type Hook string

const (
	HookInit     Hook = "init"
	HookFinalize Hook = "finalize"
	HookEnter    Hook = "enter"
	HookExit     Hook = "exit"
	HookCall     Hook = "call"
	HookString   Hook = "string"
)

// Lifecycle reports whether h runs while object identity is being
// established or torn down. Lifecycle hooks always dispatch dynamically.
func (h Hook) Lifecycle() bool {
	return h == HookInit || h == HookFinalize
}

// InvokeHook runs hook h on self.
//
// A wrapped hook yields to the calling class's view when that view is
// non-virtual, the caller is not the same hook chaining to its superclass,
// and the hook found on self was not defined by the calling class itself.
func (c *Context) InvokeHook(self *Object, h Hook, args ...Value) (Value, error) {
	if self == nil {
		return nil, fmt.Errorf("<%s>: %w", h, ErrNilReceiver)
	}
	m := self.class.LookupHook(h)
	if m == nil {
		return nil, fmt.Errorf("%s.<%s>: %w", self.class, h, ErrNoSuchHook)
	}
	return c.dispatchHook(ShapeHook, self, m, args)
}

func (c *Context) dispatchHook(shape Shape, self *Object, h *Method, args []Value) (Value, error) {
	target, site, binding := c.hookTarget(self, h)
	if binding == BindingStatic {
		c.vm.log.Debugf("%s: hook %s on %s bound to %s", site.methodName(), h, self.class, target)
	}
	if c.vm.tracer != nil {
		c.vm.emit(Event{
			Shape:         shape,
			Name:          h.name,
			CallerClass:   site.className(),
			CallerMethod:  site.methodName(),
			ReceiverClass: self.class.FullName(),
			TargetClass:   target.owner.FullName(),
			Binding:       binding,
		})
	}
	return target.invoke(c, self, args)
}

func (c *Context) hookTarget(self *Object, h *Method) (*Method, CallSite, Binding) {
	site, ok := ResolveCallSite(c)
	if !h.wrapped {
		return h, site, BindingDirect
	}
	if !ok || site.sameHook(h) || site.Class == h.owner || !self.class.IsSubclassOf(site.Class) {
		return h, site, BindingDynamic
	}
	view := site.Class.LookupHook(Hook(h.name))
	if view == nil || !view.nonVirtual {
		return h, site, BindingDynamic
	}
	return view, site, BindingStatic
}

// Call invokes self as a function through its call hook.
func (c *Context) Call(self *Object, args ...Value) (Value, error) {
	if self != nil && self.class.LookupHook(HookCall) == nil {
		return nil, fmt.Errorf("%s: %w", self.class, ErrNotCallable)
	}
	return c.InvokeHook(self, HookCall, args...)
}

// Enter runs the enter hook of self and returns the value bound for the
// scoped block. Objects without an enter hook enter as themselves.
func (c *Context) Enter(self *Object) (Value, error) {
	if self != nil && self.class.LookupHook(HookEnter) == nil {
		return self, nil
	}
	return c.InvokeHook(self, HookEnter)
}

// Exit runs the exit hook of self with the error that ended the scoped
// block, nil on normal completion.
func (c *Context) Exit(self *Object, blockErr error) error {
	if self != nil && self.class.LookupHook(HookExit) == nil {
		return nil
	}
	_, err := c.InvokeHook(self, HookExit, blockErr)
	return err
}

// With runs body as a scoped block over self: enter, body, then exit. Exit
// always runs once enter succeeded. An error from body takes precedence
// over one from exit.
func (c *Context) With(self *Object, body func(ctx *Context, entered Value) error) error {
	entered, err := c.Enter(self)
	if err != nil {
		return err
	}
	bodyErr := body(c, entered)
	exitErr := c.Exit(self, bodyErr)
	if bodyErr != nil {
		return bodyErr
	}
	return exitErr
}

// Stringify renders self through its string hook, falling back to the
// default rendering.
func (c *Context) Stringify(self *Object) (string, error) {
	if self == nil || self.class.LookupHook(HookString) == nil {
		return self.String(), nil
	}
	v, err := c.InvokeHook(self, HookString)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// New creates an instance of cls and runs its init hook with args.
func (c *Context) New(cls *Class, args ...Value) (*Object, error) {
	if cls == nil {
		return nil, fmt.Errorf("new: %w", ErrInvalidClass)
	}
	obj := newObject(cls)
	h := cls.LookupHook(HookInit)
	if h == nil {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: %w: no init hook to take %d arguments", cls, ErrArity, len(args))
		}
		return obj, nil
	}
	if _, err := c.dispatchHook(ShapeHook, obj, h, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// Dispose runs the finalize hook of obj, if any.
func (c *Context) Dispose(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("dispose: %w", ErrNilReceiver)
	}
	h := obj.class.LookupHook(HookFinalize)
	if h == nil {
		return nil
	}
	_, err := c.dispatchHook(ShapeHook, obj, h, nil)
	return err
}
