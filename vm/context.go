package vm

import "fmt"

// Context is an activation record. Every method body runs with its own
// Context, whose sender is the activation that invoked it. The chain of
// senders is the runtime call stack.
//
// A Context without a method is a native activation: Go code driving the
// runtime from outside any class (VM.Context) or a callback that
// deliberately detaches from its defining method (Context.Native). Accesses
// issued from native activations never establish a calling class.
//
// A Context belongs to the goroutine running its body and must not be
// shared.
type Context struct {
	vm       *VM
	method   *Method
	receiver *Object
	sender   *Context
	depth    int
	label    string
}

// push creates the activation for m running on self.
func (c *Context) push(m *Method, self *Object) (*Context, error) {
	if c.depth+1 > c.vm.maxDepth {
		return nil, fmt.Errorf("%s: %w (%d)", m, ErrStackOverflow, c.vm.maxDepth)
	}
	return &Context{
		vm:       c.vm,
		method:   m,
		receiver: self,
		sender:   c,
		depth:    c.depth + 1,
	}, nil
}

// Native returns a native activation on top of c. Code running in it is
// treated like top-level code: every access dispatches dynamically.
func (c *Context) Native(label string) *Context {
	return &Context{
		vm:     c.vm,
		sender: c,
		depth:  c.depth + 1,
		label:  label,
	}
}

// VM returns the runtime this activation belongs to.
func (c *Context) VM() *VM { return c.vm }

// Method returns the executing method, or nil for native activations.
func (c *Context) Method() *Method { return c.method }

// Receiver returns self for the executing method.
func (c *Context) Receiver() *Object { return c.receiver }

// Sender returns the invoking activation, or nil at the bottom.
func (c *Context) Sender() *Context { return c.sender }

// Depth returns the number of activations below this one.
func (c *Context) Depth() int { return c.depth }

// IsNative reports whether no method is executing in this activation.
func (c *Context) IsNative() bool { return c.method == nil }

func (c *Context) String() string {
	if c.method != nil {
		return c.method.String()
	}
	if c.label != "" {
		return "<native " + c.label + ">"
	}
	return "<native>"
}

// Backtrace lists the activations from c down to the bottom of the stack.
func (c *Context) Backtrace() []string {
	var frames []string
	for f := c; f != nil; f = f.sender {
		frames = append(frames, f.String())
	}
	return frames
}
