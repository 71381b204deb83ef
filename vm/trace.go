package vm

// Shape is the kind of access a dispatch event describes.
type Shape uint8

const (
	ShapeGet Shape = iota
	ShapeSet
	ShapeDelete
	ShapeSend
	ShapeHook
	ShapeSuper
	ShapeStatic
)

var shapeNames = [...]string{"get", "set", "delete", "send", "hook", "super", "static"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// ParseShape is the inverse of Shape.String.
func ParseShape(s string) (Shape, bool) {
	for i, n := range shapeNames {
		if n == s {
			return Shape(i), true
		}
	}
	return 0, false
}

// Binding records how an access was bound.
type Binding uint8

const (
	// BindingDynamic resolved through the receiver's class.
	BindingDynamic Binding = iota
	// BindingStatic was redirected to the calling class's view.
	BindingStatic
	// BindingDirect bypassed interception (super sends, static sends,
	// lifecycle hooks).
	BindingDirect
)

var bindingNames = [...]string{"dynamic", "static", "direct"}

func (b Binding) String() string {
	if int(b) < len(bindingNames) {
		return bindingNames[b]
	}
	return "unknown"
}

// ParseBinding is the inverse of Binding.String.
func ParseBinding(s string) (Binding, bool) {
	for i, n := range bindingNames {
		if n == s {
			return Binding(i), true
		}
	}
	return 0, false
}

// Event describes one resolved access.
type Event struct {
	Seq           uint64
	Shape         Shape
	Name          string
	CallerClass   string // "" when no calling class was established
	CallerMethod  string
	ReceiverClass string
	TargetClass   string // owner of the member that was bound; receiver class for slots
	Binding       Binding
}

// Redirected reports whether the access was bound to the calling class's
// view instead of the receiver's.
func (e Event) Redirected() bool { return e.Binding == BindingStatic }

// Tracer receives dispatch events. Record is called synchronously on the
// goroutine performing the access and must not call back into the VM.
type Tracer interface {
	Record(Event)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(Event)

func (f TracerFunc) Record(e Event) { f(e) }
