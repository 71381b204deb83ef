package vm

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// DefaultMaxDepth bounds the activation chain unless configured otherwise.
const DefaultMaxDepth = 1024

// VM owns the selector and class tables and the dispatch state shared by
// every class built in it.
type VM struct {
	ID        uuid.UUID
	Selectors *SelectorTable
	Classes   *ClassTable

	defaultPolicy Policy
	maxDepth      int
	cache         *DispatchCache
	tracer        Tracer
	seq           atomic.Uint64
	log           commonlog.Logger
	top           *Context
}

// Option configures a VM.
type Option func(*VM)

// WithDefaultPolicy sets the policy of root classes built without an
// explicit one.
func WithDefaultPolicy(p Policy) Option {
	return func(v *VM) {
		if p != PolicyInherit {
			v.defaultPolicy = p
		}
	}
}

// WithMaxDepth bounds the activation chain.
func WithMaxDepth(n int) Option {
	return func(v *VM) {
		if n > 0 {
			v.maxDepth = n
		}
	}
}

// WithCache enables or disables the dispatch cache.
func WithCache(enabled bool) Option {
	return func(v *VM) {
		if enabled {
			v.cache = NewDispatchCache()
		} else {
			v.cache = nil
		}
	}
}

// WithTracer reports every resolved access to t.
func WithTracer(t Tracer) Option {
	return func(v *VM) { v.tracer = t }
}

// WithLogger replaces the VM's logger.
func WithLogger(l commonlog.Logger) Option {
	return func(v *VM) {
		if l != nil {
			v.log = l
		}
	}
}

// NewVM creates an empty runtime.
func NewVM(opts ...Option) *VM {
	v := &VM{
		ID:            uuid.New(),
		Selectors:     NewSelectorTable(),
		Classes:       NewClassTable(),
		defaultPolicy: PolicyVirtual,
		maxDepth:      DefaultMaxDepth,
		cache:         NewDispatchCache(),
		log:           commonlog.GetLogger("virtualmethods.vm"),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.top = &Context{vm: v, label: "top"}
	return v
}

// Context returns the top-level activation. Accesses issued from it have no
// calling class and always dispatch dynamically.
func (v *VM) Context() *Context { return v.top }

// DefaultPolicy returns the policy for root classes without an explicit one.
func (v *VM) DefaultPolicy() Policy { return v.defaultPolicy }

// MaxDepth returns the activation depth limit.
func (v *VM) MaxDepth() int { return v.maxDepth }

// Cache returns the dispatch cache, or nil when caching is disabled.
func (v *VM) Cache() *DispatchCache { return v.cache }

// LookupClass finds a registered class by qualified name.
func (v *VM) LookupClass(name string) *Class {
	return v.Classes.Lookup(name)
}

func (v *VM) emit(e Event) {
	if v.tracer == nil {
		return
	}
	e.Seq = v.seq.Add(1)
	v.tracer.Record(e)
}
