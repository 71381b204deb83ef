package vm

// CallSite identifies the code performing an access: the executing method
// and the class that owns it. It is rebuilt for every intercepted access
// and never stored.
type CallSite struct {
	Method *Method
	Class  *Class
}

// ResolveCallSite identifies who is asking when ctx issues an access.
//
// ctx is the activation of the code that wrote `self.name` or invoked a
// hook, i.e. the caller of the intercept. The calling class is the owner
// stamped on that activation's method at class-construction time. No
// calling class is reported for a nil or native activation, for a method
// without an owner, or for a method owned by an ungoverned class; every such
// access falls back to ordinary dynamic dispatch.
func ResolveCallSite(ctx *Context) (CallSite, bool) {
	if ctx == nil || ctx.method == nil {
		return CallSite{}, false
	}
	owner := ctx.method.owner
	if owner == nil || !owner.governed {
		return CallSite{}, false
	}
	return CallSite{Method: ctx.method, Class: owner}, true
}

// CallSite resolves the calling class for accesses issued from c.
func (c *Context) CallSite() (CallSite, bool) {
	return ResolveCallSite(c)
}

// sameHook reports whether site is itself the hook named h, which is the
// case when a hook body chains to its superclass implementation.
func (site CallSite) sameHook(h *Method) bool {
	return site.Method.kind == KindHook && site.Method.name == h.name
}

func (site CallSite) className() string {
	if site.Class == nil {
		return ""
	}
	return site.Class.FullName()
}

func (site CallSite) methodName() string {
	if site.Method == nil {
		return ""
	}
	return site.Method.String()
}
