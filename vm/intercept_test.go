package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func returns(s string) Func0 {
	return func(ctx *Context, self *Object) (Value, error) { return s, nil }
}

func sends(selector string) Func0 {
	return func(ctx *Context, self *Object) (Value, error) { return ctx.Send(self, selector) }
}

func mustNew(t *testing.T, ctx *Context, c *Class, args ...Value) *Object {
	t.Helper()
	obj, err := ctx.New(c, args...)
	if err != nil {
		t.Fatalf("New(%s): %v", c, err)
	}
	return obj
}

func expectSend(t *testing.T, ctx *Context, obj *Object, selector string, want Value, args ...Value) {
	t.Helper()
	got, err := ctx.Send(obj, selector, args...)
	if err != nil {
		t.Fatalf("Send(%s): %v", selector, err)
	}
	if got != want {
		t.Errorf("Send(%s) = %v, want %v", selector, got, want)
	}
}

// ---------------------------------------------------------------------------
// Method binding
// ---------------------------------------------------------------------------

func TestNonVirtualMethodBindsToCallingClass(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Method0("m", returns("Base.m"), NonVirtual()).
		Method0("caller", sends("m")).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		Method0("m", returns("Derived.m")).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "caller", "Base.m")
	expectSend(t, ctx, obj, "m", "Derived.m")
}

func TestVirtualMethodDispatchesDynamically(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Method0("m", returns("Base.m")).
		Method0("caller", sends("m")).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		Method0("m", returns("Derived.m")).
		MustBuild()

	ctx := v.Context()
	expectSend(t, ctx, mustNew(t, ctx, derived), "caller", "Derived.m")
	expectSend(t, ctx, mustNew(t, ctx, base), "caller", "Base.m")
}

func TestTagOverridesPolicy(t *testing.T) {
	tests := []struct {
		policy Policy
		tag    MemberOption
		wantA  string
		wantB  string
	}{
		{PolicyVirtual, NonVirtual(), "Derived.a", "Base.b"},
		{PolicyNonVirtual, Virtual(), "Base.a", "Derived.b"},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			v := NewVM()
			base := v.DefineClass("Base", nil).
				Policy(tt.policy).
				Method0("a", returns("Base.a")).
				Method0("b", returns("Base.b"), tt.tag).
				Method0("callA", sends("a")).
				Method0("callB", sends("b")).
				MustBuild()
			derived := v.DefineClass("Derived", base).
				Method0("a", returns("Derived.a")).
				Method0("b", returns("Derived.b")).
				MustBuild()

			ctx := v.Context()
			obj := mustNew(t, ctx, derived)
			expectSend(t, ctx, obj, "callA", tt.wantA)
			expectSend(t, ctx, obj, "callB", tt.wantB)
		})
	}
}

func TestInheritedViewBinds(t *testing.T) {
	// Middle does not define m; its view is Base's non-virtual m.
	v := NewVM()
	base := v.DefineClass("Base", nil).Method0("m", returns("Base.m"), NonVirtual()).MustBuild()
	middle := v.DefineClass("Middle", base).Method0("caller", sends("m")).MustBuild()
	leaf := v.DefineClass("Leaf", middle).Method0("m", returns("Leaf.m")).MustBuild()

	ctx := v.Context()
	expectSend(t, ctx, mustNew(t, ctx, leaf), "caller", "Base.m")
}

func TestOverridingClassSeesItsOwnView(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).Method0("m", returns("Base.m"), NonVirtual()).MustBuild()
	derived := v.DefineClass("Derived", base).
		Method0("m", returns("Derived.m")).
		Method0("caller", sends("m")).
		MustBuild()

	ctx := v.Context()
	expectSend(t, ctx, mustNew(t, ctx, derived), "caller", "Derived.m")
}

func TestTopLevelAndNativeCallsAreDynamic(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Method0("m", returns("Base.m"), NonVirtual()).
		Method0("detached", func(ctx *Context, self *Object) (Value, error) {
			return ctx.Native("callback").Send(self, "m")
		}).
		MustBuild()
	derived := v.DefineClass("Derived", base).Method0("m", returns("Derived.m")).MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "m", "Derived.m")
	expectSend(t, ctx, obj, "detached", "Derived.m")
}

func TestUngovernedCallerIsDynamic(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).Method0("m", returns("Base.m"), NonVirtual()).MustBuild()
	derived := v.DefineClass("Derived", base).Method0("m", returns("Derived.m")).MustBuild()
	helper := v.DefineClass("Helper", base).Plain().
		Method1("poke", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return ctx.Send(arg.(*Object), "m")
		}).
		MustBuild()

	ctx := v.Context()
	h := mustNew(t, ctx, helper)
	expectSend(t, ctx, h, "poke", "Derived.m", mustNew(t, ctx, derived))
}

func TestUnrelatedReceiverIsDynamic(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).Method0("m", returns("Base.m")).MustBuild()
	derived := v.DefineClass("Derived", base).Method0("m", returns("Derived.m")).MustBuild()
	other := v.DefineClass("Other", nil).
		Method0("m", returns("Other.m"), NonVirtual()).
		Method1("poke", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return ctx.Send(arg.(*Object), "m")
		}).
		MustBuild()

	ctx := v.Context()
	expectSend(t, ctx, mustNew(t, ctx, other), "poke", "Derived.m", mustNew(t, ctx, derived))
}

func TestStaticMethodThroughInstance(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Policy(PolicyNonVirtual).
		Static0("make", func(ctx *Context, self *Object) (Value, error) {
			if self != nil {
				return nil, errors.New("static method received a receiver")
			}
			return "Base.make", nil
		}).
		Method0("caller", sends("make")).
		MustBuild()
	derived := v.DefineClass("Derived", base).Static0("make", returns("Derived.make")).MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "caller", "Base.make")
	expectSend(t, ctx, obj, "make", "Derived.make")

	bm, err := ctx.Get(obj, "make")
	if err != nil {
		t.Fatal(err)
	}
	if bm.(*BoundMethod).Receiver() != nil {
		t.Error("static methods bind without a receiver")
	}
}

// ---------------------------------------------------------------------------
// Properties and slots
// ---------------------------------------------------------------------------

func slotGetter(slot string) Func0 {
	return func(ctx *Context, self *Object) (Value, error) {
		v, _ := self.Slot(slot)
		return v, nil
	}
}

func slotSetter(slot string) Func1 {
	return func(ctx *Context, self *Object, arg Value) (Value, error) {
		self.SetSlot(slot, arg)
		return nil, nil
	}
}

func slotDeleter(slot string) Func0 {
	return func(ctx *Context, self *Object) (Value, error) {
		self.SetSlot(slot, "deleted")
		return nil, nil
	}
}

func TestPropertyUsesCallingClassState(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Policy(PolicyNonVirtual).
		InstVars("baseValue").
		Property("value", Getter(slotGetter("baseValue")), Setter(slotSetter("baseValue"))).
		Method1("store", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return nil, ctx.Set(self, "value", arg)
		}).
		Method0("load", func(ctx *Context, self *Object) (Value, error) {
			return ctx.Get(self, "value")
		}).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		InstVars("derivedValue").
		Property("value", Getter(slotGetter("derivedValue")), Setter(slotSetter("derivedValue"))).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	if _, err := ctx.Send(obj, "store", 7); err != nil {
		t.Fatal(err)
	}
	if got, _ := obj.Slot("baseValue"); got != 7 {
		t.Errorf("baseValue = %v, want 7", got)
	}
	if got, _ := obj.Slot("derivedValue"); got != nil {
		t.Errorf("derivedValue = %v, want untouched", got)
	}
	expectSend(t, ctx, obj, "load", 7)

	if err := ctx.Set(obj, "value", 9); err != nil {
		t.Fatal(err)
	}
	got, err := ctx.Get(obj, "value")
	if err != nil || got != 9 {
		t.Errorf("top-level Get = %v, %v; want 9 from Derived", got, err)
	}
	if got, _ := obj.Slot("baseValue"); got != 7 {
		t.Errorf("top-level Set should not reach Base's state, baseValue = %v", got)
	}
}

func TestGetterSetterIndependent(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		InstVars("a", "b").
		Property("p",
			Getter(returns("Base.get"), NonVirtual()),
			Setter(slotSetter("a")),
			Deleter(slotDeleter("a"), NonVirtual())).
		Method0("read", func(ctx *Context, self *Object) (Value, error) { return ctx.Get(self, "p") }).
		Method1("write", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return nil, ctx.Set(self, "p", arg)
		}).
		Method0("remove", func(ctx *Context, self *Object) (Value, error) { return nil, ctx.Delete(self, "p") }).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		Property("p",
			Getter(returns("Derived.get")),
			Setter(slotSetter("b")),
			Deleter(slotDeleter("b"))).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "read", "Base.get")
	if _, err := ctx.Send(obj, "write", 1); err != nil {
		t.Fatal(err)
	}
	if a, _ := obj.Slot("a"); a != nil {
		t.Error("virtual setter should have dispatched to Derived")
	}
	if b, _ := obj.Slot("b"); b != 1 {
		t.Errorf("b = %v, want 1", b)
	}
	if _, err := ctx.Send(obj, "remove"); err != nil {
		t.Fatal(err)
	}
	if a, _ := obj.Slot("a"); a != "deleted" {
		t.Errorf("non-virtual deleter should have run Base's body, a = %v", a)
	}
}

func TestSlotAccess(t *testing.T) {
	v := NewVM()
	c := v.DefineClass("Point", nil).InstVars("x", "y").MustBuild()
	ctx := v.Context()
	obj := mustNew(t, ctx, c)

	if err := ctx.Set(obj, "x", 3); err != nil {
		t.Fatal(err)
	}
	got, err := ctx.Get(obj, "x")
	if err != nil || got != 3 {
		t.Errorf("Get(x) = %v, %v; want 3", got, err)
	}
	if err := ctx.Delete(obj, "x"); err != nil {
		t.Fatal(err)
	}
	if got, _ := obj.Slot("x"); got != nil {
		t.Errorf("Delete should reset the slot, got %v", got)
	}
}

func TestAttributeErrors(t *testing.T) {
	v := NewVM()
	c := v.DefineClass("C", nil).
		Method0("m", nop).
		Property("ro", Getter(nop)).
		Property("wo", Setter(nop1)).
		MustBuild()
	ctx := v.Context()
	obj := mustNew(t, ctx, c)

	if _, err := ctx.Get(obj, "missing"); !errors.Is(err, ErrNoSuchAttribute) {
		t.Errorf("Get(missing) error = %v", err)
	}
	if _, err := ctx.Send(obj, "missing"); !errors.Is(err, ErrNoSuchAttribute) {
		t.Errorf("Send(missing) error = %v", err)
	}
	if err := ctx.Set(obj, "missing", 1); !errors.Is(err, ErrNoSuchAttribute) {
		t.Errorf("Set(missing) error = %v", err)
	}
	if err := ctx.Set(obj, "ro", 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set(ro) error = %v", err)
	}
	if _, err := ctx.Get(obj, "wo"); !errors.Is(err, ErrWriteOnly) {
		t.Errorf("Get(wo) error = %v", err)
	}
	if err := ctx.Set(obj, "m", 1); !errors.Is(err, ErrNotAssignable) {
		t.Errorf("Set(m) error = %v", err)
	}
	if err := ctx.Delete(obj, "m"); !errors.Is(err, ErrNotDeletable) {
		t.Errorf("Delete(m) error = %v", err)
	}
	if err := ctx.Delete(obj, "ro"); !errors.Is(err, ErrNotDeletable) {
		t.Errorf("Delete(ro) error = %v", err)
	}
	if _, err := ctx.Get(nil, "m"); !errors.Is(err, ErrNilReceiver) {
		t.Errorf("Get(nil) error = %v", err)
	}
	if _, err := ctx.Send(obj, "m", 1); !errors.Is(err, ErrArity) {
		t.Errorf("Send with extra args error = %v", err)
	}
	if _, err := ctx.Apply(42); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Apply(42) error = %v", err)
	}
}

func TestGetReturnsBoundMethod(t *testing.T) {
	v := NewVM()
	c := v.DefineClass("C", nil).
		Method1("echo", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return fmt.Sprintf("%s:%v", self.Class().Name, arg), nil
		}).
		MustBuild()
	ctx := v.Context()
	obj := mustNew(t, ctx, c)

	got, err := ctx.Get(obj, "echo")
	if err != nil {
		t.Fatal(err)
	}
	bm, ok := got.(*BoundMethod)
	if !ok {
		t.Fatalf("Get returned %T, want *BoundMethod", got)
	}
	if bm.Receiver() != obj || bm.Method().Name() != "echo" {
		t.Errorf("bound method = %s", bm)
	}
	res, err := ctx.Apply(bm, "hi")
	if err != nil || res != "C:hi" {
		t.Errorf("Apply = %v, %v", res, err)
	}
	if !strings.HasPrefix(bm.String(), "<bound C.echo of C#") {
		t.Errorf("String() = %q", bm.String())
	}
}

func TestSendCallsPropertyValue(t *testing.T) {
	v := NewVM()
	fn := v.DefineClass("Fn", nil).
		Hook(HookCall, func(ctx *Context, self *Object, args []Value) (Value, error) {
			return len(args), nil
		}).
		MustBuild()
	ctx := v.Context()
	callable := mustNew(t, ctx, fn)
	holder := v.DefineClass("Holder", nil).
		Property("fn", Getter(func(ctx *Context, self *Object) (Value, error) { return callable, nil })).
		MustBuild()

	expectSend(t, ctx, mustNew(t, ctx, holder), "fn", 2, "a", "b")
}

// ---------------------------------------------------------------------------
// Super and static sends
// ---------------------------------------------------------------------------

func TestSuperSends(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		InstVars("stored").
		Method0("m", returns("Base.m")).
		Property("p", Getter(returns("Base.p")), Setter(slotSetter("stored"))).
		Method0("orphan", func(ctx *Context, self *Object) (Value, error) { return ctx.Super("m") }).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		Method0("m", func(ctx *Context, self *Object) (Value, error) {
			rv, err := ctx.Super("m")
			if err != nil {
				return nil, err
			}
			return "Derived.m+" + rv.(string), nil
		}).
		Method0("readP", func(ctx *Context, self *Object) (Value, error) { return ctx.SuperGet("p") }).
		Method1("writeP", func(ctx *Context, self *Object, arg Value) (Value, error) {
			return nil, ctx.SuperSet("p", arg)
		}).
		Method0("bound", func(ctx *Context, self *Object) (Value, error) { return ctx.SuperGet("m") }).
		Method0("missing", func(ctx *Context, self *Object) (Value, error) { return ctx.Super("nope") }).
		Method0("setMethod", func(ctx *Context, self *Object) (Value, error) { return nil, ctx.SuperSet("m", 1) }).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "m", "Derived.m+Base.m")
	expectSend(t, ctx, obj, "readP", "Base.p")
	if _, err := ctx.Send(obj, "writeP", 5); err != nil {
		t.Fatal(err)
	}
	if got, _ := obj.Slot("stored"); got != 5 {
		t.Errorf("stored = %v, want 5", got)
	}

	bm, err := ctx.Send(obj, "bound")
	if err != nil {
		t.Fatal(err)
	}
	if bm.(*BoundMethod).Method().Owner() != base {
		t.Error("SuperGet of a method should bind Base's definition")
	}

	if _, err := ctx.Send(obj, "missing"); !errors.Is(err, ErrNoSuper) {
		t.Errorf("super to missing member error = %v", err)
	}
	if _, err := ctx.Send(obj, "orphan"); !errors.Is(err, ErrNoSuper) {
		t.Errorf("super from root class error = %v", err)
	}
	if _, err := ctx.Send(obj, "setMethod"); !errors.Is(err, ErrNotAssignable) {
		t.Errorf("SuperSet on a method error = %v", err)
	}
	if _, err := ctx.Super("m"); !errors.Is(err, ErrNotInMethod) {
		t.Errorf("super from top level error = %v", err)
	}
}

func TestSendStatic(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Policy(PolicyNonVirtual).
		Static0("make", returns("Base.make")).
		Method0("m", nop).
		MustBuild()
	derived := v.DefineClass("Derived", base).Static0("make", returns("Derived.make")).MustBuild()
	leaf := v.DefineClass("Leaf", derived).MustBuild()

	ctx := v.Context()
	tests := []struct {
		class *Class
		want  string
	}{
		{base, "Base.make"},
		{derived, "Derived.make"},
		{leaf, "Derived.make"},
	}
	for _, tt := range tests {
		got, err := ctx.SendStatic(tt.class, "make")
		if err != nil || got != tt.want {
			t.Errorf("SendStatic(%s) = %v, %v; want %s", tt.class, got, err, tt.want)
		}
	}
	if _, err := ctx.SendStatic(base, "m"); !errors.Is(err, ErrNotStatic) {
		t.Errorf("SendStatic on an instance method error = %v", err)
	}
	if _, err := ctx.SendStatic(base, "nope"); !errors.Is(err, ErrNotStatic) {
		t.Errorf("SendStatic on a missing member error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

func concat(head string, v Value, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	rest, _ := v.([]string)
	return append([]string{head}, rest...), nil
}

func joined(v Value) string {
	s, _ := v.([]string)
	return strings.Join(s, " ")
}

// scopeChain defines Top <- Mid <- Bottom where Mid declares a non-virtual
// enter hook and a non-virtual helper called from it, and Bottom overrides
// both.
func scopeChain(t *testing.T, v *VM, midPolicy Policy) (top, mid, bottom *Class) {
	t.Helper()
	enter := func(name string) Func0 {
		return func(ctx *Context, self *Object) (Value, error) {
			rv, err := ctx.Send(self, "inner")
			return concat(name+".<enter>", rv, err)
		}
	}
	scope := func(ctx *Context, self *Object) (Value, error) {
		var entered Value
		err := ctx.With(self, func(ctx *Context, v Value) error {
			entered = v
			return nil
		})
		return entered, err
	}
	top = v.DefineClass("Top", nil).
		Method0("topScope", scope).
		MustBuild()
	mid = v.DefineClass("Mid", top).
		Policy(midPolicy).
		Hook0(HookEnter, enter("Mid")).
		Method0("inner", func(ctx *Context, self *Object) (Value, error) { return []string{"Mid.inner"}, nil }).
		Method0("midScope", scope).
		MustBuild()
	bottom = v.DefineClass("Bottom", mid).
		Hook0(HookEnter, enter("Bottom")).
		Method0("inner", func(ctx *Context, self *Object) (Value, error) { return []string{"Bottom.inner"}, nil }).
		Method0("bottomScope", scope).
		MustBuild()
	return top, mid, bottom
}

func TestHookRedirectedToCallingClass(t *testing.T) {
	v := NewVM()
	_, _, bottom := scopeChain(t, v, PolicyNonVirtual)
	ctx := v.Context()
	obj := mustNew(t, ctx, bottom)

	tests := []struct {
		selector string
		want     string
	}{
		{"midScope", "Mid.<enter> Mid.inner"},
		{"bottomScope", "Bottom.<enter> Bottom.inner"},
		{"topScope", "Bottom.<enter> Bottom.inner"},
	}
	for _, tt := range tests {
		got, err := ctx.Send(obj, tt.selector)
		if err != nil {
			t.Fatalf("%s: %v", tt.selector, err)
		}
		if joined(got) != tt.want {
			t.Errorf("%s = %q, want %q", tt.selector, joined(got), tt.want)
		}
	}

	entered, err := ctx.Enter(obj)
	if err != nil || joined(entered) != "Bottom.<enter> Bottom.inner" {
		t.Errorf("top-level Enter = %v, %v", entered, err)
	}
}

func TestVirtualHookNotRedirected(t *testing.T) {
	v := NewVM()
	_, _, bottom := scopeChain(t, v, PolicyVirtual)
	ctx := v.Context()

	got, err := ctx.Send(mustNew(t, ctx, bottom), "midScope")
	if err != nil {
		t.Fatal(err)
	}
	if joined(got) != "Bottom.<enter> Bottom.inner" {
		t.Errorf("midScope = %q", joined(got))
	}
}

func TestHookChainToSuperclass(t *testing.T) {
	v := NewVM()
	base := v.DefineClass("Base", nil).
		Policy(PolicyNonVirtual).
		Hook0(HookString, func(ctx *Context, self *Object) (Value, error) { return "base", nil }).
		MustBuild()
	derived := v.DefineClass("Derived", base).
		Hook0(HookString, func(ctx *Context, self *Object) (Value, error) {
			rv, err := ctx.SuperHook(HookString)
			if err != nil {
				return nil, err
			}
			return "derived+" + rv.(string), nil
		}).
		Method0("show", func(ctx *Context, self *Object) (Value, error) { return ctx.Stringify(self) }).
		MustBuild()
	leaf := v.DefineClass("Leaf", derived).
		Hook0(HookString, func(ctx *Context, self *Object) (Value, error) { return "leaf", nil }).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, leaf)
	expectSend(t, ctx, obj, "show", "derived+base")

	s, err := ctx.Stringify(obj)
	if err != nil || s != "leaf" {
		t.Errorf("top-level Stringify = %q, %v", s, err)
	}
}

func TestLifecycleHooksNeverRedirected(t *testing.T) {
	v := NewVM()
	var calls []string
	record := func(label string) Func {
		return func(ctx *Context, self *Object, args []Value) (Value, error) {
			calls = append(calls, label)
			return nil, nil
		}
	}
	base := v.DefineClass("Base", nil).
		Policy(PolicyNonVirtual).
		Hook(HookInit, record("Base.<init>")).
		Hook(HookFinalize, record("Base.<finalize>")).
		MustBuild()
	var derived *Class
	base2 := v.DefineClass("Spawner", base).
		Method0("spawn", func(ctx *Context, self *Object) (Value, error) {
			obj, err := ctx.New(derived)
			if err != nil {
				return nil, err
			}
			return nil, ctx.Dispose(obj)
		}).
		MustBuild()
	derived = v.DefineClass("Derived", base2).
		Hook(HookInit, record("Derived.<init>")).
		Hook(HookFinalize, record("Derived.<finalize>")).
		MustBuild()

	ctx := v.Context()
	spawner := mustNew(t, ctx, base2)
	calls = nil
	if _, err := ctx.Send(spawner, "spawn"); err != nil {
		t.Fatal(err)
	}
	want := "Derived.<init> Derived.<finalize>"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestNewPassesArguments(t *testing.T) {
	v := NewVM()
	point := v.DefineClass("Point", nil).
		InstVars("x", "y").
		Hook(HookInit, func(ctx *Context, self *Object, args []Value) (Value, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("want 2 args, got %d: %w", len(args), ErrArity)
			}
			self.SetSlot("x", args[0])
			self.SetSlot("y", args[1])
			return nil, nil
		}).
		MustBuild()
	bare := v.DefineClass("Bare", nil).MustBuild()

	ctx := v.Context()
	p := mustNew(t, ctx, point, 1, 2)
	if x, _ := p.Slot("x"); x != 1 {
		t.Errorf("x = %v, want 1", x)
	}
	if _, err := ctx.New(point, 1); !errors.Is(err, ErrArity) {
		t.Errorf("init error should propagate, got %v", err)
	}
	if _, err := ctx.New(bare, 1); !errors.Is(err, ErrArity) {
		t.Errorf("New with args and no init error = %v", err)
	}
	if err := ctx.Dispose(mustNew(t, ctx, bare)); err != nil {
		t.Errorf("Dispose without finalize = %v", err)
	}
}

func TestCallHook(t *testing.T) {
	v := NewVM()
	adder := v.DefineClass("Adder", nil).
		Hook(HookCall, func(ctx *Context, self *Object, args []Value) (Value, error) {
			sum := 0
			for _, a := range args {
				sum += a.(int)
			}
			return sum, nil
		}).
		MustBuild()
	plain := v.DefineClass("Plain", nil).MustBuild()

	ctx := v.Context()
	got, err := ctx.Call(mustNew(t, ctx, adder), 1, 2, 3)
	if err != nil || got != 6 {
		t.Errorf("Call = %v, %v; want 6", got, err)
	}
	if _, err := ctx.Call(mustNew(t, ctx, plain)); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Call without call hook error = %v", err)
	}
	if _, err := ctx.InvokeHook(mustNew(t, ctx, plain), HookString); !errors.Is(err, ErrNoSuchHook) {
		t.Errorf("InvokeHook of missing hook error = %v", err)
	}
}

func TestWith(t *testing.T) {
	v := NewVM()
	var exitArg Value
	exitErr := errors.New("exit failed")
	failExit := false
	res := v.DefineClass("Resource", nil).
		Hook0(HookEnter, returns("handle")).
		Hook1(HookExit, func(ctx *Context, self *Object, arg Value) (Value, error) {
			exitArg = arg
			if failExit {
				return nil, exitErr
			}
			return nil, nil
		}).
		MustBuild()
	ctx := v.Context()
	obj := mustNew(t, ctx, res)

	var entered Value
	err := ctx.With(obj, func(ctx *Context, v Value) error {
		entered = v
		return nil
	})
	if err != nil || entered != "handle" || exitArg != nil {
		t.Errorf("With: err %v entered %v exitArg %v", err, entered, exitArg)
	}

	bodyErr := errors.New("body failed")
	failExit = true
	err = ctx.With(obj, func(ctx *Context, v Value) error { return bodyErr })
	if !errors.Is(err, bodyErr) {
		t.Errorf("body error should win, got %v", err)
	}
	if exitArg != bodyErr {
		t.Errorf("exit hook should receive the body error, got %v", exitArg)
	}

	err = ctx.With(obj, func(ctx *Context, v Value) error { return nil })
	if !errors.Is(err, exitErr) {
		t.Errorf("exit error should be reported, got %v", err)
	}

	plain := mustNew(t, ctx, v.DefineClass("Plain", nil).MustBuild())
	err = ctx.With(plain, func(ctx *Context, v Value) error {
		entered = v
		return nil
	})
	if err != nil || entered != plain {
		t.Errorf("objects without enter hook enter as themselves: %v %v", entered, err)
	}
}

func TestWithEnterFailureSkipsBody(t *testing.T) {
	v := NewVM()
	enterErr := errors.New("enter failed")
	exited := false
	c := v.DefineClass("C", nil).
		Hook0(HookEnter, func(ctx *Context, self *Object) (Value, error) { return nil, enterErr }).
		Hook1(HookExit, func(ctx *Context, self *Object, arg Value) (Value, error) {
			exited = true
			return nil, nil
		}).
		MustBuild()
	ctx := v.Context()
	ran := false
	err := ctx.With(mustNew(t, ctx, c), func(ctx *Context, v Value) error {
		ran = true
		return nil
	})
	if !errors.Is(err, enterErr) || ran || exited {
		t.Errorf("err %v ran %v exited %v", err, ran, exited)
	}
}

func TestStringify(t *testing.T) {
	v := NewVM()
	named := v.DefineClass("Named", nil).Hook0(HookString, returns("named")).MustBuild()
	numbered := v.DefineClass("Numbered", nil).
		Hook0(HookString, func(ctx *Context, self *Object) (Value, error) { return 42, nil }).
		MustBuild()
	plain := v.DefineClass("Plain", nil).MustBuild()

	ctx := v.Context()
	tests := []struct {
		obj  *Object
		want string
	}{
		{mustNew(t, ctx, named), "named"},
		{mustNew(t, ctx, numbered), "42"},
	}
	for _, tt := range tests {
		got, err := ctx.Stringify(tt.obj)
		if err != nil || got != tt.want {
			t.Errorf("Stringify = %q, %v; want %q", got, err, tt.want)
		}
	}
	got, err := ctx.Stringify(mustNew(t, ctx, plain))
	if err != nil || !strings.HasPrefix(got, "Plain#") {
		t.Errorf("default Stringify = %q, %v", got, err)
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func TestTraceEvents(t *testing.T) {
	var events []Event
	v := NewVM(WithTracer(TracerFunc(func(e Event) { events = append(events, e) })))
	base := v.DefineClass("Base", nil).
		Method0("m", returns("Base.m"), NonVirtual()).
		Method0("caller", sends("m")).
		Static0("make", returns("made")).
		MustBuild()
	derived := v.DefineClass("Derived", base).Method0("m", returns("Derived.m")).MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	expectSend(t, ctx, obj, "caller", "Base.m")
	if _, err := ctx.SendStatic(derived, "make"); err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	outer, inner, static := events[0], events[1], events[2]
	if outer.Shape != ShapeSend || outer.CallerClass != "" || outer.Binding != BindingDynamic {
		t.Errorf("outer event = %+v", outer)
	}
	if !inner.Redirected() || inner.CallerClass != "Base" || inner.CallerMethod != "Base.caller" ||
		inner.ReceiverClass != "Derived" || inner.TargetClass != "Base" || inner.Name != "m" {
		t.Errorf("inner event = %+v", inner)
	}
	if static.Shape != ShapeStatic || static.Binding != BindingDirect || static.TargetClass != "Base" {
		t.Errorf("static event = %+v", static)
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d", i, e.Seq)
		}
	}
}

func TestShapeAndBindingNames(t *testing.T) {
	for s := ShapeGet; s <= ShapeStatic; s++ {
		parsed, ok := ParseShape(s.String())
		if !ok || parsed != s {
			t.Errorf("ParseShape(%q) = %v, %v", s.String(), parsed, ok)
		}
	}
	for b := BindingDynamic; b <= BindingDirect; b++ {
		parsed, ok := ParseBinding(b.String())
		if !ok || parsed != b {
			t.Errorf("ParseBinding(%q) = %v, %v", b.String(), parsed, ok)
		}
	}
	if _, ok := ParseShape("bogus"); ok {
		t.Error("ParseShape should reject unknown names")
	}
	if Shape(99).String() != "unknown" || Binding(99).String() != "unknown" {
		t.Error("out of range values render as unknown")
	}
}
