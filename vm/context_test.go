package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Activation records
// ---------------------------------------------------------------------------

func TestTopContext(t *testing.T) {
	v := NewVM()
	ctx := v.Context()
	if ctx.VM() != v {
		t.Error("top context should belong to its VM")
	}
	if !ctx.IsNative() || ctx.Method() != nil || ctx.Receiver() != nil {
		t.Error("top context is native")
	}
	if ctx.Sender() != nil || ctx.Depth() != 0 {
		t.Error("top context is the bottom of the stack")
	}
	if ctx.String() != "<native top>" {
		t.Errorf("String() = %q", ctx.String())
	}
	if _, ok := ctx.CallSite(); ok {
		t.Error("top context has no calling class")
	}
}

func TestMethodActivation(t *testing.T) {
	v := NewVM()
	var frame *Context
	c := v.DefineClass("C", nil).
		Method0("capture", func(ctx *Context, self *Object) (Value, error) {
			frame = ctx
			return nil, nil
		}).
		MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, c)
	if _, err := ctx.Send(obj, "capture"); err != nil {
		t.Fatal(err)
	}

	if frame.Method() != c.LookupLocal("capture") || frame.Receiver() != obj {
		t.Error("frame should record the method and receiver")
	}
	if frame.Sender() != ctx || frame.Depth() != 1 {
		t.Errorf("sender %v depth %d", frame.Sender(), frame.Depth())
	}
	site, ok := frame.CallSite()
	if !ok || site.Class != c || site.Method != frame.Method() {
		t.Errorf("CallSite = %+v, %v", site, ok)
	}

	native := frame.Native("callback")
	if !native.IsNative() || native.Sender() != frame || native.Depth() != 2 {
		t.Error("Native should push a native activation")
	}
	if _, ok := native.CallSite(); ok {
		t.Error("native activations have no calling class")
	}

	bt := native.Backtrace()
	want := []string{"<native callback>", "C.capture", "<native top>"}
	if strings.Join(bt, "|") != strings.Join(want, "|") {
		t.Errorf("Backtrace = %v, want %v", bt, want)
	}
}

// ---------------------------------------------------------------------------
// Call-site resolution
// ---------------------------------------------------------------------------

func TestResolveCallSite(t *testing.T) {
	v := NewVM()
	governed := v.DefineClass("Governed", nil).Method0("m", nop).MustBuild()
	plain := v.DefineClass("Plain", nil).Plain().Method0("m", nop).MustBuild()
	gm := governed.LookupLocal("m").(*Method)
	pm := plain.LookupLocal("m").(*Method)

	tests := []struct {
		name string
		ctx  *Context
		want *Class
	}{
		{"nil context", nil, nil},
		{"top level", v.Context(), nil},
		{"native", v.Context().Native("cb"), nil},
		{"governed method", &Context{vm: v, method: gm}, governed},
		{"plain method", &Context{vm: v, method: pm}, nil},
		{"ownerless method", &Context{vm: v, method: &Method{name: "loose"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, ok := ResolveCallSite(tt.ctx)
			if ok != (tt.want != nil) {
				t.Fatalf("ok = %v, want %v", ok, tt.want != nil)
			}
			if site.Class != tt.want {
				t.Errorf("Class = %v, want %v", site.Class, tt.want)
			}
		})
	}
}

func TestCallSiteIsPerAccess(t *testing.T) {
	// The same receiver seen from two methods resolves to two calling classes.
	v := NewVM()
	var sites []string
	probe := func(ctx *Context, self *Object) (Value, error) {
		site, _ := ctx.CallSite()
		sites = append(sites, site.className())
		return nil, nil
	}
	base := v.DefineClass("Base", nil).Method0("probe", probe).MustBuild()
	derived := v.DefineClass("Derived", base).Method0("probe", probe).MustBuild()

	ctx := v.Context()
	obj := mustNew(t, ctx, derived)
	if _, err := ctx.Send(obj, "probe"); err != nil {
		t.Fatal(err)
	}
	bm, err := ctx.Get(obj, "probe")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Apply(bm); err != nil {
		t.Fatal(err)
	}
	base.LookupLocal("probe").(*Method).invoke(ctx, obj, nil)

	if strings.Join(sites, " ") != "Derived Derived Base" {
		t.Errorf("sites = %v", sites)
	}
}
