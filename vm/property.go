package vm

// Property groups the accessors of a computed attribute. Getter, setter and
// deleter are independent methods: each carries its own tag and binding.
type Property struct {
	name    string
	owner   *Class
	getter  *Method
	setter  *Method
	deleter *Method
}

func (p *Property) Name() string     { return p.name }
func (p *Property) Owner() *Class    { return p.owner }
func (p *Property) Getter() *Method  { return p.getter }
func (p *Property) Setter() *Method  { return p.setter }
func (p *Property) Deleter() *Method { return p.deleter }

// Accessors returns the defined accessors in getter, setter, deleter order.
func (p *Property) Accessors() []*Method {
	var out []*Method
	for _, m := range []*Method{p.getter, p.setter, p.deleter} {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (p *Property) String() string {
	owner := "?"
	if p.owner != nil {
		owner = p.owner.FullName()
	}
	return owner + "." + p.name
}

// PropertyPart declares one accessor of a property on a ClassBuilder.
type PropertyPart struct {
	kind MethodKind
	fn   Func
	opts []MemberOption
}

// Getter declares a property getter.
func Getter(fn Func0, opts ...MemberOption) PropertyPart {
	return PropertyPart{kind: KindGetter, fn: fn.body(), opts: opts}
}

// Setter declares a property setter; it receives the assigned value.
func Setter(fn Func1, opts ...MemberOption) PropertyPart {
	return PropertyPart{kind: KindSetter, fn: fn.body(), opts: opts}
}

// Deleter declares a property deleter.
func Deleter(fn Func0, opts ...MemberOption) PropertyPart {
	return PropertyPart{kind: KindDeleter, fn: fn.body(), opts: opts}
}

// Member is an entry in a class namespace: a *Method (plain or static) or
// a *Property.
type Member interface {
	Name() string
	Owner() *Class
}
