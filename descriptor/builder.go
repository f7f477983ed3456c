package descriptor

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Builder constructs TypeDescriptors programmatically. It is used by the
// proxy generator, by embedders that synthesize types, and by tests. Build
// validates the result, so a descriptor obtained from a builder is as
// trustworthy as one decoded from bytes.
type Builder struct {
	d TypeDescriptor
}

// NewBuilder starts a descriptor for the named type.
func NewBuilder(name string) *Builder {
	return &Builder{d: TypeDescriptor{Name: name, Version: "1"}}
}

// Version sets the descriptor's version tag.
func (b *Builder) Version(v string) *Builder {
	b.d.Version = v
	return b
}

// Super sets the supertype name.
func (b *Builder) Super(name string) *Builder {
	b.d.SuperName = name
	return b
}

// Implements appends interface names.
func (b *Builder) Implements(names ...string) *Builder {
	b.d.Interfaces = append(b.d.Interfaces, names...)
	return b
}

// AsInterface marks the type as an interface.
func (b *Builder) AsInterface() *Builder {
	b.d.IsInterface = true
	return b
}

// Field appends a field descriptor.
func (b *Builder) Field(f FieldDescriptor) *Builder {
	b.d.Fields = append(b.d.Fields, f)
	return b
}

// Method appends a method descriptor.
func (b *Builder) Method(m MethodDescriptor) *Builder {
	b.d.Methods = append(b.d.Methods, m)
	return b
}

// NativeMethod appends a public method whose body is supplied by the runtime
// (a registered Go function) rather than a code body.
func (b *Builder) NativeMethod(name string, sig Signature) *Builder {
	return b.Method(MethodDescriptor{
		Name:       name,
		Signature:  sig,
		Visibility: Public,
		Modifiers:  ModNative,
	})
}

// AbstractMethod appends a public abstract method.
func (b *Builder) AbstractMethod(name string, sig Signature) *Builder {
	return b.Method(MethodDescriptor{
		Name:       name,
		Signature:  sig,
		Visibility: Public,
		Modifiers:  ModAbstract,
	})
}

// StaticInit appends a native static initializer.
func (b *Builder) StaticInit() *Builder {
	return b.Method(MethodDescriptor{
		Name:       StaticInitName,
		Signature:  Sig(TypeVoid),
		Visibility: Private,
		Modifiers:  ModStatic | ModNative,
	})
}

// Constant appends a constant-pool entry and returns its index.
func (b *Builder) Constant(c Constant) int {
	b.d.Constants = append(b.d.Constants, c)
	return len(b.d.Constants) - 1
}

// Attribute appends a type-level attribute.
func (b *Builder) Attribute(a Attribute) *Builder {
	b.d.Attributes = append(b.d.Attributes, a)
	return b
}

// Build validates and returns the descriptor. The builder must not be reused
// after Build; the returned descriptor aliases its internal state.
func (b *Builder) Build() (*TypeDescriptor, error) {
	if err := b.d.Validate(); err != nil {
		return nil, err
	}
	return &b.d, nil
}
