package rt

import (
	"iter"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Member metadata index
// ---------------------------------------------------------------------------

// Member is the metadata entry for one field, method, or constructor of a
// Type. Members are materialized lazily on first query against the owning
// type's index and cached thereafter; the owning Type is a back-reference,
// not ownership.
type Member struct {
	owner    *Type
	field    *descriptor.FieldDescriptor
	method   *descriptor.MethodDescriptor
	elevated bool
}

// Owner returns the declaring Type.
func (m *Member) Owner() *Type { return m.owner }

// Name returns the member name.
func (m *Member) Name() string {
	if m.field != nil {
		return m.field.Name
	}
	return m.method.Name
}

// IsField reports whether the member is a field.
func (m *Member) IsField() bool { return m.field != nil }

// IsMethod reports whether the member is a method (including constructors
// and the static initializer).
func (m *Member) IsMethod() bool { return m.method != nil }

// IsConstructor reports whether the member is a constructor.
func (m *Member) IsConstructor() bool {
	return m.method != nil && m.method.IsConstructor()
}

// Visibility returns the declared visibility.
func (m *Member) Visibility() descriptor.Visibility {
	if m.field != nil {
		return m.field.Visibility
	}
	return m.method.Visibility
}

// Modifiers returns the declared modifier set.
func (m *Member) Modifiers() descriptor.Modifiers {
	if m.field != nil {
		return m.field.Modifiers
	}
	return m.method.Modifiers
}

// Signature returns the call shape for methods; for fields, a signature
// whose return type is the field type and with no parameters.
func (m *Member) Signature() descriptor.Signature {
	if m.field != nil {
		return descriptor.Signature{Return: m.field.Type}
	}
	return m.method.Signature
}

// FieldType returns the declared field type. Empty for methods.
func (m *Member) FieldType() string {
	if m.field == nil {
		return ""
	}
	return m.field.Type
}

// Thrown returns the declared thrown-type list.
func (m *Member) Thrown() []string {
	if m.method == nil {
		return nil
	}
	return m.method.Thrown
}

// Attributes returns the member's raw attribute blobs, opaque until decoded
// by the caller.
func (m *Member) Attributes() []descriptor.Attribute {
	if m.field != nil {
		return m.field.Attributes
	}
	return m.method.Attributes
}

// Code returns the method's code body, or nil.
func (m *Member) Code() *descriptor.CodeBody {
	if m.method == nil {
		return nil
	}
	return m.method.Code
}

// IsElevated reports whether this member value carries an explicit access
// elevation.
func (m *Member) IsElevated() bool { return m.elevated }

// Elevated returns a distinct member value for which the invoker skips the
// per-call access check. The elevation is visible in the value itself, never
// a mutation of the original member, and every elevation is logged.
func (m *Member) Elevated() *Member {
	accessLog.Noticef("access elevation granted for %s", m)
	dup := *m
	dup.elevated = true
	return &dup
}

// String renders the member as Type.name(sig).
func (m *Member) String() string {
	if m.field != nil {
		return m.owner.name + "." + m.field.Name
	}
	return m.owner.name + "." + m.method.Name + m.method.Signature.String()
}

// memberIndex is a Type's lazily built member table.
type memberIndex struct {
	fields  map[string]*Member
	methods map[string][]*Member // keyed by name; slice disambiguates overloads
}

// ensureIndex builds the index exactly once; concurrent first queries
// converge on the same materialized index.
func (t *Type) ensureIndex() *memberIndex {
	t.indexOnce.Do(func() {
		idx := &memberIndex{
			fields:  make(map[string]*Member),
			methods: make(map[string][]*Member),
		}
		for i := range t.desc.Fields {
			f := &t.desc.Fields[i]
			idx.fields[f.Name] = &Member{owner: t, field: f}
		}
		for i := range t.desc.Methods {
			md := &t.desc.Methods[i]
			idx.methods[md.Name] = append(idx.methods[md.Name], &Member{owner: t, method: md})
		}
		t.index = idx
	})
	return t.index
}

// ---------------------------------------------------------------------------
// Lookup operations
// ---------------------------------------------------------------------------

// MemberFilter selects which members a listing yields.
type MemberFilter uint8

const (
	// AllDeclared yields every member regardless of visibility.
	AllDeclared MemberFilter = iota
	// PublicOnly yields public members only.
	PublicOnly
)

func (f MemberFilter) admits(m *Member) bool {
	return f == AllDeclared || m.Visibility() == descriptor.Public
}

// Method returns the method declared on t or the nearest supertype with the
// given name and exact parameter types. Overloads are disambiguated by the
// parameter list; no coercion happens at lookup time.
func (t *Type) Method(name string, params ...string) (*Member, error) {
	for cur := t; cur != nil; cur = cur.Super() {
		for _, m := range cur.ensureIndex().methods[name] {
			if m.method.Signature.ParamsEqual(params) {
				return m, nil
			}
		}
	}
	return nil, &NoSuchMemberError{
		TypeName: t.name,
		Member:   name + descriptor.Signature{Params: params}.String(),
	}
}

// Constructor returns the constructor with the exact parameter types.
// Constructors are not inherited; only t's own declarations are searched.
func (t *Type) Constructor(params ...string) (*Member, error) {
	for _, m := range t.ensureIndex().methods[descriptor.ConstructorName] {
		if m.method.Signature.ParamsEqual(params) {
			return m, nil
		}
	}
	return nil, &NoSuchMemberError{
		TypeName: t.name,
		Member:   descriptor.ConstructorName + descriptor.Signature{Params: params}.String(),
	}
}

// Field returns the field declared on t or the nearest supertype with the
// given name.
func (t *Type) Field(name string) (*Member, error) {
	for cur := t; cur != nil; cur = cur.Super() {
		if m, ok := cur.ensureIndex().fields[name]; ok {
			return m, nil
		}
	}
	return nil, &NoSuchMemberError{TypeName: t.name, Member: name}
}

// Methods returns a lazy, restartable sequence over the methods of t and its
// supertypes, nearest declarations first. Constructors and the static
// initializer are excluded; overridden supertype declarations still appear
// (the sequence lists declarations, not dispatch results).
func (t *Type) Methods(filter MemberFilter) iter.Seq[*Member] {
	return func(yield func(*Member) bool) {
		for cur := t; cur != nil; cur = cur.Super() {
			idx := cur.ensureIndex()
			for i := range cur.desc.Methods {
				md := &cur.desc.Methods[i]
				if md.IsConstructor() || md.IsStaticInit() {
					continue
				}
				for _, m := range idx.methods[md.Name] {
					if m.method != md || !filter.admits(m) {
						continue
					}
					if !yield(m) {
						return
					}
				}
			}
		}
	}
}

// Fields returns a lazy, restartable sequence over the fields of t and its
// supertypes, nearest declarations first.
func (t *Type) Fields(filter MemberFilter) iter.Seq[*Member] {
	return func(yield func(*Member) bool) {
		for cur := t; cur != nil; cur = cur.Super() {
			idx := cur.ensureIndex()
			for i := range cur.desc.Fields {
				m := idx.fields[cur.desc.Fields[i].Name]
				if !filter.admits(m) {
					continue
				}
				if !yield(m) {
					return
				}
			}
		}
	}
}

// dispatch finds the most-specific override of name+params starting at the
// dynamic type and walking toward the root. This is the explicit
// supertype-chain lookup that stands in for vtable dispatch.
func (t *Type) dispatch(name string, params []string) *Member {
	for cur := t; cur != nil; cur = cur.Super() {
		for _, m := range cur.ensureIndex().methods[name] {
			if m.method.Signature.ParamsEqual(params) {
				return m
			}
		}
	}
	return nil
}
