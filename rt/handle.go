package rt

import (
	"strconv"
	"strings"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Method types
// ---------------------------------------------------------------------------

// MethodType is an immutable call shape over type names: a return type and a
// parameter list. Two MethodTypes are interchangeable exactly when Equals
// reports true.
type MethodType struct {
	ret    string
	params []string
}

// MethodTypeOf builds a method type. The slices are copied; the result never
// aliases caller storage.
func MethodTypeOf(ret string, params ...string) MethodType {
	p := make([]string, len(params))
	copy(p, params)
	return MethodType{ret: ret, params: p}
}

// Return returns the return type name.
func (mt MethodType) Return() string { return mt.ret }

// ParamCount returns the number of parameters.
func (mt MethodType) ParamCount() int { return len(mt.params) }

// Param returns the i-th parameter type name.
func (mt MethodType) Param(i int) string { return mt.params[i] }

// Equals reports exact shape equality.
func (mt MethodType) Equals(other MethodType) bool {
	if mt.ret != other.ret || len(mt.params) != len(other.params) {
		return false
	}
	for i := range mt.params {
		if mt.params[i] != other.params[i] {
			return false
		}
	}
	return true
}

// String renders the shape as (p1,p2)ret.
func (mt MethodType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range mt.params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p)
	}
	b.WriteByte(')')
	b.WriteString(mt.ret)
	return b.String()
}

func (mt MethodType) signature() descriptor.Signature {
	return descriptor.Signature{Params: mt.params, Return: mt.ret}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Lookup mints method handles on behalf of a caller type. Access is checked
// once, here; the minted Handle is a capability that never re-checks, so a
// handle may be handed to code that could not have minted it. A nil caller
// mints public-member handles only.
type Lookup struct {
	graph  *Graph
	caller *Type
}

// NewLookup creates a lookup whose mint-time checks run against caller.
func (g *Graph) NewLookup(caller *Type) *Lookup {
	return &Lookup{graph: g, caller: caller}
}

// Caller returns the type mint-time checks run against; nil for anonymous.
func (lk *Lookup) Caller() *Type { return lk.caller }

func (lk *Lookup) checkMint(m *Member) error {
	if accessAllowed(lk.caller, m) {
		return nil
	}
	return &AccessError{TypeName: m.Owner().Name(), Member: m.Name(), Caller: callerName(lk.caller), Mint: true}
}

type handleKind uint8

const (
	handleVirtual handleKind = iota
	handleStatic
	handleConstructor
	handleGetter
	handleSetter
)

// FindVirtual mints a handle for an instance method. Invocation dispatches on
// the receiver's dynamic type; the handle's method type has the receiver
// prepended to the declared parameters.
func (lk *Lookup) FindVirtual(t *Type, name string, mt MethodType) (*Handle, error) {
	m, err := t.Method(name, mt.params...)
	if err != nil {
		return nil, err
	}
	if m.Modifiers().IsStatic() || mt.ret != m.Signature().Return {
		return nil, &NoSuchMemberError{TypeName: t.Name(), Member: name + mt.String()}
	}
	if err := lk.checkMint(m); err != nil {
		return nil, err
	}
	full := append([]string{t.Name()}, mt.params...)
	return &Handle{
		graph: lk.graph, kind: handleVirtual, member: m,
		mtype: MethodTypeOf(mt.ret, full...),
	}, nil
}

// FindStatic mints a handle for a static method.
func (lk *Lookup) FindStatic(t *Type, name string, mt MethodType) (*Handle, error) {
	m, err := t.Method(name, mt.params...)
	if err != nil {
		return nil, err
	}
	if !m.Modifiers().IsStatic() || mt.ret != m.Signature().Return {
		return nil, &NoSuchMemberError{TypeName: t.Name(), Member: name + mt.String()}
	}
	if err := lk.checkMint(m); err != nil {
		return nil, err
	}
	return &Handle{graph: lk.graph, kind: handleStatic, member: m, mtype: mt}, nil
}

// FindConstructor mints a handle that allocates and constructs an instance.
// The method type's return must name the constructed type itself.
func (lk *Lookup) FindConstructor(t *Type, mt MethodType) (*Handle, error) {
	if mt.ret != t.Name() {
		return nil, &NoSuchMemberError{TypeName: t.Name(), Member: descriptor.ConstructorName + mt.String()}
	}
	m, err := t.Constructor(mt.params...)
	if err != nil {
		return nil, err
	}
	if err := lk.checkMint(m); err != nil {
		return nil, err
	}
	return &Handle{graph: lk.graph, kind: handleConstructor, member: m, mtype: mt}, nil
}

// FindGetter mints a handle that reads a field. The method type must be
// ()fieldType for a static field or (owner)fieldType for an instance field;
// any other shape fails at mint time.
func (lk *Lookup) FindGetter(t *Type, name string, mt MethodType) (*Handle, error) {
	m, err := t.Field(name)
	if err != nil {
		return nil, err
	}
	want := MethodTypeOf(m.FieldType())
	if !m.Modifiers().IsStatic() {
		want = MethodTypeOf(m.FieldType(), t.Name())
	}
	if !mt.Equals(want) {
		return nil, &NoSuchMemberError{TypeName: t.Name(), Member: name + mt.String()}
	}
	if err := lk.checkMint(m); err != nil {
		return nil, err
	}
	return &Handle{graph: lk.graph, kind: handleGetter, member: m, mtype: want}, nil
}

// FindSetter mints a handle that writes a field. The method type must be
// (fieldType)void for a static field or (owner,fieldType)void for an
// instance field. Final fields cannot be bound.
func (lk *Lookup) FindSetter(t *Type, name string, mt MethodType) (*Handle, error) {
	m, err := t.Field(name)
	if err != nil {
		return nil, err
	}
	if m.Modifiers().IsFinal() {
		return nil, &AccessError{TypeName: t.Name(), Member: name, Caller: callerName(lk.caller), Mint: true}
	}
	want := MethodTypeOf(descriptor.TypeVoid, m.FieldType())
	if !m.Modifiers().IsStatic() {
		want = MethodTypeOf(descriptor.TypeVoid, t.Name(), m.FieldType())
	}
	if !mt.Equals(want) {
		return nil, &NoSuchMemberError{TypeName: t.Name(), Member: name + mt.String()}
	}
	if err := lk.checkMint(m); err != nil {
		return nil, err
	}
	return &Handle{graph: lk.graph, kind: handleSetter, member: m, mtype: want}, nil
}

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

// Handle is a directly invocable reference to one member, minted by a Lookup.
// Its authority was established at mint time: invocation never re-checks
// access, only shape. Handles are immutable and safe to share.
type Handle struct {
	graph  *Graph
	kind   handleKind
	member *Member
	mtype  MethodType
}

// Type returns the handle's full method type, receiver included for
// instance-bound kinds.
func (h *Handle) Type() MethodType { return h.mtype }

// Member returns the member the handle was minted against. For virtual
// handles the actually executed member may be an override of this one.
func (h *Handle) Member() *Member { return h.member }

// Invoke calls the handle, reconciling arguments with the method type the
// same way the reflective invoker does: numeric widening, boxing, unboxing,
// reference widening, null pass-through.
func (h *Handle) Invoke(args ...Value) (Value, error) {
	if len(args) != len(h.mtype.params) {
		return Void, h.arityError(len(args))
	}
	coerced := make([]Value, len(args))
	for i, a := range args {
		v, err := h.graph.coerce(a, h.mtype.params[i], h.member.Owner().loader)
		if err != nil {
			return Void, &ArgumentError{
				TypeName: h.member.Owner().Name(), Member: h.member.Name(),
				Index: i, Got: a.TypeName(), Want: h.mtype.params[i],
			}
		}
		coerced[i] = v
	}
	return h.call(coerced)
}

// InvokeExact calls the handle with no reconciliation at all: every argument
// must already inhabit the exact parameter type. For reference parameters
// that means the argument's dynamic type is identical (same Type pointer) to
// the parameter type; Null is rejected.
func (h *Handle) InvokeExact(args ...Value) (Value, error) {
	if len(args) != len(h.mtype.params) {
		return Void, h.arityError(len(args))
	}
	for i, a := range args {
		if !h.exactMatch(a, h.mtype.params[i]) {
			return Void, &ArgumentError{
				TypeName: h.member.Owner().Name(), Member: h.member.Name(),
				Index: i, Got: a.TypeName(), Want: h.mtype.params[i],
			}
		}
	}
	return h.call(args)
}

func (h *Handle) exactMatch(v Value, want string) bool {
	if descriptor.IsPrimitive(want) {
		return v.TypeName() == want
	}
	if v.Kind() != KindRef {
		return false
	}
	t, err := h.member.Owner().loader.Resolve(want)
	if err != nil {
		return false
	}
	return v.ref.Type() == t
}

func (h *Handle) arityError(got int) error {
	return &ArgumentError{
		TypeName: h.member.Owner().Name(), Member: h.member.Name(),
		Index: -1,
		Got:   strconv.Itoa(got) + " arguments",
		Want:  strconv.Itoa(len(h.mtype.params)),
	}
}

// call runs the already reconciled invocation for the handle's kind. Access
// was settled at mint time; only EnsureInitialized and dispatch remain.
func (h *Handle) call(args []Value) (Value, error) {
	g := h.graph
	m := h.member
	if err := g.EnsureInitialized(m.Owner()); err != nil {
		return Void, err
	}

	switch h.kind {
	case handleStatic:
		return g.execute(&Call{Graph: g, Member: m, Receiver: Null, Args: args})

	case handleVirtual:
		recv := args[0]
		if recv.Kind() != KindRef {
			return Void, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: 0, Got: recv.TypeName(), Want: m.Owner().Name(),
			}
		}
		target := m
		if d := recv.ref.Type().dispatch(m.Name(), m.method.Signature.Params); d != nil {
			target = d
		}
		if target.Owner() != m.Owner() {
			if err := g.EnsureInitialized(target.Owner()); err != nil {
				return Void, err
			}
		}
		if target.Modifiers().IsAbstract() {
			return Void, &AbstractCallError{TypeName: target.Owner().Name(), Member: target.Name()}
		}
		return g.execute(&Call{Graph: g, Member: target, Receiver: recv, Args: args[1:]})

	case handleConstructor:
		inst, err := NewInstance(m.Owner())
		if err != nil {
			return Void, err
		}
		recv := RefOf(inst)
		if _, err := g.execute(&Call{Graph: g, Member: m, Receiver: recv, Args: args}); err != nil {
			return Void, err
		}
		return recv, nil

	case handleGetter:
		if m.Modifiers().IsStatic() {
			return m.Owner().StaticValue(m.Name())
		}
		recv := args[0]
		if recv.Kind() != KindRef {
			return Void, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: 0, Got: recv.TypeName(), Want: m.Owner().Name(),
			}
		}
		return recv.ref.Field(m.Name())

	case handleSetter:
		if m.Modifiers().IsStatic() {
			return Void, m.Owner().SetStaticValue(m.Name(), args[0])
		}
		recv := args[0]
		if recv.Kind() != KindRef {
			return Void, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: 0, Got: recv.TypeName(), Want: m.Owner().Name(),
			}
		}
		return Void, recv.ref.SetField(m.Name(), args[1])
	}
	return Void, nil
}
