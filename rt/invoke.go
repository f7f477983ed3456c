package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Reflective invoker
// ---------------------------------------------------------------------------

// Invoker performs reflective member access on behalf of a caller type. Every
// operation re-checks visibility against that caller; an Invoker is therefore
// cheap, carries no authority of its own, and can be handed around freely.
// A nil caller is an anonymous frame and reaches public members only.
type Invoker struct {
	graph  *Graph
	caller *Type
}

// NewInvoker creates an invoker whose access checks run against caller.
func (g *Graph) NewInvoker(caller *Type) *Invoker {
	return &Invoker{graph: g, caller: caller}
}

// Caller returns the type access checks run against; nil for anonymous.
func (in *Invoker) Caller() *Type { return in.caller }

func callerName(t *Type) string {
	if t == nil {
		return "<anonymous>"
	}
	return t.Name()
}

// accessAllowed applies the visibility rules: public is open; private is
// declaring-type only; package is same package and same defining loader;
// protected adds subtypes of the declaring type.
func accessAllowed(caller *Type, m *Member) bool {
	switch m.Visibility() {
	case descriptor.Public:
		return true
	case descriptor.Private:
		return caller == m.Owner()
	case descriptor.Package:
		return samePackage(caller, m.Owner())
	case descriptor.Protected:
		return samePackage(caller, m.Owner()) ||
			(caller != nil && caller.IsSubtypeOf(m.Owner()))
	}
	return false
}

// samePackage requires both the package name and the defining loader to
// match; equal package names across loaders are distinct packages.
func samePackage(a, b *Type) bool {
	return a != nil && a.loader == b.loader &&
		descriptor.PackageOf(a.name) == descriptor.PackageOf(b.name)
}

func (in *Invoker) checkAccess(m *Member) error {
	if m.IsElevated() {
		accessLog.Infof("elevated access to %s from %s", m, callerName(in.caller))
		return nil
	}
	if accessAllowed(in.caller, m) {
		return nil
	}
	return &AccessError{TypeName: m.Owner().Name(), Member: m.Name(), Caller: callerName(in.caller)}
}

// Invoke calls a method reflectively. Static methods ignore the receiver;
// instance methods re-dispatch to the most-specific override for the
// receiver's dynamic type. Arguments are reconciled with the declared
// parameter types, and the declaring type is initialized first.
func (in *Invoker) Invoke(m *Member, recv Value, args ...Value) (Value, error) {
	if !m.IsMethod() || m.IsConstructor() {
		return Void, fmt.Errorf("rt: %s is not an invokable method", m)
	}
	g := in.graph
	if err := g.EnsureInitialized(m.Owner()); err != nil {
		return Void, err
	}
	if err := in.checkAccess(m); err != nil {
		return Void, err
	}

	target := m
	if m.Modifiers().IsStatic() {
		recv = Null
	} else {
		if recv.Kind() != KindRef {
			return Void, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: -1, Got: recv.TypeName(), Want: m.Owner().Name(),
			}
		}
		if !recv.ref.Type().IsAssignableTo(m.Owner()) {
			return Void, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: -1, Got: recv.ref.Type().Name(), Want: m.Owner().Name(),
			}
		}
		if d := recv.ref.Type().dispatch(m.Name(), m.method.Signature.Params); d != nil {
			target = d
		}
		// The override's declaring type may sit below the looked-up member's
		// owner; its statics must be live before its body runs.
		if target.Owner() != m.Owner() {
			if err := g.EnsureInitialized(target.Owner()); err != nil {
				return Void, err
			}
		}
	}

	if target.Modifiers().IsAbstract() {
		return Void, &AbstractCallError{TypeName: target.Owner().Name(), Member: target.Name()}
	}

	coerced, err := g.coerceArgs(target, args)
	if err != nil {
		return Void, err
	}
	return g.execute(&Call{Graph: g, Member: target, Receiver: recv, Args: coerced})
}

// Construct allocates a new instance and runs the given constructor on it.
func (in *Invoker) Construct(m *Member, args ...Value) (Value, error) {
	if !m.IsConstructor() {
		return Void, fmt.Errorf("rt: %s is not a constructor", m)
	}
	g := in.graph
	t := m.Owner()
	if err := g.EnsureInitialized(t); err != nil {
		return Void, err
	}
	if err := in.checkAccess(m); err != nil {
		return Void, err
	}

	coerced, err := g.coerceArgs(m, args)
	if err != nil {
		return Void, err
	}
	inst, err := NewInstance(t)
	if err != nil {
		return Void, err
	}
	recv := RefOf(inst)
	if _, err := g.execute(&Call{Graph: g, Member: m, Receiver: recv, Args: coerced}); err != nil {
		return Void, err
	}
	return recv, nil
}

// GetField reads a field reflectively.
func (in *Invoker) GetField(m *Member, recv Value) (Value, error) {
	if !m.IsField() {
		return Void, fmt.Errorf("rt: %s is not a field", m)
	}
	g := in.graph
	if err := g.EnsureInitialized(m.Owner()); err != nil {
		return Void, err
	}
	if err := in.checkAccess(m); err != nil {
		return Void, err
	}
	if m.Modifiers().IsStatic() {
		return m.Owner().StaticValue(m.Name())
	}
	if err := in.checkReceiver(m, recv); err != nil {
		return Void, err
	}
	return recv.ref.Field(m.Name())
}

// SetField writes a field reflectively, reconciling the value with the
// declared field type.
func (in *Invoker) SetField(m *Member, recv Value, v Value) error {
	if !m.IsField() {
		return fmt.Errorf("rt: %s is not a field", m)
	}
	g := in.graph
	if err := g.EnsureInitialized(m.Owner()); err != nil {
		return err
	}
	if err := in.checkAccess(m); err != nil {
		return err
	}
	if m.Modifiers().IsStatic() {
		return m.Owner().SetStaticValue(m.Name(), v)
	}
	if err := in.checkReceiver(m, recv); err != nil {
		return err
	}
	return recv.ref.SetField(m.Name(), v)
}

func (in *Invoker) checkReceiver(m *Member, recv Value) error {
	if recv.Kind() != KindRef || !recv.ref.Type().IsAssignableTo(m.Owner()) {
		return &ArgumentError{
			TypeName: m.Owner().Name(), Member: m.Name(),
			Index: -1, Got: recv.TypeName(), Want: m.Owner().Name(),
		}
	}
	return nil
}

// coerceArgs checks arity and reconciles each argument with the declared
// parameter type.
func (g *Graph) coerceArgs(m *Member, args []Value) ([]Value, error) {
	params := m.Signature().Params
	if len(args) != len(params) {
		return nil, &ArgumentError{
			TypeName: m.Owner().Name(), Member: m.Name(),
			Index: -1,
			Got:   fmt.Sprintf("%d arguments", len(args)),
			Want:  fmt.Sprintf("%d", len(params)),
		}
	}
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := g.coerce(a, params[i], m.Owner().loader)
		if err != nil {
			return nil, &ArgumentError{
				TypeName: m.Owner().Name(), Member: m.Name(),
				Index: i, Got: a.TypeName(), Want: params[i],
			}
		}
		out[i] = v
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// execute runs a member body: native bindings through the Go function bound
// on the declaring type, code bodies through the graph's engine. A failure
// from inside the body comes back wrapped in TargetError; the return value is
// reconciled with the declared return type, and void-returning members always
// yield Void.
func (g *Graph) execute(call *Call) (Value, error) {
	m := call.Member
	owner := m.Owner()

	var out Value
	var err error
	switch {
	case m.Modifiers().IsNative():
		fn := owner.nativeFor(m.Name(), m.Signature())
		if fn == nil {
			return Void, fmt.Errorf("rt: native member %s has no binding", m)
		}
		out, err = fn(call)
	case m.Code() != nil:
		if g.engine == nil {
			return Void, ErrNoEngine
		}
		out, err = g.engine.Execute(call)
	default:
		return Void, &AbstractCallError{TypeName: owner.Name(), Member: m.Name()}
	}
	if err != nil {
		return Void, &TargetError{TypeName: owner.Name(), Member: m.Name(), Cause: err}
	}

	ret := m.Signature().Return
	if ret == "" || ret == descriptor.TypeVoid {
		return Void, nil
	}
	out, err = g.coerce(out, ret, owner.loader)
	if err != nil {
		return Void, &TargetError{TypeName: owner.Name(), Member: m.Name(), Cause: err}
	}
	return out, nil
}
