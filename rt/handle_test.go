package rt

import (
	"errors"
	"testing"

	"github.com/chazu/kiln/descriptor"
)

func TestMethodTypeValueSemantics(t *testing.T) {
	params := []string{descriptor.TypeInt}
	mt := MethodTypeOf(descriptor.TypeLong, params...)
	params[0] = "mutated"
	if mt.Param(0) != descriptor.TypeInt {
		t.Error("MethodTypeOf aliases caller storage")
	}

	other := MethodTypeOf(descriptor.TypeLong, descriptor.TypeInt)
	if !mt.Equals(other) {
		t.Errorf("%s != %s, want equal", mt, other)
	}
	if mt.Equals(MethodTypeOf(descriptor.TypeInt, descriptor.TypeInt)) {
		t.Error("method types with different returns compare equal")
	}
	if got, want := mt.String(), "(int)long"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFindStaticHandle(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")

	h, err := g.NewLookup(nil).FindStatic(greeter, "twice", MethodTypeOf(descriptor.TypeLong, descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindStatic() error: %v", err)
	}
	out, err := h.Invoke(IntOf(6))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if !out.Equals(LongOf(12)) {
		t.Errorf("twice(6) = %v, want 12", out)
	}

	// Shape mismatch at mint time.
	_, err = g.NewLookup(nil).FindStatic(greeter, "twice", MethodTypeOf(descriptor.TypeInt, descriptor.TypeInt))
	var nsm *NoSuchMemberError
	if !errors.As(err, &nsm) {
		t.Errorf("FindStatic(wrong return) error = %v, want NoSuchMemberError", err)
	}
}

func TestFindVirtualHandleDispatches(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")

	h, err := g.NewLookup(nil).FindVirtual(greeter, "describe", MethodTypeOf(descriptor.TypeString))
	if err != nil {
		t.Fatalf("FindVirtual() error: %v", err)
	}
	if h.Type().ParamCount() != 1 || h.Type().Param(0) != "demo.Greeter" {
		t.Errorf("handle type = %s, want receiver prepended", h.Type())
	}

	out, err := h.Invoke(newOf(t, l, "demo.LoudGreeter"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if out.Str() != "A GREETER" {
		t.Errorf("describe() via handle = %q, want override %q", out.Str(), "A GREETER")
	}
}

func TestHandleMintTimeAccess(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")

	// Anonymous lookup cannot mint a private-method handle.
	_, err := g.NewLookup(nil).FindVirtual(greeter, "secret", MethodTypeOf(descriptor.TypeInt))
	var acc *AccessError
	if !errors.As(err, &acc) {
		t.Fatalf("FindVirtual(secret) error = %v, want AccessError", err)
	}
	if !acc.Mint {
		t.Error("AccessError.Mint = false for a mint-time denial")
	}

	// The owner mints it; the handle then works for anyone it is handed to,
	// with no recheck at call time.
	h, err := g.NewLookup(greeter).FindVirtual(greeter, "secret", MethodTypeOf(descriptor.TypeInt))
	if err != nil {
		t.Fatalf("owner FindVirtual(secret) error: %v", err)
	}
	out, err := h.Invoke(newOf(t, l, "demo.Greeter"))
	if err != nil {
		t.Fatalf("Invoke() via capability error: %v", err)
	}
	if !out.Equals(IntOf(41)) {
		t.Errorf("secret() = %v, want 41", out)
	}
}

func TestFindConstructorHandle(t *testing.T) {
	g, l := invokeFixture(t)
	loud := mustResolve(t, l, "demo.LoudGreeter")
	lk := g.NewLookup(nil)

	// Return type must name the constructed type.
	_, err := lk.FindConstructor(loud, MethodTypeOf(descriptor.TypeVoid))
	var nsm *NoSuchMemberError
	if !errors.As(err, &nsm) {
		t.Errorf("FindConstructor(void return) error = %v, want NoSuchMemberError", err)
	}

	h, err := lk.FindConstructor(loud, MethodTypeOf("demo.LoudGreeter"))
	if err != nil {
		t.Fatalf("FindConstructor() error: %v", err)
	}
	out, err := h.Invoke()
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if out.Kind() != KindRef || out.Ref().Type() != loud {
		t.Errorf("constructor handle returned %v, want a demo.LoudGreeter reference", out)
	}
}

func TestFieldHandles(t *testing.T) {
	g, l, src, _ := newTestGraph(t)
	putDesc(t, src, build(t, simpleType("demo.Cell").
		Field(descriptor.FieldDescriptor{Name: "v", Type: descriptor.TypeInt, Visibility: descriptor.Public}).
		Field(descriptor.FieldDescriptor{
			Name: "sealed", Type: descriptor.TypeInt,
			Visibility: descriptor.Public, Modifiers: descriptor.ModFinal,
		})))
	cell := mustResolve(t, l, "demo.Cell")
	lk := g.NewLookup(nil)

	getter, err := lk.FindGetter(cell, "v", MethodTypeOf(descriptor.TypeInt, "demo.Cell"))
	if err != nil {
		t.Fatalf("FindGetter() error: %v", err)
	}
	setter, err := lk.FindSetter(cell, "v", MethodTypeOf(descriptor.TypeVoid, "demo.Cell", descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindSetter() error: %v", err)
	}

	inst, err := NewInstance(cell)
	if err != nil {
		t.Fatalf("NewInstance() error: %v", err)
	}
	recv := RefOf(inst)

	if _, err := setter.Invoke(recv, IntOf(3)); err != nil {
		t.Fatalf("setter Invoke() error: %v", err)
	}
	out, err := getter.Invoke(recv)
	if err != nil {
		t.Fatalf("getter Invoke() error: %v", err)
	}
	if !out.Equals(IntOf(3)) {
		t.Errorf("v = %v, want 3", out)
	}

	// Final fields cannot have setters minted.
	sealedMT := MethodTypeOf(descriptor.TypeVoid, "demo.Cell", descriptor.TypeInt)
	if _, err := lk.FindSetter(cell, "sealed", sealedMT); err == nil {
		t.Error("FindSetter on a final field succeeded")
	}
}

func TestFieldHandleShapeCheckedAtMint(t *testing.T) {
	g, l, src, _ := newTestGraph(t)
	putDesc(t, src, build(t, simpleType("demo.Gauge").
		Field(descriptor.FieldDescriptor{Name: "level", Type: descriptor.TypeInt, Visibility: descriptor.Public}).
		Field(descriptor.FieldDescriptor{
			Name: "max", Type: descriptor.TypeInt,
			Visibility: descriptor.Public, Modifiers: descriptor.ModStatic,
		})))
	gauge := mustResolve(t, l, "demo.Gauge")
	lk := g.NewLookup(nil)

	// An instance getter demands the receiver in the method type.
	var nsm *NoSuchMemberError
	if _, err := lk.FindGetter(gauge, "level", MethodTypeOf(descriptor.TypeInt)); !errors.As(err, &nsm) {
		t.Errorf("FindGetter(missing receiver) error = %v, want NoSuchMemberError", err)
	}
	// A static getter demands no receiver.
	if _, err := lk.FindGetter(gauge, "max", MethodTypeOf(descriptor.TypeInt, "demo.Gauge")); !errors.As(err, &nsm) {
		t.Errorf("FindGetter(static with receiver) error = %v, want NoSuchMemberError", err)
	}
	if _, err := lk.FindGetter(gauge, "max", MethodTypeOf(descriptor.TypeInt)); err != nil {
		t.Errorf("FindGetter(static) error = %v, want nil", err)
	}
	// Setter value type must match the field type.
	badSet := MethodTypeOf(descriptor.TypeVoid, "demo.Gauge", descriptor.TypeString)
	if _, err := lk.FindSetter(gauge, "level", badSet); !errors.As(err, &nsm) {
		t.Errorf("FindSetter(wrong value type) error = %v, want NoSuchMemberError", err)
	}
}

func TestFieldHandlesRejectNullReceiver(t *testing.T) {
	g, l, src, _ := newTestGraph(t)
	putDesc(t, src, build(t, simpleType("demo.NullCell").
		Field(descriptor.FieldDescriptor{Name: "v", Type: descriptor.TypeInt, Visibility: descriptor.Public})))
	cell := mustResolve(t, l, "demo.NullCell")
	lk := g.NewLookup(nil)

	getter, err := lk.FindGetter(cell, "v", MethodTypeOf(descriptor.TypeInt, "demo.NullCell"))
	if err != nil {
		t.Fatalf("FindGetter() error: %v", err)
	}
	setter, err := lk.FindSetter(cell, "v", MethodTypeOf(descriptor.TypeVoid, "demo.NullCell", descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindSetter() error: %v", err)
	}

	// Null passes through reference coercion, so the call itself must reject
	// the missing receiver rather than dereference it.
	var arg *ArgumentError
	if _, err := getter.Invoke(Null); !errors.As(err, &arg) {
		t.Errorf("getter Invoke(Null) error = %v, want ArgumentError", err)
	} else if arg.Index != 0 {
		t.Errorf("getter ArgumentError.Index = %d, want 0", arg.Index)
	}
	if _, err := setter.Invoke(Null, IntOf(1)); !errors.As(err, &arg) {
		t.Errorf("setter Invoke(Null) error = %v, want ArgumentError", err)
	} else if arg.Index != 0 {
		t.Errorf("setter ArgumentError.Index = %d, want 0", arg.Index)
	}
}

func TestVirtualHandleInitializesDispatchTarget(t *testing.T) {
	g, m, recv := overrideInitFixture(t)

	h, err := g.NewLookup(nil).FindVirtual(m.Owner(), "id", MethodTypeOf(descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindVirtual() error: %v", err)
	}
	out, err := h.Invoke(recv)
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if !out.Equals(IntOf(42)) {
		t.Errorf("id() via handle = %v, want 42 (override ran before its type initialized)", out)
	}
}

func TestInvokeExactIsStrict(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")
	h, err := g.NewLookup(nil).FindStatic(greeter, "twice", MethodTypeOf(descriptor.TypeLong, descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindStatic() error: %v", err)
	}

	out, err := h.InvokeExact(IntOf(4))
	if err != nil {
		t.Fatalf("InvokeExact(int) error: %v", err)
	}
	if !out.Equals(LongOf(8)) {
		t.Errorf("twice(4) = %v, want 8", out)
	}

	// Coercible but not exact: rejected.
	var arg *ArgumentError
	if _, err := h.InvokeExact(LongOf(4)); !errors.As(err, &arg) {
		t.Errorf("InvokeExact(long) error = %v, want ArgumentError", err)
	}
	boxed, err := g.box(IntOf(4))
	if err != nil {
		t.Fatalf("box() error: %v", err)
	}
	if _, err := h.InvokeExact(boxed); !errors.As(err, &arg) {
		t.Errorf("InvokeExact(boxed) error = %v, want ArgumentError", err)
	}
}

func TestInvokeExactRejectsNullAndSubtypes(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")
	h, err := g.NewLookup(nil).FindVirtual(greeter, "describe", MethodTypeOf(descriptor.TypeString))
	if err != nil {
		t.Fatalf("FindVirtual() error: %v", err)
	}

	var arg *ArgumentError
	if _, err := h.InvokeExact(Null); !errors.As(err, &arg) {
		t.Errorf("InvokeExact(Null) error = %v, want ArgumentError", err)
	}
	// A subtype receiver is assignable but not the exact receiver type.
	if _, err := h.InvokeExact(newOf(t, l, "demo.LoudGreeter")); !errors.As(err, &arg) {
		t.Errorf("InvokeExact(subtype) error = %v, want ArgumentError", err)
	}
	if _, err := h.InvokeExact(newOf(t, l, "demo.Greeter")); err != nil {
		t.Errorf("InvokeExact(exact receiver) error = %v, want nil", err)
	}
}

func TestHandleInvokeCoerces(t *testing.T) {
	g, l := invokeFixture(t)
	greeter := mustResolve(t, l, "demo.Greeter")
	h, err := g.NewLookup(nil).FindStatic(greeter, "twice", MethodTypeOf(descriptor.TypeLong, descriptor.TypeInt))
	if err != nil {
		t.Fatalf("FindStatic() error: %v", err)
	}

	// A boxed int unboxes into the int parameter.
	boxed, err := g.box(IntOf(10))
	if err != nil {
		t.Fatalf("box() error: %v", err)
	}
	out, err := h.Invoke(boxed)
	if err != nil {
		t.Fatalf("Invoke(boxed) error: %v", err)
	}
	if !out.Equals(LongOf(20)) {
		t.Errorf("twice(box(10)) = %v, want 20", out)
	}
}
