package rt

import (
	"testing"

	"github.com/chazu/kiln/descriptor"
)

func TestValueKindsAndEquality(t *testing.T) {
	if !Void.IsVoid() || !Null.IsNull() {
		t.Error("Void/Null sentinels misreport their kinds")
	}
	if IntOf(3).Equals(LongOf(3)) {
		t.Error("int and long with equal payloads compare equal")
	}
	if !StringOf("a").Equals(StringOf("a")) {
		t.Error("equal strings compare unequal")
	}

	var zero Value
	if !zero.IsVoid() {
		t.Error("zero Value is not Void")
	}
}

func TestZeroValues(t *testing.T) {
	cases := []struct {
		typeName string
		want     Value
	}{
		{descriptor.TypeBool, BoolOf(false)},
		{descriptor.TypeInt, IntOf(0)},
		{descriptor.TypeLong, LongOf(0)},
		{descriptor.TypeFloat, FloatOf(0)},
		{descriptor.TypeDouble, DoubleOf(0)},
		{descriptor.TypeString, StringOf("")},
		{"demo.Anything", Null},
	}
	for _, c := range cases {
		if got := zeroValue(c.typeName); !got.Equals(c.want) {
			t.Errorf("zeroValue(%s) = %v, want %v", c.typeName, got, c.want)
		}
	}
}

func TestCoerceNumericWidening(t *testing.T) {
	g, _, _, _ := newTestGraph(t)

	cases := []struct {
		in   Value
		want string
		out  Value
	}{
		{IntOf(7), descriptor.TypeLong, LongOf(7)},
		{IntOf(7), descriptor.TypeFloat, FloatOf(7)},
		{IntOf(7), descriptor.TypeDouble, DoubleOf(7)},
		{LongOf(7), descriptor.TypeDouble, DoubleOf(7)},
		{FloatOf(1.5), descriptor.TypeDouble, DoubleOf(1.5)},
	}
	for _, c := range cases {
		got, err := g.coerce(c.in, c.want, g.Root())
		if err != nil {
			t.Errorf("coerce(%v, %s) error: %v", c.in, c.want, err)
			continue
		}
		if !got.Equals(c.out) {
			t.Errorf("coerce(%v, %s) = %v, want %v", c.in, c.want, got, c.out)
		}
	}

	// Narrowing is never implicit.
	if _, err := g.coerce(LongOf(7), descriptor.TypeInt, g.Root()); err == nil {
		t.Error("coerce(long, int) succeeded; narrowing must be explicit")
	}
	if _, err := g.coerce(DoubleOf(1), descriptor.TypeFloat, g.Root()); err == nil {
		t.Error("coerce(double, float) succeeded; narrowing must be explicit")
	}
}

func TestCoerceBoxing(t *testing.T) {
	g, _, _, _ := newTestGraph(t)

	// A primitive boxes into its box type and into the root type.
	for _, want := range []string{BoxIntName, RootTypeName} {
		got, err := g.coerce(IntOf(5), want, g.Root())
		if err != nil {
			t.Fatalf("coerce(int, %s) error: %v", want, err)
		}
		if got.Kind() != KindRef {
			t.Fatalf("coerce(int, %s) = %v, want a reference", want, got)
		}
		inner, ok := g.unbox(got, descriptor.TypeInt)
		if !ok || !inner.Equals(IntOf(5)) {
			t.Errorf("unbox(coerce(int, %s)) = %v/%v, want 5", want, inner, ok)
		}
	}

	// Not into an unrelated box type.
	if _, err := g.coerce(IntOf(5), BoxStringName, g.Root()); err == nil {
		t.Error("coerce(int, core.String) succeeded")
	}
}

func TestCoerceUnboxing(t *testing.T) {
	g, _, _, _ := newTestGraph(t)

	boxed, err := g.box(IntOf(9))
	if err != nil {
		t.Fatalf("box() error: %v", err)
	}

	got, err := g.coerce(boxed, descriptor.TypeInt, g.Root())
	if err != nil {
		t.Fatalf("coerce(box(int), int) error: %v", err)
	}
	if !got.Equals(IntOf(9)) {
		t.Errorf("coerce(box(int), int) = %v, want 9", got)
	}

	// Unbox then widen.
	got, err = g.coerce(boxed, descriptor.TypeLong, g.Root())
	if err != nil {
		t.Fatalf("coerce(box(int), long) error: %v", err)
	}
	if !got.Equals(LongOf(9)) {
		t.Errorf("coerce(box(int), long) = %v, want 9L", got)
	}
}

func TestCoerceNullPassThrough(t *testing.T) {
	g, _, _, _ := newTestGraph(t)

	got, err := g.coerce(Null, RootTypeName, g.Root())
	if err != nil {
		t.Fatalf("coerce(null, ref) error: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("coerce(null, ref) = %v, want null", got)
	}

	if _, err := g.coerce(Null, descriptor.TypeInt, g.Root()); err == nil {
		t.Error("coerce(null, int) succeeded")
	}
}

func TestBoxTypesResolveThroughPipeline(t *testing.T) {
	g, _, _, _ := newTestGraph(t)

	for _, name := range []string{BoxBoolName, BoxIntName, BoxLongName, BoxFloatName, BoxDoubleName, BoxStringName} {
		typ, err := g.Root().Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%s) error: %v", name, err)
			continue
		}
		if typ.Super() == nil || typ.Super().Name() != RootTypeName {
			t.Errorf("%s does not extend %s", name, RootTypeName)
		}
	}
}
