package descriptor

import (
	"strings"
	"testing"
)

func TestSignatureString(t *testing.T) {
	cases := []struct {
		sig  Signature
		want string
	}{
		{Sig(TypeVoid), "()void"},
		{Sig(TypeInt, TypeInt), "(int)int"},
		{Sig("demo.Box", TypeInt, TypeString), "(int,string)demo.Box"},
	}
	for _, c := range cases {
		if got := c.sig.String(); got != c.want {
			t.Errorf("Signature.String() = %q, want %q", got, c.want)
		}
	}
}

func TestSignatureEquals(t *testing.T) {
	a := Sig(TypeInt, TypeString)
	if !a.Equals(Sig(TypeInt, TypeString)) {
		t.Error("identical signatures compare unequal")
	}
	if a.Equals(Sig(TypeLong, TypeString)) {
		t.Error("signatures with different returns compare equal")
	}
	if a.Equals(Sig(TypeInt, TypeString, TypeString)) {
		t.Error("signatures with different arity compare equal")
	}
	if !a.ParamsEqual([]string{TypeString}) {
		t.Error("ParamsEqual ignores return type, should match")
	}
}

func TestPackageOf(t *testing.T) {
	cases := []struct{ name, want string }{
		{"demo.util.Box", "demo.util"},
		{"demo.Box", "demo"},
		{"Box", ""},
	}
	for _, c := range cases {
		if got := PackageOf(c.name); got != c.want {
			t.Errorf("PackageOf(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestValidateRejectsDuplicateField(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.Dup",
		Fields: []FieldDescriptor{
			{Name: "x", Type: TypeInt},
			{Name: "x", Type: TypeLong},
		},
	}
	wantErr(t, d.Validate(), "duplicate field")
}

func TestValidateRejectsVoidField(t *testing.T) {
	d := &TypeDescriptor{
		Name:   "demo.V",
		Fields: []FieldDescriptor{{Name: "nothing", Type: TypeVoid}},
	}
	wantErr(t, d.Validate(), "void")
}

func TestValidateAllowsOverloads(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.Over",
		Methods: []MethodDescriptor{
			{Name: "run", Signature: Sig(TypeVoid)},
			{Name: "run", Signature: Sig(TypeVoid, TypeInt)},
		},
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for distinct overloads", err)
	}

	d.Methods = append(d.Methods, MethodDescriptor{Name: "run", Signature: Sig(TypeVoid, TypeInt)})
	wantErr(t, d.Validate(), "duplicate method")
}

func TestValidateRejectsAbstractWithCode(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.A",
		Methods: []MethodDescriptor{{
			Name:      "x",
			Signature: Sig(TypeVoid),
			Modifiers: ModAbstract,
			Code:      &CodeBody{},
		}},
	}
	wantErr(t, d.Validate(), "abstract")
}

func TestValidateRejectsBadConstantIndex(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.C",
		Methods: []MethodDescriptor{{
			Name:      "x",
			Signature: Sig(TypeVoid),
			Code: &CodeBody{
				MaxStack:     1,
				Instructions: []Instruction{Ins(OpConst, 5)},
			},
		}},
	}
	wantErr(t, d.Validate(), "constant index")
}

func TestValidateRejectsConstantKindMismatch(t *testing.T) {
	d := &TypeDescriptor{
		Name:      "demo.K",
		Constants: []Constant{IntConst(1)},
		Methods: []MethodDescriptor{{
			Name:      "x",
			Signature: Sig(TypeVoid),
			Code: &CodeBody{
				MaxStack:     1,
				Instructions: []Instruction{Ins(OpCall, 0)},
			},
		}},
	}
	wantErr(t, d.Validate(), "want methodref")
}

func TestValidateRejectsLocalSlotOutOfRange(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.L",
		Methods: []MethodDescriptor{{
			Name:      "x",
			Signature: Sig(TypeVoid),
			Code: &CodeBody{
				MaxStack:     1,
				MaxLocals:    1,
				LocalTypes:   []string{TypeInt},
				Instructions: []Instruction{Ins(OpLoad, 3)},
			},
		}},
	}
	wantErr(t, d.Validate(), "out of range")
}

func TestValidateRejectsLocalTypeCountMismatch(t *testing.T) {
	d := &TypeDescriptor{
		Name: "demo.M",
		Methods: []MethodDescriptor{{
			Name:      "x",
			Signature: Sig(TypeVoid),
			Code:      &CodeBody{MaxLocals: 2, LocalTypes: []string{TypeInt}},
		}},
	}
	wantErr(t, d.Validate(), "local types")
}

func TestBuilderProducesValidDescriptor(t *testing.T) {
	b := NewBuilder("demo.Built").
		Version("3").
		Super("core.Any").
		Implements("demo.Iface").
		Field(FieldDescriptor{Name: "n", Type: TypeInt, Visibility: Private}).
		NativeMethod("go", Sig(TypeVoid)).
		AbstractMethod("later", Sig(TypeInt)).
		StaticInit()
	idx := b.Constant(StringConst("hi"))

	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if d.Name != "demo.Built" || d.Version != "3" || d.SuperName != "core.Any" {
		t.Errorf("header = %s/%s/%s, want demo.Built/3/core.Any", d.Name, d.Version, d.SuperName)
	}
	if idx != 0 || d.Constants[idx].S != "hi" {
		t.Errorf("Constant() index/value = %d/%q, want 0/hi", idx, d.Constants[idx].S)
	}
	if d.StaticInit() == nil {
		t.Error("StaticInit() descriptor missing")
	}
	if m := d.Method("go", nil); m == nil || !m.Modifiers.IsNative() {
		t.Error("NativeMethod not recorded as native")
	}
}

func TestConstantValueTypes(t *testing.T) {
	cases := []struct {
		c    Constant
		want string
	}{
		{IntConst(1), TypeInt},
		{LongConst(1), TypeLong},
		{FloatConst(1), TypeFloat},
		{DoubleConst(1), TypeDouble},
		{BoolConst(true), TypeBool},
		{StringConst("s"), TypeString},
		{TypeConst("demo.T"), "demo.T"},
		{FieldRefConst("demo.T", "f", TypeInt), ""},
		{MethodRefConst("demo.T", "m", Sig(TypeVoid)), ""},
	}
	for _, c := range cases {
		if got := c.c.ValueType(); got != c.want {
			t.Errorf("ValueType(%s) = %q, want %q", c.c.Kind, got, c.want)
		}
	}
}

func wantErr(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Validate() = nil, want error containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("Validate() error %q does not contain %q", err, substr)
	}
}
