package descriptor

import (
	"bytes"
	"testing"
)

func sampleDescriptor() *TypeDescriptor {
	b := NewBuilder("demo.Sample").
		Version("2").
		Super("core.Any").
		Field(FieldDescriptor{Name: "count", Type: TypeInt, Visibility: Protected, Modifiers: ModStatic}).
		Method(MethodDescriptor{
			Name:       "bump",
			Signature:  Sig(TypeInt, TypeInt),
			Visibility: Public,
			Modifiers:  ModStatic,
			Thrown:     []string{"demo.Overflow"},
			Code: &CodeBody{
				MaxStack:   1,
				MaxLocals:  1,
				LocalTypes: []string{TypeInt},
				Instructions: []Instruction{
					Ins(OpLoad, 0),
					Ins(OpReturn, 0),
				},
			},
		}).
		Attribute(Attribute{Name: "origin", Data: []byte("test")})
	b.Constant(IntConst(1))
	b.Constant(MethodRefConst("demo.Helper", "assist", Sig(TypeVoid)))
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

func TestWireRoundTrip(t *testing.T) {
	d := sampleDescriptor()
	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if got.Name != d.Name || got.Version != d.Version || got.SuperName != d.SuperName {
		t.Errorf("header = %s/%s/%s, want %s/%s/%s",
			got.Name, got.Version, got.SuperName, d.Name, d.Version, d.SuperName)
	}
	if len(got.Fields) != 1 || got.Fields[0].Name != "count" {
		t.Fatalf("Fields = %v, want the count field", got.Fields)
	}
	m := got.Method("bump", []string{TypeInt})
	if m == nil {
		t.Fatal("Method(bump) missing after round trip")
	}
	if m.Code == nil || len(m.Code.Instructions) != 2 || m.Code.Instructions[0].Op != OpLoad {
		t.Errorf("code body not preserved: %+v", m.Code)
	}
	if len(m.Thrown) != 1 || m.Thrown[0] != "demo.Overflow" {
		t.Errorf("Thrown = %v, want [demo.Overflow]", m.Thrown)
	}
	if len(got.Constants) != 2 || got.Constants[1].Ref.Name != "assist" {
		t.Errorf("Constants = %v, want preserved pool", got.Constants)
	}
	if len(got.Attributes) != 1 || string(got.Attributes[0].Data) != "test" {
		t.Errorf("Attributes = %v, want origin blob", got.Attributes)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := Encode(sampleDescriptor())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	b, err := Encode(sampleDescriptor())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding differs between equal descriptors")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Error("Decode(garbage) = nil error")
	}
}

func TestDecodeValidates(t *testing.T) {
	// Structurally decodable CBOR whose content fails validation: a field
	// with no type.
	bad := &TypeDescriptor{
		Name:   "demo.Bad",
		Fields: []FieldDescriptor{{Name: "x"}},
	}
	raw, err := cborEncMode.Marshal(bad)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if _, err := Decode(raw); err == nil {
		t.Error("Decode() accepted a descriptor that fails validation")
	}
}
