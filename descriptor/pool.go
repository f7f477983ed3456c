package descriptor

import "fmt"

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// ConstKind discriminates constant-pool entries. The zero value is invalid so
// a missing kind in decoded bytes is detectable.
type ConstKind uint8

const (
	KInt ConstKind = iota + 1
	KLong
	KFloat
	KDouble
	KBool
	KString
	KType      // symbolic reference to a type by name
	KFieldRef  // symbolic reference to a field
	KMethodRef // symbolic reference to a method
)

// String returns a short name for the constant kind.
func (k ConstKind) String() string {
	switch k {
	case KInt:
		return "int"
	case KLong:
		return "long"
	case KFloat:
		return "float"
	case KDouble:
		return "double"
	case KBool:
		return "bool"
	case KString:
		return "string"
	case KType:
		return "typeref"
	case KFieldRef:
		return "fieldref"
	case KMethodRef:
		return "methodref"
	}
	return fmt.Sprintf("constkind(%d)", uint8(k))
}

// MemberRef is a symbolic reference to a field or method of a named type.
// References are resolved lazily: a descriptor holding a MemberRef is
// self-consistent even when the referenced type has not been loaded.
type MemberRef struct {
	TypeName  string    `cbor:"1,keyasint"`
	Name      string    `cbor:"2,keyasint"`
	Signature Signature `cbor:"3,keyasint"` // for fields, Return holds the field type
}

// String renders the reference as "Type.name(sig)".
func (r MemberRef) String() string {
	return r.TypeName + "." + r.Name + r.Signature.String()
}

// Constant is one constant-pool entry. Exactly the fields relevant to Kind
// are meaningful; the rest stay zero.
type Constant struct {
	Kind     ConstKind `cbor:"1,keyasint"`
	I        int64     `cbor:"2,keyasint,omitempty"`
	F        float64   `cbor:"3,keyasint,omitempty"`
	B        bool      `cbor:"4,keyasint,omitempty"`
	S        string    `cbor:"5,keyasint,omitempty"`
	TypeName string    `cbor:"6,keyasint,omitempty"`
	Ref      MemberRef `cbor:"7,keyasint,omitempty"`
}

// ValueType returns the type name a loadable constant pushes on the operand
// stack, or "" for non-loadable kinds (refs).
func (c Constant) ValueType() string {
	switch c.Kind {
	case KInt:
		return TypeInt
	case KLong:
		return TypeLong
	case KFloat:
		return TypeFloat
	case KDouble:
		return TypeDouble
	case KBool:
		return TypeBool
	case KString:
		return TypeString
	case KType:
		return c.TypeName
	}
	return ""
}

// Convenience constructors used by the builder and tests.

// IntConst returns an int constant.
func IntConst(v int64) Constant { return Constant{Kind: KInt, I: v} }

// LongConst returns a long constant.
func LongConst(v int64) Constant { return Constant{Kind: KLong, I: v} }

// FloatConst returns a float constant.
func FloatConst(v float64) Constant { return Constant{Kind: KFloat, F: v} }

// DoubleConst returns a double constant.
func DoubleConst(v float64) Constant { return Constant{Kind: KDouble, F: v} }

// BoolConst returns a bool constant.
func BoolConst(v bool) Constant { return Constant{Kind: KBool, B: v} }

// StringConst returns a string constant.
func StringConst(v string) Constant { return Constant{Kind: KString, S: v} }

// TypeConst returns a symbolic type reference constant.
func TypeConst(name string) Constant { return Constant{Kind: KType, TypeName: name} }

// FieldRefConst returns a symbolic field reference constant.
func FieldRefConst(typeName, field, fieldType string) Constant {
	return Constant{Kind: KFieldRef, Ref: MemberRef{
		TypeName:  typeName,
		Name:      field,
		Signature: Signature{Return: fieldType},
	}}
}

// MethodRefConst returns a symbolic method reference constant.
func MethodRefConst(typeName, method string, sig Signature) Constant {
	return Constant{Kind: KMethodRef, Ref: MemberRef{
		TypeName:  typeName,
		Name:      method,
		Signature: sig,
	}}
}
