package rt

import (
	"fmt"
	"strconv"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Value: tagged runtime values
// ---------------------------------------------------------------------------

// Kind tags the representation of a Value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindNull
	KindBool
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindRef
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindRef:
		return "ref"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged union holding one runtime value: a primitive, a string,
// the null reference, or a reference to an Instance. The zero Value is Void.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	ref  *Instance
}

// Void is the absence of a value (a void return).
var Void = Value{kind: KindVoid}

// Null is the null reference.
var Null = Value{kind: KindNull}

// BoolOf returns a bool value.
func BoolOf(v bool) Value { return Value{kind: KindBool, b: v} }

// IntOf returns an int value.
func IntOf(v int32) Value { return Value{kind: KindInt, i: int64(v)} }

// LongOf returns a long value.
func LongOf(v int64) Value { return Value{kind: KindLong, i: v} }

// FloatOf returns a float value.
func FloatOf(v float32) Value { return Value{kind: KindFloat, f: float64(v)} }

// DoubleOf returns a double value.
func DoubleOf(v float64) Value { return Value{kind: KindDouble, f: v} }

// StringOf returns a string value.
func StringOf(v string) Value { return Value{kind: KindString, s: v} }

// RefOf returns a reference value for the given instance. A nil instance
// yields Null.
func RefOf(inst *Instance) Value {
	if inst == nil {
		return Null
	}
	return Value{kind: KindRef, ref: inst}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null reference.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsVoid reports whether the value is the absence of a value.
func (v Value) IsVoid() bool { return v.kind == KindVoid }

// Bool returns the bool payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns the int payload. Valid only for KindInt.
func (v Value) Int() int32 { return int32(v.i) }

// Long returns the long payload. Valid only for KindLong.
func (v Value) Long() int64 { return v.i }

// Float returns the float payload. Valid only for KindFloat.
func (v Value) Float() float32 { return float32(v.f) }

// Double returns the double payload. Valid only for KindDouble.
func (v Value) Double() float64 { return v.f }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.s }

// Ref returns the referenced instance, or nil for Null.
func (v Value) Ref() *Instance { return v.ref }

// TypeName returns the declared-type name this value inhabits: the primitive
// name for primitives, the dynamic type name for references, "null" for the
// null reference, and "void" for Void.
func (v Value) TypeName() string {
	switch v.kind {
	case KindBool:
		return descriptor.TypeBool
	case KindInt:
		return descriptor.TypeInt
	case KindLong:
		return descriptor.TypeLong
	case KindFloat:
		return descriptor.TypeFloat
	case KindDouble:
		return descriptor.TypeDouble
	case KindString:
		return descriptor.TypeString
	case KindRef:
		return v.ref.Type().Name()
	case KindNull:
		return "null"
	}
	return descriptor.TypeVoid
}

// Equals reports strict equality: same kind and same payload. References
// compare by instance identity.
func (v Value) Equals(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindVoid, KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt, KindLong:
		return v.i == other.i
	case KindFloat, KindDouble:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindRef:
		return v.ref == other.ref
	}
	return false
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt, KindLong:
		return strconv.FormatInt(v.i, 10)
	case KindFloat, KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindRef:
		return "ref<" + v.ref.Type().Name() + ">"
	}
	return "?"
}

// zeroValue returns the default value for a declared type name: zero for
// numerics, false for bool, empty for string, Null for references.
func zeroValue(typeName string) Value {
	switch typeName {
	case descriptor.TypeBool:
		return BoolOf(false)
	case descriptor.TypeInt:
		return IntOf(0)
	case descriptor.TypeLong:
		return LongOf(0)
	case descriptor.TypeFloat:
		return FloatOf(0)
	case descriptor.TypeDouble:
		return DoubleOf(0)
	case descriptor.TypeString:
		return StringOf("")
	}
	return Null
}
