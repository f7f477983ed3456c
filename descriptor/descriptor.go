// Package descriptor defines the immutable parsed representation of a type:
// its name, supertype, interfaces, fields, methods, constant pool, and
// attributes. Descriptors are produced by decoding raw bytes (wire.go) or by
// programmatic construction (builder.go) and are consumed by the runtime
// pipeline in package rt. A descriptor carries no lifecycle state of its own.
package descriptor

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Visibility and modifiers
// ---------------------------------------------------------------------------

// Visibility is the declared access level of a type member.
type Visibility uint8

const (
	Public Visibility = iota
	Package
	Protected
	Private
)

// String returns the lowercase name of the visibility level.
func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Package:
		return "package"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return fmt.Sprintf("visibility(%d)", uint8(v))
}

// Modifiers is a bitset of non-visibility member modifiers.
type Modifiers uint16

const (
	ModStatic Modifiers = 1 << iota
	ModFinal
	ModAbstract
	ModNative
)

// IsStatic reports whether ModStatic is set.
func (m Modifiers) IsStatic() bool { return m&ModStatic != 0 }

// IsFinal reports whether ModFinal is set.
func (m Modifiers) IsFinal() bool { return m&ModFinal != 0 }

// IsAbstract reports whether ModAbstract is set.
func (m Modifiers) IsAbstract() bool { return m&ModAbstract != 0 }

// IsNative reports whether ModNative is set.
func (m Modifiers) IsNative() bool { return m&ModNative != 0 }

// ---------------------------------------------------------------------------
// Type names and signatures
// ---------------------------------------------------------------------------

// Primitive type names. Anything else is a reference type name.
const (
	TypeVoid   = "void"
	TypeBool   = "bool"
	TypeInt    = "int"
	TypeLong   = "long"
	TypeFloat  = "float"
	TypeDouble = "double"
	TypeString = "string"
)

// IsPrimitive reports whether name denotes a primitive (non-reference) type.
func IsPrimitive(name string) bool {
	switch name {
	case TypeVoid, TypeBool, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeString:
		return true
	}
	return false
}

// PackageOf returns the package portion of a dotted type name
// ("demo.util.Box" -> "demo.util"). Names without a dot have an empty package.
func PackageOf(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[:i]
}

// Signature identifies a call shape: ordered parameter types plus a return
// type, independent of member name. Two methods with equal signatures are
// shape-interchangeable.
type Signature struct {
	Params []string `cbor:"1,keyasint"`
	Return string   `cbor:"2,keyasint"`
}

// Sig builds a Signature from parameter type names and a return type name.
func Sig(ret string, params ...string) Signature {
	return Signature{Params: params, Return: ret}
}

// Equals reports whether two signatures have identical parameter and return
// types.
func (s Signature) Equals(other Signature) bool {
	if s.Return != other.Return || len(s.Params) != len(other.Params) {
		return false
	}
	for i, p := range s.Params {
		if p != other.Params[i] {
			return false
		}
	}
	return true
}

// ParamsEqual reports whether the parameter lists match, ignoring return type.
func (s Signature) ParamsEqual(params []string) bool {
	if len(s.Params) != len(params) {
		return false
	}
	for i, p := range s.Params {
		if p != params[i] {
			return false
		}
	}
	return true
}

// String renders the signature as "(a,b)ret".
func (s Signature) String() string {
	return "(" + strings.Join(s.Params, ",") + ")" + s.Return
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

// Attribute is an opaque named byte blob attached to a type, field, or
// method (annotations, debug info, etc.). The runtime exposes attributes as
// queryable metadata but never interprets their contents.
type Attribute struct {
	Name string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// ---------------------------------------------------------------------------
// Field and method descriptors
// ---------------------------------------------------------------------------

// FieldDescriptor describes one declared field.
type FieldDescriptor struct {
	Name       string      `cbor:"1,keyasint"`
	Type       string      `cbor:"2,keyasint"`
	Visibility Visibility  `cbor:"3,keyasint"`
	Modifiers  Modifiers   `cbor:"4,keyasint"`
	Attributes []Attribute `cbor:"5,keyasint,omitempty"`
}

// MethodDescriptor describes one declared method or constructor. A method
// with a nil Code and without ModNative or ModAbstract cannot be invoked.
type MethodDescriptor struct {
	Name       string      `cbor:"1,keyasint"`
	Signature  Signature   `cbor:"2,keyasint"`
	Visibility Visibility  `cbor:"3,keyasint"`
	Modifiers  Modifiers   `cbor:"4,keyasint"`
	Thrown     []string    `cbor:"5,keyasint,omitempty"`
	Attributes []Attribute `cbor:"6,keyasint,omitempty"`
	Code       *CodeBody   `cbor:"7,keyasint,omitempty"`
}

// ConstructorName is the reserved method name for constructors.
const ConstructorName = "<ctor>"

// StaticInitName is the reserved method name for the static initializer.
const StaticInitName = "<typeinit>"

// IsConstructor reports whether this method descriptor is a constructor.
func (m *MethodDescriptor) IsConstructor() bool { return m.Name == ConstructorName }

// IsStaticInit reports whether this method descriptor is the static
// initializer.
func (m *MethodDescriptor) IsStaticInit() bool { return m.Name == StaticInitName }

// ---------------------------------------------------------------------------
// TypeDescriptor
// ---------------------------------------------------------------------------

// TypeDescriptor is the immutable parsed structure of one type. It is the
// unit of exchange between byte sources and the runtime: everything the
// loader, verifier, and linker know about a type before it is live comes
// from here.
type TypeDescriptor struct {
	Name        string             `cbor:"1,keyasint"`
	Version     string             `cbor:"2,keyasint"`
	SuperName   string             `cbor:"3,keyasint,omitempty"` // empty only for the root type
	Interfaces  []string           `cbor:"4,keyasint,omitempty"`
	IsInterface bool               `cbor:"5,keyasint,omitempty"`
	Fields      []FieldDescriptor  `cbor:"6,keyasint,omitempty"`
	Methods     []MethodDescriptor `cbor:"7,keyasint,omitempty"`
	Constants   []Constant         `cbor:"8,keyasint,omitempty"`
	Attributes  []Attribute        `cbor:"9,keyasint,omitempty"`
}

// Method returns the first method descriptor with the given name and
// parameter types, or nil.
func (d *TypeDescriptor) Method(name string, params []string) *MethodDescriptor {
	for i := range d.Methods {
		m := &d.Methods[i]
		if m.Name == name && m.Signature.ParamsEqual(params) {
			return m
		}
	}
	return nil
}

// Field returns the field descriptor with the given name, or nil.
func (d *TypeDescriptor) Field(name string) *FieldDescriptor {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// StaticInit returns the static initializer method descriptor, or nil.
func (d *TypeDescriptor) StaticInit() *MethodDescriptor {
	for i := range d.Methods {
		if d.Methods[i].IsStaticInit() {
			return &d.Methods[i]
		}
	}
	return nil
}

// Validate checks the descriptor's internal self-consistency: names present,
// no duplicate members, and every symbolic index (constant pool references,
// local slots) well formed. It does not perform verification; stack safety,
// branch targets, and visibility are the verifier's concern.
func (d *TypeDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor: missing type name")
	}
	seenFields := make(map[string]bool, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("descriptor %s: field %d has no name", d.Name, i)
		}
		if f.Type == "" {
			return fmt.Errorf("descriptor %s: field %s has no type", d.Name, f.Name)
		}
		if f.Type == TypeVoid {
			return fmt.Errorf("descriptor %s: field %s cannot have type void", d.Name, f.Name)
		}
		if seenFields[f.Name] {
			return fmt.Errorf("descriptor %s: duplicate field %s", d.Name, f.Name)
		}
		seenFields[f.Name] = true
	}
	seenMethods := make(map[string]bool, len(d.Methods))
	for i := range d.Methods {
		m := &d.Methods[i]
		if m.Name == "" {
			return fmt.Errorf("descriptor %s: method %d has no name", d.Name, i)
		}
		if m.Signature.Return == "" {
			return fmt.Errorf("descriptor %s: method %s has no return type", d.Name, m.Name)
		}
		for j, p := range m.Signature.Params {
			if p == "" || p == TypeVoid {
				return fmt.Errorf("descriptor %s: method %s parameter %d has invalid type", d.Name, m.Name, j)
			}
		}
		key := m.Name + m.Signature.String()
		if seenMethods[key] {
			return fmt.Errorf("descriptor %s: duplicate method %s%s", d.Name, m.Name, m.Signature)
		}
		seenMethods[key] = true
		if m.Modifiers.IsAbstract() && m.Code != nil {
			return fmt.Errorf("descriptor %s: abstract method %s has a code body", d.Name, m.Name)
		}
		if m.Code != nil {
			if err := d.validateCode(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateCode checks constant-pool and local-slot index well-formedness for
// a method body.
func (d *TypeDescriptor) validateCode(m *MethodDescriptor) error {
	code := m.Code
	if code.MaxLocals < 0 || code.MaxStack < 0 {
		return fmt.Errorf("descriptor %s: method %s has negative code bounds", d.Name, m.Name)
	}
	if len(code.LocalTypes) != code.MaxLocals {
		return fmt.Errorf("descriptor %s: method %s declares %d locals but %d local types",
			d.Name, m.Name, code.MaxLocals, len(code.LocalTypes))
	}
	for i, in := range code.Instructions {
		switch in.Op {
		case OpConst:
			if err := d.checkConstant(in.A, 0); err != nil {
				return fmt.Errorf("descriptor %s: method %s instruction %d: %w", d.Name, m.Name, i, err)
			}
		case OpLoad, OpStore:
			if in.A < 0 || in.A >= code.MaxLocals {
				return fmt.Errorf("descriptor %s: method %s instruction %d: local slot %d out of range",
					d.Name, m.Name, i, in.A)
			}
		case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
			if err := d.checkConstant(in.A, KFieldRef); err != nil {
				return fmt.Errorf("descriptor %s: method %s instruction %d: %w", d.Name, m.Name, i, err)
			}
		case OpCall, OpCallVirtual:
			if err := d.checkConstant(in.A, KMethodRef); err != nil {
				return fmt.Errorf("descriptor %s: method %s instruction %d: %w", d.Name, m.Name, i, err)
			}
		case OpNew:
			if err := d.checkConstant(in.A, KType); err != nil {
				return fmt.Errorf("descriptor %s: method %s instruction %d: %w", d.Name, m.Name, i, err)
			}
		case OpReturn, OpPop, OpDup, OpBranch, OpBranchIf:
			// Branch targets are a verifier concern, not a structural one.
		default:
			return fmt.Errorf("descriptor %s: method %s instruction %d: unknown opcode %d",
				d.Name, m.Name, i, in.Op)
		}
	}
	return nil
}

// checkConstant verifies that a constant-pool index is in range and, when
// want is nonzero, of the wanted kind.
func (d *TypeDescriptor) checkConstant(index int, want ConstKind) error {
	if index < 0 || index >= len(d.Constants) {
		return fmt.Errorf("constant index %d out of range (pool size %d)", index, len(d.Constants))
	}
	if want != 0 && d.Constants[index].Kind != want {
		return fmt.Errorf("constant %d is %s, want %s", index, d.Constants[index].Kind, want)
	}
	return nil
}
