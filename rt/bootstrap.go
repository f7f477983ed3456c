package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Bootstrap types
// ---------------------------------------------------------------------------

// RootTypeName is the universal root type. It is the only type allowed to
// have no supertype, and every supertype chain terminates at it.
const RootTypeName = "core.Any"

// Box type names, one per primitive kind. Boxing a primitive produces an
// instance of the matching box type; unboxing reads it back.
const (
	BoxBoolName   = "core.Bool"
	BoxIntName    = "core.Int"
	BoxLongName   = "core.Long"
	BoxFloatName  = "core.Float"
	BoxDoubleName = "core.Double"
	BoxStringName = "core.String"
)

// boxFieldName is the single private field each box type carries.
const boxFieldName = "value"

// boxTypeName maps a primitive kind to its box type name, or "".
func boxTypeName(k Kind) string {
	switch k {
	case KindBool:
		return BoxBoolName
	case KindInt:
		return BoxIntName
	case KindLong:
		return BoxLongName
	case KindFloat:
		return BoxFloatName
	case KindDouble:
		return BoxDoubleName
	case KindString:
		return BoxStringName
	}
	return ""
}

// primitiveForBox maps a box type name to the primitive it boxes, or "".
func primitiveForBox(name string) string {
	switch name {
	case BoxBoolName:
		return descriptor.TypeBool
	case BoxIntName:
		return descriptor.TypeInt
	case BoxLongName:
		return descriptor.TypeLong
	case BoxFloatName:
		return descriptor.TypeFloat
	case BoxDoubleName:
		return descriptor.TypeDouble
	case BoxStringName:
		return descriptor.TypeString
	}
	return ""
}

// bootstrap defines the root type and the box types in the root loader.
// They go through the ordinary pipeline like everything else.
func (g *Graph) bootstrap() error {
	root, err := descriptor.NewBuilder(RootTypeName).Build()
	if err != nil {
		return err
	}
	if _, err := g.root.Define(root); err != nil {
		return err
	}

	boxes := map[string]string{
		BoxBoolName:   descriptor.TypeBool,
		BoxIntName:    descriptor.TypeInt,
		BoxLongName:   descriptor.TypeLong,
		BoxFloatName:  descriptor.TypeFloat,
		BoxDoubleName: descriptor.TypeDouble,
		BoxStringName: descriptor.TypeString,
	}
	for name, prim := range boxes {
		d, err := descriptor.NewBuilder(name).
			Super(RootTypeName).
			Field(descriptor.FieldDescriptor{
				Name:       boxFieldName,
				Type:       prim,
				Visibility: descriptor.Private,
				Modifiers:  descriptor.ModFinal,
			}).
			Build()
		if err != nil {
			return err
		}
		if _, err := g.root.Define(d); err != nil {
			return err
		}
	}
	return nil
}

// box wraps a primitive value in an instance of its box type.
func (g *Graph) box(v Value) (Value, error) {
	name := boxTypeName(v.Kind())
	if name == "" {
		return Void, fmt.Errorf("rt: cannot box %s", v.Kind())
	}
	t, err := g.root.Resolve(name)
	if err != nil {
		return Void, err
	}
	inst, err := NewInstance(t)
	if err != nil {
		return Void, err
	}
	inst.setFieldRaw(t.fieldSlots[boxFieldName], v)
	return RefOf(inst), nil
}

// unbox extracts the primitive from a box instance. The bool result is false
// when the value is not a box of the wanted primitive type.
func (g *Graph) unbox(v Value, want string) (Value, bool) {
	if v.Kind() != KindRef {
		return Void, false
	}
	if primitiveForBox(v.ref.Type().Name()) != want {
		return Void, false
	}
	inner, err := v.ref.Field(boxFieldName)
	if err != nil {
		return Void, false
	}
	return inner, true
}
