package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Argument-shape reconciliation
// ---------------------------------------------------------------------------

// coerce converts a value to the declared type named by want, applying the
// reconciliation rules shared by the reflective invoker, coercing handle
// invocation, and proxy return values: identity, numeric widening, boxing
// and unboxing of primitive-like values, null pass-through, and reference
// widening. The loader resolves reference type names. A nil error means the
// returned value inhabits want.
func (g *Graph) coerce(v Value, want string, l *Loader) (Value, error) {
	if want == descriptor.TypeVoid {
		if v.IsVoid() {
			return Void, nil
		}
		return Void, fmt.Errorf("value of type %s where void expected", v.TypeName())
	}

	if descriptor.IsPrimitive(want) {
		return g.coercePrimitive(v, want)
	}

	// Reference target.
	switch v.Kind() {
	case KindNull:
		return Null, nil
	case KindRef:
		target, err := l.Resolve(want)
		if err != nil {
			return Void, err
		}
		if !v.ref.Type().IsAssignableTo(target) {
			return Void, fmt.Errorf("%s is not assignable to %s", v.ref.Type().Name(), want)
		}
		return v, nil
	case KindVoid:
		return Void, fmt.Errorf("void where %s expected", want)
	default:
		// Primitive into a reference slot: box when the target is the
		// matching box type or the root type.
		if want == RootTypeName || want == boxTypeName(v.Kind()) {
			return g.box(v)
		}
		return Void, fmt.Errorf("cannot box %s as %s", v.TypeName(), want)
	}
}

// coercePrimitive converts into a primitive target: identity, widening, or
// unboxing (followed by identity or widening).
func (g *Graph) coercePrimitive(v Value, want string) (Value, error) {
	if v.Kind() == KindRef {
		if prim := primitiveForBox(v.ref.Type().Name()); prim != "" {
			if inner, ok := g.unbox(v, prim); ok {
				v = inner
			}
		}
	}
	got := v.TypeName()
	if got == want {
		return v, nil
	}
	if !numericWidens(got, want) {
		return Void, fmt.Errorf("cannot convert %s to %s", got, want)
	}
	switch want {
	case descriptor.TypeLong:
		return LongOf(int64(v.Int())), nil
	case descriptor.TypeFloat:
		switch v.Kind() {
		case KindInt:
			return FloatOf(float32(v.Int())), nil
		case KindLong:
			return FloatOf(float32(v.Long())), nil
		}
	case descriptor.TypeDouble:
		switch v.Kind() {
		case KindInt:
			return DoubleOf(float64(v.Int())), nil
		case KindLong:
			return DoubleOf(float64(v.Long())), nil
		case KindFloat:
			return DoubleOf(float64(v.Float())), nil
		}
	}
	return Void, fmt.Errorf("cannot convert %s to %s", got, want)
}
