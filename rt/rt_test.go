package rt

import (
	"testing"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

// newTestGraph builds a graph with a FuncEngine and one child loader backed
// by an in-memory source.
func newTestGraph(t *testing.T) (*Graph, *Loader, *MapSource, *FuncEngine) {
	t.Helper()
	eng := NewFuncEngine()
	g := NewGraph(WithEngine(eng))
	src := NewMapSource()
	l, err := g.NewLoader("app", g.Root(), src)
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	return g, l, src, eng
}

// putDesc encodes a descriptor into a map source.
func putDesc(t *testing.T, src *MapSource, d *descriptor.TypeDescriptor) {
	t.Helper()
	raw, err := descriptor.Encode(d)
	if err != nil {
		t.Fatalf("Encode(%s) error: %v", d.Name, err)
	}
	src.Put(d.Name, raw)
}

// build runs the builder, failing the test on error.
func build(t *testing.T, b *descriptor.Builder) *descriptor.TypeDescriptor {
	t.Helper()
	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return d
}

// simpleType returns a builder for a public type extending core.Any.
func simpleType(name string) *descriptor.Builder {
	return descriptor.NewBuilder(name).Super(RootTypeName)
}
