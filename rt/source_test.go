package rt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/kiln/descriptor"
)

func TestMapSource(t *testing.T) {
	src := NewMapSource()
	if _, err := src.Bytes("demo.X"); !errors.Is(err, ErrNoBytes) {
		t.Errorf("Bytes(missing) error = %v, want ErrNoBytes", err)
	}
	src.Put("demo.X", []byte{1, 2, 3})
	raw, err := src.Bytes("demo.X")
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if len(raw) != 3 {
		t.Errorf("len(Bytes()) = %d, want 3", len(raw))
	}
}

func TestDirSourceMapsDotsToPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "demo", "util")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	raw := mustEncode(t, build(t, simpleType("demo.util.Box")))
	if err := os.WriteFile(filepath.Join(sub, "Box"+DescriptorExt), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(dir)
	got, err := src.Bytes("demo.util.Box")
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	d, err := descriptor.Decode(got)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if d.Name != "demo.util.Box" {
		t.Errorf("decoded name = %q, want demo.util.Box", d.Name)
	}

	if _, err := src.Bytes("demo.util.Missing"); !errors.Is(err, ErrNoBytes) {
		t.Errorf("Bytes(missing) error = %v, want ErrNoBytes", err)
	}
}

func TestSQLiteSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.db")
	store, err := OpenSQLiteSource(path)
	if err != nil {
		t.Fatalf("OpenSQLiteSource() error: %v", err)
	}
	defer store.Close()

	if _, err := store.Bytes("demo.Stored"); !errors.Is(err, ErrNoBytes) {
		t.Errorf("Bytes(missing) error = %v, want ErrNoBytes", err)
	}

	raw := mustEncode(t, build(t, simpleType("demo.Stored")))
	if err := store.Put("demo.Stored", raw); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := store.Bytes("demo.Stored")
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	d, err := descriptor.Decode(got)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if d.Name != "demo.Stored" {
		t.Errorf("decoded name = %q, want demo.Stored", d.Name)
	}
}

func TestLoaderResolvesFromSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.db")
	store, err := OpenSQLiteSource(path)
	if err != nil {
		t.Fatalf("OpenSQLiteSource() error: %v", err)
	}
	defer store.Close()
	if err := store.Put("demo.FromDB", mustEncode(t, build(t, simpleType("demo.FromDB")))); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	g := NewGraph()
	l, err := g.NewLoader("db", g.Root(), store)
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	typ, err := l.Resolve("demo.FromDB")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if typ.State() != StateResolved {
		t.Errorf("state = %s, want %s", typ.State(), StateResolved)
	}
}

func TestSourcesConsultedInOrder(t *testing.T) {
	a, b := NewMapSource(), NewMapSource()
	first := mustEncode(t, build(t, simpleType("demo.Pick").Version("first")))
	second := mustEncode(t, build(t, simpleType("demo.Pick").Version("second")))
	a.Put("demo.Pick", first)
	b.Put("demo.Pick", second)

	g := NewGraph()
	l, err := g.NewLoader("ordered", g.Root(), a, b)
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	typ, err := l.Resolve("demo.Pick")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if typ.Version() != "first" {
		t.Errorf("Version() = %q, want %q (earlier source wins)", typ.Version(), "first")
	}
}
