// Kiln CLI - loads a descriptor graph from a kiln.toml manifest and runs or
// inspects types in it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/rt"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	dir := flag.String("C", ".", "Project directory (searched upward for kiln.toml)")
	loaderLabel := flag.String("l", "", "Loader to resolve through (default: last declared, or boot)")
	entry := flag.String("t", "", "Entry point to invoke (e.g. 'app.Main.run')")
	describe := flag.String("describe", "", "Describe a type instead of running anything")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kiln [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the loader graph described by kiln.toml and drives types through it.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kiln -t app.Main.run             # Initialize app.Main, invoke static run()\n")
		fmt.Fprintf(os.Stderr, "  kiln -l plugins -t ext.Tool.go   # Resolve through the 'plugins' loader\n")
		fmt.Fprintf(os.Stderr, "  kiln -describe app.Main          # Print lifecycle state and members\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "Error: no %s found from %s upward\n", manifest.FileName, *dir)
		os.Exit(1)
	}

	g, closeStores, err := m.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	l := pickLoader(g, m, *loaderLabel)
	if l == nil {
		fmt.Fprintf(os.Stderr, "Error: no loader named %q\n", *loaderLabel)
		os.Exit(1)
	}

	if *describe != "" {
		if err := describeType(l, *describe); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *entry == "" {
		flag.Usage()
		os.Exit(2)
	}
	code, err := runEntry(g, l, *entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// pickLoader chooses the resolution loader: the named one, or the last
// declared in the manifest, or the root.
func pickLoader(g *rt.Graph, m *manifest.Manifest, label string) *rt.Loader {
	if label != "" {
		return g.Loader(label)
	}
	if n := len(m.Loaders); n > 0 {
		return g.Loader(m.Loaders[n-1].Name)
	}
	return g.Root()
}

// runEntry resolves "pkg.Type.method", initializes the type, and invokes the
// static no-arg method. An int result becomes the exit code.
func runEntry(g *rt.Graph, l *rt.Loader, entry string) (int, error) {
	i := strings.LastIndex(entry, ".")
	if i <= 0 || i == len(entry)-1 {
		return 0, fmt.Errorf("entry %q is not of the form Type.method", entry)
	}
	typeName, methodName := entry[:i], entry[i+1:]

	t, err := l.Resolve(typeName)
	if err != nil {
		return 0, err
	}
	m, err := t.Method(methodName)
	if err != nil {
		return 0, err
	}
	if !m.Modifiers().IsStatic() {
		return 0, fmt.Errorf("%s.%s is not static", typeName, methodName)
	}

	out, err := g.NewInvoker(nil).Invoke(m, rt.Null)
	if err != nil {
		return 0, err
	}
	if out.Kind() == rt.KindInt {
		return int(out.Int()), nil
	}
	return 0, nil
}

// describeType prints the lifecycle state, hierarchy, and members of a type.
func describeType(l *rt.Loader, name string) error {
	t, err := l.Resolve(name)
	if err != nil {
		return err
	}

	kind := "type"
	if t.IsInterface() {
		kind = "interface"
	}
	fmt.Printf("%s %s (loader %s, version %s) state=%s\n", kind, t.Name(), t.Loader().Label(), t.Version(), t.State())
	if super := t.Super(); super != nil {
		fmt.Printf("  extends %s\n", super.Name())
	}
	for _, in := range t.Interfaces() {
		fmt.Printf("  implements %s\n", in.Name())
	}

	fmt.Println("  fields:")
	for f := range t.Fields(rt.AllDeclared) {
		fmt.Printf("    %-9s %s %s: %s\n", f.Visibility(), mods(f), f.Name(), f.FieldType())
	}
	fmt.Println("  methods:")
	for m := range t.Methods(rt.AllDeclared) {
		fmt.Printf("    %-9s %s %s%s\n", m.Visibility(), mods(m), m.Name(), m.Signature())
	}
	return nil
}

func mods(m *rt.Member) string {
	var parts []string
	mm := m.Modifiers()
	if mm.IsStatic() {
		parts = append(parts, "static")
	}
	if mm.IsFinal() {
		parts = append(parts, "final")
	}
	if mm.IsAbstract() {
		parts = append(parts, "abstract")
	}
	if mm.IsNative() {
		parts = append(parts, "native")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
