package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Linker: preparation and resolution
// ---------------------------------------------------------------------------

// link drives a LOADED type through VERIFIED, PREPARED, and RESOLVED. It is
// idempotent and safe to call concurrently; each transition is performed by
// exactly one goroutine.
func (g *Graph) link(t *Type) error {
	return g.linkWith(t, map[*Type]bool{})
}

// linkWith is link with an explicit traversal session. A type already in the
// session is mid-resolution further up this goroutine's stack; its skeleton
// exists, so it is treated as available-for-reference rather than re-entered.
// This is what makes reference cycles between types legal.
func (g *Graph) linkWith(t *Type, sess map[*Type]bool) error {
	if sess[t] {
		return nil
	}
	sess[t] = true

	if err := t.advance(StateLoaded, StateVerified, func() error {
		return g.verify(t)
	}); err != nil {
		return err
	}
	if err := t.advance(StateVerified, StatePrepared, func() error {
		return g.prepare(t)
	}); err != nil {
		return err
	}
	return t.advance(StatePrepared, StateResolved, func() error {
		return g.resolveRefs(t, sess)
	})
}

// prepare allocates static storage with default values. No user code runs.
func (g *Graph) prepare(t *Type) error {
	slots := make(map[string]int)
	var statics []Value
	for i := range t.desc.Fields {
		f := &t.desc.Fields[i]
		if !f.Modifiers.IsStatic() {
			continue
		}
		slots[f.Name] = len(statics)
		statics = append(statics, zeroValue(f.Type))
	}
	t.staticMu.Lock()
	t.staticSlots = slots
	t.statics = statics
	t.staticMu.Unlock()
	return nil
}

// resolveRefs resolves every symbolic type reference in the descriptor to a
// live Type, recursively driving the loader graph, then fixes the supertype
// and interface edges and computes the instance slot layout.
func (g *Graph) resolveRefs(t *Type, sess map[*Type]bool) error {
	fail := func(missing string, cause error) error {
		return &UnresolvedError{TypeName: t.name, Missing: missing, Loader: t.loader.label, Cause: cause}
	}

	// Supertype first: a supertype must link fully, and supertype cycles
	// are illegal (unlike general reference cycles).
	if t.desc.SuperName != "" {
		super, err := g.resolveSuper(t, sess)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.super = super
		t.mu.Unlock()
	}

	var ifaces []*Type
	for _, name := range t.desc.Interfaces {
		dep, err := g.resolveDep(t, name, sess)
		if err != nil {
			return err
		}
		if !dep.IsInterface() {
			return fail(name, fmt.Errorf("%s is not an interface", name))
		}
		ifaces = append(ifaces, dep)
	}
	t.mu.Lock()
	t.ifaces = ifaces
	t.mu.Unlock()

	for _, name := range collectRefs(t.desc) {
		if _, err := g.resolveDep(t, name, sess); err != nil {
			return err
		}
	}

	return g.computeLayout(t)
}

// resolveDep resolves one referenced name through t's defining loader and
// links it. A dependency that is mid-resolution — in this session or claimed
// by another goroutine — already has a skeleton and counts as available.
func (g *Graph) resolveDep(t *Type, name string, sess map[*Type]bool) (*Type, error) {
	dep, err := t.loader.resolve(name)
	if err != nil {
		return nil, &UnresolvedError{TypeName: t.name, Missing: name, Loader: t.loader.label, Cause: err}
	}
	if sess[dep] {
		return dep, nil
	}
	if state, busy := dep.snapshot(); state >= StateResolved || busy {
		return dep, nil
	}
	if err := g.linkWith(dep, sess); err != nil {
		return nil, &UnresolvedError{TypeName: t.name, Missing: name, Loader: t.loader.label, Cause: err}
	}
	return dep, nil
}

// resolveSuper resolves the supertype, which must reach RESOLVED itself. A
// supertype found in the current session means the supertype chain loops
// back through t: circular inheritance, always an error.
func (g *Graph) resolveSuper(t *Type, sess map[*Type]bool) (*Type, error) {
	name := t.desc.SuperName
	fail := func(cause error) error {
		return &UnresolvedError{TypeName: t.name, Missing: name, Loader: t.loader.label, Cause: cause}
	}

	if err := g.checkSuperCycle(t); err != nil {
		return nil, fail(err)
	}

	super, err := t.loader.resolve(name)
	if err != nil {
		return nil, fail(err)
	}
	if sess[super] {
		return nil, fail(fmt.Errorf("circular supertype chain through %s", name))
	}
	if super.IsInterface() {
		return nil, fail(fmt.Errorf("supertype %s is an interface", name))
	}

	if state, busy := super.snapshot(); state < StateResolved && busy {
		// Another goroutine is linking the supertype; the static cycle
		// check above guarantees it is not, in turn, waiting on t.
		if err := super.waitFor(StateResolved); err != nil {
			return nil, fail(err)
		}
	} else if err := g.linkWith(super, sess); err != nil {
		return nil, fail(err)
	}
	return super, nil
}

// checkSuperCycle walks the declared supertype name chain via descriptors,
// before any waiting, so that two goroutines linking the two halves of an
// inheritance cycle both detect it instead of deadlocking on each other.
func (g *Graph) checkSuperCycle(t *Type) error {
	const maxDepth = 1000
	name := t.desc.SuperName
	for depth := 0; name != "" && depth < maxDepth; depth++ {
		if name == t.name {
			return fmt.Errorf("circular supertype chain through %s", t.name)
		}
		d, err := t.loader.peekDescriptor(name)
		if err != nil {
			// The chain is not fully peekable; resolution will report
			// the authoritative fault.
			return nil
		}
		name = d.SuperName
	}
	if name != "" {
		return fmt.Errorf("supertype chain exceeds %d levels", maxDepth)
	}
	return nil
}

// waitFor blocks until the type reaches at least min, or fails.
func (t *Type) waitFor(min State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.state < min && t.state != StateFailed {
		t.cond.Wait()
	}
	if t.state == StateFailed {
		return t.fault
	}
	return nil
}

// computeLayout assigns instance field slots: inherited fields first, own
// declared instance fields after. Requires the supertype's layout, which
// resolveSuper has ensured.
func (g *Graph) computeLayout(t *Type) error {
	base := 0
	if super := t.Super(); super != nil {
		base = super.numSlots
	}
	slots := make(map[string]int)
	for i := range t.desc.Fields {
		f := &t.desc.Fields[i]
		if f.Modifiers.IsStatic() {
			continue
		}
		slots[f.Name] = base
		base++
	}
	t.fieldSlots = slots
	t.numSlots = base
	return nil
}

// collectRefs gathers every non-primitive type name the descriptor
// references beyond the supertype and interface lists: field types, method
// parameter/return/thrown types, and the symbolic references in the
// constant pool.
func collectRefs(d *descriptor.TypeDescriptor) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || name == d.Name || descriptor.IsPrimitive(name) || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	addSig := func(sig descriptor.Signature) {
		for _, p := range sig.Params {
			add(p)
		}
		add(sig.Return)
	}

	for i := range d.Fields {
		add(d.Fields[i].Type)
	}
	for i := range d.Methods {
		m := &d.Methods[i]
		addSig(m.Signature)
		for _, th := range m.Thrown {
			add(th)
		}
	}
	for i := range d.Constants {
		c := &d.Constants[i]
		switch c.Kind {
		case descriptor.KType:
			add(c.TypeName)
		case descriptor.KFieldRef, descriptor.KMethodRef:
			add(c.Ref.TypeName)
			addSig(c.Ref.Signature)
		}
	}
	return out
}
