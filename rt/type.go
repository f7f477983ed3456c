// Package rt implements the runtime half of the kiln pipeline: the loader
// graph, the Type lifecycle state machine, verification, linking, static
// initialization, the member metadata index, reflective invocation, typed
// method handles, and dynamic proxies.
//
// The pipeline turns descriptor bytes into live Types:
//
//	bytes -> TypeDescriptor -> LOADED -> VERIFIED -> PREPARED -> RESOLVED
//	      -> INITIALIZING -> INITIALIZED
//
// with a terminal FAILED reachable from every non-terminal state. Consumers
// reach members of an initialized Type through the Invoker (checked per
// call) or through Lookup handles (checked once at mint time).
package rt

import (
	"fmt"
	"sync"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Lifecycle states
// ---------------------------------------------------------------------------

// State is a Type's lifecycle position. States are strictly ordered and a
// Type's state is monotonically non-decreasing; StateFailed is terminal.
type State uint8

const (
	StateLoading State = iota
	StateLoaded
	StateVerified
	StatePrepared
	StateResolved
	StateInitializing
	StateInitialized
	StateFailed
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateLoaded:
		return "LOADED"
	case StateVerified:
		return "VERIFIED"
	case StatePrepared:
		return "PREPARED"
	case StateResolved:
		return "RESOLVED"
	case StateInitializing:
		return "INITIALIZING"
	case StateInitialized:
		return "INITIALIZED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ---------------------------------------------------------------------------
// Type
// ---------------------------------------------------------------------------

// Type is the runtime object representing one type. Its identity is the pair
// (defining loader, fully qualified name): two Types with equal names but
// different defining loaders are distinct and not mutually assignable.
//
// A Type's metadata is mutable while it moves through the lifecycle and
// effectively immutable once INITIALIZED.
type Type struct {
	name   string
	loader *Loader
	desc   *descriptor.TypeDescriptor

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	busy  bool // a goroutine holds the transition claim
	fault error

	// Populated during resolution.
	super  *Type
	ifaces []*Type

	// Static storage, allocated during preparation.
	staticMu    sync.RWMutex
	statics     []Value
	staticSlots map[string]int

	// Instance layout, computed at the end of resolution.
	fieldSlots map[string]int
	numSlots   int

	// Member metadata index, built lazily on first query.
	indexOnce sync.Once
	index     *memberIndex

	// Native method bindings (Go functions standing in for code bodies).
	nativeMu sync.RWMutex
	natives  map[string]NativeFunc

	// Session that owns the in-progress static initialization, while
	// state is StateInitializing.
	initSession *InitSession
}

func newType(loader *Loader, desc *descriptor.TypeDescriptor) *Type {
	t := &Type{
		name:    desc.Name,
		loader:  loader,
		desc:    desc,
		state:   StateLoading,
		natives: make(map[string]NativeFunc),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// newFailedType records a permanently poisoned (loader, name) entry so that
// later resolution attempts re-surface the original fault.
func newFailedType(loader *Loader, name string, fault error) *Type {
	t := &Type{name: name, loader: loader, state: StateFailed, fault: fault}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Name returns the fully qualified type name.
func (t *Type) Name() string { return t.name }

// Loader returns the defining loader.
func (t *Type) Loader() *Loader { return t.loader }

// Descriptor returns the originating descriptor. Nil for poisoned entries.
func (t *Type) Descriptor() *descriptor.TypeDescriptor { return t.desc }

// Version returns the descriptor's version tag.
func (t *Type) Version() string {
	if t.desc == nil {
		return ""
	}
	return t.desc.Version
}

// State returns the current lifecycle state.
func (t *Type) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fault returns the recorded lifecycle fault, or nil.
func (t *Type) Fault() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fault
}

// IsInterface reports whether the type is an interface.
func (t *Type) IsInterface() bool { return t.desc != nil && t.desc.IsInterface }

// Super returns the resolved supertype; nil only for the root type (or
// before resolution).
func (t *Type) Super() *Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.super
}

// Interfaces returns the resolved interface types.
func (t *Type) Interfaces() []*Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Type, len(t.ifaces))
	copy(out, t.ifaces)
	return out
}

// String renders the type with its loader for diagnostics.
func (t *Type) String() string {
	return fmt.Sprintf("%s[%s]", t.name, t.loader.Label())
}

// ---------------------------------------------------------------------------
// Transition machinery
// ---------------------------------------------------------------------------

// advance moves the type from exactly `from` to `to` by running step under
// the transition claim. Exactly one goroutine performs a given transition;
// racing goroutines block until it completes, then observe the resulting
// state or the propagated fault. A step error marks the type FAILED and the
// fault is permanent.
func (t *Type) advance(from, to State, step func() error) error {
	t.mu.Lock()
	for {
		switch {
		case t.state == StateFailed:
			err := t.fault
			t.mu.Unlock()
			return err
		case t.state >= to:
			t.mu.Unlock()
			return nil
		case t.state == from && !t.busy:
			t.busy = true
			t.mu.Unlock()

			err := step()

			t.mu.Lock()
			t.busy = false
			if err != nil {
				t.state = StateFailed
				t.fault = err
				rtLog.Errorf("%s: %s transition failed: %v", t, to, err)
			} else {
				t.state = to
				rtLog.Debugf("%s: reached %s", t, to)
			}
			t.cond.Broadcast()
			t.mu.Unlock()
			return err
		default:
			// Another goroutine holds the claim, or an earlier stage has
			// not completed yet. Drivers always run stages in order, so
			// someone will wake us.
			t.cond.Wait()
		}
	}
}

// snapshot returns the state and whether a transition is in flight.
func (t *Type) snapshot() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.busy
}

// markLoaded publishes the LOADING -> LOADED transition performed at
// definition time, before the type becomes visible in the loader cache.
func (t *Type) markLoaded() {
	t.mu.Lock()
	t.state = StateLoaded
	t.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

// IsSubtypeOf reports whether t is other or a transitive subtype of other
// via its supertype chain.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Super() {
		if cur == other {
			return true
		}
	}
	return false
}

// IsAssignableTo reports whether a value of type t may be assigned where
// other is expected: identity, supertype chain, or transitive interface
// implementation. Types from different defining loaders never match even
// with equal names.
func (t *Type) IsAssignableTo(other *Type) bool {
	if t.IsSubtypeOf(other) {
		return true
	}
	if !other.IsInterface() {
		return false
	}
	seen := make(map[*Type]bool)
	return t.implementsLocked(other, seen)
}

func (t *Type) implementsLocked(target *Type, seen map[*Type]bool) bool {
	for cur := t; cur != nil; cur = cur.Super() {
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, in := range cur.Interfaces() {
			if in == target || in.implementsLocked(target, seen) {
				return true
			}
		}
	}
	return false
}

// Supertypes returns the supertype chain from immediate parent to root.
func (t *Type) Supertypes() []*Type {
	var out []*Type
	for cur := t.Super(); cur != nil; cur = cur.Super() {
		out = append(out, cur)
	}
	return out
}

// ---------------------------------------------------------------------------
// Static storage
// ---------------------------------------------------------------------------

// StaticValue returns the current value of a static field declared on t or
// one of its supertypes. The type must be at least PREPARED.
func (t *Type) StaticValue(name string) (Value, error) {
	owner, slot := t.findStaticSlot(name)
	if owner == nil {
		return Void, &NoSuchMemberError{TypeName: t.name, Member: name}
	}
	owner.staticMu.RLock()
	defer owner.staticMu.RUnlock()
	return owner.statics[slot], nil
}

// SetStaticValue stores a value into a static field, reconciling it with the
// field's declared type.
func (t *Type) SetStaticValue(name string, v Value) error {
	owner, slot := t.findStaticSlot(name)
	if owner == nil {
		return &NoSuchMemberError{TypeName: t.name, Member: name}
	}
	fd := owner.desc.Field(name)
	coerced, err := t.loader.graph.coerce(v, fd.Type, owner.loader)
	if err != nil {
		return &ArgumentError{TypeName: owner.name, Member: name, Index: -1, Got: v.TypeName(), Want: fd.Type}
	}
	owner.staticMu.Lock()
	owner.statics[slot] = coerced
	owner.staticMu.Unlock()
	return nil
}

// findStaticSlot locates the declaring type and slot index for a static
// field, walking the supertype chain.
func (t *Type) findStaticSlot(name string) (*Type, int) {
	for cur := t; cur != nil; cur = cur.Super() {
		cur.staticMu.RLock()
		slot, ok := cur.staticSlots[name]
		cur.staticMu.RUnlock()
		if ok {
			return cur, slot
		}
	}
	return nil, -1
}

// ---------------------------------------------------------------------------
// Native bindings
// ---------------------------------------------------------------------------

// BindNative attaches a Go function as the body of a native method declared
// in the descriptor. The binding key is name plus signature so overloads
// bind independently.
func (t *Type) BindNative(name string, sig descriptor.Signature, fn NativeFunc) error {
	md := t.desc.Method(name, sig.Params)
	if md == nil || !md.Signature.Equals(sig) {
		return &NoSuchMemberError{TypeName: t.name, Member: name + sig.String()}
	}
	if !md.Modifiers.IsNative() {
		return fmt.Errorf("rt: %s.%s%s is not declared native", t.name, name, sig)
	}
	t.nativeMu.Lock()
	t.natives[name+sig.String()] = fn
	t.nativeMu.Unlock()
	return nil
}

func (t *Type) nativeFor(name string, sig descriptor.Signature) NativeFunc {
	t.nativeMu.RLock()
	defer t.nativeMu.RUnlock()
	return t.natives[name+sig.String()]
}
