package rt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Loader is one node in the delegating loader hierarchy. Its identity is
// process-unique; the parent chain is a simple path to the root. A loader
// exclusively owns the Types it has defined and caches them by name.
type Loader struct {
	id      uuid.UUID
	label   string
	parent  *Loader
	graph   *Graph
	sources []ByteSource

	mu    sync.RWMutex
	types map[string]*Type

	// Serializes definition attempts per name so concurrent resolution
	// requests for the same (loader, name) observe one outcome.
	flight singleflight.Group

	// Descriptors peeked for verification before their types are defined.
	descMu sync.Mutex
	descs  map[string]*descriptor.TypeDescriptor
}

func newLoader(graph *Graph, label string, parent *Loader, sources []ByteSource) *Loader {
	return &Loader{
		id:      uuid.New(),
		label:   label,
		parent:  parent,
		graph:   graph,
		sources: sources,
		types:   make(map[string]*Type),
		descs:   make(map[string]*descriptor.TypeDescriptor),
	}
}

// ID returns the loader's process-unique identity.
func (l *Loader) ID() uuid.UUID { return l.id }

// Label returns the loader's human-readable label.
func (l *Loader) Label() string { return l.label }

// Parent returns the parent loader; nil only for the root.
func (l *Loader) Parent() *Loader { return l.parent }

// Graph returns the owning loader graph.
func (l *Loader) Graph() *Graph { return l.graph }

// AddSource appends a byte source consulted after the existing ones.
func (l *Loader) AddSource(s ByteSource) {
	l.mu.Lock()
	l.sources = append(l.sources, s)
	l.mu.Unlock()
}

// Types returns the names of all types this loader has defined.
func (l *Loader) Types() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.types))
	for name := range l.types {
		out = append(out, name)
	}
	return out
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve returns the Type for name, fully linked (RESOLVED). Delegation is
// parent-first: the loader defines the type itself only after every ancestor
// has reported not-found, so an ancestor's type always wins over a
// descendant's shadow copy.
func (l *Loader) Resolve(name string) (*Type, error) {
	t, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := l.graph.link(t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolve finds or defines the skeleton Type for name without driving it
// past LOADED.
func (l *Loader) resolve(name string) (*Type, error) {
	if t, ok := l.cached(name); ok {
		return typeOrFault(t)
	}

	if l.parent != nil {
		t, err := l.parent.resolve(name)
		if err == nil {
			return t, nil
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			// An ancestor failed for a reason other than not-found
			// (malformed bytes, poison). Propagate, do not shadow.
			return nil, err
		}
	}

	v, err, _ := l.flight.Do(name, func() (interface{}, error) {
		if t, ok := l.cached(name); ok {
			return t, nil
		}
		return l.define(name)
	})
	if err != nil {
		return nil, err
	}
	return typeOrFault(v.(*Type))
}

// typeOrFault re-surfaces the original lifecycle fault for poisoned entries.
func typeOrFault(t *Type) (*Type, error) {
	if t.State() == StateFailed {
		return nil, t.Fault()
	}
	return t, nil
}

// define locates bytes for name, decodes the descriptor, and publishes a
// LOADED skeleton. Malformed descriptors poison the cache entry so repeat
// attempts re-surface the same fault; not-found is not cached.
func (l *Loader) define(name string) (*Type, error) {
	raw, err := l.findBytes(name)
	if err != nil {
		if errors.Is(err, ErrNoBytes) {
			return nil, &NotFoundError{Name: name, Loader: l.label}
		}
		return nil, err
	}

	desc, err := descriptor.Decode(raw)
	if err == nil {
		err = l.checkDescriptor(name, desc)
	}
	if err != nil {
		ft := newFailedType(l, name, &MalformedError{TypeName: name, Loader: l.label, Cause: err})
		if prev := l.insert(name, ft); prev != ft {
			return prev, nil
		}
		loaderLog.Errorf("loader %s: defining %s: %v", l.label, name, err)
		return ft, nil
	}

	t := newType(l, desc)
	t.markLoaded()
	if prev := l.insert(name, t); prev != t {
		return prev, nil
	}
	loaderLog.Infof("loader %s: defined %s (version %s)", l.label, name, desc.Version)
	return t, nil
}

// checkDescriptor enforces the structural constraints the loader adds on top
// of descriptor validation.
func (l *Loader) checkDescriptor(name string, desc *descriptor.TypeDescriptor) error {
	if desc.Name != name {
		return fmt.Errorf("descriptor name %s does not match requested name %s", desc.Name, name)
	}
	if desc.SuperName == "" && name != RootTypeName {
		return fmt.Errorf("type %s has no supertype and is not the root type", name)
	}
	return nil
}

// Define publishes a programmatically built descriptor through the ordinary
// pipeline and returns the fully linked Type. It fails if the name is
// already defined by this loader.
func (l *Loader) Define(desc *descriptor.TypeDescriptor) (*Type, error) {
	if err := desc.Validate(); err != nil {
		return nil, &MalformedError{TypeName: desc.Name, Loader: l.label, Cause: err}
	}
	if err := l.checkDescriptor(desc.Name, desc); err != nil {
		return nil, &MalformedError{TypeName: desc.Name, Loader: l.label, Cause: err}
	}

	l.mu.Lock()
	if _, ok := l.types[desc.Name]; ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("rt: loader %s already defines %s", l.label, desc.Name)
	}
	t := newType(l, desc)
	t.markLoaded()
	l.types[desc.Name] = t
	l.mu.Unlock()
	loaderLog.Infof("loader %s: defined %s (synthetic)", l.label, desc.Name)

	if err := l.graph.link(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (l *Loader) cached(name string) (*Type, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.types[name]
	return t, ok
}

// insert publishes t under name unless another definition won the race, in
// which case the incumbent is returned and t is discarded. Re-checking under
// the write lock keeps the entry at most one Type even when a synthetic
// Define lands between a definition flight's cache check and its publish.
func (l *Loader) insert(name string, t *Type) *Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.types[name]; ok {
		return prev
	}
	l.types[name] = t
	return t
}

// findBytes consults this loader's own sources in order.
func (l *Loader) findBytes(name string) ([]byte, error) {
	l.mu.RLock()
	sources := l.sources
	l.mu.RUnlock()
	for _, s := range sources {
		raw, err := s.Bytes(name)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, ErrNoBytes) {
			return nil, err
		}
	}
	return nil, ErrNoBytes
}

// peekDescriptor returns the descriptor that resolution of name would use,
// without defining a Type. The verifier uses this to check visibility of
// symbolic references before their targets are live. Delegation order
// matches resolve.
func (l *Loader) peekDescriptor(name string) (*descriptor.TypeDescriptor, error) {
	if t, ok := l.cached(name); ok {
		if t.desc == nil {
			return nil, t.Fault()
		}
		return t.desc, nil
	}
	if l.parent != nil {
		if d, err := l.parent.peekDescriptor(name); err == nil {
			return d, nil
		}
	}

	l.descMu.Lock()
	defer l.descMu.Unlock()
	if d, ok := l.descs[name]; ok {
		return d, nil
	}
	raw, err := l.findBytes(name)
	if err != nil {
		if errors.Is(err, ErrNoBytes) {
			return nil, &NotFoundError{Name: name, Loader: l.label}
		}
		return nil, err
	}
	d, err := descriptor.Decode(raw)
	if err != nil {
		return nil, err
	}
	l.descs[name] = d
	return d, nil
}

// ---------------------------------------------------------------------------
// Graph
// ---------------------------------------------------------------------------

// Graph owns the loader hierarchy. It is created with a primordial root
// loader that defines the bootstrap types (core.Any and the box types);
// every other loader delegates to an ancestor chain ending at the root.
type Graph struct {
	engine   Engine
	root     *Loader
	mu       sync.RWMutex
	loaders  map[string]*Loader
	proxySeq atomic.Int64
}

// Option configures a Graph.
type Option func(*Graph)

// WithEngine installs the execution engine used for code-bodied members.
func WithEngine(e Engine) Option {
	return func(g *Graph) { g.engine = e }
}

// RootLoaderLabel is the label of the primordial loader.
const RootLoaderLabel = "boot"

// NewGraph creates a loader graph with its root loader and bootstrap types.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{loaders: make(map[string]*Loader)}
	for _, opt := range opts {
		opt(g)
	}
	g.root = newLoader(g, RootLoaderLabel, nil, nil)
	g.loaders[RootLoaderLabel] = g.root
	if err := g.bootstrap(); err != nil {
		// Bootstrap descriptors are built in-process; failure here is a
		// programming error, not an input error.
		panic(fmt.Sprintf("rt: bootstrap failed: %v", err))
	}
	return g
}

// Root returns the primordial loader.
func (g *Graph) Root() *Loader { return g.root }

// Loader returns a loader by label, or nil.
func (g *Graph) Loader(label string) *Loader {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaders[label]
}

// NewLoader adds a loader below parent. Labels are unique per graph; parent
// must belong to this graph and be non-nil (only the root has no parent).
func (g *Graph) NewLoader(label string, parent *Loader, sources ...ByteSource) (*Loader, error) {
	if parent == nil {
		return nil, fmt.Errorf("rt: loader %s needs a parent; only %s has none", label, RootLoaderLabel)
	}
	if parent.graph != g {
		return nil, fmt.Errorf("rt: parent loader %s belongs to a different graph", parent.label)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.loaders[label]; ok {
		return nil, fmt.Errorf("rt: loader label %s already in use", label)
	}
	l := newLoader(g, label, parent, sources)
	g.loaders[label] = l
	loaderLog.Infof("loader %s created (parent %s, id %s)", label, parent.label, l.id)
	return l, nil
}
