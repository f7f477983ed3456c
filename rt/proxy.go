package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Dynamic proxies
// ---------------------------------------------------------------------------

// InvocationHandler receives every method call made on a proxy instance.
type InvocationHandler interface {
	Invoke(m *Member, recv Value, args []Value) (Value, error)
}

// HandlerFunc adapts a function to InvocationHandler.
type HandlerFunc func(m *Member, recv Value, args []Value) (Value, error)

// Invoke implements InvocationHandler.
func (f HandlerFunc) Invoke(m *Member, recv Value, args []Value) (Value, error) {
	return f(m, recv, args)
}

// ProxyPackage is the package all generated proxy types live in.
const ProxyPackage = "proxy"

// CreateProxy synthesizes a concrete type in loader l implementing every
// given interface and returns an initialized instance whose method calls all
// forward to the handler. The proxy type name is fresh per graph; its
// identity follows the ordinary rules, so proxies from different loaders are
// distinct types.
func (g *Graph) CreateProxy(l *Loader, ifaces []string, h InvocationHandler) (Value, error) {
	if l == nil || h == nil {
		return Void, fmt.Errorf("rt: proxy needs a loader and a handler")
	}
	if len(ifaces) == 0 {
		return Void, fmt.Errorf("rt: proxy needs at least one interface")
	}

	// Every name must resolve, from l, to an interface type. Resolving up
	// front also pins the identities the method union is computed over.
	resolved := make([]*Type, 0, len(ifaces))
	for _, name := range ifaces {
		t, err := l.Resolve(name)
		if err != nil {
			return Void, err
		}
		if !t.IsInterface() {
			return Void, fmt.Errorf("rt: proxy interface %s is not an interface", name)
		}
		resolved = append(resolved, t)
	}

	methods, err := proxyMethodUnion(resolved)
	if err != nil {
		return Void, err
	}

	name := fmt.Sprintf("%s.Proxy%d", ProxyPackage, g.proxySeq.Add(1))
	b := descriptor.NewBuilder(name).Super(RootTypeName).Implements(ifaces...)
	for _, md := range methods {
		b.Method(md)
	}
	desc, err := b.Build()
	if err != nil {
		return Void, err
	}

	t, err := l.Define(desc)
	if err != nil {
		return Void, err
	}
	for _, md := range methods {
		md := md
		err := t.BindNative(md.Name, md.Signature, func(call *Call) (Value, error) {
			return h.Invoke(call.Member, call.Receiver, call.Args)
		})
		if err != nil {
			return Void, err
		}
	}
	if err := g.EnsureInitialized(t); err != nil {
		return Void, err
	}

	inst, err := NewInstance(t)
	if err != nil {
		return Void, err
	}
	loaderLog.Debugf("proxy %s created in loader %s for %v", name, l.Label(), ifaces)
	return RefOf(inst), nil
}

// proxyMethodUnion collects the method set over the interfaces and their
// transitive superinterfaces. Declarations with the same name and parameter
// list collapse into one; the same shape with different return types is a
// conflict the proxy cannot represent.
func proxyMethodUnion(ifaces []*Type) ([]descriptor.MethodDescriptor, error) {
	type key struct {
		name string
		sig  string
	}
	type decl struct {
		owner string
		md    descriptor.MethodDescriptor
	}
	seen := make(map[key]decl)
	var order []key
	visited := make(map[*Type]bool)

	var walk func(t *Type) error
	walk = func(t *Type) error {
		if visited[t] {
			return nil
		}
		visited[t] = true
		for i := range t.desc.Methods {
			md := t.desc.Methods[i]
			k := key{md.Name, descriptor.Signature{Params: md.Signature.Params}.String()}
			if prev, ok := seen[k]; ok {
				if prev.md.Signature.Return != md.Signature.Return {
					return &SignatureConflictError{
						Method: md.Name + k.sig,
						A:      prev.owner + " returns " + prev.md.Signature.Return,
						B:      t.name + " returns " + md.Signature.Return,
					}
				}
				continue
			}
			seen[k] = decl{owner: t.name, md: md}
			order = append(order, k)
		}
		for _, sup := range t.Interfaces() {
			if err := walk(sup); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range ifaces {
		if err := walk(t); err != nil {
			return nil, err
		}
	}

	out := make([]descriptor.MethodDescriptor, 0, len(order))
	for _, k := range order {
		d := seen[k]
		out = append(out, descriptor.MethodDescriptor{
			Name:       d.md.Name,
			Signature:  d.md.Signature,
			Visibility: descriptor.Public,
			Modifiers:  descriptor.ModNative,
			Thrown:     d.md.Thrown,
		})
	}
	return out, nil
}
