package rt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Execution engine seam
// ---------------------------------------------------------------------------

// ErrNoEngine is returned when a code-bodied member is invoked on a graph
// that was built without an execution engine.
var ErrNoEngine = errors.New("rt: no execution engine configured")

// Call carries everything an execution engine or native function needs for
// one invocation. Session is non-nil only while a static initializer is
// running, and is the capability a body uses to trigger further
// initialization without deadlocking on its own in-progress types.
type Call struct {
	Graph    *Graph
	Member   *Member
	Receiver Value
	Args     []Value
	Session  *InitSession
}

// NativeFunc is a Go function standing in for a method body.
type NativeFunc func(call *Call) (Value, error)

// Engine executes members that carry a code body. Bytecode interpretation is
// outside this package; the runtime hands the engine a resolved member with
// reconciled arguments and consumes a result or a fault.
type Engine interface {
	Execute(call *Call) (Value, error)
}

// FuncEngine is an Engine backed by a registry of Go functions keyed by
// declaring type, member name, and signature. It lets embedders and tests
// supply bodies for code-declared members without an interpreter.
type FuncEngine struct {
	mu    sync.RWMutex
	funcs map[string]NativeFunc
}

// NewFuncEngine creates an empty function-registry engine.
func NewFuncEngine() *FuncEngine {
	return &FuncEngine{funcs: make(map[string]NativeFunc)}
}

func engineKey(typeName, member string, sig descriptor.Signature) string {
	return typeName + "." + member + sig.String()
}

// Register binds a function as the body for the named member.
func (e *FuncEngine) Register(typeName, member string, sig descriptor.Signature, fn NativeFunc) {
	e.mu.Lock()
	e.funcs[engineKey(typeName, member, sig)] = fn
	e.mu.Unlock()
}

// Execute implements Engine.
func (e *FuncEngine) Execute(call *Call) (Value, error) {
	m := call.Member
	e.mu.RLock()
	fn := e.funcs[engineKey(m.Owner().Name(), m.Name(), m.Signature())]
	e.mu.RUnlock()
	if fn == nil {
		return Void, fmt.Errorf("rt: no body registered for %s", m)
	}
	return fn(call)
}
