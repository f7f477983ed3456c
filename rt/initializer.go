package rt

import (
	"fmt"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Static initialization
// ---------------------------------------------------------------------------

// InitSession is the capability that identifies one in-progress initialization
// traversal. The session is handed to initializer bodies through Call.Session;
// a body that triggers initialization of a type already claimed by its own
// session observes the in-progress (possibly partial) statics instead of
// deadlocking. Sessions are always passed explicitly, never inferred from the
// calling goroutine.
type InitSession struct {
	graph *Graph
}

// Ensure triggers initialization of another type from inside an initializer
// body, reusing this session's claims.
func (s *InitSession) Ensure(t *Type) error {
	return s.graph.initialize(t, s)
}

// EnsureInitialized drives the type to INITIALIZED, running its static
// initializer exactly once across all callers. Supertypes initialize first.
// The call blocks while another traversal is initializing the type and
// re-surfaces the recorded fault if initialization ever failed.
func (g *Graph) EnsureInitialized(t *Type) error {
	return g.initialize(t, &InitSession{graph: g})
}

func (g *Graph) initialize(t *Type, sess *InitSession) error {
	if err := g.link(t); err != nil {
		return err
	}

	t.mu.Lock()
	for {
		switch {
		case t.state == StateFailed:
			err := t.fault
			t.mu.Unlock()
			return err
		case t.state >= StateInitialized:
			t.mu.Unlock()
			return nil
		case t.state == StateInitializing:
			if t.initSession == sess {
				// Re-entered by our own initializer body. The statics
				// observed are whatever has been assigned so far.
				t.mu.Unlock()
				return nil
			}
			t.cond.Wait()
		default:
			// RESOLVED and unclaimed: take the claim.
			t.state = StateInitializing
			t.initSession = sess
			t.mu.Unlock()

			err := g.runInitializer(t, sess)

			t.mu.Lock()
			t.initSession = nil
			if err != nil {
				t.state = StateFailed
				t.fault = fmt.Errorf("initialization of %s failed: %w", t.name, err)
				rtLog.Errorf("%s: initializer failed: %v", t, err)
			} else {
				t.state = StateInitialized
				rtLog.Debugf("%s: reached INITIALIZED", t)
			}
			t.cond.Broadcast()
			t.mu.Unlock()
			return t.Fault()
		}
	}
}

// runInitializer initializes the supertype chain, then executes the type's
// own static initializer if it declares one.
func (g *Graph) runInitializer(t *Type, sess *InitSession) error {
	if super := t.Super(); super != nil {
		if err := g.initialize(super, sess); err != nil {
			return err
		}
	}

	md := t.desc.StaticInit()
	if md == nil {
		return nil
	}
	m, err := t.Method(descriptor.StaticInitName)
	if err != nil {
		return err
	}
	_, err = g.execute(&Call{Graph: g, Member: m, Receiver: Null, Session: sess})
	return err
}
