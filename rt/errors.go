package rt

import "fmt"

// ---------------------------------------------------------------------------
// Fault taxonomy
// ---------------------------------------------------------------------------
//
// Lifecycle faults (MalformedError, VerifyError, UnresolvedError) permanently
// poison the (loader, name) entry they occurred on: later resolution attempts
// re-surface the original fault rather than retrying. Invocation faults
// (AccessError, NoSuchMemberError, ArgumentError, AbstractCallError) are
// local to one call. TargetError wraps a failure from inside an invoked body
// so callers can tell "bad call" from "callee failed".

// MalformedError reports a structurally self-inconsistent descriptor. Fatal
// to the load attempt that encountered it.
type MalformedError struct {
	TypeName string
	Loader   string
	Cause    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed descriptor for %s (loader %s): %v", e.TypeName, e.Loader, e.Cause)
}

func (e *MalformedError) Unwrap() error { return e.Cause }

// VerifyError reports one or more verification rule violations. The type is
// marked FAILED permanently and never becomes visible.
type VerifyError struct {
	TypeName   string
	Loader     string
	Violations error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification of %s failed (loader %s): %v", e.TypeName, e.Loader, e.Violations)
}

func (e *VerifyError) Unwrap() error { return e.Violations }

// UnresolvedError reports that the transitive closure of a type's symbolic
// references could not be completed.
type UnresolvedError struct {
	TypeName string
	Missing  string
	Loader   string
	Cause    error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("resolving %s (loader %s): dependency %s: %v", e.TypeName, e.Loader, e.Missing, e.Cause)
}

func (e *UnresolvedError) Unwrap() error { return e.Cause }

// NotFoundError reports that no loader in the delegation chain could supply
// bytes for a name.
type NotFoundError struct {
	Name   string
	Loader string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("type %s not found (requested via loader %s)", e.Name, e.Loader)
}

// AccessError reports a visibility violation. Mint reports whether the check
// failed at handle mint time (Lookup) rather than at call time (Invoker).
type AccessError struct {
	TypeName string
	Member   string
	Caller   string
	Mint     bool
}

func (e *AccessError) Error() string {
	when := "call"
	if e.Mint {
		when = "mint"
	}
	return fmt.Sprintf("illegal access at %s time: %s.%s is not accessible from %s", when, e.TypeName, e.Member, e.Caller)
}

// NoSuchMemberError reports a failed member lookup.
type NoSuchMemberError struct {
	TypeName string
	Member   string
}

func (e *NoSuchMemberError) Error() string {
	return fmt.Sprintf("no such member %s in %s or its supertypes", e.Member, e.TypeName)
}

// ArgumentError reports that an argument could not be reconciled with the
// declared parameter type. Index is -1 for arity mismatches and receiver
// problems.
type ArgumentError struct {
	TypeName string
	Member   string
	Index    int
	Got      string
	Want     string
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("argument mismatch calling %s.%s: got %s, want %s", e.TypeName, e.Member, e.Got, e.Want)
	}
	return fmt.Sprintf("argument mismatch calling %s.%s: argument %d is %s, want %s",
		e.TypeName, e.Member, e.Index, e.Got, e.Want)
}

// AbstractCallError reports an invocation of a member with no code.
type AbstractCallError struct {
	TypeName string
	Member   string
}

func (e *AbstractCallError) Error() string {
	return fmt.Sprintf("cannot invoke abstract member %s.%s", e.TypeName, e.Member)
}

// SignatureConflictError reports that two interfaces handed to the proxy
// generator declare incompatible signatures for the same name and shape.
type SignatureConflictError struct {
	Method string
	A      string
	B      string
}

func (e *SignatureConflictError) Error() string {
	return fmt.Sprintf("conflicting signatures for %s: %s vs %s", e.Method, e.A, e.B)
}

// TargetError wraps a failure raised inside an invoked body. It is never
// produced by the invoker's own precondition checks.
type TargetError struct {
	TypeName string
	Member   string
	Cause    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s.%s failed: %v", e.TypeName, e.Member, e.Cause)
}

func (e *TargetError) Unwrap() error { return e.Cause }
