package rt

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/kiln/descriptor"
)

// ---------------------------------------------------------------------------
// Verifier
// ---------------------------------------------------------------------------

// Rule identifies one verification rule family. Each rule is independently
// testable; a type fails verification iff at least one rule is violated.
type Rule uint8

const (
	RuleStackBounds Rule = iota + 1 // operand stack stays within declared bounds
	RuleLocalInit                   // local slots written before read
	RuleTypeCompat                  // assignments respect declared types
	RuleVisibility                  // symbolic references respect visibility
	RuleBranchTarget                // control transfers stay at legal boundaries
	RuleCallShape                   // call sites match a callable signature
)

// String returns the rule's name.
func (r Rule) String() string {
	switch r {
	case RuleStackBounds:
		return "stack-bounds"
	case RuleLocalInit:
		return "local-init"
	case RuleTypeCompat:
		return "type-compat"
	case RuleVisibility:
		return "visibility"
	case RuleBranchTarget:
		return "branch-target"
	case RuleCallShape:
		return "call-shape"
	}
	return fmt.Sprintf("rule(%d)", uint8(r))
}

// Violation is one verification rule violation at a specific instruction.
type Violation struct {
	Rule   Rule
	Method string
	Instr  int
	Msg    string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: method %s instruction %d: %s", v.Rule, v.Method, v.Instr, v.Msg)
}

// DescriptorResolver supplies descriptors for types referenced by the one
// being verified, so visibility of symbolic references can be checked before
// their targets are live. It may report not-found; unresolvable references
// are left for the resolution stage.
type DescriptorResolver func(name string) (*descriptor.TypeDescriptor, error)

// Verifier checks a LOADED descriptor's structural and stack-safety
// invariants without executing any of its code. Downstream stages assume
// nothing the verifier has not certified.
type Verifier struct {
	desc    *descriptor.TypeDescriptor
	resolve DescriptorResolver
}

// NewVerifier creates a verifier for desc. resolve may be nil, which skips
// cross-type visibility and shape checks (they then fall to resolution).
func NewVerifier(desc *descriptor.TypeDescriptor, resolve DescriptorResolver) *Verifier {
	return &Verifier{desc: desc, resolve: resolve}
}

// Verify checks every method body and returns the accumulated violations.
func (v *Verifier) Verify() error {
	var result *multierror.Error
	for i := range v.desc.Methods {
		m := &v.desc.Methods[i]
		if m.Code == nil {
			continue
		}
		for _, viol := range v.verifyCode(m) {
			result = multierror.Append(result, viol)
		}
	}
	return result.ErrorOrNil()
}

// verify is the graph's verification stage.
func (g *Graph) verify(t *Type) error {
	ver := NewVerifier(t.desc, t.loader.peekDescriptor)
	if err := ver.Verify(); err != nil {
		return &VerifyError{TypeName: t.name, Loader: t.loader.label, Violations: err}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Abstract interpretation of one code body
// ---------------------------------------------------------------------------

// frame is the abstract machine state at one instruction: the types on the
// operand stack and which local slots have been written.
type frame struct {
	stack  []string
	inited []bool
}

func (f *frame) clone() *frame {
	nf := &frame{stack: make([]string, len(f.stack)), inited: make([]bool, len(f.inited))}
	copy(nf.stack, f.stack)
	copy(nf.inited, f.inited)
	return nf
}

// anyType is the abstract top reference type produced when two branches
// merge with different reference types on the stack.
const anyType = "*"

// verifyCode abstractly interprets one method body, visiting every reachable
// instruction once per distinct entry state, and collects violations.
func (v *Verifier) verifyCode(m *descriptor.MethodDescriptor) []*Violation {
	code := m.Code
	var viols []*Violation
	report := func(rule Rule, instr int, format string, args ...interface{}) {
		viols = append(viols, &Violation{
			Rule:   rule,
			Method: m.Name + m.Signature.String(),
			Instr:  instr,
			Msg:    fmt.Sprintf(format, args...),
		})
	}

	entry := &frame{inited: make([]bool, code.MaxLocals)}
	// Arguments (and the receiver for instance methods) occupy the leading
	// local slots and are initialized on entry.
	argSlots := len(m.Signature.Params)
	if !m.Modifiers.IsStatic() {
		argSlots++
	}
	for i := 0; i < argSlots && i < code.MaxLocals; i++ {
		entry.inited[i] = true
	}

	type work struct {
		pc int
		fr *frame
	}
	seen := make(map[int]*frame)
	queue := []work{{0, entry}}

	for len(queue) > 0 {
		w := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		pc, fr := w.pc, w.fr

		for {
			if pc < 0 || pc >= len(code.Instructions) {
				report(RuleBranchTarget, pc, "control transfer past end of code")
				break
			}
			if prev, ok := seen[pc]; ok {
				merged, mismatch := mergeFrames(prev, fr)
				if mismatch != "" {
					report(RuleTypeCompat, pc, "inconsistent states at merge point: %s", mismatch)
					break
				}
				if merged == nil {
					break // no new information, already visited
				}
				seen[pc] = merged
				fr = merged.clone()
			} else {
				seen[pc] = fr.clone()
			}

			in := code.Instructions[pc]
			pop := func() (string, bool) {
				if len(fr.stack) == 0 {
					report(RuleStackBounds, pc, "operand stack underflow")
					return "", false
				}
				top := fr.stack[len(fr.stack)-1]
				fr.stack = fr.stack[:len(fr.stack)-1]
				return top, true
			}
			push := func(typ string) bool {
				if len(fr.stack) >= code.MaxStack {
					report(RuleStackBounds, pc, "operand stack exceeds declared max %d", code.MaxStack)
					return false
				}
				fr.stack = append(fr.stack, typ)
				return true
			}

			next := pc + 1
			done := false
			switch in.Op {
			case descriptor.OpConst:
				c := v.desc.Constants[in.A]
				t := c.ValueType()
				if t == "" {
					report(RuleTypeCompat, pc, "constant %d is not loadable", in.A)
					done = true
					break
				}
				done = !push(t)
			case descriptor.OpLoad:
				if !fr.inited[in.A] {
					report(RuleLocalInit, pc, "local slot %d read before write", in.A)
					done = true
					break
				}
				done = !push(code.LocalTypes[in.A])
			case descriptor.OpStore:
				top, ok := pop()
				if !ok {
					done = true
					break
				}
				if !v.compatible(top, code.LocalTypes[in.A]) {
					report(RuleTypeCompat, pc, "cannot store %s into slot %d of type %s", top, in.A, code.LocalTypes[in.A])
				}
				fr.inited[in.A] = true
			case descriptor.OpGetField, descriptor.OpGetStatic:
				ref := v.desc.Constants[in.A].Ref
				v.checkFieldRef(ref, pc, report)
				if in.Op == descriptor.OpGetField {
					if _, ok := pop(); !ok {
						done = true
						break
					}
				}
				done = !push(ref.Signature.Return)
			case descriptor.OpPutField, descriptor.OpPutStatic:
				ref := v.desc.Constants[in.A].Ref
				v.checkFieldRef(ref, pc, report)
				top, ok := pop()
				if !ok {
					done = true
					break
				}
				if !v.compatible(top, ref.Signature.Return) {
					report(RuleTypeCompat, pc, "cannot assign %s to field %s of type %s", top, ref.Name, ref.Signature.Return)
				}
				if in.Op == descriptor.OpPutField {
					if _, ok := pop(); !ok {
						done = true
					}
				}
			case descriptor.OpCall, descriptor.OpCallVirtual:
				ref := v.desc.Constants[in.A].Ref
				v.checkCallRef(ref, pc, in.Op == descriptor.OpCallVirtual, report)
				for i := len(ref.Signature.Params) - 1; i >= 0; i-- {
					top, ok := pop()
					if !ok {
						done = true
						break
					}
					if !v.compatible(top, ref.Signature.Params[i]) {
						report(RuleCallShape, pc, "argument %d to %s is %s, want %s", i, ref.Name, top, ref.Signature.Params[i])
					}
				}
				if done {
					break
				}
				if in.Op == descriptor.OpCallVirtual {
					top, ok := pop()
					if !ok {
						done = true
						break
					}
					if !v.compatible(top, ref.TypeName) {
						report(RuleCallShape, pc, "receiver for %s.%s is %s, want %s",
							ref.TypeName, ref.Name, top, ref.TypeName)
					}
				}
				if ref.Signature.Return != descriptor.TypeVoid {
					done = !push(ref.Signature.Return)
				}
			case descriptor.OpNew:
				done = !push(v.desc.Constants[in.A].TypeName)
			case descriptor.OpReturn:
				if m.Signature.Return != descriptor.TypeVoid {
					top, ok := pop()
					if !ok {
						done = true
						break
					}
					if !v.compatible(top, m.Signature.Return) {
						report(RuleTypeCompat, pc, "cannot return %s from method returning %s", top, m.Signature.Return)
					}
				}
				done = true // end of this path
			case descriptor.OpBranch:
				if in.A < 0 || in.A >= len(code.Instructions) {
					report(RuleBranchTarget, pc, "branch target %d out of range", in.A)
					done = true
					break
				}
				next = in.A
			case descriptor.OpBranchIf:
				top, ok := pop()
				if !ok {
					done = true
					break
				}
				if !v.compatible(top, descriptor.TypeBool) {
					report(RuleTypeCompat, pc, "branch condition is %s, want bool", top)
				}
				if in.A < 0 || in.A >= len(code.Instructions) {
					report(RuleBranchTarget, pc, "branch target %d out of range", in.A)
					done = true
					break
				}
				queue = append(queue, work{in.A, fr.clone()})
			case descriptor.OpPop:
				if _, ok := pop(); !ok {
					done = true
				}
			case descriptor.OpDup:
				if len(fr.stack) == 0 {
					report(RuleStackBounds, pc, "dup on empty operand stack")
					done = true
					break
				}
				done = !push(fr.stack[len(fr.stack)-1])
			}
			if done {
				break
			}
			pc = next
		}
	}
	return viols
}

// mergeFrames merges an incoming frame into a previously seen one. It
// returns (nil, "") when the incoming frame adds nothing, a new frame when
// the merge widened something, and a non-empty mismatch description when the
// states are irreconcilable (differing depths, or a primitive meeting a
// reference — the reinterpretation the verifier exists to prevent).
func mergeFrames(prev, in *frame) (*frame, string) {
	if len(prev.stack) != len(in.stack) {
		return nil, fmt.Sprintf("stack depth %d vs %d", len(prev.stack), len(in.stack))
	}
	changed := false
	merged := prev.clone()
	for i := range prev.stack {
		a, b := prev.stack[i], in.stack[i]
		if a == b {
			continue
		}
		if descriptor.IsPrimitive(a) != descriptor.IsPrimitive(b) {
			return nil, fmt.Sprintf("slot %d holds %s on one path and %s on another", i, a, b)
		}
		if descriptor.IsPrimitive(a) {
			return nil, fmt.Sprintf("slot %d holds %s on one path and %s on another", i, a, b)
		}
		if merged.stack[i] != anyType {
			merged.stack[i] = anyType
			changed = true
		}
	}
	for i := range prev.inited {
		// A slot is initialized at a merge point only if every path in
		// wrote it.
		was := merged.inited[i]
		merged.inited[i] = prev.inited[i] && in.inited[i]
		if merged.inited[i] != was {
			changed = true
		}
	}
	if !changed {
		return nil, ""
	}
	return merged, ""
}

// compatible reports whether a value of type src may flow where dst is
// declared: identity, numeric widening, null into any reference, or
// reference widening along the declared supertype/interface chain. An
// integral value never becomes a reference or vice versa.
func (v *Verifier) compatible(src, dst string) bool {
	if src == dst || src == anyType {
		return true
	}
	if numericWidens(src, dst) {
		return true
	}
	srcPrim, dstPrim := descriptor.IsPrimitive(src), descriptor.IsPrimitive(dst)
	if srcPrim || dstPrim {
		return false
	}
	// Both reference types: walk src's declared hierarchy.
	return v.refWidens(src, dst, make(map[string]bool))
}

func (v *Verifier) refWidens(src, dst string, seen map[string]bool) bool {
	if src == dst {
		return true
	}
	if v.resolve == nil || seen[src] {
		// Without descriptors to consult, defer to resolution.
		return v.resolve == nil
	}
	seen[src] = true
	var d *descriptor.TypeDescriptor
	if src == v.desc.Name {
		d = v.desc
	} else {
		var err error
		d, err = v.resolve(src)
		if err != nil {
			return true // unresolvable here; resolution reports it
		}
	}
	if d.SuperName != "" && v.refWidens(d.SuperName, dst, seen) {
		return true
	}
	for _, in := range d.Interfaces {
		if v.refWidens(in, dst, seen) {
			return true
		}
	}
	return false
}

// numericWidens reports a legal primitive widening conversion.
func numericWidens(src, dst string) bool {
	switch src {
	case descriptor.TypeInt:
		return dst == descriptor.TypeLong || dst == descriptor.TypeFloat || dst == descriptor.TypeDouble
	case descriptor.TypeLong:
		return dst == descriptor.TypeFloat || dst == descriptor.TypeDouble
	case descriptor.TypeFloat:
		return dst == descriptor.TypeDouble
	}
	return false
}

// checkFieldRef checks visibility of a field reference from this type's
// perspective.
func (v *Verifier) checkFieldRef(ref descriptor.MemberRef, pc int, report func(Rule, int, string, ...interface{})) {
	if v.resolve == nil {
		return
	}
	d, err := v.peek(ref.TypeName)
	if err != nil || d == nil {
		return // left for resolution
	}
	f := d.Field(ref.Name)
	if f == nil {
		report(RuleCallShape, pc, "%s has no field %s", ref.TypeName, ref.Name)
		return
	}
	if !v.visibleFrom(d, f.Visibility) {
		report(RuleVisibility, pc, "field %s.%s is %s and not visible from %s",
			ref.TypeName, ref.Name, f.Visibility, v.desc.Name)
	}
}

// checkCallRef checks that a call site names a callable member with the
// stated signature and respects its visibility.
func (v *Verifier) checkCallRef(ref descriptor.MemberRef, pc int, virtual bool, report func(Rule, int, string, ...interface{})) {
	if v.resolve == nil {
		return
	}
	d, err := v.peek(ref.TypeName)
	if err != nil || d == nil {
		return
	}
	m := v.findMethod(d, ref.Name, ref.Signature.Params, make(map[string]bool))
	if m == nil {
		report(RuleCallShape, pc, "%s has no method %s%s", ref.TypeName, ref.Name, ref.Signature)
		return
	}
	if !m.Signature.Equals(ref.Signature) {
		report(RuleCallShape, pc, "call to %s.%s expects %s, declared %s",
			ref.TypeName, ref.Name, ref.Signature, m.Signature)
		return
	}
	if virtual == m.Modifiers.IsStatic() {
		report(RuleCallShape, pc, "%s.%s staticness does not match call form", ref.TypeName, ref.Name)
	}
	if !v.visibleFrom(d, m.Visibility) {
		report(RuleVisibility, pc, "method %s.%s is %s and not visible from %s",
			ref.TypeName, ref.Name, m.Visibility, v.desc.Name)
	}
}

// findMethod searches a descriptor and its declared supertype chain for a
// method with the given name and parameter types.
func (v *Verifier) findMethod(d *descriptor.TypeDescriptor, name string, params []string, seen map[string]bool) *descriptor.MethodDescriptor {
	if m := d.Method(name, params); m != nil {
		return m
	}
	if d.SuperName == "" || seen[d.SuperName] {
		return nil
	}
	seen[d.SuperName] = true
	super, err := v.peek(d.SuperName)
	if err != nil || super == nil {
		return nil
	}
	return v.findMethod(super, name, params, seen)
}

// peek resolves a descriptor by name, treating the type under verification
// as resolvable to itself.
func (v *Verifier) peek(name string) (*descriptor.TypeDescriptor, error) {
	if name == v.desc.Name {
		return v.desc, nil
	}
	return v.resolve(name)
}

// visibleFrom decides whether a member of the type described by d with the
// given visibility is accessible from the type under verification. Loader
// identity is a runtime notion; at verification time package-private uses
// package names only.
func (v *Verifier) visibleFrom(d *descriptor.TypeDescriptor, vis descriptor.Visibility) bool {
	switch vis {
	case descriptor.Public:
		return true
	case descriptor.Private:
		return d.Name == v.desc.Name
	case descriptor.Package:
		return descriptor.PackageOf(d.Name) == descriptor.PackageOf(v.desc.Name)
	case descriptor.Protected:
		if descriptor.PackageOf(d.Name) == descriptor.PackageOf(v.desc.Name) {
			return true
		}
		return v.descendsFrom(v.desc, d.Name, make(map[string]bool))
	}
	return false
}

func (v *Verifier) descendsFrom(d *descriptor.TypeDescriptor, ancestor string, seen map[string]bool) bool {
	if d.Name == ancestor {
		return true
	}
	if d.SuperName == "" || seen[d.SuperName] {
		return false
	}
	seen[d.SuperName] = true
	super, err := v.peek(d.SuperName)
	if err != nil || super == nil {
		return false
	}
	return v.descendsFrom(super, ancestor, seen)
}
