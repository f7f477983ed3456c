package descriptor

import "fmt"

// ---------------------------------------------------------------------------
// Code model
// ---------------------------------------------------------------------------

// Opcode enumerates the abstract instruction set a code body is expressed in.
// This is the parsed form the verifier checks; the binary grammar that
// produces it is the wire codec's concern.
type Opcode uint8

const (
	OpConst       Opcode = iota + 1 // push constant pool entry A
	OpLoad                          // push local slot A
	OpStore                         // pop into local slot A
	OpGetField                      // pop receiver, push field (fieldref A)
	OpPutField                      // pop value, pop receiver (fieldref A)
	OpGetStatic                     // push static field (fieldref A)
	OpPutStatic                     // pop into static field (fieldref A)
	OpCall                          // pop args, call static method (methodref A)
	OpCallVirtual                   // pop args and receiver, call method (methodref A)
	OpNew                           // push new instance of type (typeref A)
	OpReturn                        // return top of stack (nothing for void methods)
	OpBranch                        // jump to instruction index A
	OpBranchIf                      // pop bool, jump to instruction index A if true
	OpPop                           // discard top of stack
	OpDup                           // duplicate top of stack
)

// String returns the mnemonic for an opcode.
func (op Opcode) String() string {
	switch op {
	case OpConst:
		return "const"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGetField:
		return "getfield"
	case OpPutField:
		return "putfield"
	case OpGetStatic:
		return "getstatic"
	case OpPutStatic:
		return "putstatic"
	case OpCall:
		return "call"
	case OpCallVirtual:
		return "callvirtual"
	case OpNew:
		return "new"
	case OpReturn:
		return "return"
	case OpBranch:
		return "branch"
	case OpBranchIf:
		return "branchif"
	case OpPop:
		return "pop"
	case OpDup:
		return "dup"
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Instruction is one abstract instruction. A holds the single operand: a
// constant-pool index, local slot, or branch target depending on Op.
type Instruction struct {
	Op Opcode `cbor:"1,keyasint"`
	A  int    `cbor:"2,keyasint,omitempty"`
}

// CodeBody is the executable portion of a method descriptor. Local slots
// 0..len(params)-1 hold the arguments on entry (plus the receiver in slot 0
// for non-static methods); LocalTypes declares the type of every slot.
type CodeBody struct {
	MaxStack     int           `cbor:"1,keyasint"`
	MaxLocals    int           `cbor:"2,keyasint"`
	LocalTypes   []string      `cbor:"3,keyasint,omitempty"`
	Instructions []Instruction `cbor:"4,keyasint,omitempty"`
}

// Ins is shorthand for constructing an instruction.
func Ins(op Opcode, a int) Instruction { return Instruction{Op: op, A: a} }
