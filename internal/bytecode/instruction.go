package bytecode

import "fmt"

// Instruction is a single decoded VM instruction. Each opcode uses only the
// operand it needs: Operand for indices, slots, targets and counts, Name for
// global variable access.
type Instruction struct {
	_       struct{} `cbor:",toarray"`
	Op      Opcode
	Operand int
	Name    string
}

// Op builds an instruction without operand.
func Op(op Opcode) Instruction { return Instruction{Op: op} }

// OpArg builds an instruction with an integer operand.
func OpArg(op Opcode, operand int) Instruction { return Instruction{Op: op, Operand: operand} }

// OpName builds an instruction addressing a global by name.
func OpName(op Opcode, name string) Instruction { return Instruction{Op: op, Name: name} }

func (in Instruction) String() string {
	switch in.Op.Operand() {
	case OperandNone:
		return in.Op.String()
	case OperandName:
		return fmt.Sprintf("%s %q", in.Op, in.Name)
	default:
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	}
}
