// Package bytecode defines the instruction set, constant pool and compiled
// units shared by the compiler and the virtual machine.
package bytecode

import "fmt"

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_PUSH_CONST Opcode = iota // Push constant from pool
	OP_POP                      // Discard top of stack
	OP_DUP                      // Duplicate top of stack

	// Arithmetic
	OP_ADD       // +
	OP_SUB       // -
	OP_MUL       // *
	OP_DIV       // /
	OP_MOD       // %
	OP_POW       // **
	OP_INC       // x + 1 (numeric)
	OP_DEC       // x - 1 (numeric)
	OP_NEG       // Unary minus
	OP_TO_NUMBER // Unary plus

	// Comparison
	OP_EQ        // ==
	OP_NE        // !=
	OP_STRICT_EQ // ===
	OP_STRICT_NE // !==
	OP_LT        // <
	OP_GT        // >
	OP_LE        // <=
	OP_GE        // >=
	OP_IN        // key in object

	// Logic
	OP_NOT    // !
	OP_TYPEOF // typeof

	// Variables
	OP_LOAD_GLOBAL        // Get global variable by name
	OP_STORE_GLOBAL       // Set global variable by name (value stays on stack)
	OP_LOAD_LOCAL         // Get local slot
	OP_STORE_LOCAL        // Set local slot (value stays on stack)
	OP_LOAD_ARG           // Get argument by index
	OP_STORE_ARG          // Set argument by index (value stays on stack)
	OP_LOAD_CLOSURE       // Get captured variable
	OP_STORE_CLOSURE      // Set captured variable in the running closure
	OP_LOAD_THIS          // Push the receiver
	OP_LOAD_THIS_FUNCTION // Push the running function

	// Control flow
	OP_JUMP          // Unconditional jump to absolute target
	OP_JUMP_IF_TRUE  // Pop, jump if truthy
	OP_JUMP_IF_FALSE // Pop, jump if falsy
	OP_RETURN        // Return top of stack

	// Functions
	OP_CALL          // [callee, args...] -> result
	OP_CALL_FUNCTION // [args...] -> result, callee is the running function
	OP_CALL_METHOD   // [receiver, callee, args...] -> result
	OP_NEW           // [callee, args...] -> constructed object
	OP_MAKE_CLOSURE  // Instantiate a function template

	// Objects and arrays
	OP_NEW_OBJECT      // -> {}
	OP_NEW_ARRAY       // [e1..eN] -> array
	OP_GET_PROPERTY    // [receiver, key] -> value
	OP_SET_PROPERTY    // [receiver, key, value] -> value
	OP_DELETE_PROPERTY // [receiver, key] -> bool

	// Literals
	OP_PUSH_NULL
	OP_PUSH_UNDEFINED
	OP_PUSH_TRUE
	OP_PUSH_FALSE

	opcodeCount // must be last
)

// OperandKind describes how an instruction's operand is interpreted.
type OperandKind byte

const (
	OperandNone    OperandKind = iota
	OperandConst               // index into the unit's constant pool
	OperandLocal               // local slot
	OperandArg                 // argument index
	OperandCapture             // closure environment slot
	OperandTarget              // absolute instruction index
	OperandCount               // element or argument count
	OperandName                // global name, carried in Instruction.Name
)

type opInfo struct {
	name    string
	operand OperandKind
}

var opTable = [opcodeCount]opInfo{
	OP_PUSH_CONST: {"PUSH_CONST", OperandConst},
	OP_POP:        {"POP", OperandNone},
	OP_DUP:        {"DUP", OperandNone},

	OP_ADD:       {"ADD", OperandNone},
	OP_SUB:       {"SUB", OperandNone},
	OP_MUL:       {"MUL", OperandNone},
	OP_DIV:       {"DIV", OperandNone},
	OP_MOD:       {"MOD", OperandNone},
	OP_POW:       {"POW", OperandNone},
	OP_INC:       {"INC", OperandNone},
	OP_DEC:       {"DEC", OperandNone},
	OP_NEG:       {"NEG", OperandNone},
	OP_TO_NUMBER: {"TO_NUMBER", OperandNone},

	OP_EQ:        {"EQ", OperandNone},
	OP_NE:        {"NE", OperandNone},
	OP_STRICT_EQ: {"STRICT_EQ", OperandNone},
	OP_STRICT_NE: {"STRICT_NE", OperandNone},
	OP_LT:        {"LT", OperandNone},
	OP_GT:        {"GT", OperandNone},
	OP_LE:        {"LE", OperandNone},
	OP_GE:        {"GE", OperandNone},
	OP_IN:        {"IN", OperandNone},

	OP_NOT:    {"NOT", OperandNone},
	OP_TYPEOF: {"TYPEOF", OperandNone},

	OP_LOAD_GLOBAL:        {"LOAD_GLOBAL", OperandName},
	OP_STORE_GLOBAL:       {"STORE_GLOBAL", OperandName},
	OP_LOAD_LOCAL:         {"LOAD_LOCAL", OperandLocal},
	OP_STORE_LOCAL:        {"STORE_LOCAL", OperandLocal},
	OP_LOAD_ARG:           {"LOAD_ARG", OperandArg},
	OP_STORE_ARG:          {"STORE_ARG", OperandArg},
	OP_LOAD_CLOSURE:       {"LOAD_CLOSURE", OperandCapture},
	OP_STORE_CLOSURE:      {"STORE_CLOSURE", OperandCapture},
	OP_LOAD_THIS:          {"LOAD_THIS", OperandNone},
	OP_LOAD_THIS_FUNCTION: {"LOAD_THIS_FUNCTION", OperandNone},

	OP_JUMP:          {"JUMP", OperandTarget},
	OP_JUMP_IF_TRUE:  {"JUMP_IF_TRUE", OperandTarget},
	OP_JUMP_IF_FALSE: {"JUMP_IF_FALSE", OperandTarget},
	OP_RETURN:        {"RETURN", OperandNone},

	OP_CALL:          {"CALL", OperandCount},
	OP_CALL_FUNCTION: {"CALL_FUNCTION", OperandCount},
	OP_CALL_METHOD:   {"CALL_METHOD", OperandCount},
	OP_NEW:           {"NEW", OperandCount},
	OP_MAKE_CLOSURE:  {"MAKE_CLOSURE", OperandConst},

	OP_NEW_OBJECT:      {"NEW_OBJECT", OperandNone},
	OP_NEW_ARRAY:       {"NEW_ARRAY", OperandCount},
	OP_GET_PROPERTY:    {"GET_PROPERTY", OperandNone},
	OP_SET_PROPERTY:    {"SET_PROPERTY", OperandNone},
	OP_DELETE_PROPERTY: {"DELETE_PROPERTY", OperandNone},

	OP_PUSH_NULL:      {"PUSH_NULL", OperandNone},
	OP_PUSH_UNDEFINED: {"PUSH_UNDEFINED", OperandNone},
	OP_PUSH_TRUE:      {"PUSH_TRUE", OperandNone},
	OP_PUSH_FALSE:     {"PUSH_FALSE", OperandNone},
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool { return op < opcodeCount }

// Operand returns how the instruction's operand is used.
func (op Opcode) Operand() OperandKind {
	if !op.Valid() {
		return OperandNone
	}
	return opTable[op].operand
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("OP_%d", byte(op))
	}
	return opTable[op].name
}

// IsJump reports whether op transfers control to its operand.
func (op Opcode) IsJump() bool { return op.Operand() == OperandTarget }
