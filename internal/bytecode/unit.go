package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// MaxOperand bounds counts, argument indices and frame sizes in a unit.
const MaxOperand = 1 << 20

// Unit is a compiled body: the program or a single function.
// It is immutable once the compiler has finished with it.
type Unit struct {
	// Name is the function name, or the program name for the top-level unit
	Name string `cbor:"1,keyasint"`

	Instructions []Instruction `cbor:"2,keyasint"`

	// Constants pool - literals and nested function templates
	Constants []Constant `cbor:"3,keyasint"`

	// LocalCount is the number of local slots a frame running this unit needs
	LocalCount int `cbor:"4,keyasint"`

	// Lines maps instruction index to source line number (for errors)
	Lines []int `cbor:"5,keyasint,omitempty"`

	// File is the source file name
	File string `cbor:"6,keyasint,omitempty"`
}

// Len returns the number of instructions.
func (u *Unit) Len() int { return len(u.Instructions) }

// Emit appends an instruction with line info and returns its index.
func (u *Unit) Emit(in Instruction, line int) int {
	u.Instructions = append(u.Instructions, in)
	u.Lines = append(u.Lines, line)
	return len(u.Instructions) - 1
}

// PatchTarget points the jump at index pc to target.
func (u *Unit) PatchTarget(pc, target int) {
	u.Instructions[pc].Operand = target
}

// LineAt returns the source line recorded for pc, or 0.
func (u *Unit) LineAt(pc int) int {
	if pc >= 0 && pc < len(u.Lines) {
		return u.Lines[pc]
	}
	return 0
}

// Walk visits u and every unit nested in its function constants, depth first.
func (u *Unit) Walk(visit func(*Unit)) {
	visit(u)
	for _, c := range u.Constants {
		if c.Kind == ConstFunction && c.Function != nil && c.Function.Unit != nil {
			c.Function.Unit.Walk(visit)
		}
	}
}

// CaptureSource says where, in the creating frame, a captured value comes from.
type CaptureSource byte

const (
	CaptureLocal    CaptureSource = iota // creating frame's local slot
	CaptureArgument                      // creating frame's argument
	CaptureClosure                       // creating closure's own environment slot
	CaptureSelf                          // the creating function itself
)

func (s CaptureSource) String() string {
	switch s {
	case CaptureLocal:
		return "local"
	case CaptureArgument:
		return "arg"
	case CaptureClosure:
		return "closure"
	case CaptureSelf:
		return "self"
	}
	return "?"
}

// Capture describes one slot of a closure environment.
type Capture struct {
	_      struct{} `cbor:",toarray"`
	Source CaptureSource
	Index  int
	Name   string
}

// FunctionTemplate is the compiled, not yet instantiated form of a function.
// MAKE_CLOSURE turns it into a heap function by snapshotting Captures.
type FunctionTemplate struct {
	Name       string    `cbor:"1,keyasint"`
	ParamCount int       `cbor:"2,keyasint"`
	Arrow      bool      `cbor:"3,keyasint,omitempty"`
	Captures   []Capture `cbor:"4,keyasint,omitempty"`
	Unit       *Unit     `cbor:"5,keyasint"`
}

// Inspect returns a short description such as <fn add/2>.
func (f *FunctionTemplate) Inspect() string {
	name := f.Name
	if name == "" {
		name = "anonymous"
	}
	if f.Arrow {
		return fmt.Sprintf("<arrow %s/%d>", name, f.ParamCount)
	}
	return fmt.Sprintf("<fn %s/%d>", name, f.ParamCount)
}

// ErrInvalidUnit is matched by every *ValidationError.
var ErrInvalidUnit = errors.New("invalid bytecode unit")

// ValidationError locates a structural defect in a unit.
type ValidationError struct {
	Unit string
	PC   int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.PC < 0 {
		return fmt.Sprintf("invalid unit %s: %s", e.Unit, e.Msg)
	}
	return fmt.Sprintf("invalid unit %s at %04d: %s", e.Unit, e.PC, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidUnit }

// Validate checks the structural invariants of u and all nested units: opcodes
// belong to the instruction set, jump targets lie in [0, len], constant operands
// are in range, MAKE_CLOSURE names a function template, slot operands fit the
// unit's frame and closure environment.
func (u *Unit) Validate() error {
	return u.validate(0)
}

func (u *Unit) validate(captures int) error {
	name := u.Name
	if name == "" {
		name = "<anonymous>"
	}
	fail := func(pc int, format string, args ...interface{}) error {
		return &ValidationError{Unit: name, PC: pc, Msg: fmt.Sprintf(format, args...)}
	}
	if u.LocalCount < 0 || u.LocalCount > MaxOperand {
		return fail(-1, "local count %d outside [0, %d]", u.LocalCount, MaxOperand)
	}
	if len(u.Lines) != 0 && len(u.Lines) != len(u.Instructions) {
		return fail(-1, "line table has %d entries for %d instructions", len(u.Lines), len(u.Instructions))
	}
	for pc, in := range u.Instructions {
		if !in.Op.Valid() {
			return fail(pc, "unknown opcode %d", byte(in.Op))
		}
		switch in.Op.Operand() {
		case OperandConst:
			if in.Operand < 0 || in.Operand >= len(u.Constants) {
				return fail(pc, "%s: constant index %d out of range (%d constants)", in.Op, in.Operand, len(u.Constants))
			}
			if in.Op == OP_MAKE_CLOSURE {
				c := u.Constants[in.Operand]
				if c.Kind != ConstFunction || c.Function == nil || c.Function.Unit == nil {
					return fail(pc, "MAKE_CLOSURE: constant %d is not a function template", in.Operand)
				}
			}
		case OperandTarget:
			if in.Operand < 0 || in.Operand > len(u.Instructions) {
				return fail(pc, "%s: target %d outside [0, %d]", in.Op, in.Operand, len(u.Instructions))
			}
		case OperandLocal:
			if in.Operand < 0 || in.Operand >= u.LocalCount {
				return fail(pc, "%s: slot %d outside frame of %d locals", in.Op, in.Operand, u.LocalCount)
			}
		case OperandCapture:
			if in.Operand < 0 || in.Operand >= captures {
				return fail(pc, "%s: slot %d outside environment of %d", in.Op, in.Operand, captures)
			}
		case OperandArg, OperandCount:
			if in.Operand < 0 || in.Operand > MaxOperand {
				return fail(pc, "%s: operand %d outside [0, %d]", in.Op, in.Operand, MaxOperand)
			}
		case OperandName:
			if in.Name == "" {
				return fail(pc, "%s: empty name", in.Op)
			}
		}
	}
	for i, c := range u.Constants {
		switch c.Kind {
		case ConstNumber, ConstString, ConstBool:
		case ConstFunction:
			fn := c.Function
			if fn == nil || fn.Unit == nil {
				return fail(-1, "constant %d: function template without body", i)
			}
			if fn.ParamCount < 0 || fn.ParamCount > MaxOperand {
				return fail(-1, "constant %d: parameter count %d outside [0, %d]", i, fn.ParamCount, MaxOperand)
			}
			for j, cp := range fn.Captures {
				var ok bool
				switch cp.Source {
				case CaptureLocal:
					ok = cp.Index >= 0 && cp.Index < u.LocalCount
				case CaptureClosure:
					ok = cp.Index >= 0 && cp.Index < captures
				case CaptureArgument:
					ok = cp.Index >= 0 && cp.Index <= MaxOperand
				case CaptureSelf:
					ok = true
				}
				if !ok {
					return fail(-1, "constant %d: capture %d (%s %d) does not resolve", i, j, cp.Source, cp.Index)
				}
			}
			if err := fn.Unit.validate(len(fn.Captures)); err != nil {
				return err
			}
		default:
			return fail(-1, "constant %d: unknown kind %d", i, c.Kind)
		}
	}
	return nil
}

// String returns a one-line summary, used in logs.
func (u *Unit) String() string {
	var sb strings.Builder
	units := 0
	u.Walk(func(*Unit) { units++ })
	fmt.Fprintf(&sb, "unit %s: %d instructions, %d constants, %d locals", u.Name, len(u.Instructions), len(u.Constants), u.LocalCount)
	if units > 1 {
		fmt.Fprintf(&sb, ", %d nested", units-1)
	}
	return sb.String()
}
