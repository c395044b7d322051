package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a RuntimeError.
type ErrorKind int

const (
	StackUnderflow ErrorKind = iota
	StackOverflow
	InvalidHeapHandle
	TypeMismatch
	NotCallable
	NotAnObject
	PropertyNotFound
	UndefinedVariable
	InvalidInstruction
	InstructionLimit
	Cancelled
	HeapExhausted
	HostError
)

var kindNames = [...]string{
	StackUnderflow:     "StackUnderflow",
	StackOverflow:      "StackOverflow",
	InvalidHeapHandle:  "InvalidHeapHandle",
	TypeMismatch:       "TypeMismatch",
	NotCallable:        "NotCallable",
	NotAnObject:        "NotAnObject",
	PropertyNotFound:   "PropertyNotFound",
	UndefinedVariable:  "UndefinedVariable",
	InvalidInstruction: "InvalidInstruction",
	InstructionLimit:   "InstructionLimit",
	Cancelled:          "Cancelled",
	HeapExhausted:      "HeapExhausted",
	HostError:          "HostError",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels, one per kind, matched with errors.Is.
var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrInvalidHeapHandle  = errors.New("invalid heap handle")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrNotCallable        = errors.New("not callable")
	ErrNotAnObject        = errors.New("not an object")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrUndefinedVariable  = errors.New("undefined variable")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrInstructionLimit   = errors.New("instruction limit exceeded")
	ErrCancelled          = errors.New("execution cancelled")
	ErrHeapExhausted      = errors.New("heap exhausted")
	ErrHostError          = errors.New("host function failed")
)

var sentinels = [...]error{
	StackUnderflow:     ErrStackUnderflow,
	StackOverflow:      ErrStackOverflow,
	InvalidHeapHandle:  ErrInvalidHeapHandle,
	TypeMismatch:       ErrTypeMismatch,
	NotCallable:        ErrNotCallable,
	NotAnObject:        ErrNotAnObject,
	PropertyNotFound:   ErrPropertyNotFound,
	UndefinedVariable:  ErrUndefinedVariable,
	InvalidInstruction: ErrInvalidInstruction,
	InstructionLimit:   ErrInstructionLimit,
	Cancelled:          ErrCancelled,
	HeapExhausted:      ErrHeapExhausted,
	HostError:          ErrHostError,
}

// RuntimeError is a fault raised while executing a unit. All frames are
// unwound when it is returned.
type RuntimeError struct {
	Kind   ErrorKind
	Op     string // mnemonic of the faulting instruction
	PC     int    // instruction index in Unit
	Unit   string
	Line   int
	Detail string

	// Trace lists the active frames, innermost first, as "at <fn>:<pc>".
	Trace []string

	// Cause is the underlying error, if any (context, heap or host error).
	Cause error

	located bool
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString("runtime error: ")
	sb.WriteString(e.Kind.String())
	if e.located {
		fmt.Fprintf(&sb, " at %s:%04d", e.Unit, e.PC)
		if e.Op != "" {
			fmt.Fprintf(&sb, " (%s)", e.Op)
		}
		if e.Line > 0 {
			fmt.Fprintf(&sb, ", line %d", e.Line)
		}
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.Trace) > 0 {
		sb.WriteString("\nStack trace:")
		for _, t := range e.Trace {
			sb.WriteString("\n  ")
			sb.WriteString(t)
		}
	}
	return sb.String()
}

func (e *RuntimeError) Unwrap() []error {
	var errs []error
	if int(e.Kind) >= 0 && int(e.Kind) < len(sentinels) {
		errs = append(errs, sentinels[e.Kind])
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// fault creates an unlocated error; formatError adds the location.
func fault(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

var (
	errStackUnderflow = fault(StackUnderflow, "operand stack is empty")
	errStackOverflow  = fault(StackOverflow, "operand stack limit reached")
)
