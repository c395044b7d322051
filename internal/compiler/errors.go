package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a GenerationError.
type ErrorKind int

const (
	// Unsupported marks a node, operator or form the generator does not lower.
	Unsupported ErrorKind = iota
	// InvalidAssignmentTarget marks an assignment or update whose target is not
	// an identifier or member expression, or is a constant binding.
	InvalidAssignmentTarget
	// UnresolvedBinding marks a name that is neither local, captured nor global.
	UnresolvedBinding
)

func (k ErrorKind) String() string {
	switch k {
	case Unsupported:
		return "Unsupported"
	case InvalidAssignmentTarget:
		return "InvalidAssignmentTarget"
	case UnresolvedBinding:
		return "UnresolvedBinding"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels matched with errors.Is against any *GenerationError of that kind.
var (
	ErrUnsupported             = errors.New("unsupported construct")
	ErrInvalidAssignmentTarget = errors.New("invalid assignment target")
	ErrUnresolvedBinding       = errors.New("unresolved binding")
)

// GenerationError is returned by Compile. No unit is produced when it occurs.
type GenerationError struct {
	Kind      ErrorKind
	Construct string // AST node kind, e.g. "ClassDeclaration"
	Name      string // identifier or operator involved, if any
	Line      int
	Detail    string
}

func (e *GenerationError) Error() string {
	msg := e.Unwrap().Error()
	if e.Construct != "" {
		msg += ": " + e.Construct
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	switch e.Kind {
	case InvalidAssignmentTarget:
		return ErrInvalidAssignmentTarget
	case UnresolvedBinding:
		return ErrUnresolvedBinding
	}
	return ErrUnsupported
}
