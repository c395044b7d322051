// Package ast defines the validated syntax tree consumed by the bytecode compiler.
//
// The tree is produced upstream (parsing and semantic analysis are not part of
// this module). Node kinds and field names follow ESTree so that an AST document
// exported by a front end decodes without translation.
package ast

import "fmt"

// Position is a location in the original source. Zero means unknown.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is the base interface for all AST nodes.
// The set of implementations is closed: only types in this package satisfy it.
type Node interface {
	// Kind returns the ESTree type name of the node (e.g. "BinaryExpression").
	Kind() string
	Pos() Position
	node()
}

// Statement is a Node that represents a statement or declaration.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node of every tree.
type Program struct {
	Start      Position
	File       string // Source file path, if known
	SourceType string // "script" or "module"
	Body       []Statement
}

func (p *Program) Kind() string  { return "Program" }
func (p *Program) Pos() Position { return p.Start }
func (p *Program) node()         {}
