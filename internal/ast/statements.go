package ast

// VariableDeclaration represents `var`, `let` or `const` with one or more declarators.
type VariableDeclaration struct {
	Start        Position
	DeclKind     string // "var", "let" or "const"
	Declarations []*VariableDeclarator
}

// VariableDeclarator is a single `id = init` binding. ID is an *Identifier for
// plain bindings; destructuring patterns decode as other expressions.
type VariableDeclarator struct {
	Start Position
	ID    Expression
	Init  Expression // nil when absent
}

// FunctionDeclaration represents `function name(params) { body }`.
type FunctionDeclaration struct {
	Start     Position
	ID        *Identifier
	Params    []Expression
	Body      *BlockStatement
	Generator bool
	Async     bool
}

// ClassDeclaration represents `class Name extends Super { ... }`.
type ClassDeclaration struct {
	Start      Position
	ID         *Identifier
	SuperClass Expression
}

// BlockStatement represents `{ ... }`.
type BlockStatement struct {
	Start Position
	Body  []Statement
}

// EmptyStatement represents a lone `;`.
type EmptyStatement struct {
	Start Position
}

// ExpressionStatement wraps an expression evaluated for its effect.
type ExpressionStatement struct {
	Start      Position
	Expression Expression
}

// IfStatement represents `if (test) consequent else alternate`.
type IfStatement struct {
	Start      Position
	Test       Expression
	Consequent Statement
	Alternate  Statement // nil when absent
}

// WhileStatement represents `while (test) body`.
type WhileStatement struct {
	Start Position
	Test  Expression
	Body  Statement
}

// DoWhileStatement represents `do body while (test)`.
type DoWhileStatement struct {
	Start Position
	Body  Statement
	Test  Expression
}

// ForStatement represents `for (init; test; update) body`.
// Init is either a *VariableDeclaration or an expression wrapped in an
// *ExpressionStatement; any of Init, Test and Update may be nil.
type ForStatement struct {
	Start  Position
	Init   Statement
	Test   Expression
	Update Expression
	Body   Statement
}

// ReturnStatement represents `return argument`.
type ReturnStatement struct {
	Start    Position
	Argument Expression // nil for a bare return
}

// BreakStatement represents `break label`.
type BreakStatement struct {
	Start Position
	Label *Identifier
}

// ContinueStatement represents `continue label`.
type ContinueStatement struct {
	Start Position
	Label *Identifier
}

// SwitchStatement represents `switch (discriminant) { cases }`.
type SwitchStatement struct {
	Start        Position
	Discriminant Expression
	Cases        []*SwitchCase
}

// SwitchCase is a single `case test:` (or `default:` when Test is nil).
type SwitchCase struct {
	Start      Position
	Test       Expression
	Consequent []Statement
}

// TryStatement represents `try { } catch (param) { } finally { }`.
type TryStatement struct {
	Start     Position
	Block     *BlockStatement
	Handler   *CatchClause
	Finalizer *BlockStatement
}

// CatchClause is the `catch` part of a try statement.
type CatchClause struct {
	Start Position
	Param Expression
	Body  *BlockStatement
}

// ThrowStatement represents `throw argument`.
type ThrowStatement struct {
	Start    Position
	Argument Expression
}

// LabeledStatement represents `label: body`.
type LabeledStatement struct {
	Start Position
	Label *Identifier
	Body  Statement
}

func (s *VariableDeclaration) Kind() string { return "VariableDeclaration" }
func (s *FunctionDeclaration) Kind() string { return "FunctionDeclaration" }
func (s *ClassDeclaration) Kind() string    { return "ClassDeclaration" }
func (s *BlockStatement) Kind() string      { return "BlockStatement" }
func (s *EmptyStatement) Kind() string      { return "EmptyStatement" }
func (s *ExpressionStatement) Kind() string { return "ExpressionStatement" }
func (s *IfStatement) Kind() string         { return "IfStatement" }
func (s *WhileStatement) Kind() string      { return "WhileStatement" }
func (s *DoWhileStatement) Kind() string    { return "DoWhileStatement" }
func (s *ForStatement) Kind() string        { return "ForStatement" }
func (s *ReturnStatement) Kind() string     { return "ReturnStatement" }
func (s *BreakStatement) Kind() string      { return "BreakStatement" }
func (s *ContinueStatement) Kind() string   { return "ContinueStatement" }
func (s *SwitchStatement) Kind() string     { return "SwitchStatement" }
func (s *TryStatement) Kind() string        { return "TryStatement" }
func (s *ThrowStatement) Kind() string      { return "ThrowStatement" }
func (s *LabeledStatement) Kind() string    { return "LabeledStatement" }

func (s *VariableDeclaration) Pos() Position { return s.Start }
func (s *FunctionDeclaration) Pos() Position { return s.Start }
func (s *ClassDeclaration) Pos() Position    { return s.Start }
func (s *BlockStatement) Pos() Position      { return s.Start }
func (s *EmptyStatement) Pos() Position      { return s.Start }
func (s *ExpressionStatement) Pos() Position { return s.Start }
func (s *IfStatement) Pos() Position         { return s.Start }
func (s *WhileStatement) Pos() Position      { return s.Start }
func (s *DoWhileStatement) Pos() Position    { return s.Start }
func (s *ForStatement) Pos() Position        { return s.Start }
func (s *ReturnStatement) Pos() Position     { return s.Start }
func (s *BreakStatement) Pos() Position      { return s.Start }
func (s *ContinueStatement) Pos() Position   { return s.Start }
func (s *SwitchStatement) Pos() Position     { return s.Start }
func (s *TryStatement) Pos() Position        { return s.Start }
func (s *ThrowStatement) Pos() Position      { return s.Start }
func (s *LabeledStatement) Pos() Position    { return s.Start }

func (s *VariableDeclaration) node() {}
func (s *FunctionDeclaration) node() {}
func (s *ClassDeclaration) node()    {}
func (s *BlockStatement) node()      {}
func (s *EmptyStatement) node()      {}
func (s *ExpressionStatement) node() {}
func (s *IfStatement) node()         {}
func (s *WhileStatement) node()      {}
func (s *DoWhileStatement) node()    {}
func (s *ForStatement) node()        {}
func (s *ReturnStatement) node()     {}
func (s *BreakStatement) node()      {}
func (s *ContinueStatement) node()   {}
func (s *SwitchStatement) node()     {}
func (s *TryStatement) node()        {}
func (s *ThrowStatement) node()      {}
func (s *LabeledStatement) node()    {}

func (s *VariableDeclaration) statementNode() {}
func (s *FunctionDeclaration) statementNode() {}
func (s *ClassDeclaration) statementNode()    {}
func (s *BlockStatement) statementNode()      {}
func (s *EmptyStatement) statementNode()      {}
func (s *ExpressionStatement) statementNode() {}
func (s *IfStatement) statementNode()         {}
func (s *WhileStatement) statementNode()      {}
func (s *DoWhileStatement) statementNode()    {}
func (s *ForStatement) statementNode()        {}
func (s *ReturnStatement) statementNode()     {}
func (s *BreakStatement) statementNode()      {}
func (s *ContinueStatement) statementNode()   {}
func (s *SwitchStatement) statementNode()     {}
func (s *TryStatement) statementNode()        {}
func (s *ThrowStatement) statementNode()      {}
func (s *LabeledStatement) statementNode()    {}
