package ast

// Identifier is a reference to a binding by name.
type Identifier struct {
	Start Position
	Name  string
}

// NumberLiteral is a double-precision numeric literal.
type NumberLiteral struct {
	Start Position
	Value float64
}

// StringLiteral is a string literal.
type StringLiteral struct {
	Start Position
	Value string
}

// BooleanLiteral is `true` or `false`.
type BooleanLiteral struct {
	Start Position
	Value bool
}

// NullLiteral is `null`.
type NullLiteral struct {
	Start Position
}

// UndefinedLiteral is `undefined` when the front end resolved it as the literal.
type UndefinedLiteral struct {
	Start Position
}

// RegExpLiteral is `/pattern/flags`.
type RegExpLiteral struct {
	Start   Position
	Pattern string
	Flags   string
}

// BigIntLiteral is `123n`; Value holds the digits.
type BigIntLiteral struct {
	Start Position
	Value string
}

// ThisExpression is `this`.
type ThisExpression struct {
	Start Position
}

// ArrayLiteral is `[a, b, c]`. A nil element is an elision.
type ArrayLiteral struct {
	Start    Position
	Elements []Expression
}

// ObjectLiteral is `{key: value, ...}`.
type ObjectLiteral struct {
	Start      Position
	Properties []*Property
}

// Property is a single entry of an object literal.
type Property struct {
	Start     Position
	Key       Expression // *Identifier or literal, or any expression when Computed
	Value     Expression
	Computed  bool
	Shorthand bool
	Method    bool
	PropKind  string // "init", "get" or "set"
}

// BinaryExpression is `left op right` for arithmetic, comparison and `in`.
type BinaryExpression struct {
	Start    Position
	Operator string
	Left     Expression
	Right    Expression
}

// LogicalExpression is `left && right`, `left || right` or `left ?? right`.
type LogicalExpression struct {
	Start    Position
	Operator string
	Left     Expression
	Right    Expression
}

// UnaryExpression is `op argument`.
type UnaryExpression struct {
	Start    Position
	Operator string
	Argument Expression
	Prefix   bool
}

// UpdateExpression is `++x`, `x++`, `--x` or `x--`.
type UpdateExpression struct {
	Start    Position
	Operator string
	Argument Expression
	Prefix   bool
}

// AssignmentExpression is `left op right` where op is `=` or a compound operator.
type AssignmentExpression struct {
	Start    Position
	Operator string
	Left     Expression
	Right    Expression
}

// ConditionalExpression is `test ? consequent : alternate`.
type ConditionalExpression struct {
	Start      Position
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

// SequenceExpression is `a, b, c`.
type SequenceExpression struct {
	Start       Position
	Expressions []Expression
}

// CallExpression is `callee(arguments)`.
type CallExpression struct {
	Start     Position
	Callee    Expression
	Arguments []Expression
	Optional  bool
}

// NewExpression is `new callee(arguments)`.
type NewExpression struct {
	Start     Position
	Callee    Expression
	Arguments []Expression
}

// MemberExpression is `object.property` or `object[property]`.
type MemberExpression struct {
	Start    Position
	Object   Expression
	Property Expression
	Computed bool
	Optional bool
}

// FunctionExpression is `function name(params) { body }` used as a value.
type FunctionExpression struct {
	Start     Position
	ID        *Identifier // nil for anonymous functions
	Params    []Expression
	Body      *BlockStatement
	Generator bool
	Async     bool
}

// ArrowFunctionExpression is `(params) => body`. Body is either a
// *BlockStatement or, when ExprBody is set, an expression.
type ArrowFunctionExpression struct {
	Start    Position
	Params   []Expression
	Body     Node
	ExprBody bool
	Async    bool
}

// TemplateLiteral is a backquoted string with interpolations.
type TemplateLiteral struct {
	Start       Position
	Quasis      []string
	Expressions []Expression
}

// SpreadElement is `...argument`.
type SpreadElement struct {
	Start    Position
	Argument Expression
}

// YieldExpression is `yield argument`.
type YieldExpression struct {
	Start    Position
	Argument Expression
	Delegate bool
}

// AwaitExpression is `await argument`.
type AwaitExpression struct {
	Start    Position
	Argument Expression
}

func (e *Identifier) Kind() string              { return "Identifier" }
func (e *NumberLiteral) Kind() string           { return "NumberLiteral" }
func (e *StringLiteral) Kind() string           { return "StringLiteral" }
func (e *BooleanLiteral) Kind() string          { return "BooleanLiteral" }
func (e *NullLiteral) Kind() string             { return "NullLiteral" }
func (e *UndefinedLiteral) Kind() string        { return "UndefinedLiteral" }
func (e *RegExpLiteral) Kind() string           { return "RegExpLiteral" }
func (e *BigIntLiteral) Kind() string           { return "BigIntLiteral" }
func (e *ThisExpression) Kind() string          { return "ThisExpression" }
func (e *ArrayLiteral) Kind() string            { return "ArrayExpression" }
func (e *ObjectLiteral) Kind() string           { return "ObjectExpression" }
func (e *Property) Kind() string                { return "Property" }
func (e *BinaryExpression) Kind() string        { return "BinaryExpression" }
func (e *LogicalExpression) Kind() string       { return "LogicalExpression" }
func (e *UnaryExpression) Kind() string         { return "UnaryExpression" }
func (e *UpdateExpression) Kind() string        { return "UpdateExpression" }
func (e *AssignmentExpression) Kind() string    { return "AssignmentExpression" }
func (e *ConditionalExpression) Kind() string   { return "ConditionalExpression" }
func (e *SequenceExpression) Kind() string      { return "SequenceExpression" }
func (e *CallExpression) Kind() string          { return "CallExpression" }
func (e *NewExpression) Kind() string           { return "NewExpression" }
func (e *MemberExpression) Kind() string        { return "MemberExpression" }
func (e *FunctionExpression) Kind() string      { return "FunctionExpression" }
func (e *ArrowFunctionExpression) Kind() string { return "ArrowFunctionExpression" }
func (e *TemplateLiteral) Kind() string         { return "TemplateLiteral" }
func (e *SpreadElement) Kind() string           { return "SpreadElement" }
func (e *YieldExpression) Kind() string         { return "YieldExpression" }
func (e *AwaitExpression) Kind() string         { return "AwaitExpression" }

func (e *Identifier) Pos() Position              { return e.Start }
func (e *NumberLiteral) Pos() Position           { return e.Start }
func (e *StringLiteral) Pos() Position           { return e.Start }
func (e *BooleanLiteral) Pos() Position          { return e.Start }
func (e *NullLiteral) Pos() Position             { return e.Start }
func (e *UndefinedLiteral) Pos() Position        { return e.Start }
func (e *RegExpLiteral) Pos() Position           { return e.Start }
func (e *BigIntLiteral) Pos() Position           { return e.Start }
func (e *ThisExpression) Pos() Position          { return e.Start }
func (e *ArrayLiteral) Pos() Position            { return e.Start }
func (e *ObjectLiteral) Pos() Position           { return e.Start }
func (e *Property) Pos() Position                { return e.Start }
func (e *BinaryExpression) Pos() Position        { return e.Start }
func (e *LogicalExpression) Pos() Position       { return e.Start }
func (e *UnaryExpression) Pos() Position         { return e.Start }
func (e *UpdateExpression) Pos() Position        { return e.Start }
func (e *AssignmentExpression) Pos() Position    { return e.Start }
func (e *ConditionalExpression) Pos() Position   { return e.Start }
func (e *SequenceExpression) Pos() Position      { return e.Start }
func (e *CallExpression) Pos() Position          { return e.Start }
func (e *NewExpression) Pos() Position           { return e.Start }
func (e *MemberExpression) Pos() Position        { return e.Start }
func (e *FunctionExpression) Pos() Position      { return e.Start }
func (e *ArrowFunctionExpression) Pos() Position { return e.Start }
func (e *TemplateLiteral) Pos() Position         { return e.Start }
func (e *SpreadElement) Pos() Position           { return e.Start }
func (e *YieldExpression) Pos() Position         { return e.Start }
func (e *AwaitExpression) Pos() Position         { return e.Start }

func (e *Identifier) node()              {}
func (e *NumberLiteral) node()           {}
func (e *StringLiteral) node()           {}
func (e *BooleanLiteral) node()          {}
func (e *NullLiteral) node()             {}
func (e *UndefinedLiteral) node()        {}
func (e *RegExpLiteral) node()           {}
func (e *BigIntLiteral) node()           {}
func (e *ThisExpression) node()          {}
func (e *ArrayLiteral) node()            {}
func (e *ObjectLiteral) node()           {}
func (e *Property) node()                {}
func (e *BinaryExpression) node()        {}
func (e *LogicalExpression) node()       {}
func (e *UnaryExpression) node()         {}
func (e *UpdateExpression) node()        {}
func (e *AssignmentExpression) node()    {}
func (e *ConditionalExpression) node()   {}
func (e *SequenceExpression) node()      {}
func (e *CallExpression) node()          {}
func (e *NewExpression) node()           {}
func (e *MemberExpression) node()        {}
func (e *FunctionExpression) node()      {}
func (e *ArrowFunctionExpression) node() {}
func (e *TemplateLiteral) node()         {}
func (e *SpreadElement) node()           {}
func (e *YieldExpression) node()         {}
func (e *AwaitExpression) node()         {}

func (e *Identifier) expressionNode()              {}
func (e *NumberLiteral) expressionNode()           {}
func (e *StringLiteral) expressionNode()           {}
func (e *BooleanLiteral) expressionNode()          {}
func (e *NullLiteral) expressionNode()             {}
func (e *UndefinedLiteral) expressionNode()        {}
func (e *RegExpLiteral) expressionNode()           {}
func (e *BigIntLiteral) expressionNode()           {}
func (e *ThisExpression) expressionNode()          {}
func (e *ArrayLiteral) expressionNode()            {}
func (e *ObjectLiteral) expressionNode()           {}
func (e *BinaryExpression) expressionNode()        {}
func (e *LogicalExpression) expressionNode()       {}
func (e *UnaryExpression) expressionNode()         {}
func (e *UpdateExpression) expressionNode()        {}
func (e *AssignmentExpression) expressionNode()    {}
func (e *ConditionalExpression) expressionNode()   {}
func (e *SequenceExpression) expressionNode()      {}
func (e *CallExpression) expressionNode()          {}
func (e *NewExpression) expressionNode()           {}
func (e *MemberExpression) expressionNode()        {}
func (e *FunctionExpression) expressionNode()      {}
func (e *ArrowFunctionExpression) expressionNode() {}
func (e *TemplateLiteral) expressionNode()         {}
func (e *SpreadElement) expressionNode()           {}
func (e *YieldExpression) expressionNode()         {}
func (e *AwaitExpression) expressionNode()         {}
