package ast

// Constructors for hand-built trees. Positions are left unset.

func Prog(body ...Statement) *Program { return &Program{SourceType: "script", Body: body} }

func Num(v float64) *NumberLiteral   { return &NumberLiteral{Value: v} }
func Str(v string) *StringLiteral    { return &StringLiteral{Value: v} }
func Bool(v bool) *BooleanLiteral    { return &BooleanLiteral{Value: v} }
func Null() *NullLiteral             { return &NullLiteral{} }
func Undefined() *UndefinedLiteral   { return &UndefinedLiteral{} }
func This() *ThisExpression          { return &ThisExpression{} }
func Ident(name string) *Identifier  { return &Identifier{Name: name} }
func Expr(e Expression) Statement    { return &ExpressionStatement{Expression: e} }
func Block(body ...Statement) *BlockStatement {
	return &BlockStatement{Body: body}
}

func Bin(op string, l, r Expression) *BinaryExpression {
	return &BinaryExpression{Operator: op, Left: l, Right: r}
}

func Logical(op string, l, r Expression) *LogicalExpression {
	return &LogicalExpression{Operator: op, Left: l, Right: r}
}

func Unary(op string, arg Expression) *UnaryExpression {
	return &UnaryExpression{Operator: op, Argument: arg, Prefix: true}
}

func Update(op string, prefix bool, arg Expression) *UpdateExpression {
	return &UpdateExpression{Operator: op, Argument: arg, Prefix: prefix}
}

func Assign(op string, target, value Expression) *AssignmentExpression {
	return &AssignmentExpression{Operator: op, Left: target, Right: value}
}

func Cond(test, cons, alt Expression) *ConditionalExpression {
	return &ConditionalExpression{Test: test, Consequent: cons, Alternate: alt}
}

func Call(callee Expression, args ...Expression) *CallExpression {
	return &CallExpression{Callee: callee, Arguments: args}
}

func New(callee Expression, args ...Expression) *NewExpression {
	return &NewExpression{Callee: callee, Arguments: args}
}

// Dot builds `obj.name`.
func Dot(obj Expression, name string) *MemberExpression {
	return &MemberExpression{Object: obj, Property: Ident(name)}
}

// Index builds `obj[key]`.
func Index(obj, key Expression) *MemberExpression {
	return &MemberExpression{Object: obj, Property: key, Computed: true}
}

func Array(elems ...Expression) *ArrayLiteral { return &ArrayLiteral{Elements: elems} }

// Obj builds an object literal from alternating key/value pairs.
func Obj(kv ...interface{}) *ObjectLiteral {
	lit := &ObjectLiteral{}
	for i := 0; i+1 < len(kv); i += 2 {
		lit.Properties = append(lit.Properties, &Property{
			Key:      Ident(kv[i].(string)),
			Value:    kv[i+1].(Expression),
			PropKind: "init",
		})
	}
	return lit
}

func decl(kind, name string, init Expression) *VariableDeclaration {
	return &VariableDeclaration{
		DeclKind:     kind,
		Declarations: []*VariableDeclarator{{ID: Ident(name), Init: init}},
	}
}

func Let(name string, init Expression) *VariableDeclaration   { return decl("let", name, init) }
func Const(name string, init Expression) *VariableDeclaration { return decl("const", name, init) }
func Var(name string, init Expression) *VariableDeclaration   { return decl("var", name, init) }

func params(names []string) []Expression {
	out := make([]Expression, len(names))
	for i, n := range names {
		out[i] = Ident(n)
	}
	return out
}

// Func builds a function declaration.
func Func(name string, paramNames []string, body ...Statement) *FunctionDeclaration {
	return &FunctionDeclaration{ID: Ident(name), Params: params(paramNames), Body: Block(body...)}
}

// FuncExpr builds a function expression; name may be empty.
func FuncExpr(name string, paramNames []string, body ...Statement) *FunctionExpression {
	fn := &FunctionExpression{Params: params(paramNames), Body: Block(body...)}
	if name != "" {
		fn.ID = Ident(name)
	}
	return fn
}

// Arrow builds an expression-bodied arrow function.
func Arrow(paramNames []string, body Expression) *ArrowFunctionExpression {
	return &ArrowFunctionExpression{Params: params(paramNames), Body: body, ExprBody: true}
}

func Return(arg Expression) *ReturnStatement { return &ReturnStatement{Argument: arg} }

func If(test Expression, cons, alt Statement) *IfStatement {
	return &IfStatement{Test: test, Consequent: cons, Alternate: alt}
}

func While(test Expression, body Statement) *WhileStatement {
	return &WhileStatement{Test: test, Body: body}
}

func For(init Statement, test, update Expression, body Statement) *ForStatement {
	return &ForStatement{Init: init, Test: test, Update: update, Body: body}
}

func Break() *BreakStatement       { return &BreakStatement{} }
func Continue() *ContinueStatement { return &ContinueStatement{} }
