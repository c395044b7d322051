package compiler

import (
	"math"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/heap"
)

var binaryOps = map[string]bytecode.Opcode{
	"+":   bytecode.OP_ADD,
	"-":   bytecode.OP_SUB,
	"*":   bytecode.OP_MUL,
	"/":   bytecode.OP_DIV,
	"%":   bytecode.OP_MOD,
	"**":  bytecode.OP_POW,
	"==":  bytecode.OP_EQ,
	"!=":  bytecode.OP_NE,
	"===": bytecode.OP_STRICT_EQ,
	"!==": bytecode.OP_STRICT_NE,
	"<":   bytecode.OP_LT,
	">":   bytecode.OP_GT,
	"<=":  bytecode.OP_LE,
	">=":  bytecode.OP_GE,
	"in":  bytecode.OP_IN,
}

var compoundOps = map[string]bytecode.Opcode{
	"+=":  bytecode.OP_ADD,
	"-=":  bytecode.OP_SUB,
	"*=":  bytecode.OP_MUL,
	"/=":  bytecode.OP_DIV,
	"%=":  bytecode.OP_MOD,
	"**=": bytecode.OP_POW,
}

// compileExpression compiles an expression; it leaves exactly one value on
// the operand stack.
func (c *Compiler) compileExpression(expr ast.Expression) error {
	c.track(expr)

	switch e := expr.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(bytecode.NumberConst(e.Value))
	case *ast.StringLiteral:
		c.emitConstant(bytecode.StringConst(e.Value))
	case *ast.BooleanLiteral:
		if e.Value {
			c.emit(bytecode.OP_PUSH_TRUE)
		} else {
			c.emit(bytecode.OP_PUSH_FALSE)
		}
	case *ast.NullLiteral:
		c.emit(bytecode.OP_PUSH_NULL)
	case *ast.UndefinedLiteral:
		c.emit(bytecode.OP_PUSH_UNDEFINED)
	case *ast.ThisExpression:
		c.emit(bytecode.OP_LOAD_THIS)

	case *ast.Identifier:
		return c.compileIdentifier(e)

	case *ast.BinaryExpression:
		return c.compileBinaryExpression(e)
	case *ast.LogicalExpression:
		return c.compileLogicalExpression(e)
	case *ast.UnaryExpression:
		return c.compileUnaryExpression(e)
	case *ast.UpdateExpression:
		return c.compileUpdateExpression(e)
	case *ast.AssignmentExpression:
		return c.compileAssignmentExpression(e)
	case *ast.ConditionalExpression:
		return c.compileConditionalExpression(e)
	case *ast.SequenceExpression:
		return c.compileSequenceExpression(e)

	case *ast.CallExpression:
		return c.compileCallExpression(e)
	case *ast.NewExpression:
		return c.compileNewExpression(e)
	case *ast.MemberExpression:
		return c.compileMemberExpression(e)

	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(e)
	case *ast.ObjectLiteral:
		return c.compileObjectLiteral(e)

	case *ast.FunctionExpression:
		return c.compileFunctionExpression(e, "")
	case *ast.ArrowFunctionExpression:
		return c.compileArrowFunction(e, "")

	case *ast.RegExpLiteral, *ast.BigIntLiteral, *ast.TemplateLiteral,
		*ast.SpreadElement, *ast.YieldExpression, *ast.AwaitExpression:
		return c.unsupported(e, "")

	default:
		return c.unsupported(expr, "")
	}
	return nil
}

// literalNames are the global value properties compiled as literals unless a
// binding shadows them.
var literalNames = map[string]bool{"undefined": true, "NaN": true, "Infinity": true}

func (c *Compiler) compileIdentifier(id *ast.Identifier) error {
	if b, ok := c.resolve(id.Name); ok {
		c.emitLoad(b)
		return nil
	}
	switch id.Name {
	case "undefined":
		c.emit(bytecode.OP_PUSH_UNDEFINED)
	case "NaN":
		c.emitConstant(bytecode.NumberConst(math.NaN()))
	case "Infinity":
		c.emitConstant(bytecode.NumberConst(math.Inf(1)))
	default:
		return &GenerationError{Kind: UnresolvedBinding, Construct: id.Kind(), Name: id.Name, Line: c.lineOf(id)}
	}
	return nil
}

func (c *Compiler) compileBinaryExpression(e *ast.BinaryExpression) error {
	op, ok := binaryOps[e.Operator]
	if !ok {
		return c.unsupported(e, e.Operator)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	c.track(e)
	c.emit(op)
	return nil
}

// compileLogicalExpression compiles short-circuit operators. The left value
// is kept as the result when the right side is skipped.
func (c *Compiler) compileLogicalExpression(e *ast.LogicalExpression) error {
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	c.track(e)
	c.emit(bytecode.OP_DUP)

	var endJump int
	switch e.Operator {
	case "&&":
		endJump = c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	case "||":
		endJump = c.emitJump(bytecode.OP_JUMP_IF_TRUE)
	case "??":
		// null == undefined, so one loose comparison covers both
		c.emit(bytecode.OP_PUSH_NULL)
		c.emit(bytecode.OP_EQ)
		endJump = c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	default:
		return c.unsupported(e, e.Operator)
	}

	c.emit(bytecode.OP_POP)
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) compileUnaryExpression(e *ast.UnaryExpression) error {
	if e.Operator == "typeof" {
		// typeof tolerates undeclared names
		if id, ok := e.Argument.(*ast.Identifier); ok && !literalNames[id.Name] {
			if _, found := c.resolve(id.Name); !found {
				c.emitConstant(bytecode.StringConst("undefined"))
				return nil
			}
		}
	}

	var op bytecode.Opcode
	switch e.Operator {
	case "-":
		op = bytecode.OP_NEG
	case "+":
		op = bytecode.OP_TO_NUMBER
	case "!":
		op = bytecode.OP_NOT
	case "typeof":
		op = bytecode.OP_TYPEOF
	case "delete":
		return c.compileDeleteExpression(e)
	case "void":
		if err := c.compileExpression(e.Argument); err != nil {
			return err
		}
		c.emit(bytecode.OP_POP)
		c.emit(bytecode.OP_PUSH_UNDEFINED)
		return nil
	default:
		return c.unsupported(e, e.Operator)
	}

	if err := c.compileExpression(e.Argument); err != nil {
		return err
	}
	c.track(e)
	c.emit(op)
	return nil
}

// compileDeleteExpression compiles delete on a member expression. Bindings
// cannot be deleted.
func (c *Compiler) compileDeleteExpression(e *ast.UnaryExpression) error {
	m, ok := e.Argument.(*ast.MemberExpression)
	if !ok || m.Optional {
		return c.unsupportedDetail(e, "delete of a non-member expression")
	}
	if err := c.compileExpression(m.Object); err != nil {
		return err
	}
	if err := c.compileMemberKey(m); err != nil {
		return err
	}
	c.track(e)
	c.emit(bytecode.OP_DELETE_PROPERTY)
	return nil
}

// compileMemberSpill evaluates receiver and key of m once into hidden slots and
// leaves [receiver, key, current value] on the stack, ready for SET_PROPERTY.
func (c *Compiler) compileMemberSpill(m *ast.MemberExpression) error {
	recv, key := c.newSlot(), c.newSlot()
	if err := c.compileExpression(m.Object); err != nil {
		return err
	}
	c.emitArg(bytecode.OP_STORE_LOCAL, recv)
	if err := c.compileMemberKey(m); err != nil {
		return err
	}
	c.emitArg(bytecode.OP_STORE_LOCAL, key)
	c.emitArg(bytecode.OP_LOAD_LOCAL, recv)
	c.emitArg(bytecode.OP_LOAD_LOCAL, key)
	c.emit(bytecode.OP_GET_PROPERTY)
	return nil
}

func (c *Compiler) invalidTarget(n ast.Node) error {
	return &GenerationError{Kind: InvalidAssignmentTarget, Construct: n.Kind(), Line: c.lineOf(n)}
}

// compileUpdateExpression compiles ++/--. The prefix form yields the new
// value, the postfix form the old value converted to a number.
func (c *Compiler) compileUpdateExpression(e *ast.UpdateExpression) error {
	var op bytecode.Opcode
	switch e.Operator {
	case "++":
		op = bytecode.OP_INC
	case "--":
		op = bytecode.OP_DEC
	default:
		return c.unsupported(e, e.Operator)
	}

	switch target := e.Argument.(type) {
	case *ast.Identifier:
		b, err := c.resolveTarget(target)
		if err != nil {
			return err
		}
		c.emitLoad(b)
		if e.Prefix {
			c.emit(op)
			c.emitStore(b)
			return nil
		}
		c.emit(bytecode.OP_TO_NUMBER)
		c.emit(bytecode.OP_DUP)
		c.emit(op)
		c.emitStore(b)
		c.emit(bytecode.OP_POP)
		return nil

	case *ast.MemberExpression:
		if target.Optional {
			return c.invalidTarget(target)
		}
		if err := c.compileMemberSpill(target); err != nil {
			return err
		}
		c.track(e)
		if e.Prefix {
			c.emit(op)
			c.emit(bytecode.OP_SET_PROPERTY)
			return nil
		}
		old := c.newSlot()
		c.emit(bytecode.OP_TO_NUMBER)
		c.emitArg(bytecode.OP_STORE_LOCAL, old)
		c.emit(op)
		c.emit(bytecode.OP_SET_PROPERTY)
		c.emit(bytecode.OP_POP)
		c.emitArg(bytecode.OP_LOAD_LOCAL, old)
		return nil
	}
	return c.invalidTarget(e.Argument)
}

// compileAssignmentExpression compiles plain and compound assignment. The
// assigned value is the result.
func (c *Compiler) compileAssignmentExpression(e *ast.AssignmentExpression) error {
	var arith bytecode.Opcode
	if e.Operator != "=" {
		op, ok := compoundOps[e.Operator]
		if !ok {
			return c.unsupported(e, e.Operator)
		}
		arith = op
	}

	switch target := e.Left.(type) {
	case *ast.Identifier:
		b, err := c.resolveTarget(target)
		if err != nil {
			return err
		}
		if e.Operator == "=" {
			if err := c.compileNamedValue(e.Right, target.Name); err != nil {
				return err
			}
		} else {
			c.emitLoad(b)
			if err := c.compileExpression(e.Right); err != nil {
				return err
			}
			c.emit(arith)
		}
		c.track(e)
		c.emitStore(b)
		return nil

	case *ast.MemberExpression:
		if target.Optional {
			return c.invalidTarget(target)
		}
		if e.Operator == "=" {
			if err := c.compileExpression(target.Object); err != nil {
				return err
			}
			if err := c.compileMemberKey(target); err != nil {
				return err
			}
			if err := c.compileExpression(e.Right); err != nil {
				return err
			}
		} else {
			if err := c.compileMemberSpill(target); err != nil {
				return err
			}
			if err := c.compileExpression(e.Right); err != nil {
				return err
			}
			c.emit(arith)
		}
		c.track(e)
		c.emit(bytecode.OP_SET_PROPERTY)
		return nil
	}
	return c.invalidTarget(e.Left)
}

// compileConditionalExpression compiles test ? consequent : alternate
func (c *Compiler) compileConditionalExpression(e *ast.ConditionalExpression) error {
	if err := c.compileExpression(e.Test); err != nil {
		return err
	}
	elseJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	if err := c.compileExpression(e.Consequent); err != nil {
		return err
	}
	endJump := c.emitJump(bytecode.OP_JUMP)
	c.patchJump(elseJump)
	if err := c.compileExpression(e.Alternate); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) compileSequenceExpression(e *ast.SequenceExpression) error {
	if len(e.Expressions) == 0 {
		c.emit(bytecode.OP_PUSH_UNDEFINED)
		return nil
	}
	for i, sub := range e.Expressions {
		if err := c.compileExpression(sub); err != nil {
			return err
		}
		if i < len(e.Expressions)-1 {
			c.emit(bytecode.OP_POP)
		}
	}
	return nil
}

// compileMemberKey pushes the property key of m: the name of a dot access or
// the value of a computed one.
func (c *Compiler) compileMemberKey(m *ast.MemberExpression) error {
	if m.Computed {
		return c.compileExpression(m.Property)
	}
	id, ok := m.Property.(*ast.Identifier)
	if !ok {
		return c.unsupported(m.Property, "")
	}
	c.emitConstant(bytecode.StringConst(id.Name))
	return nil
}

func (c *Compiler) compileMemberExpression(m *ast.MemberExpression) error {
	if m.Optional {
		return c.unsupported(m, "?.")
	}
	if err := c.compileExpression(m.Object); err != nil {
		return err
	}
	if err := c.compileMemberKey(m); err != nil {
		return err
	}
	c.track(m)
	c.emit(bytecode.OP_GET_PROPERTY)
	return nil
}

// compileArrayLiteral pushes the elements in order and collects them with
// NEW_ARRAY. Elisions become undefined.
func (c *Compiler) compileArrayLiteral(lit *ast.ArrayLiteral) error {
	for _, el := range lit.Elements {
		if el == nil {
			c.emit(bytecode.OP_PUSH_UNDEFINED)
			continue
		}
		if _, ok := el.(*ast.SpreadElement); ok {
			return c.unsupported(el, "...")
		}
		if err := c.compileExpression(el); err != nil {
			return err
		}
	}
	c.track(lit)
	c.emitArg(bytecode.OP_NEW_ARRAY, len(lit.Elements))
	return nil
}

// compileObjectLiteral creates the object and sets each property on a
// duplicate of it, in source order.
func (c *Compiler) compileObjectLiteral(lit *ast.ObjectLiteral) error {
	c.emit(bytecode.OP_NEW_OBJECT)
	for _, p := range lit.Properties {
		if p.PropKind != "" && p.PropKind != "init" {
			return c.unsupported(p, p.PropKind)
		}
		c.track(p)
		c.emit(bytecode.OP_DUP)
		key, err := c.compilePropertyKey(p)
		if err != nil {
			return err
		}
		if err := c.compileNamedValue(p.Value, key); err != nil {
			return err
		}
		c.emit(bytecode.OP_SET_PROPERTY)
		c.emit(bytecode.OP_POP)
	}
	return nil
}

// compilePropertyKey pushes the key of an object literal entry and returns it
// when it is static.
func (c *Compiler) compilePropertyKey(p *ast.Property) (string, error) {
	if p.Computed {
		return "", c.compileExpression(p.Key)
	}
	var key string
	switch k := p.Key.(type) {
	case *ast.Identifier:
		key = k.Name
	case *ast.StringLiteral:
		key = k.Value
	case *ast.NumberLiteral:
		key = heap.NumberToString(k.Value)
	default:
		return "", c.unsupported(p.Key, "")
	}
	c.emitConstant(bytecode.StringConst(key))
	return key, nil
}
