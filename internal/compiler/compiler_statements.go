package compiler

import (
	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
)

// compileStatement compiles a single statement; it leaves the operand stack
// as it found it.
func (c *Compiler) compileStatement(stmt ast.Statement) error {
	c.track(stmt)

	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		return c.compileExpressionStatement(s)

	case *ast.VariableDeclaration:
		return c.compileVariableDeclaration(s)

	case *ast.FunctionDeclaration:
		return c.compileFunctionDeclaration(s)

	case *ast.BlockStatement:
		return c.compileBlockStatement(s)

	case *ast.EmptyStatement:
		return nil

	case *ast.IfStatement:
		return c.compileIfStatement(s)

	case *ast.WhileStatement:
		return c.compileWhileStatement(s)

	case *ast.DoWhileStatement:
		return c.compileDoWhileStatement(s)

	case *ast.ForStatement:
		return c.compileForStatement(s)

	case *ast.BreakStatement:
		return c.compileBreakStatement(s)

	case *ast.ContinueStatement:
		return c.compileContinueStatement(s)

	case *ast.ReturnStatement:
		return c.compileReturnStatement(s)

	case *ast.ClassDeclaration, *ast.SwitchStatement, *ast.TryStatement,
		*ast.ThrowStatement, *ast.LabeledStatement:
		return c.unsupported(s, "")

	default:
		return c.unsupported(stmt, "")
	}
}

// compileExpressionStatement evaluates an expression for its effect. In the
// program unit the value also becomes the completion value.
func (c *Compiler) compileExpressionStatement(s *ast.ExpressionStatement) error {
	if err := c.compileExpression(s.Expression); err != nil {
		return err
	}
	if c.funcType == TYPE_PROGRAM {
		c.emitArg(bytecode.OP_STORE_LOCAL, completionSlot)
	}
	c.emit(bytecode.OP_POP)
	return nil
}

func (c *Compiler) compileVariableDeclaration(s *ast.VariableDeclaration) error {
	switch s.DeclKind {
	case "var", "let", "const":
	default:
		return c.unsupported(s, s.DeclKind)
	}

	for _, d := range s.Declarations {
		id, ok := d.ID.(*ast.Identifier)
		if !ok {
			// Destructuring patterns
			return c.unsupported(d.ID, "")
		}
		if d.Init != nil {
			if err := c.compileNamedValue(d.Init, id.Name); err != nil {
				return err
			}
		} else {
			c.emit(bytecode.OP_PUSH_UNDEFINED)
		}

		if c.isTopLevel() {
			c.emitName(bytecode.OP_STORE_GLOBAL, id.Name)
		} else {
			l, found := c.resolveLocal(id.Name)
			if !found || l.Depth != c.scopeDepth {
				l.Slot = c.addLocal(id.Name, s.DeclKind == "const")
			}
			c.emitArg(bytecode.OP_STORE_LOCAL, l.Slot)
		}
		c.emit(bytecode.OP_POP)
	}
	return nil
}

// compileBlockStatement compiles a block in its own scope
func (c *Compiler) compileBlockStatement(block *ast.BlockStatement) error {
	c.beginScope()
	err := c.compileBody(block.Body)
	c.endScope()
	return err
}

// compileIfStatement compiles if/else with a conditional jump over each arm
func (c *Compiler) compileIfStatement(s *ast.IfStatement) error {
	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	elseJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)

	if err := c.compileNested(s.Consequent); err != nil {
		return err
	}
	if s.Alternate == nil {
		c.patchJump(elseJump)
		return nil
	}

	endJump := c.emitJump(bytecode.OP_JUMP)
	c.patchJump(elseJump)
	if err := c.compileNested(s.Alternate); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

// compileNested compiles a statement in statement position of another one.
// A bare declaration there still gets its own scope.
func (c *Compiler) compileNested(stmt ast.Statement) error {
	switch stmt.(type) {
	case *ast.VariableDeclaration, *ast.FunctionDeclaration:
		c.beginScope()
		err := c.compileBody([]ast.Statement{stmt})
		c.endScope()
		return err
	}
	return c.compileStatement(stmt)
}

// compileReturnStatement compiles return with or without a value
func (c *Compiler) compileReturnStatement(s *ast.ReturnStatement) error {
	if s.Argument == nil {
		c.emit(bytecode.OP_PUSH_UNDEFINED)
	} else if err := c.compileExpression(s.Argument); err != nil {
		return err
	}
	c.emit(bytecode.OP_RETURN)
	return nil
}
