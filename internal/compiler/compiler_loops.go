package compiler

import (
	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
)

func (c *Compiler) pushLoop() {
	c.loopStack = append(c.loopStack, LoopContext{})
}

// popLoop patches the loop's pending jumps: continues to continueTarget and
// breaks to the current end of the unit.
func (c *Compiler) popLoop(continueTarget int) {
	loopCtx := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, pc := range loopCtx.continueJumps {
		c.unit.PatchTarget(pc, continueTarget)
	}
	for _, pc := range loopCtx.breakJumps {
		c.patchJump(pc)
	}
}

// compileWhileStatement compiles: while (test) body
func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) error {
	loopStart := c.unit.Len()
	c.pushLoop()

	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	exitJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)

	if err := c.compileNested(s.Body); err != nil {
		return err
	}
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.popLoop(loopStart)
	return nil
}

// compileDoWhileStatement compiles: do body while (test)
func (c *Compiler) compileDoWhileStatement(s *ast.DoWhileStatement) error {
	loopStart := c.unit.Len()
	c.pushLoop()

	if err := c.compileNested(s.Body); err != nil {
		return err
	}

	continueTarget := c.unit.Len()
	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	c.emitArg(bytecode.OP_JUMP_IF_TRUE, loopStart)

	c.popLoop(continueTarget)
	return nil
}

// compileForStatement compiles: for (init; test; update) body
// Bindings declared in init are scoped to the loop.
func (c *Compiler) compileForStatement(s *ast.ForStatement) error {
	c.beginScope()
	defer c.endScope()

	switch init := s.Init.(type) {
	case nil:
	case *ast.VariableDeclaration:
		c.declareBlock([]ast.Statement{init})
		if err := c.compileVariableDeclaration(init); err != nil {
			return err
		}
	case *ast.ExpressionStatement:
		// Not a completion value
		if err := c.compileExpression(init.Expression); err != nil {
			return err
		}
		c.emit(bytecode.OP_POP)
	default:
		return c.unsupported(init, "")
	}

	loopStart := c.unit.Len()
	c.pushLoop()

	exitJump := -1
	if s.Test != nil {
		if err := c.compileExpression(s.Test); err != nil {
			return err
		}
		exitJump = c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	}

	if err := c.compileNested(s.Body); err != nil {
		return err
	}

	continueTarget := c.unit.Len()
	if s.Update != nil {
		if err := c.compileExpression(s.Update); err != nil {
			return err
		}
		c.emit(bytecode.OP_POP)
	}
	c.emitLoop(loopStart)

	if exitJump >= 0 {
		c.patchJump(exitJump)
	}
	c.popLoop(continueTarget)
	return nil
}

// compileBreakStatement compiles break statement
func (c *Compiler) compileBreakStatement(s *ast.BreakStatement) error {
	if s.Label != nil {
		return c.unsupported(s, s.Label.Name)
	}
	if len(c.loopStack) == 0 {
		return c.unsupportedDetail(s, "break outside of loop")
	}
	loopCtx := &c.loopStack[len(c.loopStack)-1]
	loopCtx.breakJumps = append(loopCtx.breakJumps, c.emitJump(bytecode.OP_JUMP))
	return nil
}

// compileContinueStatement compiles continue statement
func (c *Compiler) compileContinueStatement(s *ast.ContinueStatement) error {
	if s.Label != nil {
		return c.unsupported(s, s.Label.Name)
	}
	if len(c.loopStack) == 0 {
		return c.unsupportedDetail(s, "continue outside of loop")
	}
	loopCtx := &c.loopStack[len(c.loopStack)-1]
	loopCtx.continueJumps = append(loopCtx.continueJumps, c.emitJump(bytecode.OP_JUMP))
	return nil
}
