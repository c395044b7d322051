package compiler

import (
	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
)

// compileFunction generates the unit of a function and emits MAKE_CLOSURE for
// it in the current unit. name labels the template; selfName, when set, is
// the binding through which the body refers to the function itself.
func (c *Compiler) compileFunction(n ast.Node, name, selfName string, params []ast.Expression, body ast.Node,
	funcType FunctionType, generator, async bool) error {
	if generator {
		return c.unsupportedDetail(n, "generator function")
	}
	if async {
		return c.unsupportedDetail(n, "async function")
	}

	names := make([]string, len(params))
	for i, p := range params {
		id, ok := p.(*ast.Identifier)
		if !ok {
			// Default values, rest parameters and patterns
			return c.unsupported(p, "")
		}
		names[i] = id.Name
	}

	fc := newFunctionCompiler(c, name, funcType, names)
	fc.selfName = selfName
	fc.track(n)

	switch b := body.(type) {
	case *ast.BlockStatement:
		if err := fc.compileBody(b.Body); err != nil {
			return err
		}
		fc.emit(bytecode.OP_PUSH_UNDEFINED)
		fc.emit(bytecode.OP_RETURN)
	case ast.Expression:
		if err := fc.compileExpression(b); err != nil {
			return err
		}
		fc.emit(bytecode.OP_RETURN)
	default:
		return c.unsupportedDetail(n, "function body")
	}

	tmpl := &bytecode.FunctionTemplate{
		Name:       name,
		ParamCount: len(names),
		Arrow:      funcType == TYPE_ARROW,
		Captures:   fc.captures,
		Unit:       fc.finish(),
	}
	log.Debugf("compiled %s", tmpl.Unit)
	c.emitArg(bytecode.OP_MAKE_CLOSURE, c.pool.Intern(bytecode.FunctionConst(tmpl)))
	return nil
}

func (c *Compiler) compileFunctionExpression(fn *ast.FunctionExpression, hint string) error {
	name, self := hint, ""
	if fn.ID != nil {
		name, self = fn.ID.Name, fn.ID.Name
	}
	return c.compileFunction(fn, name, self, fn.Params, fn.Body, TYPE_FUNCTION, fn.Generator, fn.Async)
}

func (c *Compiler) compileArrowFunction(fn *ast.ArrowFunctionExpression, hint string) error {
	return c.compileFunction(fn, hint, "", fn.Params, fn.Body, TYPE_ARROW, false, fn.Async)
}

// compileNamedValue compiles the value of a binding; an anonymous function
// takes the binding's name.
func (c *Compiler) compileNamedValue(expr ast.Expression, name string) error {
	switch fn := expr.(type) {
	case *ast.FunctionExpression:
		c.track(fn)
		return c.compileFunctionExpression(fn, name)
	case *ast.ArrowFunctionExpression:
		c.track(fn)
		return c.compileArrowFunction(fn, name)
	}
	return c.compileExpression(expr)
}

// compileCallExpression compiles a call. Method calls pass the receiver as
// this; calls through the function's own name skip the lookup.
func (c *Compiler) compileCallExpression(call *ast.CallExpression) error {
	if call.Optional {
		return c.unsupported(call, "?.")
	}

	switch callee := call.Callee.(type) {
	case *ast.MemberExpression:
		if callee.Optional {
			return c.unsupported(callee, "?.")
		}
		if err := c.compileExpression(callee.Object); err != nil {
			return err
		}
		c.emit(bytecode.OP_DUP)
		if err := c.compileMemberKey(callee); err != nil {
			return err
		}
		c.emit(bytecode.OP_GET_PROPERTY)
		if err := c.compileArguments(call.Arguments); err != nil {
			return err
		}
		c.track(call)
		c.emitArg(bytecode.OP_CALL_METHOD, len(call.Arguments))
		return nil

	case *ast.Identifier:
		if b, ok := c.resolve(callee.Name); ok && b.kind == bindSelf {
			if err := c.compileArguments(call.Arguments); err != nil {
				return err
			}
			c.track(call)
			c.emitArg(bytecode.OP_CALL_FUNCTION, len(call.Arguments))
			return nil
		}
	}

	if err := c.compileExpression(call.Callee); err != nil {
		return err
	}
	if err := c.compileArguments(call.Arguments); err != nil {
		return err
	}
	c.track(call)
	c.emitArg(bytecode.OP_CALL, len(call.Arguments))
	return nil
}

// compileNewExpression compiles a construct call
func (c *Compiler) compileNewExpression(expr *ast.NewExpression) error {
	if err := c.compileExpression(expr.Callee); err != nil {
		return err
	}
	if err := c.compileArguments(expr.Arguments); err != nil {
		return err
	}
	c.track(expr)
	c.emitArg(bytecode.OP_NEW, len(expr.Arguments))
	return nil
}

func (c *Compiler) compileArguments(args []ast.Expression) error {
	for _, arg := range args {
		if _, ok := arg.(*ast.SpreadElement); ok {
			return c.unsupported(arg, "...")
		}
		if err := c.compileExpression(arg); err != nil {
			return err
		}
	}
	return nil
}
