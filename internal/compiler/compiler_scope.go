package compiler

import (
	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
)

// bindingKind says where a resolved name lives at run time.
type bindingKind int

const (
	bindLocal bindingKind = iota
	bindArg
	bindSelf
	bindCapture
	bindGlobal
)

type binding struct {
	kind     bindingKind
	index    int
	name     string
	constant bool
}

// beginScope starts a new scope
func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope ends the current scope. Slots of the dropped locals stay reserved.
func (c *Compiler) endScope() {
	c.scopeDepth--
	n := len(c.locals)
	for n > 0 && c.locals[n-1].Depth > c.scopeDepth {
		n--
	}
	c.locals = c.locals[:n]
}

// addLocal declares name in the current scope and returns its slot. A second
// declaration of the same name in the same scope reuses the first slot.
func (c *Compiler) addLocal(name string, constant bool) int {
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].Depth == c.scopeDepth; i-- {
		if c.locals[i].Name == name {
			c.locals[i].Const = constant
			return c.locals[i].Slot
		}
	}
	slot := c.newSlot()
	c.locals = append(c.locals, Local{
		Name:  name,
		Depth: c.scopeDepth,
		Slot:  slot,
		Const: constant,
	})
	return slot
}

// newSlot reserves an anonymous frame slot, used for spilled temporaries.
func (c *Compiler) newSlot() int {
	slot := c.unit.LocalCount
	c.unit.LocalCount++
	return slot
}

// resolveLocal looks up a visible local variable by name
func (c *Compiler) resolveLocal(name string) (Local, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return c.locals[i], true
		}
	}
	return Local{}, false
}

// resolveParam returns the argument index of name; the last duplicate wins.
func (c *Compiler) resolveParam(name string) int {
	for i := len(c.params) - 1; i >= 0; i-- {
		if c.params[i] == name {
			return i
		}
	}
	return -1
}

// resolveOwn resolves name against the bindings of this function only.
func (c *Compiler) resolveOwn(name string) (binding, bool) {
	if l, ok := c.resolveLocal(name); ok {
		return binding{kind: bindLocal, index: l.Slot, name: name, constant: l.Const}, true
	}
	if i := c.resolveParam(name); i >= 0 {
		return binding{kind: bindArg, index: i, name: name}, true
	}
	if c.selfName != "" && c.selfName == name {
		return binding{kind: bindSelf, name: name, constant: true}, true
	}
	return binding{}, false
}

// resolveCapture looks for name in enclosing functions, recording a capture
// in every function between the definition and this one. It returns the
// environment slot, or -1.
func (c *Compiler) resolveCapture(name string) (int, bool) {
	if c.enclosing == nil {
		return -1, false
	}

	if b, ok := c.enclosing.resolveOwn(name); ok {
		var src bytecode.CaptureSource
		switch b.kind {
		case bindLocal:
			src = bytecode.CaptureLocal
		case bindArg:
			src = bytecode.CaptureArgument
		case bindSelf:
			src = bytecode.CaptureSelf
		}
		return c.addCapture(src, b.index, name), b.constant
	}

	if up, constant := c.enclosing.resolveCapture(name); up != -1 {
		return c.addCapture(bytecode.CaptureClosure, up, name), constant
	}
	return -1, false
}

// addCapture adds a capture to this function's environment list
func (c *Compiler) addCapture(src bytecode.CaptureSource, index int, name string) int {
	for i, cp := range c.captures {
		if cp.Source == src && cp.Index == index && cp.Name == name {
			return i
		}
	}
	c.captures = append(c.captures, bytecode.Capture{Source: src, Index: index, Name: name})
	return len(c.captures) - 1
}

// resolve applies the full lookup order: locals, parameters, the function's
// own name, enclosing functions, then globals.
func (c *Compiler) resolve(name string) (binding, bool) {
	if b, ok := c.resolveOwn(name); ok {
		return b, true
	}
	if slot, constant := c.resolveCapture(name); slot != -1 {
		return binding{kind: bindCapture, index: slot, name: name, constant: constant}, true
	}
	if c.globals[name] {
		return binding{kind: bindGlobal, name: name, constant: c.consts[name]}, true
	}
	if c.opts.AllowImplicitGlobals && !literalNames[name] {
		return binding{kind: bindGlobal, name: name}, true
	}
	return binding{}, false
}

// emitLoad pushes the value of a resolved binding.
func (c *Compiler) emitLoad(b binding) {
	switch b.kind {
	case bindLocal:
		c.emitArg(bytecode.OP_LOAD_LOCAL, b.index)
	case bindArg:
		c.emitArg(bytecode.OP_LOAD_ARG, b.index)
	case bindSelf:
		c.emit(bytecode.OP_LOAD_THIS_FUNCTION)
	case bindCapture:
		c.emitArg(bytecode.OP_LOAD_CLOSURE, b.index)
	case bindGlobal:
		c.emitName(bytecode.OP_LOAD_GLOBAL, b.name)
	}
}

// emitStore stores the top of stack into a binding, leaving it on the stack.
func (c *Compiler) emitStore(b binding) {
	switch b.kind {
	case bindLocal:
		c.emitArg(bytecode.OP_STORE_LOCAL, b.index)
	case bindArg:
		c.emitArg(bytecode.OP_STORE_ARG, b.index)
	case bindCapture:
		c.emitArg(bytecode.OP_STORE_CLOSURE, b.index)
	case bindGlobal:
		c.emitName(bytecode.OP_STORE_GLOBAL, b.name)
	}
}

// resolveTarget resolves an identifier used as an assignment target.
func (c *Compiler) resolveTarget(id *ast.Identifier) (binding, error) {
	b, ok := c.resolve(id.Name)
	if !ok {
		return binding{}, &GenerationError{Kind: UnresolvedBinding, Construct: id.Kind(), Name: id.Name, Line: c.lineOf(id)}
	}
	if b.constant {
		return binding{}, &GenerationError{
			Kind:      InvalidAssignmentTarget,
			Construct: id.Kind(),
			Name:      id.Name,
			Line:      c.lineOf(id),
			Detail:    "constant binding",
		}
	}
	return b, nil
}

// declareBlock gives every let/const/var/function declared directly in stmts
// a slot in the current scope, so hoisted functions and earlier statements
// see the block's bindings.
func (c *Compiler) declareBlock(stmts []ast.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VariableDeclaration:
			for _, d := range s.Declarations {
				if id, ok := d.ID.(*ast.Identifier); ok {
					c.addLocal(id.Name, s.DeclKind == "const")
				}
			}
		case *ast.FunctionDeclaration:
			if s.ID != nil {
				c.addLocal(s.ID.Name, false)
			}
		}
	}
}

// hoistFunctions creates the closures of the function declarations in stmts,
// in source order, before any other statement of the body runs. Local
// declarations are created again at their own position by
// compileFunctionDeclaration, so their snapshot sees the enclosing values
// initialized before them.
func (c *Compiler) hoistFunctions(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		fn, ok := stmt.(*ast.FunctionDeclaration)
		if !ok {
			continue
		}
		if fn.ID == nil {
			return c.unsupportedDetail(fn, "function declaration without name")
		}
		c.track(fn)
		if err := c.compileFunction(fn, fn.ID.Name, fn.ID.Name, fn.Params, fn.Body, TYPE_FUNCTION, fn.Generator, fn.Async); err != nil {
			return err
		}
		if c.isTopLevel() {
			c.emitName(bytecode.OP_STORE_GLOBAL, fn.ID.Name)
		} else {
			if c.declared == nil {
				c.declared = make(map[*ast.FunctionDeclaration]int)
			}
			c.declared[fn] = c.unit.Instructions[c.unit.Len()-1].Operand
			l, _ := c.resolveLocal(fn.ID.Name)
			c.emitArg(bytecode.OP_STORE_LOCAL, l.Slot)
		}
		c.emit(bytecode.OP_POP)
	}
	return nil
}

// compileFunctionDeclaration re-creates a hoisted local function from its
// template, snapshotting the captures live at the declaration.
func (c *Compiler) compileFunctionDeclaration(fn *ast.FunctionDeclaration) error {
	index, ok := c.declared[fn]
	if !ok {
		// Top-level declarations are globals created once by hoistFunctions.
		return nil
	}
	l, _ := c.resolveLocal(fn.ID.Name)
	c.emitArg(bytecode.OP_MAKE_CLOSURE, index)
	c.emitArg(bytecode.OP_STORE_LOCAL, l.Slot)
	c.emit(bytecode.OP_POP)
	return nil
}

// compileBody compiles a statement list that opens a scope: the program,
// a function body or a block.
func (c *Compiler) compileBody(stmts []ast.Statement) error {
	if !c.isTopLevel() {
		c.declareBlock(stmts)
	}
	if err := c.hoistFunctions(stmts); err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}
