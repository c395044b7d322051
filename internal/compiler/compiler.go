// Package compiler lowers a validated syntax tree into bytecode units.
//
// One Compiler exists per function being generated; nested functions get a
// child compiler whose enclosing field points at the parent, so name
// resolution can walk outwards and record closure captures.
package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
)

var log = commonlog.GetLogger(config.LogCompiler)

// Options configure a compilation.
type Options struct {
	// Globals are names the host defines before execution (natives, bound values).
	Globals []string

	// AllowImplicitGlobals turns unresolved names into global loads and stores
	// instead of UnresolvedBinding errors.
	AllowImplicitGlobals bool

	// Name of the program unit; defaults to config.ProgramUnitName.
	Name string
}

// FunctionType distinguishes top-level code from functions
type FunctionType int

const (
	TYPE_PROGRAM FunctionType = iota
	TYPE_FUNCTION
	TYPE_ARROW
)

// completionSlot is the program unit's local holding the last expression value.
const completionSlot = 0

// Local represents a local variable during compilation
type Local struct {
	Name  string
	Depth int // Scope depth where this local was declared
	Slot  int // Frame slot; never reused within a unit
	Const bool
}

// LoopContext tracks loop information for break/continue
type LoopContext struct {
	breakJumps    []int // Jumps to patch to the loop exit
	continueJumps []int // Jumps to patch to the continue target
}

// Compiler compiles AST to bytecode
type Compiler struct {
	unit     *bytecode.Unit
	pool     *bytecode.ConstantPool
	funcType FunctionType

	// selfName is the function's own name as visible from its body
	selfName string
	params   []string

	locals     []Local
	scopeDepth int

	// Snapshot captures of this function, in environment slot order
	captures []bytecode.Capture

	// Enclosing compiler (for nested functions)
	enclosing *Compiler

	// Loop context stack for break/continue
	loopStack []LoopContext

	// Template constants of hoisted local function declarations
	declared map[*ast.FunctionDeclaration]int

	// Names defined at program top level or by the host, shared by all compilers
	globals map[string]bool
	consts  map[string]bool

	opts Options
	line int
}

// New creates a compiler for a program.
func New(opts Options) *Compiler {
	if opts.Name == "" {
		opts.Name = config.ProgramUnitName
	}
	c := &Compiler{
		funcType: TYPE_PROGRAM,
		globals:  make(map[string]bool),
		consts:   make(map[string]bool),
		opts:     opts,
	}
	for _, name := range opts.Globals {
		c.globals[name] = true
	}
	return c
}

// newFunctionCompiler creates a compiler for a function
func newFunctionCompiler(enclosing *Compiler, name string, funcType FunctionType, params []string) *Compiler {
	if name == "" {
		name = "anonymous"
	}
	return &Compiler{
		unit:       &bytecode.Unit{Name: name, File: enclosing.unit.File},
		pool:       bytecode.NewConstantPool(),
		funcType:   funcType,
		params:     params,
		scopeDepth: 1, // Function body starts at depth 1
		enclosing:  enclosing,
		globals:    enclosing.globals,
		consts:     enclosing.consts,
		opts:       enclosing.opts,
		line:       enclosing.line,
	}
}

// Compile generates the program unit. On error no unit is returned.
func (c *Compiler) Compile(program *ast.Program) (*bytecode.Unit, error) {
	c.unit = &bytecode.Unit{Name: c.opts.Name, File: program.File}
	c.pool = bytecode.NewConstantPool()
	c.locals = nil
	c.scopeDepth = 0
	c.loopStack = nil
	c.line = program.Start.Line

	// Slot 0 holds the completion value.
	c.unit.LocalCount = 1

	c.declareGlobals(program.Body)
	if err := c.compileBody(program.Body); err != nil {
		return nil, err
	}
	c.emitArg(bytecode.OP_LOAD_LOCAL, completionSlot)
	c.emit(bytecode.OP_RETURN)

	unit := c.finish()
	log.Debugf("compiled %s", unit)
	return unit, nil
}

// declareGlobals registers every top-level declaration so that functions can
// refer to globals declared after them.
func (c *Compiler) declareGlobals(body []ast.Statement) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.VariableDeclaration:
			for _, d := range s.Declarations {
				if id, ok := d.ID.(*ast.Identifier); ok {
					c.globals[id.Name] = true
					c.consts[id.Name] = s.DeclKind == "const"
				}
			}
		case *ast.FunctionDeclaration:
			if s.ID != nil {
				c.globals[s.ID.Name] = true
				c.consts[s.ID.Name] = false
			}
		}
	}
}

// finish freezes the constant pool into the unit.
func (c *Compiler) finish() *bytecode.Unit {
	c.unit.Constants = c.pool.Constants()
	return c.unit
}

// isTopLevel reports whether declarations at the current point become globals.
func (c *Compiler) isTopLevel() bool {
	return c.funcType == TYPE_PROGRAM && c.scopeDepth == 0
}

// track records the source line of n for the instructions that follow.
func (c *Compiler) track(n ast.Node) {
	if line := n.Pos().Line; line > 0 {
		c.line = line
	}
}

// emit helpers

func (c *Compiler) emit(op bytecode.Opcode) int {
	return c.unit.Emit(bytecode.Op(op), c.line)
}

func (c *Compiler) emitArg(op bytecode.Opcode, operand int) int {
	return c.unit.Emit(bytecode.OpArg(op, operand), c.line)
}

func (c *Compiler) emitName(op bytecode.Opcode, name string) int {
	return c.unit.Emit(bytecode.OpName(op, name), c.line)
}

func (c *Compiler) emitConstant(k bytecode.Constant) {
	c.emitArg(bytecode.OP_PUSH_CONST, c.pool.Intern(k))
}

// emitJump emits a jump with a placeholder target and returns its index.
func (c *Compiler) emitJump(op bytecode.Opcode) int {
	return c.emitArg(op, -1)
}

// patchJump points the jump at pc to the next instruction.
func (c *Compiler) patchJump(pc int) {
	c.unit.PatchTarget(pc, c.unit.Len())
}

// emitLoop emits a backward jump to loopStart
func (c *Compiler) emitLoop(loopStart int) {
	c.emitArg(bytecode.OP_JUMP, loopStart)
}

// error helpers

func (c *Compiler) unsupported(n ast.Node, name string) error {
	return &GenerationError{Kind: Unsupported, Construct: n.Kind(), Name: name, Line: c.lineOf(n)}
}

func (c *Compiler) unsupportedDetail(n ast.Node, detail string) error {
	return &GenerationError{Kind: Unsupported, Construct: n.Kind(), Detail: detail, Line: c.lineOf(n)}
}

func (c *Compiler) lineOf(n ast.Node) int {
	if line := n.Pos().Line; line > 0 {
		return line
	}
	return c.line
}
