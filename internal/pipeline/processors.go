package pipeline

import (
	"fmt"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/compiler"
)

// DecodeProcessor turns Source into an AST, or into a unit when Source holds
// serialized bytecode.
type DecodeProcessor struct{}

func (DecodeProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if len(ctx.Errors) > 0 || ctx.AstRoot != nil || ctx.Unit != nil {
		return ctx
	}

	if bytecode.IsSerialized(ctx.Source) {
		unit, err := bytecode.Unmarshal(ctx.Source)
		if err != nil {
			return ctx.fail(fmt.Errorf("%s: %w", ctx.name(), err))
		}
		ctx.Unit = unit
		return ctx
	}

	prog, err := ast.Decode(ctx.Source)
	if err != nil {
		return ctx.fail(fmt.Errorf("%s: %w", ctx.name(), err))
	}
	if prog.File == "" {
		prog.File = ctx.FilePath
	}
	ctx.AstRoot = prog
	return ctx
}

// CompileProcessor generates the program unit from the AST.
type CompileProcessor struct {
	// Name overrides the program unit name.
	Name string
}

func (p CompileProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if len(ctx.Errors) > 0 || ctx.Unit != nil {
		return ctx
	}
	if ctx.AstRoot == nil {
		return ctx.fail(fmt.Errorf("%s: no program to compile", ctx.name()))
	}

	unit, err := compiler.New(compiler.Options{
		Globals:              ctx.Globals,
		AllowImplicitGlobals: ctx.AllowImplicitGlobals,
		Name:                 p.Name,
	}).Compile(ctx.AstRoot)
	if err != nil {
		return ctx.fail(fmt.Errorf("%s: %w", ctx.name(), err))
	}
	ctx.Unit = unit
	return ctx
}

func (ctx *PipelineContext) name() string {
	if ctx.FilePath == "" {
		return "<input>"
	}
	return ctx.FilePath
}
