package pipeline

import (
	"context"
	"errors"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
)

// PipelineContext carries one document through the stages.
type PipelineContext struct {
	Context  context.Context
	FilePath string
	Source   []byte
	Config   *config.Config

	// Globals are resolved by the compiler as global bindings, e.g. host
	// functions or globals left behind by earlier runs on the same VM.
	Globals              []string
	AllowImplicitGlobals bool

	AstRoot *ast.Program
	Unit    *bytecode.Unit

	Result   heap.Value
	Executed bool

	Errors []error
}

// NewPipelineContext creates a context for source with the default config.
func NewPipelineContext(source []byte) *PipelineContext {
	return &PipelineContext{
		Context: context.Background(),
		Source:  source,
		Config:  config.Default(),
	}
}

// Err joins the recorded errors, or returns nil.
func (ctx *PipelineContext) Err() error {
	return errors.Join(ctx.Errors...)
}

func (ctx *PipelineContext) fail(err error) *PipelineContext {
	ctx.Errors = append(ctx.Errors, err)
	return ctx
}
