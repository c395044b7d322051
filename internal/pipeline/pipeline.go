// Package pipeline chains the stages that turn an AST document into a
// result: decoding, bytecode generation and execution.
package pipeline

import (
	"time"

	"github.com/tliron/commonlog"

	"github.com/wendelmax/jsvm/internal/config"
)

var log = commonlog.GetLogger(config.LogPipeline)

// Processor is one stage of a pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Every stage runs; stages skip their work once
// an earlier stage has recorded an error.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		start := time.Now()
		ctx = processor.Process(ctx)
		log.Debugf("%T done in %s (%d errors)", processor, time.Since(start), len(ctx.Errors))
	}
	return ctx
}
