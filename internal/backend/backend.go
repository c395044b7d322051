// Package backend runs compiled units as the last pipeline stage.
package backend

import (
	"github.com/wendelmax/jsvm/internal/heap"
	"github.com/wendelmax/jsvm/internal/pipeline"
)

// Backend is the interface for execution backends
type Backend interface {
	// Run executes the unit from pipeline context and returns the result
	Run(ctx *pipeline.PipelineContext) (heap.Value, error)

	// Name returns the backend name for display
	Name() string
}
