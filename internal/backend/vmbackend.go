package backend

import (
	"context"
	"errors"
	"io"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
	"github.com/wendelmax/jsvm/internal/pipeline"
	"github.com/wendelmax/jsvm/internal/vm"
)

// VMBackend owns a heap and a VM on it. Globals persist across runs.
type VMBackend struct {
	arena   *heap.Arena
	machine *vm.VM

	// Trace, when set, receives every instruction before it runs.
	Trace io.Writer

	// Palette colors Disassemble output.
	Palette bytecode.Palette
}

// NewVM creates a VM backend configured by cfg (nil means defaults).
func NewVM(cfg *config.Config, opts ...vm.Option) *VMBackend {
	if cfg == nil {
		cfg = config.Default()
	}
	arena := heap.NewArena(cfg.GC)
	opts = append([]vm.Option{vm.WithConfig(cfg)}, opts...)
	return &VMBackend{
		arena:   arena,
		machine: vm.New(arena, cfg.Limits, opts...),
	}
}

// Machine returns the underlying VM, e.g. to define host functions.
func (b *VMBackend) Machine() *vm.VM { return b.machine }

// Heap returns the backend's heap.
func (b *VMBackend) Heap() *heap.Arena { return b.arena }

// Globals lists the names the compiler should resolve as globals.
func (b *VMBackend) Globals() []string { return b.machine.GlobalNames() }

// Close releases the VM's roots.
func (b *VMBackend) Close() { b.machine.Close() }

// Run executes ctx.Unit
func (b *VMBackend) Run(ctx *pipeline.PipelineContext) (heap.Value, error) {
	if ctx.Unit == nil {
		return heap.Undefined(), errors.New("no unit to execute")
	}

	if b.Trace != nil {
		dbg := b.machine.EnableDebugger()
		dbg.Output = b.Trace
		dbg.Step()
		dbg.OnStop = func(d *vm.Debugger, m *vm.VM) { d.PrintInstruction(m) }
		defer func() { dbg.Enabled = false }()
	}

	runCtx := ctx.Context
	if runCtx == nil {
		runCtx = context.Background()
	}
	return b.machine.ExecuteContext(runCtx, ctx.Unit)
}

// Name returns the backend name
func (b *VMBackend) Name() string {
	return "vm"
}

// Disassemble renders ctx.Unit and its nested function units.
func (b *VMBackend) Disassemble(ctx *pipeline.PipelineContext) string {
	if ctx.Unit == nil {
		return ""
	}
	return b.Palette.Disassemble(ctx.Unit)
}
