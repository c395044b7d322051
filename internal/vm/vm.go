// Package vm executes bytecode units on a stack machine backed by a managed
// heap.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
)

var log = commonlog.GetLogger(config.LogVM)

// Initial sizes for stack and frames
const InitialStackSize = 256
const InitialFrameCount = 64

// CallFrame represents a single ongoing function call
type CallFrame struct {
	fn      heap.Value     // The function being executed; undefined for the program
	closure *heap.Function // Cell behind fn, nil for the program and natives
	unit    *bytecode.Unit // The bytecode being executed
	ip      int            // Index of the next instruction
	base    int            // Operand stack index where the call began

	locals []heap.Value // LocalCount slots
	args   []heap.Value // max(argc, params); missing parameters are undefined
	env    []heap.Value // the closure's captured environment
	this   heap.Value

	construct bool
}

// VM is the virtual machine that executes bytecode
type VM struct {
	heap   heap.Heap
	limits config.Limits

	stack []heap.Value
	sp    int // Stack pointer (points to next free slot)

	frames []CallFrame
	frame  *CallFrame // Current frame (for convenience)

	// Globals are stored in an immutable persistent map; they survive between
	// executions on the same VM
	globals *PersistentMap

	// Values held by Go code during native calls
	temps []heap.Value

	autoGC bool
	strict bool

	executed int64
	ctx      context.Context

	debugger *Debugger

	removeRoots func()
}

// Option configures a VM.
type Option func(*VM)

// WithAutoGC enables or disables collection at allocation safepoints.
func WithAutoGC(enabled bool) Option {
	return func(vm *VM) { vm.autoGC = enabled }
}

// WithStrictProperties makes reads of missing properties fail with
// PropertyNotFound instead of yielding undefined.
func WithStrictProperties(strict bool) Option {
	return func(vm *VM) { vm.strict = strict }
}

// WithDebugger attaches a debugger.
func WithDebugger(d *Debugger) Option {
	return func(vm *VM) { vm.debugger = d }
}

// WithConfig applies the GC and property settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(vm *VM) {
		vm.autoGC = cfg.GC.Auto
		vm.strict = cfg.Properties.Strict
	}
}

// New creates a VM on h and registers it as a root source of h.
func New(h heap.Heap, limits config.Limits, opts ...Option) *VM {
	if limits.MaxFrames <= 0 {
		limits.MaxFrames = config.DefaultMaxFrames
	}
	if limits.MaxStack <= 0 {
		limits.MaxStack = config.DefaultMaxStack
	}
	vm := &VM{
		heap:    h,
		limits:  limits,
		stack:   make([]heap.Value, InitialStackSize),
		frames:  make([]CallFrame, 0, InitialFrameCount),
		globals: EmptyMap(),
		autoGC:  true,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.removeRoots = h.AddRoots(vm)
	return vm
}

// Close unregisters the VM from its heap. Its globals become collectable.
func (vm *VM) Close() {
	if vm.removeRoots != nil {
		vm.removeRoots()
		vm.removeRoots = nil
	}
}

// Heap returns the heap the VM allocates on.
func (vm *VM) Heap() heap.Heap { return vm.heap }

// GetDebugger returns the attached debugger, or nil.
func (vm *VM) GetDebugger() *Debugger { return vm.debugger }

// Execute runs unit as a program with the given arguments.
func (vm *VM) Execute(unit *bytecode.Unit, args ...heap.Value) (heap.Value, error) {
	return vm.ExecuteContext(context.Background(), unit, args...)
}

// ExecuteContext runs unit until it returns, faults or ctx is done.
func (vm *VM) ExecuteContext(ctx context.Context, unit *bytecode.Unit, args ...heap.Value) (heap.Value, error) {
	if len(vm.frames) > 0 {
		return heap.Undefined(), errors.New("vm: Execute called while running; use CallFunction from natives")
	}
	if err := unit.Validate(); err != nil {
		return heap.Undefined(), &RuntimeError{Kind: InvalidInstruction, Unit: unit.Name, Detail: err.Error(), Cause: err}
	}

	id := uuid.New()
	log.Debugf("execution %s: start %s", id, unit.Name)

	vm.ctx = ctx
	vm.executed = 0
	vm.sp = 0
	vm.temps = vm.temps[:0]
	vm.frames = append(vm.frames[:0], CallFrame{
		unit:   unit,
		locals: make([]heap.Value, unit.LocalCount),
		args:   append([]heap.Value(nil), args...),
	})
	vm.frame = &vm.frames[0]

	result, err := vm.executeWithDebugger(0)

	// Unwind everything; a fault leaves no frame behind.
	vm.frames = vm.frames[:0]
	vm.frame = nil
	clear(vm.stack[:vm.sp])
	vm.sp = 0
	vm.ctx = nil

	if err != nil {
		log.Warningf("execution %s: %s", id, firstLine(err.Error()))
		return heap.Undefined(), err
	}
	log.Debugf("execution %s: done after %d instructions", id, vm.executed)
	return result, nil
}

// step executes one instruction and returns (result, done, error)
// done is true when a RETURN brought the frame count back to floor
func (vm *VM) step(floor int) (res heap.Value, done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == errStackUnderflow || r == errStackOverflow {
				e := *(r.(*RuntimeError))
				err = &e
				return
			}
			panic(r) // Re-panic other errors
		}
	}()

	// Check debugger breakpoint before executing instruction
	if vm.debugger != nil && vm.debugger.Enabled && vm.debugger.ShouldBreak(vm) {
		if vm.debugger.OnStop != nil {
			vm.debugger.OnStop(vm.debugger, vm)
		}
	}

	frame := vm.frame
	if frame.ip >= len(frame.unit.Instructions) {
		// Falling off the end is an implicit return undefined
		return vm.returnWithValue(heap.Undefined(), floor)
	}

	in := frame.unit.Instructions[frame.ip]
	frame.ip++

	if in.Op == bytecode.OP_RETURN {
		return vm.returnWithValue(vm.pop(), floor)
	}
	return heap.Undefined(), false, vm.executeOneOp(in)
}

// executeWithDebugger is the main interpreter loop. It returns when the frame
// count drops back to floor.
func (vm *VM) executeWithDebugger(floor int) (heap.Value, error) {
	opsSinceCheck := 0

	for {
		// Check for cancellation periodically
		opsSinceCheck++
		if opsSinceCheck >= config.ContextCheckInterval {
			opsSinceCheck = 0
			if vm.ctx != nil {
				select {
				case <-vm.ctx.Done():
					e := fault(Cancelled, "%v", vm.ctx.Err())
					e.Cause = vm.ctx.Err()
					return heap.Undefined(), vm.formatError(e)
				default:
				}
			}
		}

		if vm.limits.MaxInstructions > 0 && vm.executed >= vm.limits.MaxInstructions {
			return heap.Undefined(), vm.formatError(fault(InstructionLimit, "budget of %d instructions spent", vm.limits.MaxInstructions))
		}
		vm.executed++

		result, done, err := vm.step(floor)
		if err != nil {
			return heap.Undefined(), vm.formatError(err)
		}
		if done {
			return result, nil
		}
	}
}

// returnWithValue pops the current frame and hands result to the caller.
func (vm *VM) returnWithValue(result heap.Value, floor int) (heap.Value, bool, error) {
	frame := vm.frame
	if frame.construct && !result.IsHeap() {
		result = frame.this
	}

	base := frame.base
	vm.frames = vm.frames[:len(vm.frames)-1]
	clear(vm.stack[base:vm.sp])
	vm.sp = base

	if len(vm.frames) > 0 {
		vm.frame = &vm.frames[len(vm.frames)-1]
	} else {
		vm.frame = nil
	}
	if len(vm.frames) == floor {
		return result, true, nil
	}
	vm.push(result)
	return heap.Undefined(), false, nil
}

// Stack operations

func (vm *VM) push(v heap.Value) {
	if vm.sp >= len(vm.stack) {
		if vm.sp >= vm.limits.MaxStack {
			panic(errStackOverflow)
		}
		// Grow by doubling, capped at the limit
		n := len(vm.stack) * 2
		if n > vm.limits.MaxStack {
			n = vm.limits.MaxStack
		}
		newStack := make([]heap.Value, n)
		copy(newStack, vm.stack[:vm.sp])
		vm.stack = newStack
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() heap.Value {
	if vm.sp <= vm.frame.base {
		panic(errStackUnderflow)
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = heap.Value{}
	return v
}

func (vm *VM) peek(distance int) heap.Value {
	idx := vm.sp - 1 - distance
	if idx < vm.frame.base {
		panic(errStackUnderflow)
	}
	return vm.stack[idx]
}

// checkStack ensures the current frame has at least n operands
func (vm *VM) checkStack(n int) {
	if n < 0 || vm.sp-vm.frame.base < n {
		panic(errStackUnderflow)
	}
}

// MarkRoots reports every value the VM can still reach: operands, frame
// state, globals and values pinned by native calls.
func (vm *VM) MarkRoots(mark func(heap.Value)) {
	for _, v := range vm.stack[:vm.sp] {
		mark(v)
	}
	for i := range vm.frames {
		f := &vm.frames[i]
		mark(f.fn)
		mark(f.this)
		for _, v := range f.locals {
			mark(v)
		}
		for _, v := range f.args {
			mark(v)
		}
		for _, v := range f.env {
			mark(v)
		}
	}
	for _, v := range vm.temps {
		mark(v)
	}
	vm.globals.Range(func(_ string, v heap.Value) bool {
		mark(v)
		return true
	})
}

// safepoint runs a collection when one is due. Everything live is reachable
// from MarkRoots at this point.
func (vm *VM) safepoint() {
	if vm.autoGC && vm.heap.ShouldCollect() {
		res := vm.heap.Collect()
		log.Debugf("gc at safepoint: marked %d, freed %d", res.Marked, res.Freed)
	}
}

// allocate stores c on the heap, translating heap failures to runtime errors.
func (vm *VM) allocate(c heap.Cell) (heap.Value, error) {
	v, err := vm.heap.Allocate(c)
	if err != nil {
		return heap.Undefined(), vm.heapError(err)
	}
	return v, nil
}

func (vm *VM) heapError(err error) error {
	var re *RuntimeError
	switch {
	case errors.As(err, &re):
		return re
	case errors.Is(err, heap.ErrInvalidHandle):
		e := fault(InvalidHeapHandle, "%v", err)
		e.Cause = err
		return e
	case errors.Is(err, heap.ErrExhausted):
		e := fault(HeapExhausted, "%v", err)
		e.Cause = err
		return e
	}
	return err
}

// formatError adds location and stack trace to VM errors
func (vm *VM) formatError(err error) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = &RuntimeError{Kind: HostError, Detail: err.Error(), Cause: err}
	}
	if re.located {
		return re
	}
	e := *re

	if vm.frame != nil {
		pc := vm.frame.ip - 1
		if pc < 0 {
			pc = 0
		}
		unit := vm.frame.unit
		e.Unit = unit.Name
		e.PC = pc
		if pc < len(unit.Instructions) {
			e.Op = unit.Instructions[pc].Op.String()
		}
		e.Line = unit.LineAt(pc)
		e.located = true
	}

	// Build full stack trace by walking all frames
	e.Trace = e.Trace[:0:0]
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := &vm.frames[i]
		pc := f.ip - 1
		if pc < 0 {
			pc = 0
		}
		entry := fmt.Sprintf("at %s:%04d", f.unit.Name, pc)
		if line := f.unit.LineAt(pc); line > 0 {
			entry += fmt.Sprintf(" (line %d)", line)
		}
		e.Trace = append(e.Trace, entry)
	}
	return &e
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

var _ heap.RootSource = (*VM)(nil)
