package vm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/heap"
)

// DebuggerMode represents the current debugging mode
type DebuggerMode int

const (
	// ModeRun - normal execution, stop at breakpoints only
	ModeRun DebuggerMode = iota
	// ModeStep - stop before every instruction
	ModeStep
	// ModeStepOver - stop at the next instruction of the current frame or a caller
	ModeStepOver
	// ModeStepOut - stop once the current function returns
	ModeStepOut
	// ModeContinue - continue until next breakpoint
	ModeContinue
)

// Breakpoint is an instruction location: a unit name and an instruction index
type Breakpoint struct {
	Unit string
	PC   int
}

// Debugger provides debugging capabilities for the VM
type Debugger struct {
	// Enabled flag
	Enabled bool

	// Current mode
	mode DebuggerMode

	// Breakpoints map: unit -> pc -> Breakpoint
	breakpoints map[string]map[int]*Breakpoint

	// Frame depth when step over / step out started
	stepOverFrameDepth int
	stepOutFrameDepth  int

	// Output for Print* helpers
	Output io.Writer

	// Callback for when debugger stops
	OnStop func(*Debugger, *VM)

	// Last breakpoint hit (to avoid stopping on the same breakpoint twice)
	lastBreakpoint *Breakpoint
}

// NewDebugger creates a new debugger instance
func NewDebugger() *Debugger {
	return &Debugger{
		mode:        ModeRun,
		breakpoints: make(map[string]map[int]*Breakpoint),
		Output:      os.Stderr,
	}
}

// EnableDebugger attaches and enables a debugger, creating one if needed
func (vm *VM) EnableDebugger() *Debugger {
	if vm.debugger == nil {
		vm.debugger = NewDebugger()
	}
	vm.debugger.Enabled = true
	return vm.debugger
}

// SetBreakpoint sets a breakpoint before instruction pc of the named unit
func (d *Debugger) SetBreakpoint(unit string, pc int) *Breakpoint {
	if d.breakpoints[unit] == nil {
		d.breakpoints[unit] = make(map[int]*Breakpoint)
	}
	bp := &Breakpoint{Unit: unit, PC: pc}
	d.breakpoints[unit][pc] = bp
	return bp
}

// RemoveBreakpoint removes a breakpoint
func (d *Debugger) RemoveBreakpoint(unit string, pc int) {
	if d.breakpoints[unit] != nil {
		delete(d.breakpoints[unit], pc)
		if len(d.breakpoints[unit]) == 0 {
			delete(d.breakpoints, unit)
		}
	}
}

// ClearBreakpoints removes all breakpoints
func (d *Debugger) ClearBreakpoints() {
	d.breakpoints = make(map[string]map[int]*Breakpoint)
	d.lastBreakpoint = nil
}

// GetBreakpoints returns all breakpoints ordered by unit and pc
func (d *Debugger) GetBreakpoints() []*Breakpoint {
	var result []*Breakpoint
	for _, pcs := range d.breakpoints {
		for _, bp := range pcs {
			result = append(result, bp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Unit != result[j].Unit {
			return result[i].Unit < result[j].Unit
		}
		return result[i].PC < result[j].PC
	})
	return result
}

func (d *Debugger) breakpointAt(unit string, pc int) *Breakpoint {
	if pcs := d.breakpoints[unit]; pcs != nil {
		return pcs[pc]
	}
	return nil
}

// ShouldBreak checks if execution should break before the next instruction
func (d *Debugger) ShouldBreak(vm *VM) bool {
	if !d.Enabled || vm.frame == nil {
		return false
	}

	unit := vm.frame.unit.Name
	pc := vm.frame.ip
	depth := len(vm.frames)

	switch d.mode {
	case ModeStep:
		return true

	case ModeStepOver:
		if depth <= d.stepOverFrameDepth {
			d.mode = ModeRun
			return true
		}
		return false

	case ModeStepOut:
		if depth < d.stepOutFrameDepth {
			d.mode = ModeRun
			return true
		}
		return false

	case ModeContinue, ModeRun:
		bp := d.breakpointAt(unit, pc)
		if bp == nil {
			d.lastBreakpoint = nil
			return false
		}
		// Skip if we just stopped at this breakpoint
		if d.mode == ModeContinue && bp == d.lastBreakpoint {
			return false
		}
		d.lastBreakpoint = bp
		return true
	}

	return false
}

// Step sets debugger to step mode
func (d *Debugger) Step() {
	d.mode = ModeStep
	d.stepOverFrameDepth = 0
	d.stepOutFrameDepth = 0
}

// StepOver sets debugger to step over mode
func (d *Debugger) StepOver(vm *VM) {
	d.mode = ModeStepOver
	if vm != nil {
		d.stepOverFrameDepth = len(vm.frames)
	}
	d.stepOutFrameDepth = 0
}

// StepOut sets debugger to step out mode
func (d *Debugger) StepOut(vm *VM) {
	d.mode = ModeStepOut
	if vm != nil {
		d.stepOutFrameDepth = len(vm.frames)
	}
	d.stepOverFrameDepth = 0
}

// Continue sets debugger to continue mode (run until breakpoint)
func (d *Debugger) Continue() {
	d.mode = ModeContinue
	d.stepOverFrameDepth = 0
	d.stepOutFrameDepth = 0
}

// Run sets debugger to run mode
func (d *Debugger) Run() {
	d.mode = ModeRun
	d.stepOverFrameDepth = 0
	d.stepOutFrameDepth = 0
}

// Mode returns the current mode
func (d *Debugger) Mode() DebuggerMode { return d.mode }

// GetCurrentLocation returns the unit, next instruction index and source line
func (d *Debugger) GetCurrentLocation(vm *VM) (unit string, pc int, line int) {
	if vm.frame == nil {
		return "", 0, 0
	}
	return vm.frame.unit.Name, vm.frame.ip, vm.frame.unit.LineAt(vm.frame.ip)
}

// CallFrameInfo represents information about a call frame
type CallFrameInfo struct {
	Index        int
	FunctionName string
	Unit         string
	PC           int
	Line         int
}

// GetCallStack returns the current call stack, innermost first
func (d *Debugger) GetCallStack(vm *VM) []CallFrameInfo {
	var stack []CallFrameInfo

	for i := len(vm.frames) - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		info := CallFrameInfo{
			Index: i,
			Unit:  frame.unit.Name,
		}

		if frame.closure != nil {
			info.FunctionName = frame.closure.Name()
		} else {
			info.FunctionName = "<script>"
		}

		// The top frame is about to run ip; callers wait at the call site
		info.PC = frame.ip
		if i < len(vm.frames)-1 && info.PC > 0 {
			info.PC--
		}
		info.Line = frame.unit.LineAt(info.PC)

		stack = append(stack, info)
	}

	return stack
}

// GetLocals returns the local slots and arguments of the current frame.
// Units carry no local names, so slots are named by index.
func (d *Debugger) GetLocals(vm *VM) map[string]heap.Value {
	locals := make(map[string]heap.Value)
	if vm.frame == nil {
		return locals
	}
	for i, v := range vm.frame.locals {
		locals[fmt.Sprintf("slot%d", i)] = v
	}
	for i, v := range vm.frame.args {
		locals[fmt.Sprintf("arg%d", i)] = v
	}
	return locals
}

// GetGlobals returns global variables, excluding host functions
func (d *Debugger) GetGlobals(vm *VM) map[string]heap.Value {
	globals := make(map[string]heap.Value)
	vm.globals.Range(func(name string, val heap.Value) bool {
		if val.IsFunction() {
			if cell, err := vm.heap.Deref(val.Handle()); err == nil {
				if _, native := cell.(*heap.Native); native {
					return true
				}
			}
		}
		globals[name] = val
		return true
	})
	return globals
}

// GetStack returns the operand stack of the current frame, bottom first
func (d *Debugger) GetStack(vm *VM) []heap.Value {
	if vm.frame == nil {
		return nil
	}
	return append([]heap.Value(nil), vm.stack[vm.frame.base:vm.sp]...)
}

// FormatLocation formats a unit:pc location string
func (d *Debugger) FormatLocation(unit string, pc, line int) string {
	if line > 0 {
		return fmt.Sprintf("%s:%04d (line %d)", unit, pc, line)
	}
	return fmt.Sprintf("%s:%04d", unit, pc)
}

// PrintLocation prints the current location
func (d *Debugger) PrintLocation(vm *VM) {
	unit, pc, line := d.GetCurrentLocation(vm)
	if len(vm.frames) == 1 && pc == 0 {
		fmt.Fprintf(d.Output, "Breakpoint at %s (program start)\n", d.FormatLocation(unit, pc, line))
		return
	}
	fmt.Fprintf(d.Output, "Breakpoint at %s\n", d.FormatLocation(unit, pc, line))
}

// PrintInstruction prints the instruction about to run, indented by call depth
func (d *Debugger) PrintInstruction(vm *VM) {
	if vm.frame == nil || vm.frame.ip >= len(vm.frame.unit.Instructions) {
		return
	}
	indent := strings.Repeat("  ", len(vm.frames)-1)
	fmt.Fprintf(d.Output, "%s%-12s %s\n", indent, vm.frame.unit.Name, bytecode.DisassembleInstruction(vm.frame.unit, vm.frame.ip))
}

// PrintCallStack prints the call stack
func (d *Debugger) PrintCallStack(vm *VM) {
	stack := d.GetCallStack(vm)
	fmt.Fprintf(d.Output, "Call stack:\n")
	for i, frame := range stack {
		indent := strings.Repeat("  ", i)
		loc := d.FormatLocation(frame.Unit, frame.PC, frame.Line)
		fmt.Fprintf(d.Output, "%s%d. %s at %s\n", indent, i+1, frame.FunctionName, loc)
	}
}

// PrintLocals prints local variables
func (d *Debugger) PrintLocals(vm *VM) {
	d.printValues(vm, d.GetLocals(vm), "Local variables", "No local variables in current scope.")
}

// PrintGlobals prints global variables
func (d *Debugger) PrintGlobals(vm *VM) {
	d.printValues(vm, d.GetGlobals(vm), "Global variables", "No user-defined global variables.")
}

func (d *Debugger) printValues(vm *VM, values map[string]heap.Value, title, empty string) {
	if len(values) == 0 {
		fmt.Fprintln(d.Output, empty)
		return
	}
	fmt.Fprintf(d.Output, "%s:\n", title)
	// Sort keys for consistent output
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(d.Output, "  %s = %s\n", name, heap.Inspect(vm.heap, values[name]))
	}
}

// PrintStack prints the stack
func (d *Debugger) PrintStack(vm *VM) {
	stack := d.GetStack(vm)
	fmt.Fprintf(d.Output, "Stack (top to bottom):\n")
	for i := len(stack) - 1; i >= 0; i-- {
		fmt.Fprintf(d.Output, "  [%d] %s\n", i, heap.Inspect(vm.heap, stack[i]))
	}
}
