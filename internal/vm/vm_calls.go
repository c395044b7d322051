package vm

import (
	"errors"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/heap"
)

// callTarget is what a call needs from a function cell, read under View.
type callTarget struct {
	closure *heap.Function
	native  *heap.Native
	tmpl    *bytecode.FunctionTemplate
	env     []heap.Value
}

func (vm *VM) resolveCallee(callee heap.Value) (callTarget, error) {
	var t callTarget
	if callee.Kind != heap.KindFunction {
		return t, fault(NotCallable, "%s is not a function", describe(callee))
	}
	err := vm.heap.View(callee.Handle(), func(c heap.Cell) error {
		switch fn := c.(type) {
		case *heap.Function:
			t.closure = fn
			t.tmpl = fn.Template
			// The frame gets its own copy; STORE_CLOSURE writes both.
			t.env = append([]heap.Value(nil), fn.Env...)
		case *heap.Native:
			t.native = fn
		default:
			return fault(NotCallable, "%s cell is not callable", c.Kind())
		}
		return nil
	})
	if err != nil {
		return t, vm.heapError(err)
	}
	if t.native == nil && (t.tmpl == nil || t.tmpl.Unit == nil) {
		return t, fault(InvalidInstruction, "function %s has no body", t.closure.Name())
	}
	return t, nil
}

// callValue calls callee with the top argc operands. base is the operand
// index where the call sequence starts; it becomes the callee frame's base,
// so everything above it is consumed by the call.
func (vm *VM) callValue(callee heap.Value, argc int, this heap.Value, construct bool, base int) error {
	t, err := vm.resolveCallee(callee)
	if err != nil {
		return err
	}

	args := make([]heap.Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])

	if t.native != nil {
		if construct {
			return fault(NotCallable, "native %s is not a constructor", t.native.Name)
		}
		result, err := vm.callNative(t.native, callee, this, args)
		if err != nil {
			return err
		}
		clear(vm.stack[base:vm.sp])
		vm.sp = base
		vm.push(result)
		vm.safepoint()
		return nil
	}

	if construct && t.closure.Arrow {
		return fault(NotCallable, "arrow function %s is not a constructor", t.closure.Name())
	}
	if len(vm.frames) >= vm.limits.MaxFrames {
		return fault(StackOverflow, "call depth exceeded %d frames calling %s", vm.limits.MaxFrames, t.closure.Name())
	}

	for len(args) < t.tmpl.ParamCount {
		args = append(args, heap.Undefined())
	}
	if t.closure.Arrow {
		this = t.closure.BoundThis
	}

	clear(vm.stack[base:vm.sp])
	vm.sp = base

	vm.frames = append(vm.frames, CallFrame{
		fn:        callee,
		closure:   t.closure,
		unit:      t.tmpl.Unit,
		base:      base,
		locals:    make([]heap.Value, t.tmpl.Unit.LocalCount),
		args:      args,
		env:       t.env,
		this:      this,
		construct: construct,
	})
	vm.frame = &vm.frames[len(vm.frames)-1]
	return nil
}

// callNative runs a host function with callee, receiver and arguments pinned
// as roots.
func (vm *VM) callNative(fn *heap.Native, callee, this heap.Value, args []heap.Value) (heap.Value, error) {
	mark := len(vm.temps)
	vm.temps = append(vm.temps, callee, this)
	vm.temps = append(vm.temps, args...)
	defer func() {
		clear(vm.temps[mark:])
		vm.temps = vm.temps[:mark]
	}()

	if fn.Fn == nil {
		return heap.Undefined(), fault(NotCallable, "native %s has no implementation", fn.Name)
	}
	result, err := fn.Fn(vm.heap, this, args)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			return heap.Undefined(), re
		}
		e := fault(HostError, "%s: %v", fn.Name, err)
		e.Cause = err
		return heap.Undefined(), e
	}
	return result, nil
}

// CallFunction calls fn with the given receiver and arguments and runs it
// to completion. It can be used from natives while the VM is running.
func (vm *VM) CallFunction(fn, this heap.Value, args ...heap.Value) (heap.Value, error) {
	if vm.frame == nil {
		return vm.callOutside(fn, this, args)
	}

	floor := len(vm.frames)
	base := vm.sp
	failed := func(err error) (heap.Value, error) {
		vm.frames = vm.frames[:floor]
		vm.frame = &vm.frames[floor-1]
		if vm.sp > base {
			clear(vm.stack[base:vm.sp])
		}
		vm.sp = base
		return heap.Undefined(), err
	}

	if err := vm.pushArgs(fn, args); err != nil {
		return failed(vm.formatError(err))
	}
	if err := vm.callValue(fn, len(args), this, false, base); err != nil {
		return failed(vm.formatError(err))
	}
	if len(vm.frames) == floor {
		// A native pushed its result directly.
		return vm.pop(), nil
	}
	result, err := vm.executeWithDebugger(floor)
	if err != nil {
		return failed(err)
	}
	return result, nil
}

// pushArgs stages a call on the operand stack, reporting overflow as an
// error rather than a panic.
func (vm *VM) pushArgs(fn heap.Value, args []heap.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == errStackOverflow {
				e := *errStackOverflow
				err = &e
				return
			}
			panic(r)
		}
	}()
	for _, a := range args {
		vm.push(a)
	}
	return nil
}

// callOutside runs fn as its own execution when the VM is idle.
func (vm *VM) callOutside(fn, this heap.Value, args []heap.Value) (heap.Value, error) {
	t, err := vm.resolveCallee(fn)
	if err != nil {
		return heap.Undefined(), err
	}
	if t.native != nil {
		return vm.callNative(t.native, fn, this, args)
	}

	unit := &bytecode.Unit{
		Name:         t.closure.Name(),
		Instructions: []bytecode.Instruction{bytecode.OpArg(bytecode.OP_CALL_METHOD, len(args)), bytecode.Op(bytecode.OP_RETURN)},
	}
	vm.globals = vm.globals.Put(callOutsideThis, this)
	vm.globals = vm.globals.Put(callOutsideFn, fn)
	defer func() {
		vm.globals = vm.globals.Delete(callOutsideThis)
		vm.globals = vm.globals.Delete(callOutsideFn)
	}()

	// Receiver and callee are staged by a prologue so the generic entry point
	// roots them.
	prologue := []bytecode.Instruction{
		bytecode.OpName(bytecode.OP_LOAD_GLOBAL, callOutsideThis),
		bytecode.OpName(bytecode.OP_LOAD_GLOBAL, callOutsideFn),
	}
	for i := range args {
		prologue = append(prologue, bytecode.OpArg(bytecode.OP_LOAD_ARG, i))
	}
	unit.Instructions = append(prologue, unit.Instructions...)
	return vm.Execute(unit, args...)
}

// Reserved global names used by callOutside; not valid identifiers.
const (
	callOutsideThis = "%this"
	callOutsideFn   = "%callee"
)
