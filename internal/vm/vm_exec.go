package vm

import (
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/heap"
)

func (vm *VM) executeOneOp(in bytecode.Instruction) error {
	frame := vm.frame

	switch in.Op {
	case bytecode.OP_PUSH_CONST:
		c := frame.unit.Constants[in.Operand]
		switch c.Kind {
		case bytecode.ConstNumber:
			vm.push(heap.Number(c.Number))
		case bytecode.ConstString:
			vm.push(heap.String(c.String))
		case bytecode.ConstBool:
			vm.push(heap.Bool(c.Bool))
		default:
			return fault(InvalidInstruction, "constant %d is a %s, use MAKE_CLOSURE", in.Operand, c.Kind)
		}

	case bytecode.OP_PUSH_NULL:
		vm.push(heap.Null())

	case bytecode.OP_PUSH_UNDEFINED:
		vm.push(heap.Undefined())

	case bytecode.OP_PUSH_TRUE:
		vm.push(heap.Bool(true))

	case bytecode.OP_PUSH_FALSE:
		vm.push(heap.Bool(false))

	case bytecode.OP_POP:
		vm.pop()

	case bytecode.OP_DUP:
		vm.push(vm.peek(0))

	case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV, bytecode.OP_MOD, bytecode.OP_POW:
		return vm.binaryOp(in.Op)

	case bytecode.OP_INC, bytecode.OP_DEC, bytecode.OP_NEG, bytecode.OP_TO_NUMBER:
		return vm.unaryNumericOp(in.Op)

	case bytecode.OP_EQ, bytecode.OP_NE, bytecode.OP_STRICT_EQ, bytecode.OP_STRICT_NE:
		b := vm.pop()
		a := vm.pop()
		var eq bool
		if in.Op == bytecode.OP_EQ || in.Op == bytecode.OP_NE {
			eq = heap.LooseEquals(a, b)
		} else {
			eq = heap.StrictEquals(a, b)
		}
		if in.Op == bytecode.OP_NE || in.Op == bytecode.OP_STRICT_NE {
			eq = !eq
		}
		vm.push(heap.Bool(eq))

	case bytecode.OP_LT, bytecode.OP_GT, bytecode.OP_LE, bytecode.OP_GE:
		return vm.compareOp(in.Op)

	case bytecode.OP_IN:
		obj := vm.pop()
		key := vm.pop()
		found, err := vm.hasProperty(obj, key)
		if err != nil {
			return err
		}
		vm.push(heap.Bool(found))

	case bytecode.OP_NOT:
		vm.push(heap.Bool(!heap.ToBoolean(vm.pop())))

	case bytecode.OP_TYPEOF:
		vm.push(heap.String(heap.TypeOf(vm.pop())))

	case bytecode.OP_LOAD_GLOBAL:
		v, ok := vm.globals.Get(in.Name)
		if !ok {
			return fault(UndefinedVariable, "%s is not defined", in.Name)
		}
		vm.push(v)

	case bytecode.OP_STORE_GLOBAL:
		vm.globals = vm.globals.Put(in.Name, vm.peek(0))

	case bytecode.OP_LOAD_LOCAL:
		vm.push(frame.locals[in.Operand])

	case bytecode.OP_STORE_LOCAL:
		frame.locals[in.Operand] = vm.peek(0)

	case bytecode.OP_LOAD_ARG:
		if in.Operand >= 0 && in.Operand < len(frame.args) {
			vm.push(frame.args[in.Operand])
		} else {
			vm.push(heap.Undefined())
		}

	case bytecode.OP_STORE_ARG:
		if in.Operand < 0 || in.Operand > bytecode.MaxOperand {
			return fault(InvalidInstruction, "argument index %d outside [0, %d]", in.Operand, bytecode.MaxOperand)
		}
		v := vm.peek(0)
		for len(frame.args) <= in.Operand {
			frame.args = append(frame.args, heap.Undefined())
		}
		frame.args[in.Operand] = v

	case bytecode.OP_LOAD_CLOSURE:
		if in.Operand >= len(frame.env) {
			return fault(InvalidInstruction, "closure slot %d outside environment of %d", in.Operand, len(frame.env))
		}
		vm.push(frame.env[in.Operand])

	case bytecode.OP_STORE_CLOSURE:
		return vm.storeClosure(in.Operand, vm.peek(0))

	case bytecode.OP_LOAD_THIS:
		vm.push(frame.this)

	case bytecode.OP_LOAD_THIS_FUNCTION:
		vm.push(frame.fn)

	case bytecode.OP_JUMP:
		frame.ip = in.Operand

	case bytecode.OP_JUMP_IF_TRUE:
		if heap.ToBoolean(vm.pop()) {
			frame.ip = in.Operand
		}

	case bytecode.OP_JUMP_IF_FALSE:
		if !heap.ToBoolean(vm.pop()) {
			frame.ip = in.Operand
		}

	case bytecode.OP_CALL:
		argc := in.Operand
		vm.checkStack(argc + 1)
		base := vm.sp - argc - 1
		return vm.callValue(vm.stack[base], argc, heap.Undefined(), false, base)

	case bytecode.OP_CALL_FUNCTION:
		argc := in.Operand
		vm.checkStack(argc)
		return vm.callValue(frame.fn, argc, heap.Undefined(), false, vm.sp-argc)

	case bytecode.OP_CALL_METHOD:
		argc := in.Operand
		vm.checkStack(argc + 2)
		base := vm.sp - argc - 2
		return vm.callValue(vm.stack[base+1], argc, vm.stack[base], false, base)

	case bytecode.OP_NEW:
		argc := in.Operand
		vm.checkStack(argc + 1)
		base := vm.sp - argc - 1
		callee := vm.stack[base]
		if callee.Kind != heap.KindFunction {
			return fault(NotCallable, "%s is not a constructor", describe(callee))
		}
		// The receiver is allocated while the operands are still rooted.
		this, err := vm.allocate(heap.NewObject())
		if err != nil {
			return err
		}
		if err := vm.callValue(callee, argc, this, true, base); err != nil {
			return err
		}
		vm.safepoint()

	case bytecode.OP_MAKE_CLOSURE:
		if err := vm.makeClosure(frame.unit.Constants[in.Operand].Function); err != nil {
			return err
		}
		vm.safepoint()

	case bytecode.OP_NEW_OBJECT:
		obj, err := vm.allocate(heap.NewObject())
		if err != nil {
			return err
		}
		vm.push(obj)
		vm.safepoint()

	case bytecode.OP_NEW_ARRAY:
		n := in.Operand
		vm.checkStack(n)
		elements := make([]heap.Value, n)
		copy(elements, vm.stack[vm.sp-n:vm.sp])
		arr, err := vm.allocate(&heap.Array{Elements: elements})
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			vm.pop()
		}
		vm.push(arr)
		vm.safepoint()

	case bytecode.OP_GET_PROPERTY:
		vm.checkStack(2)
		key := vm.pop()
		recv := vm.pop()
		v, err := vm.getProperty(recv, key)
		if err != nil {
			return err
		}
		vm.push(v)

	case bytecode.OP_DELETE_PROPERTY:
		vm.checkStack(2)
		key := vm.pop()
		recv := vm.pop()
		deleted, err := vm.deleteProperty(recv, key)
		if err != nil {
			return err
		}
		vm.push(heap.Bool(deleted))

	case bytecode.OP_SET_PROPERTY:
		vm.checkStack(3)
		v := vm.pop()
		key := vm.pop()
		recv := vm.pop()
		if err := vm.setProperty(recv, key, v); err != nil {
			return err
		}
		vm.push(v)

	case bytecode.OP_RETURN:
		// handled by step
		return fault(InvalidInstruction, "RETURN dispatched outside step")

	default:
		return fault(InvalidInstruction, "unknown opcode %d", byte(in.Op))
	}
	return nil
}

// makeClosure instantiates tmpl, snapshotting each capture from the running
// frame.
func (vm *VM) makeClosure(tmpl *bytecode.FunctionTemplate) error {
	frame := vm.frame
	env := make([]heap.Value, len(tmpl.Captures))
	for i, cp := range tmpl.Captures {
		switch cp.Source {
		case bytecode.CaptureLocal:
			env[i] = frame.locals[cp.Index]
		case bytecode.CaptureArgument:
			if cp.Index < len(frame.args) {
				env[i] = frame.args[cp.Index]
			}
		case bytecode.CaptureClosure:
			if cp.Index >= len(frame.env) {
				return fault(InvalidInstruction, "capture %q reads closure slot %d of %d", cp.Name, cp.Index, len(frame.env))
			}
			env[i] = frame.env[cp.Index]
		case bytecode.CaptureSelf:
			env[i] = frame.fn
		default:
			return fault(InvalidInstruction, "capture %q has unknown source %d", cp.Name, cp.Source)
		}
	}

	fn := &heap.Function{
		Template: tmpl,
		Env:      env,
		Arrow:    tmpl.Arrow,
	}
	if tmpl.Arrow {
		fn.BoundThis = frame.this
	}
	v, err := vm.allocate(fn)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

// storeClosure writes a captured slot of the running closure. The write is
// kept in the function cell so later invocations observe it.
func (vm *VM) storeClosure(slot int, v heap.Value) error {
	frame := vm.frame
	if slot >= len(frame.env) || !frame.fn.IsFunction() {
		return fault(InvalidInstruction, "closure slot %d outside environment of %d", slot, len(frame.env))
	}
	frame.env[slot] = v
	err := vm.heap.Update(frame.fn.Handle(), func(c heap.Cell) error {
		fn, ok := c.(*heap.Function)
		if !ok || slot >= len(fn.Env) {
			return fault(InvalidHeapHandle, "%s does not hold closure slot %d", frame.fn.GoString(), slot)
		}
		fn.Env[slot] = v
		return nil
	})
	if err != nil {
		return vm.heapError(err)
	}
	return nil
}
