package vm

import (
	"math"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/heap"
)

// maxArrayLength bounds array growth through index or length writes.
const maxArrayLength = 1 << 24

// binaryOp performs binary arithmetic operations
func (vm *VM) binaryOp(op bytecode.Opcode) error {
	vm.checkStack(2)
	b := vm.pop()
	a := vm.pop()

	if a.IsHeap() || b.IsHeap() {
		return typeMismatch(op, a, b)
	}

	// + concatenates as soon as one side is a string
	if op == bytecode.OP_ADD && (a.IsString() || b.IsString()) {
		vm.push(heap.String(heap.ToString(a) + heap.ToString(b)))
		return nil
	}

	x := heap.ToNumber(a)
	y := heap.ToNumber(b)
	var result float64
	switch op {
	case bytecode.OP_ADD:
		result = x + y
	case bytecode.OP_SUB:
		result = x - y
	case bytecode.OP_MUL:
		result = x * y
	case bytecode.OP_DIV:
		result = x / y
	case bytecode.OP_MOD:
		result = math.Mod(x, y)
	case bytecode.OP_POW:
		result = pow(x, y)
	}
	vm.push(heap.Number(result))
	return nil
}

// pow differs from math.Pow where JS does: NaN exponents and 1**Infinity
// are NaN.
func pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.IsInf(y, 0) && (x == 1 || x == -1) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

func (vm *VM) unaryNumericOp(op bytecode.Opcode) error {
	v := vm.pop()
	if v.IsHeap() {
		return fault(TypeMismatch, "%s on %s", op, v.Kind)
	}
	n := heap.ToNumber(v)
	switch op {
	case bytecode.OP_INC:
		n++
	case bytecode.OP_DEC:
		n--
	case bytecode.OP_NEG:
		n = -n
	}
	vm.push(heap.Number(n))
	return nil
}

// compareOp compares strings lexically when both sides are strings and
// numerically otherwise. Comparisons involving NaN are false.
func (vm *VM) compareOp(op bytecode.Opcode) error {
	vm.checkStack(2)
	b := vm.pop()
	a := vm.pop()

	if a.IsHeap() || b.IsHeap() {
		return typeMismatch(op, a, b)
	}

	var result bool
	if a.IsString() && b.IsString() {
		c := heap.CompareStrings(a.AsString(), b.AsString())
		switch op {
		case bytecode.OP_LT:
			result = c < 0
		case bytecode.OP_GT:
			result = c > 0
		case bytecode.OP_LE:
			result = c <= 0
		case bytecode.OP_GE:
			result = c >= 0
		}
	} else {
		x := heap.ToNumber(a)
		y := heap.ToNumber(b)
		switch op {
		case bytecode.OP_LT:
			result = x < y
		case bytecode.OP_GT:
			result = x > y
		case bytecode.OP_LE:
			result = x <= y
		case bytecode.OP_GE:
			result = x >= y
		}
	}
	vm.push(heap.Bool(result))
	return nil
}

func typeMismatch(op bytecode.Opcode, a, b heap.Value) *RuntimeError {
	return fault(TypeMismatch, "%s on %s and %s", op, a.Kind, b.Kind)
}

// Property access

func (vm *VM) propertyKey(key heap.Value) (string, error) {
	if key.IsHeap() {
		return "", fault(TypeMismatch, "%s used as property key", key.Kind)
	}
	return heap.ToPropertyKey(key), nil
}

// lookup reads an own property; found is false for missing keys.
func (vm *VM) lookup(recv heap.Value, key string) (v heap.Value, found bool, err error) {
	err = vm.heap.View(recv.Handle(), func(c heap.Cell) error {
		switch cell := c.(type) {
		case *heap.Object:
			v, found = cell.Get(key)
		case *heap.Array:
			if key == "length" {
				v, found = heap.Number(float64(len(cell.Elements))), true
			} else if i, ok := heap.ArrayIndex(key); ok && i < len(cell.Elements) {
				v, found = cell.Elements[i], true
			}
		default:
			return fault(NotAnObject, "%s has no properties", recv.Kind)
		}
		return nil
	})
	if err != nil {
		return heap.Undefined(), false, vm.heapError(err)
	}
	return v, found, nil
}

func (vm *VM) getProperty(recv, key heap.Value) (heap.Value, error) {
	name, err := vm.propertyKey(key)
	if err != nil {
		return heap.Undefined(), err
	}
	if !recv.IsObjectLike() {
		return heap.Undefined(), fault(NotAnObject, "cannot read property %q of %s", name, recv.Kind)
	}
	v, found, err := vm.lookup(recv, name)
	if err != nil {
		return heap.Undefined(), err
	}
	if !found {
		if vm.strict {
			return heap.Undefined(), fault(PropertyNotFound, "%s has no property %q", recv.Kind, name)
		}
		return heap.Undefined(), nil
	}
	return v, nil
}

func (vm *VM) hasProperty(recv, key heap.Value) (bool, error) {
	name, err := vm.propertyKey(key)
	if err != nil {
		return false, err
	}
	if !recv.IsObjectLike() {
		return false, fault(NotAnObject, "cannot use 'in' to search for %q in %s", name, recv.Kind)
	}
	_, found, err := vm.lookup(recv, name)
	return found, err
}

func (vm *VM) setProperty(recv, key, v heap.Value) error {
	name, err := vm.propertyKey(key)
	if err != nil {
		return err
	}
	if !recv.IsObjectLike() {
		return fault(NotAnObject, "cannot set property %q of %s", name, recv.Kind)
	}
	err = vm.heap.Update(recv.Handle(), func(c heap.Cell) error {
		switch cell := c.(type) {
		case *heap.Object:
			cell.Set(name, v)
			return nil
		case *heap.Array:
			return setArrayProperty(cell, name, v)
		}
		return fault(NotAnObject, "cannot set property %q of %s", name, recv.Kind)
	})
	if err != nil {
		return vm.heapError(err)
	}
	return nil
}

// deleteProperty removes an own property. Array elements keep their place
// and become undefined; an array's length cannot be deleted.
func (vm *VM) deleteProperty(recv, key heap.Value) (bool, error) {
	name, err := vm.propertyKey(key)
	if err != nil {
		return false, err
	}
	if !recv.IsObjectLike() {
		return false, fault(NotAnObject, "cannot delete property %q of %s", name, recv.Kind)
	}
	deleted := true
	err = vm.heap.Update(recv.Handle(), func(c heap.Cell) error {
		switch cell := c.(type) {
		case *heap.Object:
			cell.Delete(name)
			return nil
		case *heap.Array:
			if name == "length" {
				deleted = false
			} else if i, ok := heap.ArrayIndex(name); ok && i < len(cell.Elements) {
				cell.Elements[i] = heap.Undefined()
			}
			return nil
		}
		return fault(NotAnObject, "cannot delete property %q of %s", name, recv.Kind)
	})
	if err != nil {
		return false, vm.heapError(err)
	}
	return deleted, nil
}

func setArrayProperty(arr *heap.Array, key string, v heap.Value) error {
	if key == "length" {
		n := heap.ToNumber(v)
		if v.IsHeap() || n < 0 || n != math.Trunc(n) {
			return fault(TypeMismatch, "invalid array length %s", heap.ToString(v))
		}
		if n > maxArrayLength {
			return fault(HeapExhausted, "array length %s exceeds %d", heap.NumberToString(n), maxArrayLength)
		}
		arr.SetLength(int(n))
		return nil
	}
	i, ok := heap.ArrayIndex(key)
	if !ok {
		return fault(TypeMismatch, "arrays only accept index keys and length, got %q", key)
	}
	if i >= maxArrayLength {
		return fault(HeapExhausted, "array index %d exceeds %d", i, maxArrayLength)
	}
	arr.SetIndex(i, v)
	return nil
}

// describe renders a value for error messages.
func describe(v heap.Value) string {
	switch v.Kind {
	case heap.KindString:
		return "string " + quote(v.AsString())
	case heap.KindNumber:
		return "number " + heap.NumberToString(v.AsNumber())
	case heap.KindBoolean:
		return "boolean " + heap.ToString(v)
	}
	return v.Kind.String()
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return `"` + s + `"`
}
