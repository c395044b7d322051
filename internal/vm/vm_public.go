package vm

import (
	"sort"

	"github.com/wendelmax/jsvm/internal/heap"
)

// SetGlobal sets a global variable
func (vm *VM) SetGlobal(name string, value heap.Value) {
	vm.globals = vm.globals.Put(name, value)
}

// Global returns a global variable and whether it is defined
func (vm *VM) Global(name string) (heap.Value, bool) {
	return vm.globals.Get(name)
}

// GlobalNames returns the defined global names, sorted.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, vm.globals.Len())
	vm.globals.Range(func(k string, _ heap.Value) bool {
		names = append(names, k)
		return true
	})
	sort.Strings(names)
	return names
}

// GetGlobals returns the current global map
func (vm *VM) GetGlobals() *PersistentMap {
	return vm.globals
}

// SetGlobals replaces the global map, e.g. to restore a snapshot taken with
// GetGlobals.
func (vm *VM) SetGlobals(globals *PersistentMap) {
	if globals == nil {
		globals = EmptyMap()
	}
	vm.globals = globals
}

// DefineNative allocates a host function and binds it as a global.
func (vm *VM) DefineNative(name string, arity int, fn heap.NativeFunc) (heap.Value, error) {
	v, err := vm.heap.Allocate(&heap.Native{Name: name, Arity: arity, Fn: fn})
	if err != nil {
		return heap.Undefined(), vm.heapError(err)
	}
	vm.SetGlobal(name, v)
	return v, nil
}
