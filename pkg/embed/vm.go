// Package embed runs AST documents from Go programs: bind Go values as
// globals, evaluate documents and convert results back to Go values.
package embed

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/wendelmax/jsvm/internal/backend"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
	"github.com/wendelmax/jsvm/internal/pipeline"
)

// VM wraps a backend with its own heap and provides a high-level embedding API.
type VM struct {
	backend    *backend.VMBackend
	marshaller *Marshaller

	implicitGlobals bool
	pins            map[*Function]struct{}
	removeRoots     func()
}

type options struct {
	config          *config.Config
	implicitGlobals bool
	trace           io.Writer
}

// Option configures a VM.
type Option func(*options)

// WithConfig sets limits, GC and property settings.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithImplicitGlobals lets documents assign undeclared names, creating globals.
func WithImplicitGlobals(enabled bool) Option {
	return func(o *options) { o.implicitGlobals = enabled }
}

// WithTrace writes every executed instruction to w.
func WithTrace(w io.Writer) Option {
	return func(o *options) { o.trace = w }
}

// New creates a new VM instance.
func New(opts ...Option) *VM {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := &VM{
		backend:         backend.NewVM(o.config),
		implicitGlobals: o.implicitGlobals,
		pins:            make(map[*Function]struct{}),
	}
	v.backend.Trace = o.trace
	v.marshaller = newMarshaller(v)
	v.removeRoots = v.backend.Heap().AddRoots(heap.RootFunc(v.markRoots))
	return v
}

// Close releases the VM. Values obtained from it must not be used afterwards.
func (v *VM) Close() {
	if v.removeRoots != nil {
		v.removeRoots()
		v.removeRoots = nil
	}
	v.backend.Close()
}

func (v *VM) markRoots(mark func(heap.Value)) {
	for f := range v.pins {
		mark(f.value)
	}
	v.marshaller.markRoots(mark)
}

// Marshaller returns the converter used for this VM's heap.
func (v *VM) Marshaller() *Marshaller { return v.marshaller }

// Bind registers a Go function or value with the VM.
// It makes it available in the global scope of documents evaluated later.
// Functions are called with their parameters converted from the arguments.
func (v *VM) Bind(name string, val interface{}) error {
	mark := len(v.marshaller.temps)
	defer v.marshaller.release(mark)
	obj, err := v.marshaller.toValue(reflect.ValueOf(val), name)
	if err != nil {
		return fmt.Errorf("bind %s: %w", name, err)
	}
	v.backend.Machine().SetGlobal(name, obj)
	return nil
}

// Set sets a global variable in the VM.
// Use this for data objects. For functions, prefer Bind.
func (v *VM) Set(name string, val interface{}) error {
	obj, err := v.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	v.backend.Machine().SetGlobal(name, obj)
	return nil
}

// Get retrieves a global variable from the VM.
func (v *VM) Get(name string) (interface{}, error) {
	obj, ok := v.backend.Machine().Global(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return v.marshaller.FromValue(obj, nil)
}

// Call calls a global function defined by a document (or bound from Go) by name.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	fnObj, ok := v.backend.Machine().Global(funcName)
	if !ok {
		return nil, fmt.Errorf("function '%s' not found", funcName)
	}
	return v.call(fnObj, args)
}

func (v *VM) call(fn heap.Value, args []interface{}) (interface{}, error) {
	mark := len(v.marshaller.temps)
	defer v.marshaller.release(mark)

	v.marshaller.pin(fn)
	values := make([]heap.Value, len(args))
	for i, arg := range args {
		obj, err := v.marshaller.toValue(reflect.ValueOf(arg), "")
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v.marshaller.pin(obj)
	}

	result, err := v.backend.Machine().CallFunction(fn, heap.Undefined(), values...)
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// Eval runs an AST document (JSON or YAML) or a serialized unit and returns
// its completion value.
func (v *VM) Eval(doc []byte) (interface{}, error) {
	return v.EvalContext(context.Background(), "<eval>", doc)
}

// EvalContext is Eval with cancellation; name labels errors and units.
func (v *VM) EvalContext(ctx context.Context, name string, doc []byte) (interface{}, error) {
	pctx := pipeline.NewPipelineContext(doc)
	pctx.Context = ctx
	pctx.FilePath = name
	pctx.Globals = v.backend.Globals()
	pctx.AllowImplicitGlobals = v.implicitGlobals

	pctx = pipeline.New(
		pipeline.DecodeProcessor{},
		pipeline.CompileProcessor{},
		backend.NewExecutionProcessor(v.backend),
	).Run(pctx)

	if err := pctx.Err(); err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(pctx.Result, nil)
}

// LoadFile reads and evaluates a document.
func (v *VM) LoadFile(path string) (interface{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return v.EvalContext(context.Background(), path, content)
}

// Function is a script function held by Go. It stays alive until Release.
type Function struct {
	vm    *VM
	value heap.Value
}

func (v *VM) pinFunction(val heap.Value) *Function {
	f := &Function{vm: v, value: val}
	v.pins[f] = struct{}{}
	return f
}

// Name returns the function's name.
func (f *Function) Name() string {
	cell, err := f.vm.backend.Heap().Deref(f.value.Handle())
	if err != nil {
		return ""
	}
	switch c := cell.(type) {
	case *heap.Function:
		return c.Name()
	case *heap.Native:
		return c.Name
	}
	return ""
}

// Call invokes the function with this undefined.
func (f *Function) Call(args ...interface{}) (interface{}, error) {
	return f.vm.call(f.value, args)
}

// Release lets the collector free the function.
func (f *Function) Release() {
	delete(f.vm.pins, f)
}
