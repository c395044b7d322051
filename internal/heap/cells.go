package heap

import (
	"fmt"

	"github.com/wendelmax/jsvm/internal/bytecode"
)

// Handle is an opaque reference to a heap cell: generation<<32 | slot+1.
// The zero Handle is never valid. Reusing a slot bumps its generation, so
// handles to freed cells are detected rather than aliasing new cells.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) slot() (uint32, bool) {
	s := uint32(h)
	if s == 0 {
		return 0, false
	}
	return s - 1, true
}

func (h Handle) generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	s, ok := h.slot()
	if !ok {
		return "#invalid"
	}
	return fmt.Sprintf("#%d.%d", s, h.generation())
}

// Cell is the content of a heap slot.
type Cell interface {
	Kind() Kind
	// trace calls mark for every value the cell references.
	trace(mark func(Value))
}

// Object is a string-keyed property bag that keeps insertion order.
type Object struct {
	keys  []string
	props map[string]Value
}

// NewObject creates an empty object cell.
func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

func (o *Object) Kind() Kind { return KindObject }

func (o *Object) trace(mark func(Value)) {
	for _, v := range o.props {
		mark(v)
	}
}

// Get returns the property value and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Has reports whether key is an own property.
func (o *Object) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Set creates or overwrites a property.
func (o *Object) Set(key string, v Value) {
	if o.props == nil {
		o.props = make(map[string]Value)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Delete removes a property, reporting whether it existed.
func (o *Object) Delete(key string) bool {
	if _, ok := o.props[key]; !ok {
		return false
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns property names in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of properties.
func (o *Object) Len() int { return len(o.keys) }

// Array is a dense list of values; its length is len(Elements).
type Array struct {
	Elements []Value
}

func (a *Array) Kind() Kind { return KindArray }

func (a *Array) trace(mark func(Value)) {
	for _, v := range a.Elements {
		mark(v)
	}
}

// SetIndex stores v at i, filling any gap with undefined.
func (a *Array) SetIndex(i int, v Value) {
	if i >= len(a.Elements) {
		a.SetLength(i + 1)
	}
	a.Elements[i] = v
}

// SetLength truncates or extends the array; new elements are undefined.
func (a *Array) SetLength(n int) {
	if n <= len(a.Elements) {
		for i := n; i < len(a.Elements); i++ {
			a.Elements[i] = Value{}
		}
		a.Elements = a.Elements[:n]
		return
	}
	a.Elements = append(a.Elements, make([]Value, n-len(a.Elements))...)
}

// Function is an instantiated closure: a template plus the environment
// snapshot taken when it was created.
type Function struct {
	Template  *bytecode.FunctionTemplate
	Env       []Value
	Arrow     bool
	BoundThis Value // arrows only: `this` of the creating frame
}

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) trace(mark func(Value)) {
	for _, v := range f.Env {
		mark(v)
	}
	mark(f.BoundThis)
}

// Name returns the function's name, or "anonymous".
func (f *Function) Name() string {
	if f.Template == nil || f.Template.Name == "" {
		return "anonymous"
	}
	return f.Template.Name
}

// NativeFunc implements a host function. this is undefined for plain calls.
type NativeFunc func(h Heap, this Value, args []Value) (Value, error)

// Native is a function implemented in Go.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

func (n *Native) Kind() Kind { return KindFunction }

func (n *Native) trace(func(Value)) {}
