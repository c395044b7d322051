package embed

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/wendelmax/jsvm/internal/heap"
)

var (
	valueType    = reflect.TypeOf(heap.Value{})
	functionType = reflect.TypeOf((*Function)(nil))
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	anyType      = reflect.TypeOf((*interface{})(nil)).Elem()
)

// Marshaller handles conversion between Go values and heap values.
// Cells allocated while a conversion is in progress are pinned so a
// collection triggered by a later allocation cannot free them.
type Marshaller struct {
	vm    *VM
	temps []heap.Value

	// Pointers, maps and slices on the current conversion path
	visiting map[visit]struct{}
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// enter records v on the conversion path; it fails when v is already on it.
// The returned func takes v off the path again.
func (m *Marshaller) enter(v reflect.Value) (func(), error) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		key.len = v.Len()
	}
	if _, ok := m.visiting[key]; ok {
		return nil, fmt.Errorf("cyclic %s cannot be converted", v.Type())
	}
	if m.visiting == nil {
		m.visiting = make(map[visit]struct{})
	}
	m.visiting[key] = struct{}{}
	return func() { delete(m.visiting, key) }, nil
}

func newMarshaller(v *VM) *Marshaller {
	return &Marshaller{vm: v}
}

func (m *Marshaller) heap() heap.Heap { return m.vm.backend.Heap() }

func (m *Marshaller) markRoots(mark func(heap.Value)) {
	for _, v := range m.temps {
		mark(v)
	}
}

// pin keeps v alive until the temps are released back to a mark.
func (m *Marshaller) pin(v heap.Value) heap.Value {
	if v.IsHeap() {
		m.temps = append(m.temps, v)
	}
	return v
}

func (m *Marshaller) release(mark int) {
	for i := mark; i < len(m.temps); i++ {
		m.temps[i] = heap.Value{}
	}
	m.temps = m.temps[:mark]
}

func (m *Marshaller) allocate(c heap.Cell) (heap.Value, error) {
	v, err := m.heap().Allocate(c)
	if err != nil {
		return heap.Undefined(), err
	}
	return m.pin(v), nil
}

// ToValue converts a Go value to a heap value.
func (m *Marshaller) ToValue(val interface{}) (heap.Value, error) {
	mark := len(m.temps)
	defer m.release(mark)
	return m.toValue(reflect.ValueOf(val), "")
}

func (m *Marshaller) toValue(v reflect.Value, name string) (heap.Value, error) {
	if !v.IsValid() {
		return heap.Null(), nil
	}
	if v.Type() == valueType {
		return v.Interface().(heap.Value), nil
	}
	if v.Type() == functionType {
		if v.IsNil() {
			return heap.Null(), nil
		}
		return v.Interface().(*Function).value, nil
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if !v.IsNil() && !(v.Kind() == reflect.Slice && v.Len() == 0) {
			leave, err := m.enter(v)
			if err != nil {
				return heap.Undefined(), err
			}
			defer leave()
		}
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return heap.Null(), nil
		}
		return m.toValue(v.Elem(), name)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return heap.Number(float64(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return heap.Number(float64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return heap.Number(v.Float()), nil
	case reflect.Bool:
		return heap.Bool(v.Bool()), nil
	case reflect.String:
		return heap.String(v.String()), nil
	case reflect.Slice:
		if v.IsNil() {
			return heap.Null(), nil
		}
		return m.sliceToArray(v)
	case reflect.Array:
		return m.sliceToArray(v)
	case reflect.Map:
		if v.IsNil() {
			return heap.Null(), nil
		}
		return m.mapToObject(v)
	case reflect.Struct:
		return m.structToObject(v)
	case reflect.Func:
		if v.IsNil() {
			return heap.Null(), nil
		}
		return m.allocate(m.native(name, v))
	}
	return heap.Undefined(), fmt.Errorf("unsupported Go type %s", v.Type())
}

func (m *Marshaller) sliceToArray(v reflect.Value) (heap.Value, error) {
	elements := make([]heap.Value, v.Len())
	for i := range elements {
		el, err := m.toValue(v.Index(i), "")
		if err != nil {
			return heap.Undefined(), fmt.Errorf("element %d: %w", i, err)
		}
		elements[i] = m.pin(el)
	}
	return m.allocate(&heap.Array{Elements: elements})
}

func (m *Marshaller) mapToObject(v reflect.Value) (heap.Value, error) {
	keys := v.MapKeys()
	names := make([]string, len(keys))
	byName := make(map[string]reflect.Value, len(keys))
	for i, k := range keys {
		names[i] = fmt.Sprint(k.Interface())
		byName[names[i]] = k
	}
	sort.Strings(names)

	obj := heap.NewObject()
	for _, name := range names {
		val, err := m.toValue(v.MapIndex(byName[name]), name)
		if err != nil {
			return heap.Undefined(), fmt.Errorf("map value %q: %w", name, err)
		}
		obj.Set(name, m.pin(val))
	}
	return m.allocate(obj)
}

func (m *Marshaller) structToObject(v reflect.Value) (heap.Value, error) {
	obj := heap.NewObject()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // Skip unexported fields
			continue
		}
		name := propertyName(field)
		if name == "-" {
			continue
		}
		val, err := m.toValue(v.Field(i), name)
		if err != nil {
			return heap.Undefined(), fmt.Errorf("field %s: %w", field.Name, err)
		}
		obj.Set(name, m.pin(val))
	}
	return m.allocate(obj)
}

// propertyName uses the `js` tag when present, else the field name.
func propertyName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("js"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return field.Name
}

// native wraps a Go function. Missing arguments are zero values, extra
// arguments are ignored, a trailing error result becomes a host error and
// several results are returned as an array.
func (m *Marshaller) native(name string, fn reflect.Value) *heap.Native {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	isVariadic := fnType.IsVariadic()

	arity := numIn
	if isVariadic {
		arity--
	}

	return &heap.Native{
		Name:  name,
		Arity: arity,
		Fn: func(h heap.Heap, this heap.Value, args []heap.Value) (heap.Value, error) {
			goArgs := make([]reflect.Value, 0, numIn)
			for i := 0; i < arity; i++ {
				arg := heap.Undefined()
				if i < len(args) {
					arg = args[i]
				}
				rv, err := m.fromValue(arg, fnType.In(i), nil)
				if err != nil {
					return heap.Undefined(), fmt.Errorf("argument %d: %w", i, err)
				}
				goArgs = append(goArgs, rv)
			}
			if isVariadic {
				elemType := fnType.In(numIn - 1).Elem()
				for i := arity; i < len(args); i++ {
					rv, err := m.fromValue(args[i], elemType, nil)
					if err != nil {
						return heap.Undefined(), fmt.Errorf("argument %d: %w", i, err)
					}
					goArgs = append(goArgs, rv)
				}
			}

			results := fn.Call(goArgs)

			if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
				if err, _ := results[n-1].Interface().(error); err != nil {
					return heap.Undefined(), err
				}
				results = results[:n-1]
			}

			mark := len(m.temps)
			defer m.release(mark)
			switch len(results) {
			case 0:
				return heap.Undefined(), nil
			case 1:
				return m.toValue(results[0], "")
			}
			elements := make([]heap.Value, len(results))
			for i, res := range results {
				val, err := m.toValue(res, "")
				if err != nil {
					return heap.Undefined(), err
				}
				elements[i] = m.pin(val)
			}
			return m.allocate(&heap.Array{Elements: elements})
		},
	}
}

// FromValue converts a heap value to a Go value.
// targetType is optional; if provided, tries to convert to that type.
//
// Without a target, numbers become float64, objects map[string]interface{},
// arrays []interface{} and functions *Function.
func (m *Marshaller) FromValue(val heap.Value, targetType reflect.Type) (interface{}, error) {
	if targetType == nil {
		targetType = anyType
	}
	rv, err := m.fromValue(val, targetType, nil)
	if err != nil {
		return nil, err
	}
	if !rv.IsValid() || (rv.Kind() == reflect.Interface && rv.IsNil()) {
		return nil, nil
	}
	return rv.Interface(), nil
}

func (m *Marshaller) fromValue(val heap.Value, target reflect.Type, seen map[heap.Handle]bool) (reflect.Value, error) {
	if target == valueType {
		return reflect.ValueOf(val), nil
	}

	var out interface{}
	switch val.Kind {
	case heap.KindUndefined, heap.KindNull:
		return reflect.Zero(target), nil
	case heap.KindBoolean:
		out = val.AsBool()
	case heap.KindNumber:
		return convertNumber(val.AsNumber(), target)
	case heap.KindString:
		out = val.AsString()
	case heap.KindFunction:
		out = m.vm.pinFunction(val)
	case heap.KindObject, heap.KindArray:
		if seen[val.Handle()] {
			return reflect.Value{}, fmt.Errorf("cyclic value cannot be converted")
		}
		if seen == nil {
			seen = make(map[heap.Handle]bool)
		}
		seen[val.Handle()] = true
		defer delete(seen, val.Handle())
		cell, err := m.heap().Deref(val.Handle())
		if err != nil {
			return reflect.Value{}, err
		}
		switch c := cell.(type) {
		case *heap.Array:
			return m.arrayToSlice(c, target, seen)
		case *heap.Object:
			if target.Kind() == reflect.Struct || (target.Kind() == reflect.Ptr && target.Elem().Kind() == reflect.Struct) {
				return m.objectToStruct(c, target, seen)
			}
			return m.objectToMap(c, target, seen)
		}
		return reflect.Value{}, fmt.Errorf("unexpected cell %T", cell)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported value kind %s", val.Kind)
	}
	return assign(reflect.ValueOf(out), target)
}

func convertNumber(f float64, target reflect.Type) (reflect.Value, error) {
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", heap.NumberToString(f), target)
	}
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Integral and inside int64; the float bounds are exact powers of two.
		if f != math.Trunc(f) || f < math.MinInt64 || f >= -math.MinInt64 {
			return fail()
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(int64(f)) {
			return fail()
		}
		out.SetInt(int64(f))
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if f != math.Trunc(f) || f < 0 || f >= 2*-math.MinInt64 {
			return fail()
		}
		out := reflect.New(target).Elem()
		if out.OverflowUint(uint64(f)) {
			return fail()
		}
		out.SetUint(uint64(f))
		return out, nil
	}
	return assign(reflect.ValueOf(f), target)
}

// assign converts v to target when Go allows it.
func assign(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(target), nil
	}
	if v.Type().AssignableTo(target) {
		if target.Kind() == reflect.Interface {
			out := reflect.New(target).Elem()
			out.Set(v)
			return out, nil
		}
		return v, nil
	}
	if v.Type().ConvertibleTo(target) && v.Kind() != reflect.Slice {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), target)
}

func (m *Marshaller) arrayToSlice(a *heap.Array, target reflect.Type, seen map[heap.Handle]bool) (reflect.Value, error) {
	sliceType := reflect.SliceOf(anyType)
	if target.Kind() == reflect.Slice {
		sliceType = target
	}

	slice := reflect.MakeSlice(sliceType, len(a.Elements), len(a.Elements))
	for i, el := range a.Elements {
		rv, err := m.fromValue(el, sliceType.Elem(), seen)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		slice.Index(i).Set(rv)
	}
	return assign(slice, target)
}

func (m *Marshaller) objectToMap(o *heap.Object, target reflect.Type, seen map[heap.Handle]bool) (reflect.Value, error) {
	mapType := reflect.MapOf(reflect.TypeOf(""), anyType)
	if target.Kind() == reflect.Map && target.Key().Kind() == reflect.String {
		mapType = target
	}

	result := reflect.MakeMapWithSize(mapType, o.Len())
	for _, key := range o.Keys() {
		prop, _ := o.Get(key)
		rv, err := m.fromValue(prop, mapType.Elem(), seen)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("property %q: %w", key, err)
		}
		result.SetMapIndex(reflect.ValueOf(key).Convert(mapType.Key()), rv)
	}
	return assign(result, target)
}

func (m *Marshaller) objectToStruct(o *heap.Object, target reflect.Type, seen map[heap.Handle]bool) (reflect.Value, error) {
	structType := target
	if target.Kind() == reflect.Ptr {
		structType = target.Elem()
	}

	result := reflect.New(structType).Elem()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := propertyName(field)
		prop, ok := o.Get(name)
		if !ok {
			continue
		}
		rv, err := m.fromValue(prop, field.Type, seen)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
		result.Field(i).Set(rv)
	}
	if target.Kind() == reflect.Ptr {
		return result.Addr(), nil
	}
	return result, nil
}
