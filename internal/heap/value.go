// Package heap implements the value model and the managed heap shared by
// executions: tagged values, handles, object/array/function cells, and an
// arena with a mark-and-sweep collector.
package heap

import (
	"fmt"
	"math"
)

// Kind identifies the variant stored in a Value
type Kind uint8

const (
	KindUndefined Kind = iota // zero value
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindObject
	KindArray
	KindFunction
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindObject:    "object",
	KindArray:     "array",
	KindFunction:  "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged union. Primitives live inline; objects, arrays and
// functions are references to heap cells.
type Value struct {
	Kind Kind
	Data uint64 // float64 bits, bool (0/1) or Handle
	Str  string
}

// Constructors

func Undefined() Value { return Value{} }

func Null() Value { return Value{Kind: KindNull} }

func Bool(b bool) Value {
	var data uint64
	if b {
		data = 1
	}
	return Value{Kind: KindBoolean, Data: data}
}

func Number(f float64) Value { return Value{Kind: KindNumber, Data: math.Float64bits(f)} }

func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Ref builds a reference of the given heap kind.
func Ref(kind Kind, h Handle) Value { return Value{Kind: kind, Data: uint64(h)} }

// Accessors

func (v Value) AsNumber() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsBool() bool      { return v.Data == 1 }
func (v Value) AsString() string  { return v.Str }
func (v Value) Handle() Handle    { return Handle(v.Data) }

// Type checking helpers

func (v Value) IsUndefined() bool { return v.Kind == KindUndefined }
func (v Value) IsNull() bool      { return v.Kind == KindNull }
func (v Value) IsNullish() bool   { return v.Kind == KindUndefined || v.Kind == KindNull }
func (v Value) IsNumber() bool    { return v.Kind == KindNumber }
func (v Value) IsString() bool    { return v.Kind == KindString }
func (v Value) IsFunction() bool  { return v.Kind == KindFunction }

// IsHeap reports whether v references a heap cell.
func (v Value) IsHeap() bool {
	return v.Kind == KindObject || v.Kind == KindArray || v.Kind == KindFunction
}

// IsObjectLike reports whether v can receive property access.
func (v Value) IsObjectLike() bool {
	return v.Kind == KindObject || v.Kind == KindArray
}

// GoString renders the raw representation, for test failures and logs.
func (v Value) GoString() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("number(%s)", NumberToString(v.AsNumber()))
	case KindString:
		return fmt.Sprintf("string(%q)", v.Str)
	case KindBoolean:
		return fmt.Sprintf("boolean(%t)", v.AsBool())
	case KindObject, KindArray, KindFunction:
		return fmt.Sprintf("%s(%s)", v.Kind, v.Handle())
	}
	return v.Kind.String()
}
