package heap

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
)

func newArena(t *testing.T) *Arena {
	t.Helper()
	return NewArena(config.GC{Threshold: 4})
}

func mustAlloc(t *testing.T, h Heap, c Cell) Value {
	t.Helper()
	v, err := h.Allocate(c)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	return v
}

func TestArena_AllocateAndDeref(t *testing.T) {
	a := newArena(t)

	obj := NewObject()
	obj.Set("x", Number(1))
	ref := mustAlloc(t, a, obj)
	if ref.Kind != KindObject {
		t.Fatalf("ref kind: got %s", ref.Kind)
	}
	if ref.Handle() == 0 {
		t.Fatal("zero handle returned")
	}

	cell, err := a.Deref(ref.Handle())
	if err != nil {
		t.Fatalf("Deref failed: %v", err)
	}
	if got, _ := cell.(*Object).Get("x"); got.AsNumber() != 1 {
		t.Errorf("property x: got %#v", got)
	}

	arr := mustAlloc(t, a, &Array{})
	if arr.Kind != KindArray || arr.Handle() == ref.Handle() {
		t.Errorf("array ref wrong: %#v", arr)
	}

	err = a.Update(arr.Handle(), func(c Cell) error {
		c.(*Array).SetIndex(2, String("z"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = a.View(arr.Handle(), func(c Cell) error {
		els := c.(*Array).Elements
		if len(els) != 3 || !els[0].IsUndefined() || els[2].Str != "z" {
			t.Errorf("gap not filled with undefined: %#v", els)
		}
		return nil
	})

	if _, err := a.Deref(0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("zero handle: expected ErrInvalidHandle, got %v", err)
	}
	if _, err := a.Deref(makeHandle(99, 1)); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("out of range: expected ErrInvalidHandle, got %v", err)
	}
}

func TestArena_CollectReclaimsUnreachable(t *testing.T) {
	a := newArena(t)

	inner := mustAlloc(t, a, &Array{Elements: []Value{Number(1)}})
	outer := NewObject()
	outer.Set("inner", inner)
	root := mustAlloc(t, a, outer)
	garbage := mustAlloc(t, a, NewObject())
	fn := mustAlloc(t, a, &Function{
		Template: &bytecode.FunctionTemplate{Name: "f"},
		Env:      []Value{garbage},
	})

	remove := a.AddRoots(RootFunc(func(mark func(Value)) { mark(root) }))
	res := a.Collect()
	if res.Marked != 2 || res.Freed != 2 {
		t.Errorf("collect: got %+v, want 2 marked and 2 freed", res)
	}
	if _, err := a.Deref(inner.Handle()); err != nil {
		t.Errorf("reachable array was freed: %v", err)
	}
	if _, err := a.Deref(garbage.Handle()); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("garbage still reachable: %v", err)
	}
	if _, err := a.Deref(fn.Handle()); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("function still reachable: %v", err)
	}

	// The freed slot is reused with a new generation; the old handle stays stale.
	fresh := mustAlloc(t, a, NewObject())
	if fresh.Handle() == garbage.Handle() || fresh.Handle() == fn.Handle() {
		t.Error("stale handle aliases a fresh cell")
	}
	if _, err := a.Deref(garbage.Handle()); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("stale handle resolved after reuse: %v", err)
	}

	remove()
	a.Collect()
	if st := a.Stats(); st.Live != 0 {
		t.Errorf("expected empty heap after removing roots, got %d live", st.Live)
	}
}

func TestArena_CollectHandlesCycles(t *testing.T) {
	a := newArena(t)
	o1 := NewObject()
	o2 := NewObject()
	r1 := mustAlloc(t, a, o1)
	r2 := mustAlloc(t, a, o2)
	o1.Set("other", r2)
	o2.Set("other", r1)

	remove := a.AddRoots(RootFunc(func(mark func(Value)) { mark(r1) }))
	if res := a.Collect(); res.Freed != 0 || res.Marked != 2 {
		t.Errorf("cycle reachable from root: %+v", res)
	}
	remove()
	if res := a.Collect(); res.Freed != 2 {
		t.Errorf("unreachable cycle not freed: %+v", res)
	}
}

func TestArena_ShouldCollectAndExhaustion(t *testing.T) {
	a := NewArena(config.GC{Threshold: 2, MaxCells: 2})
	if a.ShouldCollect() {
		t.Error("fresh arena should not want a collection")
	}
	keep := mustAlloc(t, a, NewObject())
	mustAlloc(t, a, NewObject())
	if !a.ShouldCollect() {
		t.Error("threshold reached but ShouldCollect is false")
	}
	var rooted []Value
	a.AddRoots(RootFunc(func(mark func(Value)) {
		for _, v := range rooted {
			mark(v)
		}
	}))
	rooted = append(rooted, keep)

	// The cap triggers a collection that frees the unrooted object.
	third, err := a.Allocate(NewObject())
	if err != nil {
		t.Fatalf("allocation after reclaim failed: %v", err)
	}
	rooted = append(rooted, third)
	if _, err := a.Allocate(NewObject()); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	st := a.Stats()
	if st.Collections < 1 || st.Allocations != 3 || st.ID == "" {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestObject_Order(t *testing.T) {
	o := NewObject()
	o.Set("b", Number(1))
	o.Set("a", Number(2))
	o.Set("b", Number(3))
	keys := o.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("insertion order lost: %v", keys)
	}
	if !o.Delete("b") || o.Has("b") || o.Len() != 1 {
		t.Error("Delete failed")
	}
	if o.Delete("missing") {
		t.Error("Delete of missing key reported true")
	}
}

func TestArray_SetLength(t *testing.T) {
	arr := &Array{Elements: []Value{Number(1), Number(2), Number(3)}}
	arr.SetLength(1)
	if len(arr.Elements) != 1 {
		t.Fatalf("truncate: %d", len(arr.Elements))
	}
	arr.SetLength(3)
	if len(arr.Elements) != 3 || !arr.Elements[2].IsUndefined() {
		t.Errorf("extend: %#v", arr.Elements)
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   Value
		want float64
	}{
		{Null(), 0},
		{Bool(true), 1},
		{Bool(false), 0},
		{Number(2.5), 2.5},
		{String(""), 0},
		{String("  42  "), 42},
		{String("0x1f"), 31},
		{String("0b101"), 5},
		{String("1e3"), 1000},
		{String("-Infinity"), math.Inf(-1)},
		{String("0x10000000000000000"), math.Pow(2, 64)},
		{String("0x1fffffffffffffffff"), math.Pow(2, 69)},
		{String("0b1" + strings.Repeat("0", 70)), math.Pow(2, 70)},
	}
	for _, tt := range tests {
		if got := ToNumber(tt.in); got != tt.want {
			t.Errorf("ToNumber(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, s := range []string{"abc", "12px", "inf", "nan", "infinity", "1_000", "0x", "0x-1", "0x1g", "0x+1fffffffffffffffff"} {
		if got := ToNumber(String(s)); !math.IsNaN(got) {
			t.Errorf("ToNumber(%q) = %v, want NaN", s, got)
		}
	}
	if !math.IsNaN(ToNumber(Undefined())) {
		t.Error("undefined should convert to NaN")
	}
}

func TestCompareStrings(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"ab", "ab", 0},
		{"ab", "abc", -1},
		{"", "a", -1},
		// U+1F600 is the surrogate pair D83D DE00, below U+FF61 in code units
		// although its UTF-8 bytes sort after it.
		{"\U0001F600", "\uFF61", -1},
		{"\uFF61", "\U0001F600", 1},
		{"\U0001F600", "\U0001F601", -1},
		{"\u00e9", "\U0001F600", -1},
	}
	for _, tt := range tests {
		if got := CompareStrings(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareStrings(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNumberToString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{14, "14"},
		{-3.5, "-3.5"},
		{0.1 + 0.2, "0.30000000000000004"},
		{math.Copysign(0, -1), "0"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{123456789012, "123456789012"},
	}
	for _, tt := range tests {
		if got := NumberToString(tt.in); got != tt.want {
			t.Errorf("NumberToString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqualityAndTruthiness(t *testing.T) {
	ref := Ref(KindObject, makeHandle(0, 1))
	other := Ref(KindObject, makeHandle(1, 1))

	loose := []struct {
		a, b Value
		want bool
	}{
		{Null(), Undefined(), true},
		{Number(1), String("1"), true},
		{Bool(true), Number(1), true},
		{Null(), Number(0), false},
		{ref, ref, true},
		{ref, other, false},
		{ref, String("[object Object]"), false},
		{Number(math.NaN()), Number(math.NaN()), false},
	}
	for _, tt := range loose {
		if got := LooseEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("LooseEquals(%#v, %#v) = %v", tt.a, tt.b, got)
		}
	}
	if StrictEquals(Number(1), String("1")) || !StrictEquals(String("a"), String("a")) {
		t.Error("StrictEquals wrong")
	}
	if !StrictEquals(Number(0), Number(math.Copysign(0, -1))) {
		t.Error("+0 === -0 must hold")
	}

	falsy := []Value{Undefined(), Null(), Bool(false), Number(0), Number(math.NaN()), String("")}
	for _, v := range falsy {
		if ToBoolean(v) {
			t.Errorf("%#v should be falsy", v)
		}
	}
	for _, v := range []Value{ref, String("0"), Number(-1)} {
		if !ToBoolean(v) {
			t.Errorf("%#v should be truthy", v)
		}
	}
	if TypeOf(Null()) != "object" || TypeOf(Ref(KindFunction, 1)) != "function" {
		t.Error("TypeOf wrong")
	}
}

func TestArrayIndex(t *testing.T) {
	valid := map[string]int{"0": 0, "7": 7, "4294967294": 4294967294}
	for k, want := range valid {
		if got, ok := ArrayIndex(k); !ok || got != want {
			t.Errorf("ArrayIndex(%q) = %d, %v", k, got, ok)
		}
	}
	for _, k := range []string{"", "01", "-1", "1.5", "length", "4294967295"} {
		if _, ok := ArrayIndex(k); ok {
			t.Errorf("ArrayIndex(%q) should fail", k)
		}
	}
}

func TestInspect(t *testing.T) {
	a := newArena(t)
	arr := mustAlloc(t, a, &Array{Elements: []Value{Number(1), String("two"), Null()}})
	obj := NewObject()
	obj.Set("x", Number(1))
	obj.Set("list", arr)
	obj.Set("my key", Bool(true))
	ref := mustAlloc(t, a, obj)
	obj.Set("self", ref)
	fn := mustAlloc(t, a, &Function{Template: &bytecode.FunctionTemplate{Name: "add"}})
	native := mustAlloc(t, a, &Native{Name: "print"})

	tests := []struct {
		v    Value
		want string
	}{
		{String("plain"), "plain"},
		{Number(8), "8"},
		{Undefined(), "undefined"},
		{arr, `[1, "two", null]`},
		{ref, `{ x: 1, list: [1, "two", null], "my key": true, self: [Circular] }`},
		{fn, "[Function: add]"},
		{native, "[Function: print]"},
		{Ref(KindObject, makeHandle(40, 1)), "<invalid #40.1>"},
	}
	for _, tt := range tests {
		if got := Inspect(a, tt.v); got != tt.want {
			t.Errorf("Inspect(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
