package bytecode

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestConstantPool_Dedup(t *testing.T) {
	p := NewConstantPool()

	a := p.Intern(NumberConst(42))
	b := p.Intern(NumberConst(42))
	if a != b {
		t.Errorf("equal numbers got distinct slots %d and %d", a, b)
	}

	s1 := p.Intern(StringConst("x"))
	s2 := p.Intern(StringConst("x"))
	if s1 != s2 {
		t.Errorf("equal strings got distinct slots %d and %d", s1, s2)
	}
	if s1 == a {
		t.Error("string and number share a slot")
	}

	// Numbers are keyed by bit pattern.
	nan1 := p.Intern(NumberConst(math.NaN()))
	nan2 := p.Intern(NumberConst(math.NaN()))
	if nan1 != nan2 {
		t.Errorf("NaN with identical bits should dedup, got %d and %d", nan1, nan2)
	}
	pz := p.Intern(NumberConst(0))
	nz := p.Intern(NumberConst(math.Copysign(0, -1)))
	if pz == nz {
		t.Error("+0 and -0 must stay distinct")
	}

	tr1 := p.Intern(BoolConst(true))
	tr2 := p.Intern(BoolConst(true))
	fl := p.Intern(BoolConst(false))
	if tr1 != tr2 || tr1 == fl {
		t.Errorf("boolean interning wrong: %d %d %d", tr1, tr2, fl)
	}

	fn := &FunctionTemplate{Name: "f", Unit: &Unit{Name: "f"}}
	f1 := p.Intern(FunctionConst(fn))
	f2 := p.Intern(FunctionConst(fn))
	if f1 == f2 {
		t.Error("function templates must never be deduplicated")
	}

	if got, want := p.Len(), 8; got != want {
		t.Errorf("pool size: got %d, want %d", got, want)
	}
	if p.Get(a).Number != 42 {
		t.Errorf("Get(%d) = %v", a, p.Get(a))
	}
}

func TestUnit_EmitAndPatch(t *testing.T) {
	u := &Unit{Name: "main"}
	u.Emit(Op(OP_PUSH_TRUE), 1)
	jump := u.Emit(OpArg(OP_JUMP_IF_FALSE, -1), 1)
	u.Emit(Op(OP_PUSH_NULL), 2)
	u.PatchTarget(jump, u.Len())

	if u.Instructions[jump].Operand != 3 {
		t.Errorf("patched target: got %d, want 3", u.Instructions[jump].Operand)
	}
	if u.LineAt(2) != 2 || u.LineAt(99) != 0 {
		t.Errorf("line table wrong: %v", u.Lines)
	}
	if err := u.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestUnit_Validate(t *testing.T) {
	fnConst := FunctionConst(&FunctionTemplate{
		Name:     "inner",
		Captures: []Capture{{Source: CaptureLocal, Index: 0}},
		Unit: &Unit{
			Name:         "inner",
			Instructions: []Instruction{OpArg(OP_LOAD_CLOSURE, 0), Op(OP_RETURN)},
		},
	})

	tests := []struct {
		name    string
		unit    *Unit
		wantErr string
	}{
		{
			name: "valid closure",
			unit: &Unit{
				Name:         "main",
				LocalCount:   1,
				Instructions: []Instruction{OpArg(OP_MAKE_CLOSURE, 0), Op(OP_RETURN)},
				Constants:    []Constant{fnConst},
			},
		},
		{
			name:    "jump past end",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_JUMP, 2)}},
			wantErr: "target 2",
		},
		{
			name:    "jump to end is allowed",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_JUMP, 1)}},
			wantErr: "",
		},
		{
			name:    "constant out of range",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_PUSH_CONST, 0)}},
			wantErr: "constant index 0",
		},
		{
			name: "make closure on a number",
			unit: &Unit{
				Instructions: []Instruction{OpArg(OP_MAKE_CLOSURE, 0)},
				Constants:    []Constant{NumberConst(1)},
			},
			wantErr: "not a function template",
		},
		{
			name:    "local outside frame",
			unit:    &Unit{LocalCount: 1, Instructions: []Instruction{OpArg(OP_LOAD_LOCAL, 1)}},
			wantErr: "slot 1",
		},
		{
			name:    "closure slot in program",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_LOAD_CLOSURE, 0)}},
			wantErr: "environment of 0",
		},
		{
			name:    "unknown opcode",
			unit:    &Unit{Instructions: []Instruction{{Op: Opcode(200)}}},
			wantErr: "unknown opcode",
		},
		{
			name:    "call count overflow",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_CALL, math.MaxInt)}},
			wantErr: "outside [0, 1048576]",
		},
		{
			name:    "argument index too large",
			unit:    &Unit{Instructions: []Instruction{OpArg(OP_STORE_ARG, MaxOperand+1)}},
			wantErr: "STORE_ARG: operand",
		},
		{
			name:    "frame too large",
			unit:    &Unit{LocalCount: MaxOperand + 1},
			wantErr: "local count",
		},
		{
			name:    "global without name",
			unit:    &Unit{Instructions: []Instruction{Op(OP_LOAD_GLOBAL)}},
			wantErr: "empty name",
		},
		{
			name: "capture of missing local",
			unit: &Unit{
				Name:         "main",
				Instructions: []Instruction{OpArg(OP_MAKE_CLOSURE, 0)},
				Constants:    []Constant{fnConst},
			},
			wantErr: "does not resolve",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unit.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidUnit) {
				t.Errorf("error does not match ErrInvalidUnit: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func sampleUnit() *Unit {
	inner := &Unit{
		Name:         "add",
		Instructions: []Instruction{OpArg(OP_LOAD_ARG, 0), OpArg(OP_LOAD_ARG, 1), Op(OP_ADD), Op(OP_RETURN)},
		Lines:        []int{2, 2, 2, 2},
	}
	pool := NewConstantPool()
	fn := pool.Intern(FunctionConst(&FunctionTemplate{Name: "add", ParamCount: 2, Unit: inner}))
	two := pool.Intern(NumberConst(2))
	neg := pool.Intern(NumberConst(math.Copysign(0, -1)))
	str := pool.Intern(StringConst("hi"))

	u := &Unit{Name: "<program>", LocalCount: 1, File: "sample.json"}
	u.Emit(OpArg(OP_MAKE_CLOSURE, fn), 1)
	u.Emit(OpName(OP_STORE_GLOBAL, "add"), 1)
	u.Emit(Op(OP_POP), 1)
	u.Emit(OpName(OP_LOAD_GLOBAL, "add"), 3)
	u.Emit(OpArg(OP_PUSH_CONST, two), 3)
	u.Emit(OpArg(OP_PUSH_CONST, neg), 3)
	u.Emit(OpArg(OP_CALL, 2), 3)
	u.Emit(OpArg(OP_PUSH_CONST, str), 3)
	u.Emit(Op(OP_ADD), 3)
	u.Emit(OpArg(OP_STORE_LOCAL, 0), 3)
	u.Emit(Op(OP_RETURN), 3)
	u.Constants = pool.Constants()
	return u
}

func TestCodec_Roundtrip(t *testing.T) {
	u := sampleUnit()
	data, err := Marshal(u)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !IsSerialized(data) {
		t.Fatal("serialized data lacks magic")
	}

	restored, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if restored.Name != u.Name || restored.LocalCount != u.LocalCount || restored.File != u.File {
		t.Errorf("header mismatch: got %+v", restored)
	}
	if len(restored.Instructions) != len(u.Instructions) {
		t.Fatalf("instruction count: got %d, want %d", len(restored.Instructions), len(u.Instructions))
	}
	for i := range u.Instructions {
		if restored.Instructions[i].String() != u.Instructions[i].String() {
			t.Errorf("instruction %d: got %s, want %s", i, restored.Instructions[i], u.Instructions[i])
		}
	}
	negZero := restored.Constants[2].Number
	if negZero != 0 || !math.Signbit(negZero) {
		t.Errorf("-0 constant did not survive: %v", negZero)
	}
	fn := restored.Constants[0].Function
	if fn == nil || fn.ParamCount != 2 || fn.Unit.Len() != 4 {
		t.Fatalf("function template not restored: %+v", fn)
	}
	if Disassemble(restored) != Disassemble(u) {
		t.Error("disassembly differs after roundtrip")
	}

	// Encoding is canonical.
	again, err := Marshal(restored)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Error("re-encoding produced different bytes")
	}
}

func TestCodec_Rejects(t *testing.T) {
	good, err := Marshal(sampleUnit())
	if err != nil {
		t.Fatal(err)
	}

	badVersion := append([]byte{}, good...)
	badVersion[4] = 0x7f

	invalid := &Unit{Name: "bad", Instructions: []Instruction{OpArg(OP_JUMP, 9)}}
	invalidData, err := Marshal(invalid)
	if err != nil {
		t.Fatal(err)
	}

	hugeCall := &Unit{Name: "huge", Instructions: []Instruction{Op(OP_PUSH_NULL), OpArg(OP_CALL, math.MaxInt)}}
	hugeData, err := Marshal(hugeCall)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"short", []byte("JS"), "too short"},
		{"magic", []byte("NOPE\x01xxxx"), "invalid magic"},
		{"version", badVersion, "unsupported bytecode version"},
		{"truncated", good[:len(good)/2], "unmarshal unit"},
		{"invalid unit", invalidData, "target 9"},
		{"call count overflow", hugeData, "CALL: operand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDisassemble(t *testing.T) {
	out := Disassemble(sampleUnit())

	for _, want := range []string{
		"== <program> ==",
		"MAKE_CLOSURE",
		"'<fn add/2>'",
		"STORE_GLOBAL",
		" add\n",
		"'-0'",
		`'"hi"'`,
		"== add ==",
		"LOAD_ARG",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}

	line := DisassembleInstruction(sampleUnit(), 3)
	if !strings.HasPrefix(line, "0003    3 LOAD_GLOBAL") {
		t.Errorf("unexpected instruction line %q", line)
	}
	if line := DisassembleInstruction(sampleUnit(), 4); !strings.HasPrefix(line, "0004    | PUSH_CONST") {
		t.Errorf("repeated line should print a bar, got %q", line)
	}
}

func TestOpcode_String(t *testing.T) {
	if OP_CALL_FUNCTION.String() != "CALL_FUNCTION" {
		t.Errorf("got %s", OP_CALL_FUNCTION)
	}
	if Opcode(250).String() != "OP_250" {
		t.Errorf("got %s", Opcode(250))
	}
	if !OP_JUMP_IF_TRUE.IsJump() || OP_CALL.IsJump() {
		t.Error("IsJump misclassifies")
	}
	for op := Opcode(0); op < opcodeCount; op++ {
		if opTable[op].name == "" {
			t.Errorf("opcode %d has no table entry", op)
		}
	}
}

// FuzzUnmarshal checks that arbitrary input never panics the decoder and
// that accepted units re-encode.
func FuzzUnmarshal(f *testing.F) {
	good, err := Marshal(sampleUnit())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(good)
	f.Add([]byte("JSBC"))
	f.Add([]byte("JSBC\x02\xa0"))

	f.Fuzz(func(t *testing.T, data []byte) {
		u, err := Unmarshal(data)
		if err != nil {
			return
		}
		if _, err := Marshal(u); err != nil {
			t.Errorf("accepted unit does not re-encode: %v", err)
		}
		_ = Disassemble(u)
	})
}
