package vm

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/compiler"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
)

func runErr(t *testing.T, vm *VM, prog *ast.Program) *RuntimeError {
	t.Helper()
	unit, err := compiler.New(compiler.Options{Globals: vm.GlobalNames(), AllowImplicitGlobals: true}).Compile(prog)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return executeErr(t, vm, context.Background(), unit)
}

func executeErr(t *testing.T, vm *VM, ctx context.Context, unit *bytecode.Unit) *RuntimeError {
	t.Helper()
	v, err := vm.ExecuteContext(ctx, unit)
	if err == nil {
		t.Fatalf("expected error, got %#v", v)
	}
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	return re
}

func TestRuntimeErrors(t *testing.T) {
	infinite := ast.While(ast.Bool(true), ast.Block())

	tests := []struct {
		name     string
		prog     *ast.Program
		opts     []Option
		limits   *config.Limits
		kind     ErrorKind
		sentinel error
		detail   string
	}{
		{
			name:     "call a number",
			prog:     ast.Prog(ast.Let("a", ast.Num(1)), ast.Expr(ast.Call(ast.Ident("a")))),
			kind:     NotCallable,
			sentinel: ErrNotCallable,
			detail:   "number 1 is not a function",
		},
		{
			name:     "new on arrow",
			prog:     ast.Prog(ast.Expr(ast.New(ast.Arrow(nil, ast.Num(1))))),
			kind:     NotCallable,
			sentinel: ErrNotCallable,
			detail:   "not a constructor",
		},
		{
			name:     "property of number",
			prog:     ast.Prog(ast.Expr(ast.Dot(ast.Num(5), "x"))),
			kind:     NotAnObject,
			sentinel: ErrNotAnObject,
			detail:   `cannot read property "x" of number`,
		},
		{
			name:     "property of undefined",
			prog:     ast.Prog(ast.Expr(ast.Assign("=", ast.Dot(ast.Undefined(), "x"), ast.Num(1)))),
			kind:     NotAnObject,
			sentinel: ErrNotAnObject,
		},
		{
			name:     "in on string",
			prog:     ast.Prog(ast.Expr(ast.Bin("in", ast.Str("length"), ast.Str("abc")))),
			kind:     NotAnObject,
			sentinel: ErrNotAnObject,
		},
		{
			name:     "delete on number",
			prog:     ast.Prog(ast.Expr(ast.Unary("delete", ast.Dot(ast.Num(5), "x")))),
			kind:     NotAnObject,
			sentinel: ErrNotAnObject,
			detail:   `cannot delete property "x" of number`,
		},
		{
			name:     "strict missing property",
			prog:     ast.Prog(ast.Expr(ast.Dot(ast.Obj("x", ast.Num(1)), "y"))),
			opts:     []Option{WithStrictProperties(true)},
			kind:     PropertyNotFound,
			sentinel: ErrPropertyNotFound,
			detail:   `object has no property "y"`,
		},
		{
			name:     "object plus number",
			prog:     ast.Prog(ast.Expr(ast.Bin("+", ast.Obj(), ast.Num(1)))),
			kind:     TypeMismatch,
			sentinel: ErrTypeMismatch,
			detail:   "ADD on object and number",
		},
		{
			name:     "compare arrays",
			prog:     ast.Prog(ast.Expr(ast.Bin("<", ast.Array(), ast.Array()))),
			kind:     TypeMismatch,
			sentinel: ErrTypeMismatch,
		},
		{
			name:     "named array property",
			prog:     ast.Prog(ast.Expr(ast.Assign("=", ast.Dot(ast.Array(), "name"), ast.Num(1)))),
			kind:     TypeMismatch,
			sentinel: ErrTypeMismatch,
		},
		{
			name:     "bad array length",
			prog:     ast.Prog(ast.Expr(ast.Assign("=", ast.Dot(ast.Array(), "length"), ast.Num(-1)))),
			kind:     TypeMismatch,
			sentinel: ErrTypeMismatch,
		},
		{
			name:     "huge array index",
			prog:     ast.Prog(ast.Expr(ast.Assign("=", ast.Index(ast.Array(), ast.Num(1<<25)), ast.Num(1)))),
			kind:     HeapExhausted,
			sentinel: ErrHeapExhausted,
		},
		{
			name:     "undefined global",
			prog:     ast.Prog(ast.Expr(ast.Ident("nope"))),
			kind:     UndefinedVariable,
			sentinel: ErrUndefinedVariable,
			detail:   "nope is not defined",
		},
		{
			name:     "instruction limit",
			prog:     ast.Prog(infinite),
			limits:   &config.Limits{MaxInstructions: 5000},
			kind:     InstructionLimit,
			sentinel: ErrInstructionLimit,
		},
		{
			name: "runaway recursion",
			prog: ast.Prog(
				ast.Func("f", []string{"n"}, ast.Return(ast.Call(ast.Ident("f"), ast.Bin("+", ast.Ident("n"), ast.Num(1))))),
				ast.Expr(ast.Call(ast.Ident("f"), ast.Num(0))),
			),
			limits:   &config.Limits{MaxFrames: 100},
			kind:     StackOverflow,
			sentinel: ErrStackOverflow,
			detail:   "call depth exceeded 100 frames",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := config.DefaultLimits()
			if tt.limits != nil {
				limits = *tt.limits
			}
			vm := newVMWith(t, limits, config.GC{Auto: true}, tt.opts...)
			re := runErr(t, vm, tt.prog)

			if re.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s (%v)", re.Kind, tt.kind, re)
			}
			if !errors.Is(re, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", re, tt.sentinel)
			}
			if tt.detail != "" && !strings.Contains(re.Detail, tt.detail) {
				t.Errorf("detail %q does not contain %q", re.Detail, tt.detail)
			}
			if re.Unit == "" || re.Op == "" {
				t.Errorf("error is not located: %+v", re)
			}

			// A fault unwinds everything; the VM stays usable.
			if len(vm.frames) != 0 || vm.sp != 0 {
				t.Errorf("frames=%d sp=%d after fault", len(vm.frames), vm.sp)
			}
			v := run(t, vm, ast.Prog(ast.Expr(ast.Num(1))))
			expectNumber(t, v, 1)
		})
	}
}

func TestRuntimeError_StackUnderflow(t *testing.T) {
	unit := &bytecode.Unit{
		Name: "broken",
		Instructions: []bytecode.Instruction{
			bytecode.Op(bytecode.OP_PUSH_NULL),
			bytecode.Op(bytecode.OP_POP),
			bytecode.Op(bytecode.OP_POP),
			bytecode.Op(bytecode.OP_RETURN),
		},
	}
	re := executeErr(t, newVM(t), context.Background(), unit)
	if !errors.Is(re, ErrStackUnderflow) {
		t.Fatalf("expected stack underflow, got %v", re)
	}
	if re.PC != 2 || re.Op != "POP" || re.Unit != "broken" {
		t.Errorf("wrong location: pc=%d op=%s unit=%s", re.PC, re.Op, re.Unit)
	}
	if errStackUnderflow.located {
		t.Error("shared sentinel was mutated")
	}
}

func TestRuntimeError_CalleeCannotPopCallerOperands(t *testing.T) {
	// The callee pops more than it pushed; the caller's operands are off limits.
	callee := &bytecode.Unit{
		Name:         "greedy",
		Instructions: []bytecode.Instruction{bytecode.Op(bytecode.OP_POP), bytecode.Op(bytecode.OP_RETURN)},
	}
	pool := bytecode.NewConstantPool()
	fnIdx := pool.Intern(bytecode.FunctionConst(&bytecode.FunctionTemplate{Name: "greedy", Unit: callee}))
	unit := &bytecode.Unit{
		Name: "caller",
		Instructions: []bytecode.Instruction{
			bytecode.Op(bytecode.OP_PUSH_TRUE),
			bytecode.OpArg(bytecode.OP_MAKE_CLOSURE, fnIdx),
			bytecode.OpArg(bytecode.OP_CALL, 0),
			bytecode.Op(bytecode.OP_RETURN),
		},
		Constants: pool.Constants(),
	}
	re := executeErr(t, newVM(t), context.Background(), unit)
	if !errors.Is(re, ErrStackUnderflow) {
		t.Fatalf("expected stack underflow, got %v", re)
	}
	if re.Unit != "greedy" {
		t.Errorf("fault should be reported in the callee, got %s", re.Unit)
	}
	if len(re.Trace) != 2 || !strings.HasPrefix(re.Trace[0], "at greedy:0000") || !strings.HasPrefix(re.Trace[1], "at caller:0002") {
		t.Errorf("unexpected trace %q", re.Trace)
	}
}

func TestRuntimeError_InvalidUnit(t *testing.T) {
	unit := &bytecode.Unit{
		Name:         "bad",
		Instructions: []bytecode.Instruction{bytecode.OpArg(bytecode.OP_JUMP, 7)},
	}
	re := executeErr(t, newVM(t), context.Background(), unit)
	if re.Kind != InvalidInstruction || !errors.Is(re, bytecode.ErrInvalidUnit) {
		t.Errorf("expected InvalidInstruction wrapping ErrInvalidUnit, got %v", re)
	}
}

func TestRuntimeError_OperandOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		in   bytecode.Instruction
	}{
		{"call", bytecode.OpArg(bytecode.OP_CALL, math.MaxInt)},
		{"call method", bytecode.OpArg(bytecode.OP_CALL_METHOD, math.MaxInt-1)},
		{"call function", bytecode.OpArg(bytecode.OP_CALL_FUNCTION, math.MaxInt)},
		{"new", bytecode.OpArg(bytecode.OP_NEW, math.MaxInt)},
		{"new array", bytecode.OpArg(bytecode.OP_NEW_ARRAY, bytecode.MaxOperand+1)},
		{"store arg", bytecode.OpArg(bytecode.OP_STORE_ARG, math.MaxInt)},
		{"load arg", bytecode.OpArg(bytecode.OP_LOAD_ARG, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := &bytecode.Unit{
				Name: "huge",
				Instructions: []bytecode.Instruction{
					bytecode.Op(bytecode.OP_PUSH_NULL),
					tt.in,
					bytecode.Op(bytecode.OP_RETURN),
				},
			}
			re := executeErr(t, newVM(t), context.Background(), unit)
			if re.Kind != InvalidInstruction || !errors.Is(re, bytecode.ErrInvalidUnit) {
				t.Errorf("expected InvalidInstruction wrapping ErrInvalidUnit, got %v", re)
			}
		})
	}
}

func TestRuntimeError_CountAboveStack(t *testing.T) {
	unit := &bytecode.Unit{
		Name: "short",
		Instructions: []bytecode.Instruction{
			bytecode.Op(bytecode.OP_PUSH_NULL),
			bytecode.OpArg(bytecode.OP_CALL, bytecode.MaxOperand),
			bytecode.Op(bytecode.OP_RETURN),
		},
	}
	re := executeErr(t, newVM(t), context.Background(), unit)
	if !errors.Is(re, ErrStackUnderflow) || re.PC != 1 {
		t.Errorf("expected stack underflow at pc 1, got %v", re)
	}
}

func TestRuntimeError_InvalidHandle(t *testing.T) {
	vm := newVM(t)
	stale, err := vm.Heap().Allocate(heap.NewObject())
	if err != nil {
		t.Fatal(err)
	}
	vm.Heap().Collect() // nothing roots it
	vm.SetGlobal("stale", stale)

	re := runErr(t, vm, ast.Prog(ast.Expr(ast.Dot(ast.Ident("stale"), "x"))))
	if re.Kind != InvalidHeapHandle || !errors.Is(re, heap.ErrInvalidHandle) {
		t.Errorf("expected InvalidHeapHandle, got %v", re)
	}
}

func TestRuntimeError_Cancelled(t *testing.T) {
	vm := newVM(t)
	unit, err := compiler.New(compiler.Options{}).Compile(ast.Prog(ast.While(ast.Bool(true), ast.Block())))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	re := executeErr(t, vm, ctx, unit)
	if re.Kind != Cancelled || !errors.Is(re, context.Canceled) {
		t.Errorf("expected Cancelled wrapping context.Canceled, got %v", re)
	}
}

func TestRuntimeError_HostError(t *testing.T) {
	vm := newVM(t)
	boom := errors.New("boom")
	if _, err := vm.DefineNative("fail", 0, func(heap.Heap, heap.Value, []heap.Value) (heap.Value, error) {
		return heap.Undefined(), boom
	}); err != nil {
		t.Fatal(err)
	}

	// function g() { return fail(); } g()
	re := runErr(t, vm, ast.Prog(
		ast.Func("g", nil, ast.Return(ast.Call(ast.Ident("fail")))),
		ast.Expr(ast.Call(ast.Ident("g"))),
	))
	if re.Kind != HostError || !errors.Is(re, boom) || !errors.Is(re, ErrHostError) {
		t.Errorf("expected HostError wrapping boom, got %v", re)
	}
	if re.Unit != "g" {
		t.Errorf("expected fault in g, got %s", re.Unit)
	}
}

func TestRuntimeError_Message(t *testing.T) {
	vm := newVM(t)
	prog, err := ast.Decode([]byte(`
type: Program
body:
  - type: FunctionDeclaration
    loc: {start: {line: 1, column: 0}}
    id: {type: Identifier, name: boom}
    params: []
    body:
      type: BlockStatement
      body:
        - type: ReturnStatement
          loc: {start: {line: 2, column: 2}}
          argument:
            type: CallExpression
            callee: {type: Literal, value: 3}
            arguments: []
  - type: ExpressionStatement
    loc: {start: {line: 4, column: 0}}
    expression:
      type: CallExpression
      callee: {type: Identifier, name: boom}
      arguments: []
`))
	if err != nil {
		t.Fatal(err)
	}
	re := runErr(t, vm, prog)
	msg := re.Error()
	for _, want := range []string{
		"runtime error: NotCallable at boom:",
		"(CALL), line 2: number 3 is not a function",
		"Stack trace:\n  at boom:",
		"(line 2)\n  at <program>:",
		"(line 4)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message does not contain %q:\n%s", want, msg)
		}
	}
}

func TestStackOverflow_DefaultLimit(t *testing.T) {
	// factorial(2000) fits; the default frame limit stops runaway recursion.
	fact := ast.Func("fact", []string{"n"},
		ast.If(ast.Bin("<=", ast.Ident("n"), ast.Num(1)), ast.Return(ast.Num(1)), nil),
		ast.Return(ast.Bin("*", ast.Ident("n"), ast.Call(ast.Ident("fact"), ast.Bin("-", ast.Ident("n"), ast.Num(1))))),
	)
	vm := newVM(t)
	v := run(t, vm, ast.Prog(fact, ast.Expr(ast.Call(ast.Ident("fact"), ast.Num(20)))))
	expectNumber(t, v, 2432902008176640000)

	re := runErr(t, vm, ast.Prog(ast.Expr(ast.Call(ast.Ident("fact"), ast.Num(1e6)))))
	if re.Kind != StackOverflow {
		t.Fatalf("expected StackOverflow, got %v", re)
	}
	if !strings.Contains(re.Detail, "4096") {
		t.Errorf("detail should name the limit: %s", re.Detail)
	}
}
