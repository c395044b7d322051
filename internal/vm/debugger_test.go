package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/config"
)

func TestDebuggerBreakpoints(t *testing.T) {
	vm := newVM(t)
	// function sq(x) { return x * x; } sq(3) + sq(4)
	unit := compileFor(t, vm, ast.Prog(
		ast.Func("sq", []string{"x"}, ast.Return(ast.Bin("*", ast.Ident("x"), ast.Ident("x")))),
		ast.Expr(ast.Bin("+", ast.Call(ast.Ident("sq"), ast.Num(3)), ast.Call(ast.Ident("sq"), ast.Num(4)))),
	))

	debugger := vm.EnableDebugger()
	var output bytes.Buffer
	debugger.Output = &output
	debugger.SetBreakpoint("sq", 0)

	var hits []string
	debugger.OnStop = func(dbg *Debugger, v *VM) {
		stack := dbg.GetCallStack(v)
		hits = append(hits, stack[0].FunctionName)
		if len(stack) != 2 || stack[1].FunctionName != "<script>" {
			t.Errorf("unexpected call stack %+v", stack)
		}
		dbg.PrintLocation(v)
		dbg.Continue()
	}

	res, err := vm.Execute(unit)
	if err != nil {
		t.Fatalf("VM execution failed: %v", err)
	}
	expectNumber(t, res, 25)

	if len(hits) != 2 {
		t.Errorf("expected breakpoint hit twice, got %v", hits)
	}
	if !strings.Contains(output.String(), "Breakpoint at sq:0000") {
		t.Errorf("unexpected output %q", output.String())
	}
}

func TestDebuggerStep(t *testing.T) {
	vm := newVMWith(t, config.DefaultLimits(), config.GC{Auto: true})
	unit := compileFor(t, vm, ast.Prog(ast.Expr(ast.Bin("+", ast.Num(1), ast.Num(2)))))

	debugger := vm.EnableDebugger()
	var output bytes.Buffer
	debugger.Output = &output
	debugger.Step()

	stops := 0
	debugger.OnStop = func(dbg *Debugger, v *VM) {
		stops++
		dbg.PrintInstruction(v)
	}

	if _, err := vm.Execute(unit); err != nil {
		t.Fatal(err)
	}
	if stops != len(unit.Instructions) {
		t.Errorf("expected a stop per instruction (%d), got %d", len(unit.Instructions), stops)
	}
	if !strings.Contains(output.String(), "ADD") {
		t.Errorf("trace does not show ADD:\n%s", output.String())
	}
}

func TestDebuggerStepOut(t *testing.T) {
	vm := newVM(t)
	unit := compileFor(t, vm, ast.Prog(
		ast.Func("id", []string{"x"}, ast.Return(ast.Ident("x"))),
		ast.Expr(ast.Call(ast.Ident("id"), ast.Num(7))),
	))

	debugger := vm.EnableDebugger()
	debugger.Output = &bytes.Buffer{}
	debugger.SetBreakpoint("id", 0)

	var stops []string
	debugger.OnStop = func(dbg *Debugger, v *VM) {
		name, _, _ := dbg.GetCurrentLocation(v)
		stops = append(stops, name)
		if name == "id" {
			dbg.StepOut(v)
		} else {
			dbg.Run()
		}
	}

	if _, err := vm.Execute(unit); err != nil {
		t.Fatal(err)
	}
	if len(stops) != 2 || stops[0] != "id" || stops[1] != "<program>" {
		t.Errorf("unexpected stops %v", stops)
	}
}

func TestDebuggerInspection(t *testing.T) {
	vm := newVM(t)
	unit := compileFor(t, vm, ast.Prog(
		ast.Let("g", ast.Obj("a", ast.Num(1))),
		ast.Func("f", []string{"p"}, ast.Let("l", ast.Str("s")), ast.Return(ast.Ident("l"))),
		ast.Expr(ast.Call(ast.Ident("f"), ast.Num(2))),
	))

	debugger := vm.EnableDebugger()
	var output bytes.Buffer
	debugger.Output = &output
	// Stop at f's RETURN, after l is stored.
	debugger.SetBreakpoint("f", len(unit.Constants[0].Function.Unit.Instructions)-3)
	debugger.OnStop = func(dbg *Debugger, v *VM) {
		dbg.PrintLocals(v)
		dbg.PrintGlobals(v)
		dbg.PrintCallStack(v)
		dbg.PrintStack(v)
	}

	if _, err := vm.Execute(unit); err != nil {
		t.Fatal(err)
	}
	out := output.String()
	for _, want := range []string{"arg0 = 2", `slot0 = s`, "g = { a: 1 }", "1. f at f:", "2. <script> at <program>:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestDebuggerBreakpointList(t *testing.T) {
	d := NewDebugger()
	d.SetBreakpoint("b", 3)
	d.SetBreakpoint("a", 7)
	d.SetBreakpoint("a", 1)
	d.RemoveBreakpoint("b", 3)

	bps := d.GetBreakpoints()
	if len(bps) != 2 || bps[0].Unit != "a" || bps[0].PC != 1 || bps[1].PC != 7 {
		t.Errorf("unexpected breakpoints %+v", bps)
	}
	d.ClearBreakpoints()
	if len(d.GetBreakpoints()) != 0 {
		t.Error("ClearBreakpoints left breakpoints")
	}
}
