package pipeline

import (
	"errors"
	"os"
	"testing"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/compiler"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func TestPipelineCompile(t *testing.T) {
	for _, name := range []string{"factorial.json", "counter.yaml"} {
		t.Run(name, func(t *testing.T) {
			ctx := NewPipelineContext(readTestdata(t, name))
			ctx.FilePath = name
			ctx = New(DecodeProcessor{}, CompileProcessor{}).Run(ctx)
			if err := ctx.Err(); err != nil {
				t.Fatalf("pipeline failed: %v", err)
			}
			if ctx.AstRoot == nil || ctx.AstRoot.File != name {
				t.Errorf("AST not recorded for %s", name)
			}
			if ctx.Unit == nil || len(ctx.Unit.Instructions) == 0 {
				t.Fatal("no unit produced")
			}
			if err := ctx.Unit.Validate(); err != nil {
				t.Errorf("invalid unit: %v", err)
			}
		})
	}
}

func TestPipelineSerializedInput(t *testing.T) {
	unit, err := compiler.New(compiler.Options{}).Compile(ast.Prog(ast.Expr(ast.Num(1))))
	if err != nil {
		t.Fatal(err)
	}
	data, err := bytecode.Marshal(unit)
	if err != nil {
		t.Fatal(err)
	}

	ctx := New(DecodeProcessor{}, CompileProcessor{}).Run(NewPipelineContext(data))
	if err := ctx.Err(); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if ctx.AstRoot != nil {
		t.Error("serialized input should not produce an AST")
	}
	if ctx.Unit == nil || len(ctx.Unit.Instructions) != len(unit.Instructions) {
		t.Errorf("unit not decoded: %+v", ctx.Unit)
	}
}

func TestPipelineErrors(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		ctx := NewPipelineContext([]byte("type: Program\nbody: [{type: Nonsense}]"))
		ctx.FilePath = "bad.yaml"
		ctx = New(DecodeProcessor{}, CompileProcessor{}).Run(ctx)
		if len(ctx.Errors) != 1 || !errors.Is(ctx.Errors[0], ast.ErrMalformed) {
			t.Fatalf("expected one malformed error, got %v", ctx.Errors)
		}
		if ctx.Unit != nil {
			t.Error("compile ran after a decode failure")
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		ctx := NewPipelineContext([]byte(`{"type": "Program", "body": [{"type": "ExpressionStatement", "expression": {"type": "Identifier", "name": "missing"}}]}`))
		ctx = New(DecodeProcessor{}, CompileProcessor{}).Run(ctx)
		if !errors.Is(ctx.Err(), compiler.ErrUnresolvedBinding) {
			t.Fatalf("expected unresolved binding, got %v", ctx.Err())
		}
	})

	t.Run("globals", func(t *testing.T) {
		ctx := NewPipelineContext([]byte(`{"type": "Program", "body": [{"type": "ExpressionStatement", "expression": {"type": "Identifier", "name": "host"}}]}`))
		ctx.Globals = []string{"host"}
		ctx = New(DecodeProcessor{}, CompileProcessor{}).Run(ctx)
		if err := ctx.Err(); err != nil {
			t.Fatalf("declared global rejected: %v", err)
		}
	})

	t.Run("no program", func(t *testing.T) {
		ctx := New(CompileProcessor{}).Run(NewPipelineContext(nil))
		if ctx.Err() == nil {
			t.Error("expected an error without an AST")
		}
	})
}
