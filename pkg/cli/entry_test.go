package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := &App{Stdin: strings.NewReader(stdin), Stdout: &stdout, Stderr: &stderr}
	code := app.Run(args)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const factorial = "../../testdata/factorial.json"

// print("hi", 1 + 1); {a: [1, 2]}
const printDoc = `
type: Program
body:
  - type: ExpressionStatement
    expression:
      type: CallExpression
      callee: {type: Identifier, name: print}
      arguments:
        - {type: Literal, value: hi}
        - {type: BinaryExpression, operator: "+", left: {type: Literal, value: 1}, right: {type: Literal, value: 1}}
  - type: ExpressionStatement
    expression:
      type: ObjectExpression
      properties:
        - type: Property
          key: {type: Identifier, name: a}
          value: {type: ArrayExpression, elements: [{type: Literal, value: 1}, {type: Literal, value: 2}]}
`

// let f = 3; f()
const notCallableDoc = `
type: Program
body:
  - type: VariableDeclaration
    kind: let
    declarations:
      - {id: {type: Identifier, name: f}, init: {type: Literal, value: 3}}
  - type: ExpressionStatement
    loc: {start: {line: 2, column: 0}}
    expression: {type: CallExpression, callee: {type: Identifier, name: f}, arguments: []}
`

func TestUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		out  string
	}{
		{"no args", nil, ExitUsage, "Usage: jsvm"},
		{"help", []string{"help"}, ExitOK, "Commands:"},
		{"version", []string{"version"}, ExitOK, "jsvm 0."},
		{"unknown", []string{"frobnicate"}, ExitUsage, ""},
		{"bad flag", []string{"run", "--nope", factorial}, ExitUsage, ""},
		{"too many files", []string{"run", factorial, factorial}, ExitUsage, ""},
		{"exec without file", []string{"exec"}, ExitUsage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCLI(t, "", tt.args...)
			if code != tt.code {
				t.Errorf("exit code %d, want %d", code, tt.code)
			}
			if !strings.Contains(out, tt.out) {
				t.Errorf("stdout %q does not contain %q", out, tt.out)
			}
		})
	}
}

func TestRun(t *testing.T) {
	code, out, errOut := runCLI(t, "", "run", factorial)
	if code != ExitOK {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if out != "120\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunPrintAndStdin(t *testing.T) {
	code, out, errOut := runCLI(t, printDoc, "run")
	if code != ExitOK {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if out != "hi 2\n{ a: [1, 2] }\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunRuntimeError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boom.yaml", notCallableDoc)
	code, out, errOut := runCLI(t, "", "run", path)
	if code != ExitFailure {
		t.Fatalf("exit code %d, want %d", code, ExitFailure)
	}
	if out != "" {
		t.Errorf("unexpected stdout %q", out)
	}
	for _, want := range []string{"jsvm: ", "NotCallable", "number 3 is not a function"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("stderr %q does not contain %q", errOut, want)
		}
	}
}

func TestRunGenerationError(t *testing.T) {
	doc := `{"type": "Program", "body": [{"type": "ExpressionStatement", "expression": {"type": "Identifier", "name": "nowhere"}}]}`
	code, _, errOut := runCLI(t, doc, "run")
	if code != ExitFailure || !strings.Contains(errOut, "unresolved binding") {
		t.Errorf("exit code %d, stderr %q", code, errOut)
	}

	code, _, errOut = runCLI(t, doc, "run", "--implicit-globals")
	if code != ExitFailure || !strings.Contains(errOut, "nowhere is not defined") {
		t.Errorf("implicit globals: exit code %d, stderr %q", code, errOut)
	}
}

func TestRunTrace(t *testing.T) {
	code, _, errOut := runCLI(t, "", "run", "--trace", factorial)
	if code != ExitOK {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"<program>", "factorial", "MUL", "RETURN"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("trace does not contain %q", want)
		}
	}
}

func TestRunConfig(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(factorial)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "factorial.json", string(src))

	writeFile(t, dir, "jsvm.yaml", "limits:\n  max_instructions: 10\n")
	code, _, errOut := runCLI(t, "", "run", path)
	if code != ExitFailure || !strings.Contains(errOut, "InstructionLimit") {
		t.Errorf("found config not applied: exit code %d, stderr %q", code, errOut)
	}

	explicit := writeFile(t, t.TempDir(), "jsvm.toml", "[limits]\nmax_frames = 3\n")
	code, _, errOut = runCLI(t, "", "run", "--config", explicit, path)
	if code != ExitFailure || !strings.Contains(errOut, "StackOverflow") {
		t.Errorf("explicit config not applied: exit code %d, stderr %q", code, errOut)
	}

	code, _, errOut = runCLI(t, "", "run", "--config", filepath.Join(dir, "missing.yaml"), path)
	if code != ExitFailure {
		t.Errorf("missing config: exit code %d, stderr %q", code, errOut)
	}
}

func TestCompileAndExec(t *testing.T) {
	out := filepath.Join(t.TempDir(), "factorial.jsbc")
	code, stdout, errOut := runCLI(t, "", "compile", "-o", out, factorial)
	if code != ExitOK {
		t.Fatalf("compile: exit code %d: %s", code, errOut)
	}
	if !strings.Contains(stdout, "-> "+out) {
		t.Errorf("unexpected compile output %q", stdout)
	}

	code, stdout, errOut = runCLI(t, "", "exec", out)
	if code != ExitOK || stdout != "120\n" {
		t.Errorf("exec: exit code %d, stdout %q, stderr %q", code, stdout, errOut)
	}

	// run accepts serialized units too
	code, stdout, _ = runCLI(t, "", "run", out)
	if code != ExitOK || stdout != "120\n" {
		t.Errorf("run unit: exit code %d, stdout %q", code, stdout)
	}

	// exec refuses AST documents
	code, _, errOut = runCLI(t, "", "exec", factorial)
	if code != ExitFailure || !strings.Contains(errOut, "not a serialized unit") {
		t.Errorf("exec AST: exit code %d, stderr %q", code, errOut)
	}
}

func TestCompileHostGlobals(t *testing.T) {
	out := filepath.Join(t.TempDir(), "print.jsbc")
	if code, _, errOut := runCLI(t, printDoc, "compile", "-o", out); code != ExitOK {
		t.Fatalf("compile: exit code %d: %s", code, errOut)
	}
	code, stdout, errOut := runCLI(t, "", "exec", out)
	if code != ExitOK || !strings.HasPrefix(stdout, "hi 2\n") {
		t.Errorf("exec: exit code %d, stdout %q, stderr %q", code, stdout, errOut)
	}

	if code, _, _ := runCLI(t, printDoc, "compile"); code != ExitUsage {
		t.Errorf("compile from stdin without -o: exit code %d", code)
	}
}

func TestDisasm(t *testing.T) {
	code, out, errOut := runCLI(t, "", "disasm", factorial)
	if code != ExitOK {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"== <program> ==", "== factorial ==", "MAKE_CLOSURE", "CALL"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly does not contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("disassembly is colored without a terminal")
	}
}

func TestFmt(t *testing.T) {
	code, out, errOut := runCLI(t, "", "fmt", factorial)
	if code != ExitOK {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"function factorial(n) {", "return n * factorial(n - 1);", "factorial(5);"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	code, out, _ = runCLI(t, printDoc, "fmt")
	if code != ExitOK || out != "print(\"hi\", 1 + 1);\n({ a: [1, 2] });\n" {
		t.Errorf("exit code %d, output %q", code, out)
	}
}
