// Package cli implements the jsvm command line driver.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/wendelmax/jsvm/internal/backend"
	"github.com/wendelmax/jsvm/internal/bytecode"
	"github.com/wendelmax/jsvm/internal/config"
	"github.com/wendelmax/jsvm/internal/heap"
	"github.com/wendelmax/jsvm/internal/pipeline"
	"github.com/wendelmax/jsvm/internal/prettyprinter"
)

var log = commonlog.GetLogger(config.LogCLI)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1 // generation or runtime error
	ExitUsage   = 2
)

// hostGlobals are defined on every VM the driver creates; compile and
// disasm resolve them as globals too so their units run under `exec`.
var hostGlobals = []string{"print"}

// errUsage marks errors that exit with ExitUsage.
var errUsage = errors.New("usage")

// App holds the streams of one invocation.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Color enables colored disassembly and diagnostics.
	Color bool
}

// Main runs the driver on the process arguments and exits.
func Main() {
	app := &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	app.Color = !color.NoColor && isTerminal(os.Stdout)
	os.Exit(app.Run(os.Args[1:]))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run executes one command and returns the exit code.
func (a *App) Run(args []string) (code int) {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(a.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(a.Stderr, "This is a bug. Please report it.")
			code = ExitFailure
		}
	}()

	if len(args) == 0 {
		a.usage()
		return ExitUsage
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = a.handleRun(rest, false)
	case "exec":
		err = a.handleRun(rest, true)
	case "disasm":
		err = a.handleDisasm(rest)
	case "compile":
		err = a.handleCompile(rest)
	case "fmt":
		err = a.handleFmt(rest)
	case "version", "-version", "--version":
		fmt.Fprintln(a.Stdout, "jsvm "+config.Version)
	case "help", "-help", "--help", "-h":
		a.usage()
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		if !errors.Is(err, flag.ErrHelp) {
			a.fail(err)
		}
		return ExitUsage
	default:
		a.fail(err)
		return ExitFailure
	}
}

func (a *App) usage() {
	fmt.Fprint(a.Stdout, `Usage: jsvm <command> [flags] [file]

Commands:
  run [--trace] [--config f] <ast.json|ast.yaml|unit.jsbc>   compile if needed and execute
  exec <unit.jsbc>                                            execute a compiled unit
  disasm <ast.json|ast.yaml|unit.jsbc>                        print the disassembly
  compile [-o out.jsbc] <ast.json|ast.yaml>                   write the serialized unit
  fmt <ast.json|ast.yaml>                                     print the document as source text
  version                                                     print the version

Without a file, run, disasm and fmt read the document from stdin.
`)
}

func (a *App) fail(err error) {
	msg := err.Error()
	if a.Color {
		msg = color.New(color.FgRed).Sprint(msg)
	}
	fmt.Fprintf(a.Stderr, "jsvm: %s\n", msg)
}

func (a *App) palette() bytecode.Palette {
	if a.Color {
		return bytecode.ColorPalette
	}
	return bytecode.Palette{}
}

// commonFlags are accepted by every command that loads a document.
type commonFlags struct {
	configPath string
	verbose    verbosity
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "configuration file (default: jsvm.yaml/jsvm.toml found from the input's directory)")
	fs.Var(&c.verbose, "v", "increase log verbosity (repeatable)")
}

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error {
	*v++
	return nil
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	return fs
}

func (a *App) parse(fs *flag.FlagSet, args []string, maxFiles int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > maxFiles {
		return nil, fmt.Errorf("%w: %s takes at most %d file", errUsage, fs.Name(), maxFiles)
	}
	return fs.Args(), nil
}

// loadConfig reads the explicit config or searches from the input's directory,
// then configures logging.
func (a *App) loadConfig(flags *commonFlags, input string) (*config.Config, error) {
	var (
		cfg  *config.Config
		path = flags.configPath
		err  error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		dir := "."
		if input != "" {
			dir = filepath.Dir(input)
		}
		cfg, path, err = config.LoadOrDefault(dir)
	}
	if err != nil {
		return nil, err
	}

	var logFile *string
	if cfg.Log.File != "" {
		logFile = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity+int(flags.verbose), logFile)
	if path != "" {
		log.Debugf("using config %s", path)
	}
	return cfg, nil
}

// readInput reads the named file, or stdin when path is empty.
func (a *App) readInput(path string) ([]byte, error) {
	if path == "" {
		if f, ok := a.Stdin.(*os.File); ok && isTerminal(f) {
			return nil, fmt.Errorf("%w: no input file and stdin is a terminal", errUsage)
		}
		return io.ReadAll(a.Stdin)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != config.BytecodeFileExt && !config.IsASTFile(ext) {
		log.Warningf("%s: unknown extension %q, decoding by content", path, ext)
	}
	return os.ReadFile(path)
}

func firstArg(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return files[0]
}

// handleRun compiles (for AST documents) and executes a file.
// With unitOnly the input must be a serialized unit.
func (a *App) handleRun(args []string, unitOnly bool) error {
	name := "run"
	if unitOnly {
		name = "exec"
	}
	fs := a.newFlagSet(name)
	var flags commonFlags
	flags.register(fs)
	trace := fs.Bool("trace", false, "print every instruction before it runs (stderr)")
	implicit := fs.Bool("implicit-globals", false, "let assignments to undeclared names create globals")
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	input := firstArg(files)
	if unitOnly && input == "" {
		return fmt.Errorf("%w: exec needs a %s file", errUsage, config.BytecodeFileExt)
	}

	cfg, err := a.loadConfig(&flags, input)
	if err != nil {
		return err
	}
	source, err := a.readInput(input)
	if err != nil {
		return err
	}
	if unitOnly && !bytecode.IsSerialized(source) {
		return fmt.Errorf("%s: not a serialized unit", input)
	}

	b := backend.NewVM(cfg)
	defer b.Close()
	if err := a.defineHostGlobals(b); err != nil {
		return err
	}
	if *trace {
		b.Trace = a.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pctx := pipeline.NewPipelineContext(source)
	pctx.Context = ctx
	pctx.FilePath = input
	pctx.Config = cfg
	pctx.Globals = b.Globals()
	pctx.AllowImplicitGlobals = *implicit

	pctx = pipeline.New(
		pipeline.DecodeProcessor{},
		pipeline.CompileProcessor{},
		backend.NewExecutionProcessor(b),
	).Run(pctx)
	if err := pctx.Err(); err != nil {
		return err
	}

	fmt.Fprintln(a.Stdout, heap.Inspect(b.Heap(), pctx.Result))
	stats := b.Heap().Stats()
	log.Infof("heap %s: %d live, %d allocations, %d collections", stats.ID, stats.Live, stats.Allocations, stats.Collections)
	return nil
}

// defineHostGlobals installs print, which writes its arguments to stdout.
func (a *App) defineHostGlobals(b *backend.VMBackend) error {
	_, err := b.Machine().DefineNative("print", -1, func(h heap.Heap, this heap.Value, args []heap.Value) (heap.Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = heap.Inspect(h, arg)
		}
		_, err := fmt.Fprintln(a.Stdout, strings.Join(parts, " "))
		return heap.Undefined(), err
	})
	return err
}

// compileInput decodes an AST document, or a serialized unit, into a unit.
func (a *App) compileInput(name string, args []string, out *string) (*bytecode.Unit, string, error) {
	fs := a.newFlagSet(name)
	var flags commonFlags
	flags.register(fs)
	implicit := fs.Bool("implicit-globals", false, "let assignments to undeclared names create globals")
	if out != nil {
		fs.StringVar(out, "o", "", "output file (default: input with "+config.BytecodeFileExt+" extension)")
	}
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return nil, "", err
	}
	input := firstArg(files)

	cfg, err := a.loadConfig(&flags, input)
	if err != nil {
		return nil, "", err
	}
	source, err := a.readInput(input)
	if err != nil {
		return nil, "", err
	}

	pctx := pipeline.NewPipelineContext(source)
	pctx.FilePath = input
	pctx.Config = cfg
	pctx.Globals = hostGlobals
	pctx.AllowImplicitGlobals = *implicit
	pctx = pipeline.New(pipeline.DecodeProcessor{}, pipeline.CompileProcessor{}).Run(pctx)
	if err := pctx.Err(); err != nil {
		return nil, "", err
	}
	return pctx.Unit, input, nil
}

func (a *App) handleDisasm(args []string) error {
	unit, _, err := a.compileInput("disasm", args, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(a.Stdout, a.palette().Disassemble(unit))
	return nil
}

// handleCompile compiles an AST document to a serialized unit file.
func (a *App) handleCompile(args []string) error {
	var output string
	unit, input, err := a.compileInput("compile", args, &output)
	if err != nil {
		return err
	}
	if output == "" {
		if input == "" {
			return fmt.Errorf("%w: -o is required when reading stdin", errUsage)
		}
		output = strings.TrimSuffix(input, filepath.Ext(input)) + config.BytecodeFileExt
	}

	data, err := bytecode.Marshal(unit)
	if err != nil {
		return fmt.Errorf("serialization error: %w", err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("error writing bytecode file: %w", err)
	}

	fmt.Fprintf(a.Stdout, "Compiled %s -> %s (%d bytes)\n", input, output, len(data))
	return nil
}

// handleFmt prints an AST document as JavaScript source.
func (a *App) handleFmt(args []string) error {
	fs := a.newFlagSet("fmt")
	var flags commonFlags
	flags.register(fs)
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	input := firstArg(files)
	if _, err := a.loadConfig(&flags, input); err != nil {
		return err
	}
	source, err := a.readInput(input)
	if err != nil {
		return err
	}
	if bytecode.IsSerialized(source) {
		return fmt.Errorf("%s: fmt needs an AST document, not a serialized unit", input)
	}

	pctx := pipeline.NewPipelineContext(source)
	pctx.FilePath = input
	pctx = pipeline.New(pipeline.DecodeProcessor{}).Run(pctx)
	if err := pctx.Err(); err != nil {
		return err
	}
	fmt.Fprint(a.Stdout, prettyprinter.Print(pctx.AstRoot))
	return nil
}
