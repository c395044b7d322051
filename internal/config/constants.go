package config

// Version is reported by `jsvm version` and embedded in logs.
const Version = "0.3.0"

// File extensions understood by the command line driver.
const (
	BytecodeFileExt = ".jsbc"
	JSONFileExt     = ".json"
	YAMLFileExt     = ".yaml"
	YMLFileExt      = ".yml"
	TOMLFileExt     = ".toml"
)

// ASTFileExtensions are the extensions of AST documents.
var ASTFileExtensions = []string{JSONFileExt, YAMLFileExt, YMLFileExt}

// ConfigFileNames are searched, in order, by Find.
var ConfigFileNames = []string{"jsvm.yaml", "jsvm.yml", "jsvm.toml"}

// ProgramUnitName names the top-level unit when no file name is known.
const ProgramUnitName = "<program>"

// Logger names.
const (
	LogCompiler = "jsvm.compiler"
	LogVM       = "jsvm.vm"
	LogHeap     = "jsvm.heap"
	LogPipeline = "jsvm.pipeline"
	LogCLI      = "jsvm.cli"
)

// Defaults
const (
	// Maximum call stack depth to prevent infinite recursion
	DefaultMaxFrames = 4096

	// Maximum operand stack size to prevent OOM
	DefaultMaxStack = 1024 * 1024 // 1M elements

	// Allocations between automatic collections
	DefaultGCThreshold = 4096

	// Instructions between cancellation checks
	ContextCheckInterval = 1000
)

// IsASTFile reports whether ext names an AST document.
func IsASTFile(ext string) bool {
	for _, e := range ASTFileExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
