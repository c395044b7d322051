// Package config holds runtime limits, collector settings and logging options,
// loaded from jsvm.yaml or jsvm.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level jsvm configuration file.
type Config struct {
	Limits     Limits     `yaml:"limits" toml:"limits"`
	GC         GC         `yaml:"gc" toml:"gc"`
	Properties Properties `yaml:"properties" toml:"properties"`
	Log        Log        `yaml:"log" toml:"log"`
}

// Limits bound a single execution.
type Limits struct {
	// MaxFrames is the call depth at which execution faults with a stack overflow.
	MaxFrames int `yaml:"max_frames" toml:"max_frames"`

	// MaxStack is the operand stack size limit.
	MaxStack int `yaml:"max_stack" toml:"max_stack"`

	// MaxInstructions stops execution after this many instructions. Zero means unlimited.
	MaxInstructions int64 `yaml:"max_instructions" toml:"max_instructions"`
}

// GC controls the heap collector.
type GC struct {
	// Auto runs a collection at allocation safepoints once Threshold
	// allocations have happened since the last cycle.
	Auto bool `yaml:"auto" toml:"auto"`

	Threshold int `yaml:"threshold" toml:"threshold"`

	// MaxCells caps the number of live cells. Zero means unlimited.
	MaxCells int `yaml:"max_cells" toml:"max_cells"`
}

// Properties controls property access semantics.
type Properties struct {
	// Strict makes reading a missing property a runtime error instead of undefined.
	Strict bool `yaml:"strict" toml:"strict"`
}

// Log configures commonlog.
type Log struct {
	// Verbosity: 0 errors only, 1 warnings, 2 notices, 3 info, 4 and up debug.
	Verbosity int `yaml:"verbosity" toml:"verbosity"`

	// File receives log output instead of stderr when set.
	File string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Limits: DefaultLimits(),
		GC:     GC{Auto: true, Threshold: DefaultGCThreshold},
	}
}

// DefaultLimits returns the default execution limits.
func DefaultLimits() Limits {
	return Limits{MaxFrames: DefaultMaxFrames, MaxStack: DefaultMaxStack}
}

// Load reads a configuration file, choosing the decoder by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes configuration content. The path selects the format and is
// used in error messages.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case YAMLFileExt, YMLFileExt:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case TOMLFileExt:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", path, ext)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// Find walks up from dir looking for a configuration file. It returns the
// empty string when none exists.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// LoadOrDefault loads the configuration found from dir, or returns Default.
func LoadOrDefault(dir string) (*Config, string, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Limits.MaxFrames < 0 {
		return fmt.Errorf("%s: limits.max_frames must not be negative", path)
	}
	if c.Limits.MaxStack < 0 {
		return fmt.Errorf("%s: limits.max_stack must not be negative", path)
	}
	if c.Limits.MaxInstructions < 0 {
		return fmt.Errorf("%s: limits.max_instructions must not be negative", path)
	}
	if c.GC.Threshold < 0 || c.GC.MaxCells < 0 {
		return fmt.Errorf("%s: gc.threshold and gc.max_cells must not be negative", path)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("%s: log.verbosity must not be negative", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Limits.MaxFrames == 0 {
		c.Limits.MaxFrames = DefaultMaxFrames
	}
	if c.Limits.MaxStack == 0 {
		c.Limits.MaxStack = DefaultMaxStack
	}
	if c.GC.Threshold == 0 {
		c.GC.Threshold = DefaultGCThreshold
	}
}
