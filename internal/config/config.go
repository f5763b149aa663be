package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project-level config file looked up at the project root.
const FileName = "brainc.yaml"

// Config holds all brainc configuration.
type Config struct {
	Name string `yaml:"name"`

	Project     ProjectConfig           `yaml:"project"`
	Definitions DefinitionsConfig       `yaml:"definitions"`
	Targets     map[string]TargetConfig `yaml:"targets"`

	// Variables are user-defined template variables merged into every session.
	Variables map[string]string `yaml:"variables,omitempty"`

	Compile CompileConfig `yaml:"compile"`
	Catalog CatalogConfig `yaml:"catalog"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProjectConfig locates the project on disk.
type ProjectConfig struct {
	Root string `yaml:"root"`
}

// DefinitionsConfig controls definition discovery.
type DefinitionsConfig struct {
	// Patterns are doublestar globs for YAML definition files, relative to the project root.
	Patterns []string `yaml:"patterns"`
	// Scripts are doublestar globs for Go-script definition files.
	Scripts []string `yaml:"scripts"`
}

// TargetConfig configures one compilation target.
type TargetConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// CompileConfig tunes the batch compiler.
type CompileConfig struct {
	Workers         int  `yaml:"workers"`
	StrictVariables bool `yaml:"strict_variables"`
}

// CatalogConfig toggles the built-in Go-declared definitions.
type CatalogConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LedgerConfig configures the SQLite build ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, text
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no log files
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// ValidTargets lists all supported compilation targets.
var ValidTargets = []string{"claude", "codex", "qwen", "gemini"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		Name: "brain",

		Project: ProjectConfig{Root: "."},

		Definitions: DefinitionsConfig{
			Patterns: []string{"definitions/**/*.yaml", "definitions/**/*.yml"},
			Scripts:  []string{"definitions/**/*.go"},
		},

		Targets: map[string]TargetConfig{
			"claude": {Enabled: true, OutputDir: ".claude"},
			"codex":  {Enabled: true, OutputDir: ".codex"},
			"qwen":   {Enabled: true, OutputDir: ".qwen"},
			"gemini": {Enabled: true, OutputDir: ".gemini"},
		},

		Compile: CompileConfig{
			Workers:         workers,
			StrictVariables: false,
		},

		Catalog: CatalogConfig{Enabled: true},

		Ledger: LedgerConfig{
			Enabled: true,
			Path:    ".brainc/ledger.db",
		},

		Watch: WatchConfig{Debounce: "300ms"},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("BRAINC_PROJECT_ROOT"); root != "" {
		c.Project.Root = root
	}
	if v := os.Getenv("BRAINC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Compile.Workers = n
		}
	}
	if path := os.Getenv("BRAINC_LEDGER"); path != "" {
		c.Ledger.Path = path
	}
	if v := os.Getenv("BRAINC_STRICT_VARIABLES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Compile.StrictVariables = b
		}
	}
}

// ProjectRoot returns the absolute project root.
func (c *Config) ProjectRoot() string {
	root := c.Project.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

// ResolvePath joins a project-relative path onto the project root.
// Absolute paths are returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot(), p)
}

// OutputDir returns the configured output directory for a target, relative to the project root.
func (c *Config) OutputDir(target string) string {
	if tc, ok := c.Targets[target]; ok && tc.OutputDir != "" {
		return tc.OutputDir
	}
	return "." + target
}

// EnabledTargets returns the enabled targets in ValidTargets order.
func (c *Config) EnabledTargets() []string {
	var out []string
	for _, name := range ValidTargets {
		if tc, ok := c.Targets[name]; ok && tc.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// IsValidTarget reports whether name is a supported target.
func IsValidTarget(name string) bool {
	for _, t := range ValidTargets {
		if t == name {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var unknown []string
	for name := range c.Targets {
		if !IsValidTarget(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown targets %s (valid: %v)", strings.Join(unknown, ", "), ValidTargets)
	}

	if c.Compile.Workers < 1 {
		return fmt.Errorf("compile.workers must be at least 1, got %d", c.Compile.Workers)
	}

	if len(c.Definitions.Patterns) == 0 && len(c.Definitions.Scripts) == 0 && !c.Catalog.Enabled {
		return fmt.Errorf("no definition sources: set definitions.patterns, definitions.scripts or enable the catalog")
	}

	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("ledger.path is required when the ledger is enabled")
	}

	for name := range c.Variables {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "{} ") {
			return fmt.Errorf("invalid variable name %q", name)
		}
	}

	return nil
}
