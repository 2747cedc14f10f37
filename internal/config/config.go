package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/helianthus/reflectgen/internal/emit"
	"github.com/helianthus/reflectgen/internal/extract"
	"github.com/helianthus/reflectgen/internal/scanner"
)

// FileName is the configuration file looked up in the source root.
const FileName = "reflectgen.yaml"

// Config represents the reflectgen.yaml configuration.
type Config struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`

	Extensions       ExtensionsConfig `yaml:"extensions"`
	Ignore           []string         `yaml:"ignore"`
	ExcludeDirs      []string         `yaml:"exclude_dirs"` // Relative to Source unless absolute
	RespectGitignore bool             `yaml:"respect_gitignore"`
	TestsDir         string           `yaml:"tests_dir"`

	Workers               int           `yaml:"workers"                 validate:"gte=0,lte=1024"`
	SkipAutoRegister      bool          `yaml:"skip_auto_register"`
	OptOutTag             string        `yaml:"opt_out_tag"             validate:"required,excludesall=0x7C0x2C"`
	AllowDuplicateClasses bool          `yaml:"allow_duplicate_classes"`
	IncludePrefix         string        `yaml:"include_prefix"`
	LockTimeout           time.Duration `yaml:"lock_timeout"            validate:"gte=0"`
	LogLevel              string        `yaml:"log_level"               validate:"oneof=debug info warn error disabled"`

	Annotations extract.Names `yaml:"annotations"`

	// DryRun is only set from the command line.
	DryRun bool `yaml:"-"`
}

// ExtensionsConfig lists the file suffixes that are scanned, including the dot.
type ExtensionsConfig struct {
	Header []string `yaml:"header" validate:"required,dive,startswith=."`
	Source []string `yaml:"source" validate:"dive,startswith=."`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Extensions: ExtensionsConfig{
			Header: append([]string(nil), scanner.DefaultHeaderExts...),
			Source: append([]string(nil), scanner.DefaultSourceExts...),
		},
		TestsDir:    emit.DefaultTestsDir,
		OptOutTag:   emit.DefaultOptOutTag,
		LockTimeout: 30 * time.Second,
		LogLevel:    "info",
		Annotations: extract.DefaultNames(),
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	def := extract.DefaultNames()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&cfg.Annotations.Class, def.Class)
	fill(&cfg.Annotations.Property, def.Property)
	fill(&cfg.Annotations.Method, def.Method)
	fill(&cfg.Annotations.Function, def.Function)
	fill(&cfg.Annotations.Factory, def.Factory)
	fill(&cfg.OptOutTag, emit.DefaultOptOutTag)
	fill(&cfg.LogLevel, "info")
	if len(cfg.Extensions.Header) == 0 {
		cfg.Extensions.Header = append([]string(nil), scanner.DefaultHeaderExts...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the configuration file of sourceRoot, or "" if it has none.
func Find(sourceRoot string) string {
	path := filepath.Join(sourceRoot, FileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the annotation macro names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Annotations.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ScannerOptions returns the scanner settings of the config. The output
// directory is always excluded so generated files are never scanned.
func (c *Config) ScannerOptions() scanner.Options {
	excl := make([]string, 0, len(c.ExcludeDirs)+1)
	for _, d := range c.ExcludeDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(c.Source, d)
		}
		excl = append(excl, d)
	}
	if c.Output != "" {
		excl = append(excl, c.Output)
	}
	return scanner.Options{
		HeaderExts:       c.Extensions.Header,
		SourceExts:       c.Extensions.Source,
		Ignore:           c.Ignore,
		RespectGitignore: c.RespectGitignore,
		ExcludeDirs:      excl,
	}
}

// EmitOptions returns the emitter settings of the config.
func (c *Config) EmitOptions() emit.Options {
	return emit.Options{
		IncludePrefix:    c.IncludePrefix,
		OptOutTag:        c.OptOutTag,
		SkipAutoRegister: c.SkipAutoRegister,
		TestsDir:         c.TestsDir,
	}
}
