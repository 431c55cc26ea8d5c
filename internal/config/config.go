/*
PURPOSE:
  Defines the configuration structure and loading logic for harstream.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of target URLs, output location, and HAR creator metadata.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (HARSTREAM_...).
  - `record` mode needs a listen address and an upstream.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default config files are not an error (defaults are used).

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 30s request timeout).

USAGE:
  cfg, err := config.Load("harstream.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FormatHAR   = "har"
	FormatJSONL = "jsonl"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Identity is a name/version pair used for the HAR creator and browser blocks.
type Identity struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Comment string `yaml:"comment"`
}

// Config represents the full configuration for harstream.
type Config struct {
	// Fetch targets
	URLs    []string          `yaml:"urls"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`

	// Output
	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"` // "-" writes the document to stdout
	Format     string `yaml:"format"`      // har | jsonl
	SummaryCSV string `yaml:"summary_csv"` // optional, relative to output_dir

	// HAR metadata
	Creator *Identity `yaml:"creator"`
	Browser *Identity `yaml:"browser"`
	Comment string    `yaml:"comment"`

	// Engine tuning
	Concurrency      int           `yaml:"concurrency"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	CaptureBodyLimit int64         `yaml:"capture_body_limit"`
	PollInterval     time.Duration `yaml:"poll_interval"`

	// Record mode
	Listen   string `yaml:"listen"`
	Upstream string `yaml:"upstream"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Method:           "GET",
		Headers:          map[string]string{},
		OutputDir:        ".",
		OutputFile:       "capture.har",
		Format:           FormatHAR,
		Concurrency:      4,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		RequestTimeout:   30 * time.Second,
		CaptureBodyLimit: 1 << 20,
		PollInterval:     time.Second,
		Listen:           "127.0.0.1:8080",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// defaultFiles are searched, in order, when no config path is given.
var defaultFiles = []string{"harstream.yaml", "harstream.yml", ".harstream.yaml"}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		found := false
		for _, name := range defaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HARSTREAM_OUTPUT"); v != "" {
		c.OutputFile = v
	}
	if v := os.Getenv("HARSTREAM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// OutputPath is where the main document goes. "-" means stdout.
func (c *Config) OutputPath() string {
	if c.OutputFile == "-" || filepath.IsAbs(c.OutputFile) {
		return c.OutputFile
	}
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// SummaryPath is where the CSV summary goes, or "" when disabled.
func (c *Config) SummaryPath() string {
	if c.SummaryCSV == "" || filepath.IsAbs(c.SummaryCSV) {
		return c.SummaryCSV
	}
	return filepath.Join(c.OutputDir, c.SummaryCSV)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatHAR, FormatJSONL:
	default:
		return fmt.Errorf("%w: unknown format %q (want %q or %q)", ErrInvalidConfig, c.Format, FormatHAR, FormatJSONL)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be at least 1, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("%w: output_file is empty", ErrInvalidConfig)
	}
	return nil
}

// ValidateFetch additionally checks what `fetch` needs.
func (c *Config) ValidateFetch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.URLs) == 0 {
		return fmt.Errorf("%w: no urls configured", ErrInvalidConfig)
	}
	return nil
}

// ValidateRecord additionally checks what `record` needs.
func (c *Config) ValidateRecord() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Upstream == "" {
		return fmt.Errorf("%w: upstream is required for record", ErrInvalidConfig)
	}
	if c.Listen == "" {
		return fmt.Errorf("%w: listen is required for record", ErrInvalidConfig)
	}
	return nil
}
