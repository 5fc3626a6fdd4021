// Package config provides YAML configuration parsing for mirrorrank.
//
// A configuration file replaces the command line flags of the run and serve
// commands and can combine several endpoint sources.
//
// Example configuration:
//
//	attempts: 5
//	timeout: 5s
//	attempt_delay: 1s
//	max_concurrency: 10
//	output: valid_mirrors.txt
//
//	sources:
//	  markdown: [mirrors.md]
//	  files: [extra.txt]
//
//	mirrors:
//	  - docker.m.daocloud.io
//	  - ${EXTRA_MIRROR:-mirror.ccs.tencentyun.com}
//
//	serve:
//	  port: 8080
//	  interval: 10m
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/mirrorrank"
	"github.com/jpalmerr/mirrorrank/internal/prober"
	"github.com/jpalmerr/mirrorrank/report"
	"github.com/jpalmerr/mirrorrank/source"
)

const (
	defaultPort     = 8080
	defaultInterval = 10 * time.Minute
)

// Config is the root configuration structure for mirrorrank.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Attempts is the number of probes per endpoint. Defaults to 5.
	Attempts int `yaml:"attempts"`

	// Timeout is the per-attempt timeout. Defaults to 5s.
	Timeout Duration `yaml:"timeout"`

	// AttemptDelay is the pause after every attempt. Defaults to 1s;
	// an explicit 0s disables it.
	AttemptDelay *Duration `yaml:"attempt_delay"`

	// MaxConcurrency bounds how many endpoints are evaluated at once.
	// Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// URLTemplate renders the probe URL from {{.Endpoint}}.
	// Defaults to "https://{{.Endpoint}}/v2/".
	URLTemplate string `yaml:"url_template"`

	// Output is the valid mirror list path. Defaults to "valid_mirrors.txt";
	// an explicit empty string disables the file.
	Output *string `yaml:"output"`

	// Sources lists files to read endpoints from.
	Sources SourcesConfig `yaml:"sources"`

	// Mirrors are literal endpoint identifiers (host[:port]).
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Mirrors []string `yaml:"mirrors"`

	// Serve configures watch mode.
	Serve ServeConfig `yaml:"serve"`
}

// SourcesConfig defines file based endpoint sources.
type SourcesConfig struct {
	// Markdown lists Markdown tables in the `endpoint` | status format.
	Markdown []string `yaml:"markdown"`

	// Files lists plain text files with one endpoint per line.
	Files []string `yaml:"files"`

	// Statuses overrides the accepted Markdown status values.
	Statuses []string `yaml:"statuses"`
}

// ServeConfig defines the watch mode settings.
type ServeConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Interval is the time between ranking rounds. Defaults to 10m and must
	// be at least 30s.
	Interval Duration `yaml:"interval"`

	// Title is the dashboard title. Defaults to "mirrorrank" if not set.
	Title string `yaml:"title"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// OutputPath returns the valid list path, empty when disabled.
func (c *Config) OutputPath() string {
	if c.Output == nil {
		return report.DefaultValidListPath
	}
	return *c.Output
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Default returns a configuration with every default applied and no
// sources. It is the starting point when no configuration file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in mirrors, url_template, output and
// source paths. Defaults are applied before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Attempts == 0 {
		c.Attempts = prober.DefaultAttempts
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(prober.DefaultTimeout)
	}
	if c.AttemptDelay == nil {
		d := Duration(prober.DefaultAttemptDelay)
		c.AttemptDelay = &d
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = prober.DefaultMaxConcurrency
	}
	if c.URLTemplate == "" {
		c.URLTemplate = prober.DefaultURLTemplate
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = defaultPort
	}
	if c.Serve.Interval == 0 {
		c.Serve.Interval = Duration(defaultInterval)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Attempts < 0 {
		return fmt.Errorf("attempts must be positive, got %d", c.Attempts)
	}
	if c.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration())
	}
	if c.AttemptDelay.Duration() < 0 {
		return fmt.Errorf("attempt_delay cannot be negative, got %s", c.AttemptDelay.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}

	expanded, err := expandEnvVars(c.URLTemplate)
	if err != nil {
		return fmt.Errorf("url_template: %w", err)
	}
	c.URLTemplate = expanded
	// fail fast before the runner tries to use an invalid template
	if _, err := prober.ParseURLTemplate(c.URLTemplate); err != nil {
		return fmt.Errorf("url_template: %w", err)
	}

	if c.Output != nil {
		expanded, err := expandEnvVars(*c.Output)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		c.Output = &expanded
	}

	for i, m := range c.Mirrors {
		expanded, err := expandEnvVars(m)
		if err != nil {
			return fmt.Errorf("mirrors[%d]: %w", i, err)
		}
		c.Mirrors[i] = expanded
	}
	if _, err := source.Validate(c.Mirrors); err != nil {
		return fmt.Errorf("mirrors: %w", err)
	}

	if err := expandPaths("sources.markdown", c.Sources.Markdown); err != nil {
		return err
	}
	if err := expandPaths("sources.files", c.Sources.Files); err != nil {
		return err
	}

	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be between 1 and 65535, got %d", c.Serve.Port)
	}
	if c.Serve.Interval.Duration() < mirrorrank.MinInterval {
		return fmt.Errorf("serve.interval must be at least %s, got %s", mirrorrank.MinInterval, c.Serve.Interval.Duration())
	}

	if len(c.Mirrors) == 0 && len(c.Sources.Markdown) == 0 && len(c.Sources.Files) == 0 {
		return errors.New("at least one mirror or source must be defined")
	}

	return nil
}

func expandPaths(field string, paths []string) error {
	for i, p := range paths {
		if p == "" {
			return fmt.Errorf("%s[%d]: path is required", field, i)
		}
		expanded, err := expandEnvVars(p)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		paths[i] = expanded
	}
	return nil
}
