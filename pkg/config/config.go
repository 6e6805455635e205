// Package config loads the YAML settings of the mdtemplate tool.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/neurodesk/mdtemplate/pkg/filters"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/neurodesk/mdtemplate/pkg/starlark"
	"github.com/neurodesk/mdtemplate/pkg/validator"
	"gopkg.in/yaml.v3"
)

type Limits struct {
	MaxDepth      int           `yaml:"max_depth"`
	MaxIterations int           `yaml:"max_iterations"`
	MaxSteps      int64         `yaml:"max_steps"`
	Timeout       time.Duration `yaml:"timeout"`
}

type Config struct {
	Limits         Limits `yaml:"limits"`
	TrimAfterClose bool   `yaml:"trim_after_close"`
	// Fallback enables fail-soft rendering: failing interpolations render
	// as this text instead of aborting.
	Fallback *string `yaml:"fallback,omitempty"`
	Locale   string  `yaml:"locale"`
	TimeZone string  `yaml:"time_zone,omitempty"`
	// Cache is the path of the SQLite database holding compiled templates.
	Cache string `yaml:"cache,omitempty"`
	// DataCache is the directory remote data files are cached in.
	DataCache string `yaml:"data_cache,omitempty"`
	LogLevel  string `yaml:"log_level"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

func Default() Config {
	return Config{
		Limits: Limits{
			MaxDepth:      mdtemplate.DefaultMaxDepth,
			MaxIterations: mdtemplate.DefaultMaxIterations,
			MaxSteps:      starlark.DefaultMaxSteps,
			Timeout:       starlark.DefaultTimeout,
		},
		TrimAfterClose: true,
		Locale:         filters.DefaultLocale,
		LogLevel:       "info",
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var fallback error
	if c.Fallback != nil {
		fallback = validator.HasNoDelimiters(*c.Fallback, "fallback")
	}
	return validator.All(
		validator.NonNegative(c.Limits.MaxDepth, "limits.max_depth"),
		validator.NonNegative(c.Limits.MaxIterations, "limits.max_iterations"),
		validator.NonNegative(c.Limits.MaxSteps, "limits.max_steps"),
		validator.NonNegative(c.Limits.Timeout, "limits.timeout"),
		validator.NotEmpty(c.Locale, "locale"),
		validator.MatchesAllowed(strings.ToLower(c.LogLevel), logLevels, "log_level"),
		fallback,
		c.location(),
	)
}

func (c Config) location() error {
	_, err := c.Location()
	return err
}

// Location resolves TimeZone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone: %w", err)
	}
	return loc, nil
}

func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Environment builds a template environment with the built-in filters and
// the Starlark expression evaluator, bounded by the configured limits.
func (c Config) Environment(logger *slog.Logger) (*mdtemplate.Environment, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	reg, err := filters.NewRegistry(filters.Options{Locale: c.Locale, Location: loc})
	if err != nil {
		return nil, err
	}
	exprs := starlark.NewEvaluator(starlark.Options{
		MaxSteps: uint64(c.Limits.MaxSteps),
		Timeout:  c.Limits.Timeout,
		Logger:   logger,
	})
	env := mdtemplate.NewEnvironment(reg, exprs)
	env.MaxDepth = c.Limits.MaxDepth
	env.MaxIterations = c.Limits.MaxIterations
	env.TrimAfterClose = c.TrimAfterClose
	env.Logger = logger
	return env, nil
}
