package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/contextpack/internal/config"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "contextpack"

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level
	Format     string
	Output     OutputConfig
	Sampling   SamplingConfig
	Caller     CallerConfig
	Stacktrace zapcore.Level
	Fields     map[string]string
	Redaction  RedactionConfig
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool
	OTEL   bool
}

// SamplingConfig controls log volume reduction per level.
type SamplingConfig struct {
	Enabled bool
	Tick    config.Duration
	Levels  map[zapcore.Level]LevelSamplingConfig
}

// LevelSamplingConfig keeps the first Initial entries with the same message
// per tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int
	Thereafter int
}

// CallerConfig controls caller annotation. Skip adds frames on top of the
// logger's own wrappers.
type CallerConfig struct {
	Enabled bool
	Skip    int
}

// RedactionConfig lists field names and value patterns that are masked by
// the encoder.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns JSON output to stdout at info level with sampling
// and redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller:     CallerConfig{Enabled: true},
		Stacktrace: zapcore.ErrorLevel,
		Fields:     map[string]string{"service": ServiceName},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// DefaultLevelSamplingConfig samples chatty levels hard and leaves warnings
// mostly intact.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 10, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// FromSettings converts the file/env logging section into a Config, starting
// from NewDefaultConfig.
func FromSettings(s config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if s.Level != "" {
		lvl, err := LevelFromString(s.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing level: %w", err)
		}
		cfg.Level = lvl
	}
	if s.Format != "" {
		cfg.Format = s.Format
	}
	cfg.Output.OTEL = s.OTEL
	cfg.Sampling.Enabled = s.Sampling
	for k, v := range s.Fields {
		cfg.Fields[k] = v
	}
	return cfg, cfg.Validate()
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return errors.New("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return errors.New("sampling tick must be > 0 when sampling enabled")
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if len(p) > maxPatternLen {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
			}
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return errors.New("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
