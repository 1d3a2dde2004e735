package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/contextpack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.OTEL)
	assert.True(t, cfg.Sampling.Enabled)
	assert.Equal(t, time.Second, cfg.Sampling.Tick.Duration())
	assert.Equal(t, ServiceName, cfg.Fields["service"])
	assert.True(t, cfg.Redaction.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }, "format must be"},
		{"no outputs", func(c *Config) { c.Output.Stdout = false }, "at least one output"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "sampling tick"},
		{"negative skip", func(c *Config) { c.Caller.Skip = -1 }, "caller skip"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"[oops"} }, "invalid redaction pattern"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "empty value"},
		{"empty field key", func(c *Config) { c.Fields[""] = "x" }, "cannot be empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("zero tick allowed when sampling disabled", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Sampling = SamplingConfig{}
		assert.NoError(t, cfg.Validate())
	})
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{
		Level:    "trace",
		Format:   "console",
		Sampling: false,
		Fields:   map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)
	assert.Equal(t, "test", cfg.Fields["env"])
	assert.Equal(t, ServiceName, cfg.Fields["service"])

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = FromSettings(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace": TraceLevel,
		"TRACE": TraceLevel,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := LevelFromString("verbose")
	assert.Error(t, err)
}
