package logging

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// newSampledCore gives every configured level below Error its own sampler.
// Levels without settings, and Error and above, pass through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		if lvl < zapcore.ErrorLevel {
			levels = append(levels, lvl)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	sampled := make(map[zapcore.Level]bool, len(levels))
	cores := make([]zapcore.Core, 0, len(levels)+1)
	for _, lvl := range levels {
		lvl := lvl
		s := cfg.Levels[lvl]
		sampled[lvl] = true
		only := &levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return l == lvl }}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick.Duration(), s.Initial, s.Thereafter))
	}
	cores = append(cores, &levelFilterCore{Core: core, allow: func(l zapcore.Level) bool { return !sampled[l] }})

	return zapcore.NewTee(cores...)
}

// levelFilterCore restricts core to the levels allow accepts.
type levelFilterCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), allow: c.allow}
}
