package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidTarget indicates a target usage outside (0, 100].
	ErrInvalidTarget = errors.New("target usage percent must be within (0, 100]")

	// ErrInvalidConfig indicates other invalid governor settings.
	ErrInvalidConfig = errors.New("invalid memory configuration")
)

// Usage is one memory sample.
type Usage struct {
	ProcessRSS     uint64
	ReferenceBytes uint64
	Percent        float64
	SampledAt      time.Time
}

// Advice is the outcome of AdviseBudget.
type Advice struct {
	Requested int
	Budget    int
	// Degraded is set when pressure lowered the budget to the floor. A
	// request already at or below the floor is never degraded.
	Degraded bool
	Usage    Usage
}

// Evictor releases cached state on request.
type Evictor interface {
	// EvictOldest releases the least recently used fraction of entries and
	// returns how many were released.
	EvictOldest(fraction float64) int
}

// Governor advises context budgets from memory usage.
type Governor interface {
	CurrentUsage(ctx context.Context) Usage
	AdviseBudget(ctx context.Context, requested int) Advice
	ShouldThrottle(ctx context.Context) bool
	Register(e Evictor)
}

// Config holds MemoryManager settings.
type Config struct {
	// TargetUsagePercent is the usage above which budgets shrink.
	TargetUsagePercent float64
	// MinBudget is the budget floor under full pressure.
	MinBudget int
	// LimitBytes is the reference memory. 0 uses total system memory.
	LimitBytes uint64
	// EvictFraction is the share of evictor entries released per advice
	// under pressure.
	EvictFraction float64
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		TargetUsagePercent: 80,
		MinBudget:          64,
		EvictFraction:      0.25,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.TargetUsagePercent) || c.TargetUsagePercent <= 0 || c.TargetUsagePercent > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidTarget, c.TargetUsagePercent)
	}
	if c.MinBudget < 0 {
		return fmt.Errorf("%w: min budget must be >= 0", ErrInvalidConfig)
	}
	if math.IsNaN(c.EvictFraction) || c.EvictFraction < 0 || c.EvictFraction > 1 {
		return fmt.Errorf("%w: evict fraction must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Option configures a MemoryManager.
type Option func(*MemoryManager)

// WithSampler replaces the gopsutil sampler.
func WithSampler(s Sampler) Option {
	return func(m *MemoryManager) {
		m.sampler = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *MemoryManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// MemoryManager is the default Governor.
type MemoryManager struct {
	cfg     Config
	sampler Sampler
	logger  *zap.Logger

	mu       sync.Mutex
	evictors []Evictor
	last     Usage
}

// NewMemoryManager creates a governor.
func NewMemoryManager(cfg Config, opts ...Option) (*MemoryManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &MemoryManager{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.sampler == nil {
		s, err := NewProcessSampler(cfg.LimitBytes)
		if err != nil {
			return nil, fmt.Errorf("creating sampler: %w", err)
		}
		m.sampler = s
	}
	return m, nil
}

// Config returns the governor settings.
func (m *MemoryManager) Config() Config {
	return m.cfg
}

// Register adds an evictor consulted under pressure.
func (m *MemoryManager) Register(e Evictor) {
	if e == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictors = append(m.evictors, e)
}

// CurrentUsage samples memory. On sampling failure the previous sample is
// returned.
func (m *MemoryManager) CurrentUsage(ctx context.Context) Usage {
	rss, ref, err := m.sampler.Sample(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.logger.Warn("memory sampling failed", zap.Error(err))
		return m.last
	}

	u := Usage{ProcessRSS: rss, ReferenceBytes: ref, SampledAt: time.Now()}
	if ref > 0 {
		u.Percent = float64(rss) / float64(ref) * 100
	}
	m.last = u
	UsagePercent.Set(u.Percent)
	return u
}

// ShouldThrottle reports whether usage is above target.
func (m *MemoryManager) ShouldThrottle(ctx context.Context) bool {
	return m.CurrentUsage(ctx).Percent > m.cfg.TargetUsagePercent
}

// AdviseBudget returns the budget to use for a request of requested tokens.
// Above target, budget = max(min(requested, MinBudget),
// floor(requested*(1-pressure))) with pressure scaled from 0 at target to 1
// at 100 percent.
func (m *MemoryManager) AdviseBudget(ctx context.Context, requested int) Advice {
	usage := m.CurrentUsage(ctx)
	advice := Advice{Requested: requested, Budget: requested, Usage: usage}
	if requested <= 0 || usage.Percent <= m.cfg.TargetUsagePercent {
		AdvisedBudget.Set(float64(advice.Budget))
		return advice
	}

	p := m.pressure(usage.Percent)
	floor := min(requested, m.cfg.MinBudget)
	advice.Budget = max(floor, int(math.Floor(float64(requested)*(1-p))))
	advice.Degraded = advice.Budget < requested && advice.Budget == floor

	evicted := m.evict()

	AdvisedBudget.Set(float64(advice.Budget))
	if advice.Degraded {
		DegradedAdvice.Inc()
	}
	m.logger.Info("memory pressure reduced context budget",
		zap.Float64("usage_percent", usage.Percent),
		zap.Float64("target_percent", m.cfg.TargetUsagePercent),
		zap.Int("requested", requested),
		zap.Int("budget", advice.Budget),
		zap.Bool("degraded", advice.Degraded),
		zap.Int("evicted", evicted))

	return advice
}

func (m *MemoryManager) pressure(percent float64) float64 {
	span := 100 - m.cfg.TargetUsagePercent
	if span <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, (percent-m.cfg.TargetUsagePercent)/span))
}

func (m *MemoryManager) evict() int {
	if m.cfg.EvictFraction <= 0 {
		return 0
	}
	m.mu.Lock()
	evictors := append([]Evictor(nil), m.evictors...)
	m.mu.Unlock()

	total := 0
	for _, e := range evictors {
		total += e.EvictOldest(m.cfg.EvictFraction)
	}
	if total > 0 {
		Evictions.Add(float64(total))
	}
	return total
}

// NoopGovernor never limits budgets.
type NoopGovernor struct{}

// CurrentUsage returns an empty sample.
func (NoopGovernor) CurrentUsage(context.Context) Usage {
	return Usage{SampledAt: time.Now()}
}

// AdviseBudget returns the requested budget.
func (g NoopGovernor) AdviseBudget(ctx context.Context, requested int) Advice {
	return Advice{Requested: requested, Budget: requested, Usage: g.CurrentUsage(ctx)}
}

// ShouldThrottle always returns false.
func (NoopGovernor) ShouldThrottle(context.Context) bool {
	return false
}

// Register is a no-op.
func (NoopGovernor) Register(Evictor) {}
