package secrets

import (
	"fmt"
	"regexp"
)

// Engine names accepted by Config.Engine.
const (
	EngineRegex    = "regex"
	EngineGitleaks = "gitleaks"
)

// DefaultRedaction replaces each secret when Config.Redaction is empty.
const DefaultRedaction = "[REDACTED]"

// Config configures the scrubber.
type Config struct {
	Enabled bool `koanf:"enabled"`

	// Engine selects the detector: "regex" (default) or "gitleaks".
	Engine string `koanf:"engine"`

	// Redaction is the replacement text for each finding.
	Redaction string `koanf:"redaction"`

	// Rules is the regex engine's rule table. Empty means DefaultRules().
	Rules []Rule `koanf:"rules"`

	// AllowList holds patterns whose matches are never redacted.
	AllowList []string `koanf:"allow_list"`

	// AllowlistFile is a gitleaks-format TOML file merged into AllowList.
	AllowlistFile string `koanf:"allowlist_file"`
}

// Rule is a single regex detection rule.
type Rule struct {
	ID      string `koanf:"id"`
	Pattern string `koanf:"pattern"`

	// Keywords gate the rule: when set, at least one must occur
	// (case-insensitively) in the content for the pattern to run.
	Keywords []string `koanf:"keywords"`
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled regex scrubber with the default rules.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Engine:    EngineRegex,
		Redaction: DefaultRedaction,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch c.Engine {
	case "", EngineRegex, EngineGitleaks:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, c.Engine)
	}
	if _, err := compileRules(c.Rules); err != nil {
		return err
	}
	if _, err := compileAllowList(c.AllowList); err != nil {
		return err
	}
	return nil
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: rule %d: id is required", ErrInvalidConfig, i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("%w: rule %s: pattern is required", ErrInvalidConfig, r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidConfig, r.ID, err)
		}
		cr := compiledRule{id: r.ID, pattern: re}
		for _, kw := range r.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		out = append(out, cr)
	}
	return out, nil
}

func compileAllowList(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: allow_list %d: %v", ErrInvalidConfig, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}
