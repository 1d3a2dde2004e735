package secrets

import (
	"fmt"
	"regexp"
	"time"
)

// Scrubber redacts secrets from document content.
type Scrubber interface {
	Scrub(content string) (*Result, error)
}

// New builds the scrubber selected by cfg. A disabled config yields a
// NoopScrubber.
func New(cfg Config) (Scrubber, error) {
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	allow := cfg.AllowList
	if cfg.AllowlistFile != "" {
		extra, err := LoadAllowlist(cfg.AllowlistFile)
		if err != nil {
			return nil, err
		}
		allow = append(append([]string(nil), allow...), extra...)
	}
	allowRes, err := compileAllowList(allow)
	if err != nil {
		return nil, err
	}

	token := cfg.Redaction
	if token == "" {
		token = DefaultRedaction
	}

	if cfg.Engine == EngineGitleaks {
		return &GitleaksScrubber{redaction: token, allow: allowRes}, nil
	}

	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &RegexScrubber{rules: compiled, allow: allowRes, redaction: token}, nil
}

// RegexScrubber matches a fixed rule table. It is safe for concurrent use.
type RegexScrubber struct {
	rules     []compiledRule
	allow     []*regexp.Regexp
	redaction string
}

// Scrub never fails.
func (s *RegexScrubber) Scrub(content string) (*Result, error) {
	start := time.Now()
	res := newResult(content)
	if content == "" {
		return res, nil
	}

	var spans []span
	for _, rule := range s.rules {
		if !rule.gated(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if allowed(s.allow, content[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, res.record(content, rule.id, m[0], m[1]))
		}
	}

	res.Scrubbed = redact(content, spans, s.redaction)
	res.Duration = time.Since(start)
	return res, nil
}

func (r compiledRule) gated(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func allowed(allow []*regexp.Regexp, match string) bool {
	for _, re := range allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

// Scrub returns content unchanged.
func (NoopScrubber) Scrub(content string) (*Result, error) {
	return newResult(content), nil
}

var (
	_ Scrubber = (*RegexScrubber)(nil)
	_ Scrubber = (*GitleaksScrubber)(nil)
	_ Scrubber = NoopScrubber{}
)

// MustNew is New that panics on error.
func MustNew(cfg Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("secrets: %v", err))
	}
	return s
}
