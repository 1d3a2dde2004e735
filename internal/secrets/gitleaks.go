package secrets

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// GitleaksScrubber runs the gitleaks default rule set.
//
// A detector accumulates every finding it has ever reported, so a fresh one
// is built per call.
type GitleaksScrubber struct {
	redaction string
	allow     []*regexp.Regexp
}

// Scrub redacts every occurrence of each secret gitleaks reports.
func (s *GitleaksScrubber) Scrub(content string) (*Result, error) {
	start := time.Now()
	res := newResult(content)
	if strings.TrimSpace(content) == "" {
		return res, nil
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if len(s.allow) > 0 {
		al := &gitleaksConfig.Allowlist{Description: "contextpack allowlist"}
		for _, re := range s.allow {
			al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, al)
	}

	seen := make(map[string]bool)
	var spans []span
	for _, f := range detector.DetectString(content) {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" || seen[secret] || allowed(s.allow, secret) {
			continue
		}
		seen[secret] = true
		for from := 0; ; {
			i := strings.Index(content[from:], secret)
			if i < 0 {
				break
			}
			at := from + i
			spans = append(spans, res.record(content, f.RuleID, at, at+len(secret)))
			from = at + len(secret)
		}
	}

	res.Scrubbed = redact(content, spans, s.redaction)
	res.Duration = time.Since(start)
	return res, nil
}
