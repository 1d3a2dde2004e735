package secrets

import "time"

// Result is the outcome of scrubbing one document.
type Result struct {
	// Scrubbed is the content with every finding replaced.
	Scrubbed string `json:"-"`

	// Findings describes what was replaced. Secret values are never kept.
	Findings []Finding `json:"findings,omitempty"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Finding locates one redacted secret.
type Finding struct {
	RuleID string `json:"rule_id"`
	// Start and End are byte offsets into the original content.
	Start int `json:"start"`
	End   int `json:"end"`
	// Line is 1-indexed.
	Line int `json:"line"`
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// Total returns the number of findings.
func (r *Result) Total() int {
	return len(r.Findings)
}

func newResult(content string) *Result {
	return &Result{
		Scrubbed: content,
		ByRule:   make(map[string]int),
	}
}
