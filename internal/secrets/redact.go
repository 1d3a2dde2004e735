package secrets

import (
	"sort"
	"strings"
)

type span struct {
	start, end int
}

// record adds a finding for content[start:end] to r.
func (r *Result) record(content, ruleID string, start, end int) span {
	r.Findings = append(r.Findings, Finding{
		RuleID: ruleID,
		Start:  start,
		End:    end,
		Line:   strings.Count(content[:start], "\n") + 1,
	})
	r.ByRule[ruleID]++
	return span{start: start, end: end}
}

// redact replaces every span of content with token. Overlapping and touching
// spans collapse into one replacement.
func redact(content string, spans []span, token string) string {
	if len(spans) == 0 {
		return content
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, s := range merged {
		b.WriteString(content[prev:s.start])
		b.WriteString(token)
		prev = s.end
	}
	b.WriteString(content[prev:])
	return b.String()
}
