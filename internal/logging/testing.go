package logging

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
// Every level down to TraceLevel is recorded.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates an observing logger with the default configuration.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   newWrapped(zap.New(core), NewDefaultConfig()),
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message is exactly msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// matching returns entries at level whose message contains substr.
func (t *TestLogger) matching(level zapcore.Level, substr string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if len(t.matching(level, substr)) == 0 {
		tb.Errorf("no %v entry containing %q in %s", level, substr, t.dump())
	}
}

// AssertNotLogged fails tb if an entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if n := len(t.matching(level, substr)); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, substr)
	}
}

// AssertField fails tb unless an entry with message msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		v, ok := e.ContextMap()[key]
		if !ok {
			continue
		}
		if reflect.DeepEqual(v, expected) || fmt.Sprint(v) == fmt.Sprint(expected) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v in %s", msg, key, expected, t.dump())
}

// AssertTraceCorrelation fails tb unless an entry with message msg carries
// a trace_id field.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()["trace_id"]; ok {
			return
		}
	}
	tb.Errorf("entry %q has no trace_id", msg)
}

var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{8,}`),
	regexp.MustCompile(`(?i)api[_-]?key\s*[=:]\s*\S+`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// AssertNoSecrets fails tb if a sensitive string field was logged without
// redaction, or if a message or string value looks like a credential.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	sensitive := NewDefaultConfig().Redaction.Fields

	for _, e := range t.observed.All() {
		if leaks(e.Message) {
			tb.Errorf("credential in message %q", e.Message)
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType {
				continue
			}
			if f.String != "" && isSensitiveKey(f.Key, sensitive) && !strings.HasPrefix(f.String, "[REDACTED") {
				tb.Errorf("field %q not redacted", f.Key)
			}
			if leaks(f.String) {
				tb.Errorf("credential in field %q", f.Key)
			}
		}
	}
}

func leaks(s string) bool {
	for _, re := range leakPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func isSensitiveKey(key string, sensitive []string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitive {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func (t *TestLogger) dump() string {
	var b strings.Builder
	for _, e := range t.observed.All() {
		fmt.Fprintf(&b, "\n  %s %q %v", e.Level, e.Message, e.ContextMap())
	}
	return b.String()
}
