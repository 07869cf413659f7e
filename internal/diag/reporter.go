// Package diag collects warning and error events raised while content is
// being transformed, keeping the reporting channel separate from the
// transformation logic. Events are mirrored to the log as they happen and
// kept for the end-of-run summary; tests assert on the recorded events
// instead of capturing output.
package diag

import (
	"fmt"

	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
)

// Level classifies a recorded event.
type Level int

const (
	// LevelWarning marks a recoverable configuration gap
	LevelWarning Level = iota

	// LevelError marks a lookup miss or drifted invariant that was
	// absorbed into the output
	LevelError
)

// Event is one recorded diagnostic.
type Event struct {
	Level   Level
	Message string
}

// Reporter records diagnostics for one run.
type Reporter struct {
	events []Event
	seen   map[string]bool
}

// NewReporter returns an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{seen: make(map[string]bool)}
}

// Warnf records a warning.
func (r *Reporter) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.events = append(r.events, Event{Level: LevelWarning, Message: msg})
	logging.Warn(msg)
}

// WarnOncef records a warning only the first time key is seen. Repeated
// configuration gaps (the same unmapped handle in every comment) would
// otherwise drown the report.
func (r *Reporter) WarnOncef(key, format string, args ...any) {
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.Warnf(format, args...)
}

// Errorf records an error.
func (r *Reporter) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.events = append(r.events, Event{Level: LevelError, Message: msg})
	logging.Error(msg)
}

// Events returns every recorded event in order.
func (r *Reporter) Events() []Event {
	return r.events
}

// Warnings returns the recorded warnings in order.
func (r *Reporter) Warnings() []Event {
	return r.filter(LevelWarning)
}

// Errors returns the recorded errors in order.
func (r *Reporter) Errors() []Event {
	return r.filter(LevelError)
}

func (r *Reporter) filter(level Level) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any error-level event was recorded.
func (r *Reporter) HasErrors() bool {
	return len(r.Errors()) > 0
}

// LogSummary writes the warning/error totals for the run.
func (r *Reporter) LogSummary() {
	logging.Info("diagnostics summary",
		"warnings", len(r.Warnings()),
		"errors", len(r.Errors()))
}
