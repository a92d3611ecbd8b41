// Package common provides small shared utilities: timing and memory statistics.
package common

import (
	"fmt"
	"time"
)

// Timer measures the duration of a named step such as an epoch or a validation pass.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a started, unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a started timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop records and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String formats the recorded duration with FormatElapsed.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %s", t.name, FormatElapsed(t.duration))
	}
	return FormatElapsed(t.duration)
}

// FormatElapsed renders d in seconds and minutes, e.g. "90.000 s (1.5 min)".
func FormatElapsed(d time.Duration) string {
	secs := d.Seconds()
	return fmt.Sprintf("%.3f s (%.1f min)", secs, secs/60)
}
