// Package progress reports the advancement of long loops such as training epochs,
// dictionary builds and validation passes.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Callback receives progress notifications over a run of total items.
type Callback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// NoOp ignores every notification.
type NoOp struct{}

func (NoOp) OnStart(int)         {}
func (NoOp) OnProgress(int, int) {}
func (NoOp) OnComplete()         {}
func (NoOp) OnError(int, error)  {}

// Bar draws a single-line progress bar on a terminal.
type Bar struct {
	w        io.Writer
	label    string
	width    int
	interval time.Duration

	mu      sync.Mutex
	started time.Time
	last    time.Time
}

// NewBar creates a bar writing to w (stderr when nil).
func NewBar(w io.Writer, label string) *Bar {
	if w == nil {
		w = os.Stderr
	}
	return &Bar{
		w:        w,
		label:    label,
		width:    40,
		interval: 200 * time.Millisecond,
	}
}

// WithWidth sets the number of cells of the bar.
func (b *Bar) WithWidth(width int) *Bar {
	if width > 0 {
		b.width = width
	}
	return b
}

// WithInterval sets the minimal delay between two redraws.
func (b *Bar) WithInterval(d time.Duration) *Bar {
	b.interval = d
	return b
}

func (b *Bar) OnStart(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = time.Now()
	b.last = time.Time{}
	_, _ = fmt.Fprintf(b.w, "%s 0/%d\n", b.prefix(), total)
}

func (b *Bar) OnProgress(current, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if current < total && now.Sub(b.last) < b.interval {
		return
	}
	b.last = now
	if total <= 0 {
		return
	}

	current = min(current, total)
	filled := b.width * current / total
	line := fmt.Sprintf("\r%s [%s%s] %d/%d (%.1f%%)",
		b.prefix(),
		strings.Repeat("=", filled), strings.Repeat(" ", b.width-filled),
		current, total, 100*float64(current)/float64(total))

	if elapsed := now.Sub(b.started); elapsed > 0 && current > 0 {
		rate := float64(current) / elapsed.Seconds()
		line += fmt.Sprintf(" %.1f/s", rate)
		if current < total {
			eta := time.Duration(float64(total-current) / rate * float64(time.Second))
			line += " ETA " + eta.Round(time.Second).String()
		}
	}
	_, _ = fmt.Fprint(b.w, line)
}

func (b *Bar) OnComplete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = fmt.Fprintf(b.w, "\n%s done in %v\n", b.prefix(), time.Since(b.started).Round(time.Millisecond))
}

func (b *Bar) OnError(current int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = fmt.Fprintf(b.w, "\n%s %s at item %d: %v\n", b.prefix(), color.RedString("error"), current, err)
}

func (b *Bar) prefix() string {
	return color.CyanString(b.label)
}

// Log reports progress as structured log records every Every items.
type Log struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
	Every  int

	started time.Time
	logged  int
}

// NewLog creates a log reporter; msg prefixes every record.
func NewLog(logger *slog.Logger, level slog.Level, msg string) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: level, msg: msg, Every: 1000}
}

func (l *Log) OnStart(total int) {
	l.started = time.Now()
	l.logged = 0
	l.logger.Log(context.Background(), l.level, l.msg+" started", "total", total)
}

func (l *Log) OnProgress(current, total int) {
	if current != total && current-l.logged < max(l.Every, 1) {
		return
	}
	l.logged = current
	elapsed := time.Since(l.started)
	attrs := []any{"current", current, "total", total, "elapsed", elapsed.Round(time.Millisecond)}
	if total > 0 {
		attrs = append(attrs, "percent", fmt.Sprintf("%.1f", 100*float64(current)/float64(total)))
	}
	l.logger.Log(context.Background(), l.level, l.msg+" progress", attrs...)
}

func (l *Log) OnComplete() {
	l.logger.Log(context.Background(), l.level, l.msg+" completed",
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *Log) OnError(current int, err error) {
	l.logger.Error(l.msg+" failed", "current", current, "error", err)
}

// Multi fans notifications out to several callbacks.
type Multi []Callback

func (m Multi) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m Multi) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m Multi) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m Multi) OnError(current int, err error) {
	for _, cb := range m {
		cb.OnError(current, err)
	}
}

// Counter records the last notification it received; useful to assert on progress in tests
// and to expose the state of a running job.
type Counter struct {
	mu        sync.Mutex
	Total     int
	Current   int
	Completed bool
	Errors    int
}

func (c *Counter) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Total, c.Current, c.Completed = total, 0, false
}

func (c *Counter) OnProgress(current, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Current = current
}

func (c *Counter) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Completed = true
}

func (c *Counter) OnError(int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors++
}

// Snapshot returns current and total under the lock.
func (c *Counter) Snapshot() (current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Current, c.Total
}
