package progress

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestNoOp(t *testing.T) {
	var cb Callback = NoOp{}
	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnError(2, assert.AnError)
	cb.OnComplete()
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, "epoch 1").WithWidth(10).WithInterval(0)

	bar.OnStart(4)
	assert.Contains(t, buf.String(), "epoch 1 0/4")

	buf.Reset()
	bar.OnProgress(2, 4)
	out := buf.String()
	assert.Contains(t, out, "[=====     ]")
	assert.Contains(t, out, "2/4 (50.0%)")

	buf.Reset()
	bar.OnProgress(4, 4)
	assert.Contains(t, buf.String(), "4/4 (100.0%)")

	buf.Reset()
	bar.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "error at item 3")

	buf.Reset()
	bar.OnComplete()
	assert.Contains(t, buf.String(), "epoch 1 done in")
}

func TestBar_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, "empty").WithInterval(0)
	bar.OnStart(0)
	buf.Reset()
	bar.OnProgress(0, 0)
	assert.Empty(t, buf.String())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := NewLog(logger, slog.LevelInfo, "validation")
	l.Every = 2

	l.OnStart(5)
	l.OnProgress(1, 5) // below the interval
	l.OnProgress(2, 5)
	l.OnProgress(5, 5)
	l.OnError(3, assert.AnError)
	l.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "validation started")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("validation progress")))
	assert.Contains(t, out, "validation failed")
	assert.Contains(t, out, "validation completed")
}

func TestMultiAndCounter(t *testing.T) {
	a, b := &Counter{}, &Counter{}
	m := Multi{a, b}

	m.OnStart(10)
	m.OnProgress(7, 10)
	m.OnError(7, assert.AnError)
	m.OnComplete()

	for _, c := range []*Counter{a, b} {
		cur, total := c.Snapshot()
		require.Equal(t, 7, cur)
		require.Equal(t, 10, total)
		assert.True(t, c.Completed)
		assert.Equal(t, 1, c.Errors)
	}
}
