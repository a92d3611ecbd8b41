package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func limiter(perMinute int, perDay int64, c *fakeClock) *RateLimiter {
	rl := NewRateLimiter(perMinute, perDay)
	rl.now = c.now
	return rl
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for range 100 {
		require.NoError(t, rl.Allow("client", 1000))
	}
	usage := rl.Usage("client")
	assert.Equal(t, 100, usage.RequestsThisMinute)
	assert.Equal(t, int64(100000), usage.TextToday)
}

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	clock := newFakeClock()
	rl := limiter(2, 0, clock)

	require.NoError(t, rl.Allow("client", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 50*time.Second, rle.RetryAfter)

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.Allow("client", 0), "a new minute starts")
}

func TestRateLimiter_DailyTextQuota(t *testing.T) {
	clock := newFakeClock()
	rl := limiter(0, 100, clock)

	require.NoError(t, rl.Allow("client", 60))
	err := rl.Allow("client", 50)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(100), qe.Limit)
	assert.Equal(t, int64(60), qe.Used)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	require.NoError(t, rl.Allow("client", 40), "exactly at the limit")
	assert.Equal(t, int64(100), rl.Usage("client").TextToday)

	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.Allow("client", 90), "the quota resets at midnight")
}

func TestRateLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	clock := newFakeClock()
	rl := limiter(1, 0, clock)

	require.NoError(t, rl.Allow("client", 0))
	for range 3 {
		assert.Error(t, rl.Allow("client", 0))
	}
	assert.Equal(t, 1, rl.Usage("client").RequestsThisMinute)
	assert.Equal(t, ClientUsage{}, rl.Usage("other"))
}

func TestRateLimitErrors_Message(t *testing.T) {
	err := &RateLimitError{Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded (limit: 5 per minute, retry after: 30s)", err.Error())

	qe := &QuotaExceededError{Limit: 10, Used: 8, Resets: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "daily text quota exceeded (used: 8, limit: 10 bytes, resets: 2024-01-02T00:00:00Z)", qe.Error())
}
