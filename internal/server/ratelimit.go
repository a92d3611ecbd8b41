package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter limits requests per client and minute and the amount of text
// a client may submit per day.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	maxTextPerDay     int64 // in bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks usage for one client address.
type ClientUsage struct {
	RequestsThisMinute int
	TextToday          int64

	minuteStart time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a rate limiter. A zero limit disables that check.
func NewRateLimiter(requestsPerMinute int, maxTextPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxTextPerDay:     maxTextPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// Allow checks whether a request of size bytes from client is allowed and, if so, counts it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[client]
	if !ok {
		usage = &ClientUsage{minuteStart: now, dayStart: now}
		rl.clients[client] = usage
	}

	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.minuteStart = now
		usage.RequestsThisMinute = 0
	}
	if !sameDay(now, usage.dayStart) {
		usage.dayStart = now
		usage.TextToday = 0
	}

	if rl.requestsPerMinute > 0 && usage.RequestsThisMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}
	if rl.maxTextPerDay > 0 && usage.TextToday+size > rl.maxTextPerDay {
		return &QuotaExceededError{
			Limit:  rl.maxTextPerDay,
			Used:   usage.TextToday,
			Resets: time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()),
		}
	}

	usage.RequestsThisMinute++
	usage.TextToday += size
	return nil
}

// Usage returns a copy of the current usage of client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[client]; ok {
		return *usage
	}
	return ClientUsage{}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RateLimitError reports too many requests within a minute.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d per minute, retry after: %v)", e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a client over its daily text quota.
type QuotaExceededError struct {
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily text quota exceeded (used: %d, limit: %d bytes, resets: %s)",
		e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
