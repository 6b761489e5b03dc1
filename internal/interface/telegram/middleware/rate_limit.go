package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Каждая реплика стоит вызова LLM и TTS, поэтому поток сообщений от одного
// ученика ограничивается token bucket'ом.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the steady refill rate per user.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// IdleTTL drops buckets of users silent for this long.
	IdleTTL time.Duration

	// Now is the time source; nil means time.Now.
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		IdleTTL:           30 * time.Minute,
	}
}

// RateLimitResult is the outcome of Check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Message is the reply shown to a throttled student.
func (r RateLimitResult) Message() string {
	seconds := int(r.RetryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("⏳ Vas muy rápido. Espera %d segundos e intenta de nuevo.", seconds)
}

// RateLimiter implements per-user rate limiting using the token bucket algorithm.
type RateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[int64]*tokenBucket
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		config:  config,
		now:     now,
		buckets: make(map[int64]*tokenBucket),
	}
}

// Check consumes one token for telegramID.
func (rl *RateLimiter) Check(telegramID int64) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	capacity := float64(rl.config.BurstSize)
	rate := float64(rl.config.RequestsPerMinute) / 60 // tokens per second

	b, ok := rl.buckets[telegramID]
	if !ok {
		b = &tokenBucket{tokens: capacity, lastRefill: now}
		rl.buckets[telegramID] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return RateLimitResult{Allowed: true}
	}

	deficit := 1 - b.tokens
	return RateLimitResult{RetryAfter: time.Duration(deficit / rate * float64(time.Second))}
}

// Sweep drops buckets idle longer than IdleTTL and returns how many were removed.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.IdleTTL)
	removed := 0
	for id, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked users.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
