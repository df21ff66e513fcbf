// Rate-limit backoff bookkeeping, grounded on the teacher's
// internal/ratelimit/handler.go RetryStrategy/callback shape, generalized
// from per-tile-provider to per-provider state. No adapter in this package
// consults RateLimitState; an adapter reports a rate-limit response as an
// apperr.KindRateLimit failure.
package sources

import (
	"sync"
	"time"
)

// RetryStrategy is the backoff schedule used when a provider returns a
// rate-limit response (HTTP 429/509).
type RetryStrategy struct {
	Intervals  []time.Duration
	MaxRetries int
}

// DefaultRetryStrategy mirrors the teacher's 5/10/15/20/30 minute backoff
// schedule, capped at 10 retries.
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{
		Intervals: []time.Duration{
			5 * time.Minute, 10 * time.Minute, 15 * time.Minute,
			20 * time.Minute, 30 * time.Minute,
		},
		MaxRetries: 10,
	}
}

// IntervalFor returns the backoff duration for the given 0-based attempt
// number, repeating the final interval once the schedule is exhausted.
func (r RetryStrategy) IntervalFor(attempt int) time.Duration {
	if len(r.Intervals) == 0 {
		return 0
	}
	if attempt >= len(r.Intervals) {
		return r.Intervals[len(r.Intervals)-1]
	}
	return r.Intervals[attempt]
}

// RateLimitState tracks each provider's current rate-limit status across
// concurrent callers.
type RateLimitState struct {
	mu          sync.Mutex
	limited     map[string]time.Time // provider -> time it can be retried
	strategy    RetryStrategy
	attempts    map[string]int
}

// NewRateLimitState constructs a RateLimitState with the default strategy.
func NewRateLimitState() *RateLimitState {
	return &RateLimitState{
		limited:  map[string]time.Time{},
		attempts: map[string]int{},
		strategy: DefaultRetryStrategy(),
	}
}

// RecordRateLimit marks provider as rate-limited starting now and returns
// the retry-after duration per the backoff schedule.
func (s *RateLimitState) RecordRateLimit(provider string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt := s.attempts[provider]
	wait := s.strategy.IntervalFor(attempt)
	s.attempts[provider] = attempt + 1
	s.limited[provider] = time.Now().Add(wait)
	return wait
}

// IsLimited reports whether provider is still within its backoff window.
func (s *RateLimitState) IsLimited(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.limited[provider]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(s.limited, provider)
		delete(s.attempts, provider)
		return false
	}
	return true
}

// Reset clears rate-limit state for provider, e.g. after a successful call.
func (s *RateLimitState) Reset(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limited, provider)
	delete(s.attempts, provider)
}
