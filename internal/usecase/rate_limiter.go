package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// rateWindowTTL keeps a finished window around long enough for late readers.
const rateWindowTTL = 2 * time.Minute

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, rounded up to a second.
func (d RateDecision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return (wait + time.Second - 1) / time.Second * time.Second
}

// RateLimiter enforces a fixed per-minute quota for each API key. Windows
// are aligned to wall-clock minutes.
type RateLimiter struct {
	counters     domain.CounterRepository
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

func NewRateLimiter(counters domain.CounterRepository, defaultLimit, maxLimit int) *RateLimiter {
	return &RateLimiter{
		counters:     counters,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}
}

// EffectiveLimit applies the default for unset limits and clamps to the maximum.
func (r *RateLimiter) EffectiveLimit(limit int) int {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > r.maxLimit {
		limit = r.maxLimit
	}
	return limit
}

// Check counts one request for keyID. Rejected requests are counted too.
func (r *RateLimiter) Check(ctx context.Context, keyID string, limit int) (RateDecision, error) {
	limit = r.EffectiveLimit(limit)
	minute := r.now().Unix() / 60

	n, err := r.counters.Incr(ctx, fmt.Sprintf("auth:rate:%s:%d", keyID, minute), rateWindowTTL)
	if err != nil {
		return RateDecision{}, err
	}

	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{
		Allowed:   n <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Unix((minute+1)*60, 0),
	}, nil
}
