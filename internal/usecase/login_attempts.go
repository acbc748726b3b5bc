package usecase

import (
	"context"
	"time"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// LoginAttempts is the per-identifier brute-force counter shared by password
// and 2FA failures. The window starts at the first attempt of a streak.
//
// Every attempt is reserved with one atomic increment before any secret is
// checked, so concurrent requests can never evaluate more than limit guesses
// per window.
type LoginAttempts struct {
	counters domain.CounterRepository
	limit    int
	window   time.Duration
}

func NewLoginAttempts(counters domain.CounterRepository, limit int, window time.Duration) *LoginAttempts {
	return &LoginAttempts{counters: counters, limit: limit, window: window}
}

func loginAttemptsKey(email string) string {
	return "auth:login_attempts:" + NormalizeEmail(email)
}

// Reserve claims one attempt for email and returns the running count.
// allowed is false once the count is past the limit; the caller must then
// refuse without checking any secret.
func (l *LoginAttempts) Reserve(ctx context.Context, email string) (n int64, allowed bool, err error) {
	n, err = l.counters.Incr(ctx, loginAttemptsKey(email), l.window)
	if err != nil {
		return 0, false, err
	}
	return n, n <= int64(l.limit), nil
}

// Release hands back an attempt whose secret turned out to be correct but
// did not finish the login, such as a password step followed by a challenge.
func (l *LoginAttempts) Release(ctx context.Context, email string) error {
	_, err := l.counters.Decr(ctx, loginAttemptsKey(email))
	return err
}

// RetryAfter returns how long until the current window expires.
func (l *LoginAttempts) RetryAfter(ctx context.Context, email string) (time.Duration, error) {
	return l.counters.TTL(ctx, loginAttemptsKey(email))
}

func (l *LoginAttempts) Reset(ctx context.Context, email string) error {
	return l.counters.Reset(ctx, loginAttemptsKey(email))
}
