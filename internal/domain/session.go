package domain

import (
	"context"
	"time"
)

// SessionState is the position of a browser session in the login state machine.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StatePendingTwoFactor
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StatePendingTwoFactor:
		return "pending_two_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the server-side record bound to a browser cookie.
type Session struct {
	ID               string    `json:"-"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	PendingTwoFactor bool      `json:"pending_two_factor"`
	PendingSecret    string    `json:"pending_secret,omitempty"` // TOTP secret awaiting enrollment confirmation
	CreatedAt        time.Time `json:"created_at"`
}

// State returns the state a session record represents. A nil session is anonymous.
func (s *Session) State() SessionState {
	switch {
	case s == nil:
		return StateAnonymous
	case s.PendingTwoFactor:
		return StatePendingTwoFactor
	default:
		return StateAuthenticated
	}
}

// SessionRepository stores session records with a sliding TTL.
type SessionRepository interface {
	Create(ctx context.Context, session *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session, ttl time.Duration) error
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// CounterRepository offers atomic increment-and-expire counters.
type CounterRepository interface {
	// Incr increments key and returns the new value. The TTL is set only when
	// the key is created, so the window starts at the first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Decr decrements an existing positive counter without touching its TTL.
	// A missing or zero counter stays at zero.
	Decr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Reset(ctx context.Context, key string) error
}
