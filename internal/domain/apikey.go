package domain

import (
	"context"
	"slices"
	"time"
)

// APIKey is a credential for programmatic clients. The plaintext secret is
// never stored; only a short lookup prefix and a SHA-256 hash are persisted.
type APIKey struct {
	ID                 string     `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	UserID             string     `json:"user_id" db:"user_id"`
	KeyPrefix          string     `json:"key_prefix" db:"key_prefix"`
	KeyHash            string     `json:"-" db:"key_hash"`
	Scopes             []string   `json:"scopes" db:"-"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute" db:"rate_limit_per_minute"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	FailedAttempts     int        `json:"failed_attempts" db:"failed_attempts"`
	BlockedUntil       *time.Time `json:"blocked_until,omitempty" db:"blocked_until"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// Blocked reports whether the key is inside a failure lockout at now.
func (k *APIKey) Blocked(now time.Time) bool {
	return k.BlockedUntil != nil && k.BlockedUntil.After(now)
}

// Expired reports whether the key's expiry has passed at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// Identity is the resolved principal behind an authenticated API request.
type Identity struct {
	UserID string   `json:"user_id"`
	KeyID  string   `json:"key_id"`
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the identity carries scope, either directly or via "*".
func (i *Identity) HasScope(scope string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Scopes, scope) || slices.Contains(i.Scopes, "*")
}

// FailureResult is the counter state after a recorded API key failure.
type FailureResult struct {
	FailedAttempts int
	BlockedUntil   *time.Time
}

// APIKeyRepository defines the persistence contract for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	GetByID(ctx context.Context, id string) (*APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]APIKey, error)
	Revoke(ctx context.Context, id string) error

	// RecordSuccess clears failed_attempts and blocked_until and stamps last_used_at.
	RecordSuccess(ctx context.Context, id string, now time.Time) error

	// RecordFailure increments failed_attempts in a single statement. When the
	// count reaches maxAttempts it sets blocked_until = blockUntil and resets
	// the counter.
	RecordFailure(ctx context.Context, id string, maxAttempts int, blockUntil time.Time) (*FailureResult, error)
}
