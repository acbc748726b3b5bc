package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleSuperAdmin.Valid())
	assert.False(t, Role("viewer").Valid())
	assert.False(t, Role("").Valid())
}

func TestSessionState(t *testing.T) {
	var nilSession *Session
	assert.Equal(t, StateAnonymous, nilSession.State())
	assert.Equal(t, StatePendingTwoFactor, (&Session{PendingTwoFactor: true}).State())
	assert.Equal(t, StateAuthenticated, (&Session{UserID: "u"}).State())
	assert.Equal(t, "pending_two_factor", StatePendingTwoFactor.String())
}

func TestIdentityHasScope(t *testing.T) {
	var none *Identity
	assert.False(t, none.HasScope("keys:read"))

	id := &Identity{Scopes: []string{"reports:read"}}
	assert.True(t, id.HasScope("reports:read"))
	assert.False(t, id.HasScope("keys:read"))

	all := &Identity{Scopes: []string{"*"}}
	assert.True(t, all.HasScope("keys:read"))
}

func TestAPIKeyBlockedAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)

	k := &APIKey{}
	assert.False(t, k.Blocked(now))
	assert.False(t, k.Expired(now))

	k.BlockedUntil = &later
	k.ExpiresAt = &later
	assert.True(t, k.Blocked(now))
	assert.False(t, k.Expired(now))
	assert.False(t, k.Blocked(later))
	assert.True(t, k.Expired(later), "a key is expired at its expiry instant")
}

func TestKeyErrorMatchesUnauthorized(t *testing.T) {
	err := fmt.Errorf("authenticate: %w", &KeyError{Reason: KeyBadSecret})

	assert.ErrorIs(t, err, ErrUnauthorized)

	var ke *KeyError
	assert.True(t, errors.As(err, &ke))
	assert.Equal(t, KeyBadSecret, ke.Reason)
	assert.Equal(t, "unauthorized: bad_secret", ke.Error())
}
