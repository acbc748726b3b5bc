package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

func newTestStore() (*CredentialStore, *memUserRepo) {
	users := newMemUserRepo()
	store := NewCredentialStore(users)
	store.hashParams = fastParams
	return store, users
}

func TestCreateUser(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, " Root@Example.COM", "longenough", domain.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", user.Email)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
	assert.True(t, store.VerifyPassword(user, "longenough"))
	assert.False(t, store.VerifyPassword(user, "Longenough"))

	_, err = store.CreateUser(ctx, "root@example.com", "longenough", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "duplicate email")

	_, err = store.CreateUser(ctx, "x@example.com", "short", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.CreateUser(ctx, "not-an-email", "longenough", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.CreateUser(ctx, "y@example.com", "longenough", domain.Role("viewer"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestVerifyPassword_NilUser(t *testing.T) {
	store, _ := newTestStore()
	assert.False(t, store.VerifyPassword(nil, "anything"))
}

func TestBackupCodes_ConsumeOnceCaseInsensitive(t *testing.T) {
	store, users := newTestStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "a@example.com", "longenough", domain.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, store.EnableTwoFactor(ctx, user, "JBSWY3DPEHPK3PXP"))

	codes, err := store.RegenerateBackupCodes(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	ok, err := store.ConsumeBackupCode(ctx, user, " "+strings.ToLower(codes[6])+" ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConsumeBackupCode(ctx, user, codes[6])
	require.NoError(t, err)
	assert.False(t, ok, "a consumed code cannot be reused")

	ok, err = store.ConsumeBackupCode(ctx, user, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.BackupCodes, 9)
}

func TestTwoFactorToggle(t *testing.T) {
	store, users := newTestStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "a@example.com", "longenough", domain.RoleAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, store.EnableTwoFactor(ctx, user, ""), domain.ErrInvalidInput)

	require.NoError(t, store.EnableTwoFactor(ctx, user, "JBSWY3DPEHPK3PXP"))
	_, err = store.RegenerateBackupCodes(ctx, user, 4)
	require.NoError(t, err)

	require.NoError(t, store.DisableTwoFactor(ctx, user))
	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.Empty(t, stored.BackupCodes)
}

func TestLoginAttempts_Window(t *testing.T) {
	counters, _, mr := newCounters(t)
	attempts := NewLoginAttempts(counters, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, allowed, err := attempts.Reserve(ctx, "A@example.com")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i)
		assert.Equal(t, int64(i), n)
	}

	_, allowed, err := attempts.Reserve(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.False(t, allowed)

	wait, err := attempts.RetryAfter(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, wait)

	mr.FastForward(time.Minute)
	_, allowed, err = attempts.Reserve(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLoginAttempts_ReleaseKeepsWindow(t *testing.T) {
	counters, _, mr := newCounters(t)
	attempts := NewLoginAttempts(counters, 3, time.Minute)
	ctx := context.Background()

	_, _, err := attempts.Reserve(ctx, "a@example.com")
	require.NoError(t, err)
	_, _, err = attempts.Reserve(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, attempts.Release(ctx, "a@example.com"))

	n, err := mr.Get("auth:login_attempts:a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", n)
	assert.Equal(t, time.Minute, mr.TTL("auth:login_attempts:a@example.com"))

	// Releasing a counter that has expired does not recreate it.
	mr.FastForward(time.Minute)
	require.NoError(t, attempts.Release(ctx, "a@example.com"))
	assert.False(t, mr.Exists("auth:login_attempts:a@example.com"))
}
