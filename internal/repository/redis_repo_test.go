package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
)

// setupRedis creates a miniredis instance and a client pointed at it.
func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewRedisSessionRepo(client)
	ctx := context.Background()

	s := &domain.Session{ID: "sid-1", UserID: "u-1", Email: "a@example.com", Role: domain.RoleAdmin, PendingTwoFactor: true}
	require.NoError(t, repo.Create(ctx, s, time.Minute))
	assert.Error(t, repo.Create(ctx, s, time.Minute), "duplicate id must not overwrite")

	got, err := repo.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", got.ID)
	assert.Equal(t, domain.StatePendingTwoFactor, got.State())

	got.PendingTwoFactor = false
	require.NoError(t, repo.Save(ctx, got, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("auth:session:sid-1"))

	require.NoError(t, repo.Touch(ctx, "sid-1", 2*time.Hour))
	assert.Equal(t, 2*time.Hour, mr.TTL("auth:session:sid-1"))

	require.NoError(t, repo.Delete(ctx, "sid-1"))
	require.NoError(t, repo.Delete(ctx, "sid-1"))
	_, err = repo.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, got, time.Hour), domain.ErrNotFound)
}

func TestSessionRepo_Expiry(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewRedisSessionRepo(client)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Session{ID: "sid-2", UserID: "u-1"}, time.Minute))
	mr.FastForward(61 * time.Second)

	_, err := repo.Get(ctx, "sid-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCounterRepo_IncrSetsTTLOnce(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewRedisCounterRepo(client)
	ctx := context.Background()

	n, err := repo.Incr(ctx, "c", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(2 * time.Minute)

	n, err = repo.Incr(ctx, "c", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := repo.TTL(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, ttl, "window must not restart on later increments")

	mr.FastForward(3 * time.Minute)
	got, err := repo.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestCounterRepo_ConcurrentIncrements(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewRedisCounterRepo(client)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Incr(ctx, "burst", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := repo.Get(ctx, "burst")
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestCounterRepo_ResetAndMissing(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewRedisCounterRepo(client)
	ctx := context.Background()

	ttl, err := repo.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, ttl)

	_, err = repo.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Reset(ctx, "c"))

	n, err := repo.Get(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCounterRepo_UnreachableRedis(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewRedisCounterRepo(client)
	mr.Close()

	_, err := repo.Incr(context.Background(), "c", time.Minute)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
