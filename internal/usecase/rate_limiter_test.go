package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_EffectiveLimit(t *testing.T) {
	r := NewRateLimiter(nil, 60, 100)

	assert.Equal(t, 60, r.EffectiveLimit(0))
	assert.Equal(t, 60, r.EffectiveLimit(-1))
	assert.Equal(t, 7, r.EffectiveLimit(7))
	assert.Equal(t, 100, r.EffectiveLimit(250))
}

func TestRateLimiter_WindowsAlignToMinutes(t *testing.T) {
	counters, _, mr := newCounters(t)
	r := NewRateLimiter(counters, 60, 100)
	now := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := r.Check(ctx, "k-1", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter(now))

	key := fmt.Sprintf("auth:rate:k-1:%d", now.Unix()/60)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Minute, mr.TTL(key))

	d, err = r.Check(ctx, "k-1", 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "rejected requests still count")

	// One second later is a new minute.
	now = now.Add(time.Second)
	d, err = r.Check(ctx, "k-1", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}
