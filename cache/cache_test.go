package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lobbyEntry struct {
	Slug string `json:"slug"`
	Bet  string `json:"bet"`
}

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "lobby:slots", []lobbyEntry{{Slug: "fruit", Bet: "0.10"}}, time.Minute))

	var got []lobbyEntry
	found, err := m.Get(ctx, "lobby:slots", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fruit", got[0].Slug)

	now = now.Add(2 * time.Minute)
	found, err = m.Get(ctx, "lobby:slots", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "a", 1, 0))
	require.NoError(t, m.Delete(ctx, "a", "missing"))

	var v int
	found, err := m.Get(ctx, "a", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}))
	defer r.Close()

	require.NoError(t, r.Set(ctx, "test:lobby", lobbyEntry{Slug: "x"}, time.Minute))
	var got lobbyEntry
	found, err := r.Get(ctx, "test:lobby", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", got.Slug)

	n, err := r.Incr(ctx, "test:online", 2, time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	require.NoError(t, r.Delete(ctx, "test:lobby", "test:online"))
	found, err = r.Get(ctx, "test:lobby", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
