package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	TotalPatients int `json:"totalPatients"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

func stores(t *testing.T) map[string]Store {
	_, rs := setupRedis(t)
	return map[string]Store{"redis": rs, "memory": NewMemoryStore()}
}

func TestCache_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(store, "hms")

			var got stats
			err := c.GetJSON(ctx, "dashboard", "stats", &got)
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, c.SetJSON(ctx, "dashboard", "stats", stats{TotalPatients: 7}, time.Minute))
			require.NoError(t, c.GetJSON(ctx, "dashboard", "stats", &got))
			assert.Equal(t, 7, got.TotalPatients)
		})
	}
}

func TestCache_InvalidateScope(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(store, "hms")

			require.NoError(t, c.SetJSON(ctx, "dashboard", "2025-01-01", stats{1}, time.Minute))
			require.NoError(t, c.SetJSON(ctx, "dashboard", "2025-01-02", stats{2}, time.Minute))
			require.NoError(t, c.SetJSON(ctx, "reports", "x", stats{3}, time.Minute))

			require.NoError(t, c.Invalidate(ctx, "dashboard"))

			var got stats
			assert.ErrorIs(t, c.GetJSON(ctx, "dashboard", "2025-01-01", &got), ErrMiss)
			assert.ErrorIs(t, c.GetJSON(ctx, "dashboard", "2025-01-02", &got), ErrMiss)
			require.NoError(t, c.GetJSON(ctx, "reports", "x", &got))
			assert.Equal(t, 3, got.TotalPatients)
		})
	}
}

func TestCache_Ping(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, New(store, "").Ping(context.Background()))
		})
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "hms:dashboard:stats", "{}", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, "hms:dashboard:stats")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_DeletePrefixCount(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	for _, k := range []string{"hms:a:1", "hms:a:2", "hms:b:1"} {
		require.NoError(t, store.Set(ctx, k, "v", 0))
	}
	n, err := store.DeletePrefix(ctx, "hms:a:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.DeletePrefix(ctx, "hms:zzz:")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	store.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	store.now = func() time.Time { return base.Add(time.Minute) }
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_ExpiryKeepsConcurrentSet(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	later := base.Add(time.Minute)
	store.now = func() time.Time { return base }
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "stale", time.Minute))

	// The expiry check in Get runs after the read lock is released; a
	// writer refreshing the key at that moment must not be deleted.
	refreshed := false
	store.now = func() time.Time {
		if !refreshed {
			refreshed = true
			require.NoError(t, store.Set(ctx, "k", "fresh", time.Hour))
		}
		return later
	}

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	v, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestMemoryStore_NoTTLKeepsValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "v", 0))
	store.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedisClient_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}
