package secretcache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func startRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, ttl), mr
}

func Test_RedisCache(t *testing.T) {
	t.Parallel()

	t.Run("put then get", func(t *testing.T) {
		c, _ := startRedis(t, 5*time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		code, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "123456", code)
	})

	t.Run("miss when nothing stored", func(t *testing.T) {
		c, _ := startRedis(t, 5*time.Minute)

		_, ok, err := c.Get(t.Context(), "nobody@x.com")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("entry dies after ttl", func(t *testing.T) {
		c, mr := startRedis(t, 5*time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		mr.FastForward(5 * time.Minute)

		_, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.False(t, ok, "entry should be gone after ttl")
	})

	t.Run("put replaces code and restarts ttl", func(t *testing.T) {
		c, mr := startRedis(t, 5*time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "111111")
		require.NoError(t, err)

		mr.FastForward(4 * time.Minute)
		err = c.Put(t.Context(), "alice@x.com", "222222")
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		code, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.True(t, ok, "replaced code should live its own full ttl")
		require.Equal(t, "222222", code)
	})

	t.Run("evict drops entry", func(t *testing.T) {
		c, _ := startRedis(t, 5*time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		err = c.Evict(t.Context(), "alice@x.com")
		require.NoError(t, err)

		_, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.False(t, ok)
	})
}
