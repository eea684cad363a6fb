package secretcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_MemoryCache(t *testing.T) {
	t.Parallel()

	// Cache with controllable clock
	newCache := func(ttl time.Duration) (*MemoryCache, *time.Time) {
		now := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
		c := NewMemoryCache(ttl)
		c.now = func() time.Time { return now }
		return c, &now
	}

	t.Run("get returns stored code", func(t *testing.T) {
		c, _ := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		code, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.True(t, ok, "code should be cached")
		require.Equal(t, "123456", code)
	})

	t.Run("get misses when nothing stored", func(t *testing.T) {
		c, _ := newCache(5 * time.Minute)

		_, ok, err := c.Get(t.Context(), "nobody@x.com")
		require.NoError(t, err)
		require.False(t, ok, "empty cache should miss")
	})

	t.Run("entry dies after ttl", func(t *testing.T) {
		c, now := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		*now = now.Add(5 * time.Minute)

		_, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.False(t, ok, "entry should be gone after ttl")
	})

	t.Run("entry alive just before ttl", func(t *testing.T) {
		c, now := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		*now = now.Add(5*time.Minute - time.Second)

		code, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.True(t, ok, "entry should be alive one second before ttl")
		require.Equal(t, "123456", code)
	})

	t.Run("put replaces previous code and restarts ttl", func(t *testing.T) {
		c, now := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "111111")
		require.NoError(t, err)

		*now = now.Add(4 * time.Minute)
		err = c.Put(t.Context(), "alice@x.com", "222222")
		require.NoError(t, err)

		// Old insert time would be expired by now, the fresh one is not
		*now = now.Add(2 * time.Minute)

		code, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.True(t, ok, "replaced code should live its own full ttl")
		require.Equal(t, "222222", code)
	})

	t.Run("evict drops entry", func(t *testing.T) {
		c, _ := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "alice@x.com", "123456")
		require.NoError(t, err)

		err = c.Evict(t.Context(), "alice@x.com")
		require.NoError(t, err)

		_, ok, err := c.Get(t.Context(), "alice@x.com")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("evict of absent key is fine", func(t *testing.T) {
		c, _ := newCache(5 * time.Minute)

		err := c.Evict(t.Context(), "nobody@x.com")
		require.NoError(t, err)
	})

	t.Run("sweep evicts dead entries only", func(t *testing.T) {
		c, now := newCache(5 * time.Minute)

		err := c.Put(t.Context(), "old@x.com", "111111")
		require.NoError(t, err)

		*now = now.Add(4 * time.Minute)
		err = c.Put(t.Context(), "fresh@x.com", "222222")
		require.NoError(t, err)

		*now = now.Add(2 * time.Minute)
		swept := c.sweep()
		require.Equal(t, 1, swept, "only the old entry should be swept")

		_, ok, err := c.Get(t.Context(), "fresh@x.com")
		require.NoError(t, err)
		require.True(t, ok, "fresh entry should survive the sweep")
	})
}
