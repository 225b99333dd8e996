package middleware

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplinex/config"
)

func newRedisStore(t *testing.T) *RedisStorage {
	t.Helper()

	mr := miniredis.RunT(t)
	store := NewRedisStorage(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStorage(t *testing.T) {
	t.Run("set get delete roundtrip", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set("rl:1:/bulk-send", []byte("3"), time.Minute))

		val, err := store.Get("rl:1:/bulk-send")
		require.NoError(t, err)
		assert.Equal(t, []byte("3"), val)

		require.NoError(t, store.Delete("rl:1:/bulk-send"))
		val, err = store.Get("rl:1:/bulk-send")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("missing key returns nil without error", func(t *testing.T) {
		store := newRedisStore(t)

		val, err := store.Get("rl:absent")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("reset clears all keys", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set("a", []byte("1"), 0))
		require.NoError(t, store.Set("b", []byte("2"), 0))
		require.NoError(t, store.Reset())

		val, err := store.Get("a")
		require.NoError(t, err)
		assert.Nil(t, val)
	})
}

func TestMemoryStorage(t *testing.T) {
	t.Run("set get delete roundtrip", func(t *testing.T) {
		store := NewMemoryStorage()

		require.NoError(t, store.Set("k", []byte("v"), time.Minute))

		val, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)

		require.NoError(t, store.Delete("k"))
		val, err = store.Get("k")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("expired entries are dropped", func(t *testing.T) {
		store := NewMemoryStorage()

		require.NoError(t, store.Set("k", []byte("v"), time.Nanosecond))
		time.Sleep(5 * time.Millisecond)

		val, err := store.Get("k")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("zero expiration never expires", func(t *testing.T) {
		store := NewMemoryStorage()

		require.NoError(t, store.Set("k", []byte("v"), 0))
		val, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
	})
}
