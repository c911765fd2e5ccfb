package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "group:session:1")
			assert.True(t, IsNotFound(err))

			require.NoError(t, s.Set(ctx, "group:session:1", []byte(`{"state":"idle"}`)))
			val, err := s.Get(ctx, "group:session:1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"state":"idle"}`, string(val))

			require.NoError(t, s.Delete(ctx, "group:session:1"))
			_, err = s.Get(ctx, "group:session:1")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStore_KeysByPrefix(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "group:session:a", []byte("1")))
			require.NoError(t, s.Set(ctx, "group:session:b", []byte("2")))
			require.NoError(t, s.Set(ctx, "quiz:state:x", []byte("3")))

			keys, err := s.Keys(ctx, "group:session:")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"group:session:a", "group:session:b"}, keys)
		})
	}
}

func TestRedisStore_AppliesTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, s.Set(context.Background(), "quiz:state:abcd1234", []byte("{}")))

	assert.Equal(t, time.Hour, mr.TTL("quiz:state:abcd1234"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	err := s.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}
