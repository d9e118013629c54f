package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Fee   uint64 `msgpack:"fee"`
	Round uint64 `msgpack:"round"`
	Hash  []byte `msgpack:"hash"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewRedisCache(client, "test:")

	in := snapshot{Fee: 1000, Round: 42, Hash: []byte{1, 2, 3}}
	require.NoError(t, c.Set(ctx, "params", in, 5*time.Second))
	assert.True(t, mr.Exists("test:params"))

	var out snapshot
	require.NoError(t, c.Get(ctx, "params", &out))
	assert.Equal(t, in, out)

	mr.FastForward(6 * time.Second)
	assert.ErrorIs(t, c.Get(ctx, "params", &out), ErrMiss)
}

func TestMemoryCache_StoresCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	in := snapshot{Fee: 1, Hash: []byte{9}}
	require.NoError(t, c.Set(ctx, "k", in, time.Minute))
	in.Hash[0] = 0

	var out snapshot
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, []byte{9}, out.Hash)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
}

func TestMultiLevelCache_BackfillsLocal(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewRedisCache(client, "ml:")
	c := NewMultiLevelCache(local, remote)

	require.NoError(t, remote.Set(ctx, "k", snapshot{Round: 7}, time.Minute))

	var out snapshot
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, uint64(7), out.Round)

	var fromLocal snapshot
	require.NoError(t, local.Get(ctx, "k", &fromLocal))
	assert.Equal(t, uint64(7), fromLocal.Round)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
}
