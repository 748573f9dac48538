package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisKV(client)
}

func TestRedisKV_GetSetDelete(t *testing.T) {
	_, kv := setupRedisKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "monitor:reading:DEV-1:latest")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "monitor:reading:DEV-1:latest", `{"heart":72}`, time.Minute))
	v, err := kv.Get(ctx, "monitor:reading:DEV-1:latest")
	require.NoError(t, err)
	assert.Equal(t, `{"heart":72}`, v)

	require.NoError(t, kv.Delete(ctx, "monitor:reading:DEV-1:latest"))
	_, err = kv.Get(ctx, "monitor:reading:DEV-1:latest")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	mr, kv := setupRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "monitor:selection:user:u1", "dev-1", 30*time.Second))
	mr.FastForward(time.Minute)

	_, err := kv.Get(ctx, "monitor:selection:user:u1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_ScanKeys(t *testing.T) {
	_, kv := setupRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "monitor:reading:A:latest", "{}", 0))
	require.NoError(t, kv.Set(ctx, "monitor:reading:B:latest", "{}", 0))
	require.NoError(t, kv.Set(ctx, "monitor:selection:user:u1", "dev-1", 0))

	keys, err := kv.ScanKeys(ctx, "monitor:reading:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "monitor:reading:A:latest", "a", 0))
	require.NoError(t, kv.Set(ctx, "monitor:reading:B:latest", "b", 0))
	require.NoError(t, kv.Set(ctx, "other", "c", 0))

	v, err := kv.Get(ctx, "monitor:reading:A:latest")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	keys, err := kv.ScanKeys(ctx, "monitor:reading:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, kv.Delete(ctx, "monitor:reading:A:latest"))
	_, err = kv.Get(ctx, "monitor:reading:A:latest")
	assert.ErrorIs(t, err, ErrMiss)

	// expired entries behave as misses
	require.NoError(t, kv.Set(ctx, "ttl", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)
	_, err = kv.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrMiss)
}
