package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr(), Prefix: "hydromon:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	_, ok, err := r.Get(ctx, "sheet|0")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "sheet|0", []byte("payload"), time.Hour))
	assert.True(t, mr.Exists("hydromon:sheet|0"), "key should carry the prefix")

	got, ok, err := r.Get(ctx, "sheet|0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, r.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, r.Delete(ctx, "a", "b"))
	require.NoError(t, r.Delete(ctx))

	assert.False(t, mr.Exists("hydromon:a"))
	assert.False(t, mr.Exists("hydromon:b"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestRedis_ImplementsStore(t *testing.T) {
	var _ Store = (*Redis)(nil)
	var _ Store = (*Memory)(nil)
}
