// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/label-converter/pkg/types"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(types.CacheConfig{RedisAddr: mr.Addr(), TTL: ttl})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestKey(t *testing.T) {
	data := []byte("%PDF-1.4 label")
	base := Key(data, types.DefaultConfig())

	assert.True(t, strings.HasPrefix(base, KeyPrefix))
	assert.Len(t, strings.TrimPrefix(base, KeyPrefix), 64)
	assert.Equal(t, base, Key(data, types.DefaultConfig()), "stable for equal inputs")

	other := types.DefaultConfig()
	other.Scale = 2
	assert.NotEqual(t, base, Key(data, other), "settings are part of the key")
	assert.NotEqual(t, base, Key([]byte("%PDF-1.4 other"), types.DefaultConfig()))
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Hour)
	require.NoError(t, c.Ping(ctx))

	key := Key([]byte("in"), types.DefaultConfig())

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss before set")

	want := Entry{PDF: []byte("%PDF-1.7\x00\xff binary"), PagesIn: 3, PagesOut: 2}
	require.NoError(t, c.Set(ctx, key, want))

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.Set(ctx, "labelconv:k", Entry{PDF: []byte("x"), PagesIn: 1, PagesOut: 1}))
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "labelconv:k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	require.NoError(t, c.Set(ctx, "labelconv:k", Entry{PDF: []byte("x")}))
	assert.Equal(t, DefaultTTL, mr.TTL("labelconv:k"))
}

func TestCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Hour)

	mr.HSet("labelconv:bad", "pdf", "x", "pages_in", "many", "pages_out", "1")
	_, err := c.Get(ctx, "labelconv:bad")
	assert.Error(t, err)
}

func TestUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(types.CacheConfig{RedisAddr: mr.Addr()})
	mr.Close()

	ctx := context.Background()
	assert.Error(t, c.Ping(ctx))
	_, err := c.Get(ctx, "labelconv:k")
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, "labelconv:k", Entry{}))
}
