//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(startRedis(t))

	_, ok, err := cache.Get(ctx, "import:job:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "import:job:j1", map[string]string{"state": "queued"}, time.Minute))
	raw, ok, err := cache.Get(ctx, "import:job:j1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"state":"queued"}`, string(raw))

	require.NoError(t, cache.Delete(ctx, "import:job:j1"))
	_, ok, err = cache.Get(ctx, "import:job:j1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(startRedis(t))

	require.NoError(t, cache.Set(ctx, "import:job:short", "x", 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, ok, err := cache.Get(ctx, "import:job:short")
		return err == nil && !ok
	}, 5*time.Second, 50*time.Millisecond)
}
