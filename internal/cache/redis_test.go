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

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "leafwise:", 2*time.Second, nil)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	ok := store.Set(ctx, "cp:42", []byte(`{"water_days":3}`), 10*time.Minute, nil)
	require.True(t, ok)

	data, remaining, found := store.Get(ctx, "cp:42")
	require.True(t, found)
	assert.Equal(t, []byte(`{"water_days":3}`), data)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 10*time.Minute)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, _, found := store.Get(context.Background(), "nope")
	assert.False(t, found)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	store, mr := setupRedisStore(t)

	require.True(t, store.Set(context.Background(), "cp:42", []byte(`1`), time.Minute, nil))
	assert.True(t, mr.Exists("leafwise:cp:42"))
}

func TestRedisStore_NativeExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "env:9", []byte(`1`), 5*time.Minute, nil))
	assert.True(t, mr.Exists("leafwise:env:9"))

	mr.FastForward(6 * time.Minute)

	_, _, found := store.Get(ctx, "env:9")
	assert.False(t, found)
}

func TestRedisStore_TagSets(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	ttl := 10 * time.Minute
	require.True(t, store.Set(ctx, "cp:5", []byte(`1`), ttl, []string{"plant:5", "care_plan"}))

	// Tag sets exist and carry the data TTL plus the grace period.
	assert.True(t, mr.Exists("leafwise:tag:plant:5"))
	assert.True(t, mr.Exists("leafwise:tag:care_plan"))
	assert.Equal(t, ttl+TagGracePeriod, mr.TTL("leafwise:tag:plant:5"))
}

func TestRedisStore_TagSetExpiryRefreshed(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "cp:1", []byte(`1`), 5*time.Minute, []string{"care_plan"}))
	mr.FastForward(4 * time.Minute)
	require.True(t, store.Set(ctx, "cp:2", []byte(`2`), 5*time.Minute, []string{"care_plan"}))

	// The second write pushed the tag set's expiry back out.
	assert.Equal(t, 5*time.Minute+TagGracePeriod, mr.TTL("leafwise:tag:care_plan"))
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "cp:42", []byte(`1`), time.Minute, nil))
	assert.True(t, store.Delete(ctx, "cp:42"))
	assert.False(t, mr.Exists("leafwise:cp:42"))

	// Idempotent: deleting again reports nothing removed.
	assert.False(t, store.Delete(ctx, "cp:42"))
}

func TestRedisStore_InvalidateByTags(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k1", []byte(`1`), time.Minute, []string{"plant:5"}))
	require.True(t, store.Set(ctx, "k2", []byte(`2`), time.Minute, []string{"plant:5"}))
	require.True(t, store.Set(ctx, "k3", []byte(`3`), time.Minute, []string{"plant:9"}))

	removed := store.InvalidateByTags(ctx, []string{"plant:5"})
	assert.Equal(t, 2, removed)

	assert.False(t, mr.Exists("leafwise:k1"))
	assert.False(t, mr.Exists("leafwise:k2"))
	assert.True(t, mr.Exists("leafwise:k3"))

	// The tag set itself is gone too.
	assert.False(t, mr.Exists("leafwise:tag:plant:5"))
}

func TestRedisStore_InvalidateByTags_DanglingMembers(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k1", []byte(`1`), time.Minute, []string{"plant:5"}))
	require.True(t, store.Set(ctx, "k2", []byte(`2`), time.Minute, []string{"plant:5"}))

	// k1 deleted out-of-band; its tag reference dangles.
	mr.Del("leafwise:k1")

	removed := store.InvalidateByTags(ctx, []string{"plant:5"})
	assert.Equal(t, 1, removed)
	assert.False(t, mr.Exists("leafwise:k2"))
}

func TestRedisStore_InvalidateByTags_UnknownTag(t *testing.T) {
	store, _ := setupRedisStore(t)

	assert.Equal(t, 0, store.InvalidateByTags(context.Background(), []string{"nope"}))
}

func TestRedisStore_ErrorsAbsorbed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "leafwise:", time.Second, nil)
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", []byte(`1`), time.Minute, []string{"t"}))

	// Connection loss degrades to miss/false, never an error or panic.
	mr.Close()

	_, _, found := store.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, store.Set(ctx, "k", []byte(`1`), time.Minute, nil))
	assert.False(t, store.Delete(ctx, "k"))
	assert.Equal(t, 0, store.InvalidateByTags(ctx, []string{"t"}))
	assert.Equal(t, int64(0), store.MemoryUsed(ctx))
	assert.Error(t, store.Ping(ctx))

	_ = client.Close()
}
