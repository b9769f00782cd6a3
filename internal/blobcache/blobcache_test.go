package blobcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/resume"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	token, err := store.Put(ctx, Blob{Data: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png"})
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+token))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+token))

	blob, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)

	require.NoError(t, store.Revoke(ctx, token))
	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	token, err := store.Put(ctx, Blob{Data: []byte("x"), ContentType: "image/jpeg"})
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	token, err := store.Put(context.Background(), Blob{Data: []byte("x")})
	require.NoError(t, err)
	_, err = store.Get(context.Background(), token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(context.Background(), token)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestResolverReusesAndReleases(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	r := NewResolver(store, "http://localhost:8080/v1/preview-blobs/")
	ctx := context.Background()

	remote := resume.RemoteImage("https://cdn/x.png")
	url, err := r.ResolveImage(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", url)
	assert.Equal(t, 0, store.Len())

	first := resume.PendingImage([]byte("one"), "a.png", "image/png")
	u1, err := r.ResolveImage(ctx, first)
	require.NoError(t, err)
	assert.Contains(t, u1, "http://localhost:8080/v1/preview-blobs/")
	u1again, err := r.ResolveImage(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, u1, u1again)
	assert.Equal(t, 1, store.Len())

	second := resume.PendingImage([]byte("two"), "b.png", "image/png")
	u2, err := r.ResolveImage(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, u1, u2)

	require.NoError(t, r.Release(ctx, first))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, r.Outstanding())

	require.NoError(t, r.Close(ctx))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, r.Outstanding())
}
