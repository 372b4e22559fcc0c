package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/models"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, newTestStore(t, ttl), ttl), mr
}

func TestRedisStore_CommitAndGet(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Hour)

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	sess.Filename = "notes.md"
	require.NoError(t, store.Commit(ctx, sess))
	assert.True(t, mr.Exists(keyPrefix+sess.ID))
	assert.Greater(t, mr.TTL(keyPrefix+sess.ID), 59*time.Minute)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", got.Filename)
	assert.Equal(t, sess.Location, got.Location)

	exists, err := store.Exists(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisStore_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Hour)

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, sess))

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.DirExists(t, sess.Location)

	removed, err := store.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, removed)
	assert.NoDirExists(t, sess.Location)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, 0)

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, sess))
	assert.Zero(t, mr.TTL(keyPrefix+sess.ID))

	require.NoError(t, store.Delete(ctx, sess.ID))
	assert.False(t, mr.Exists(keyPrefix+sess.ID))
	assert.NoDirExists(t, sess.Location)

	_, err = store.LocationOf(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
