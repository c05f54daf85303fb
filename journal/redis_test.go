package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Redis tests need a live server. Point ARENA_TEST_REDIS_URL at one, e.g.
// redis://localhost:6379/15.
func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()

	url := os.Getenv("ARENA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ARENA_TEST_REDIS_URL not set")
	}
	r, err := NewRedisStore(url, "arena:test:"+t.Name())
	require.NoError(t, err)

	ctx := context.Background()
	t.Cleanup(func() {
		_ = r.rdb.Del(ctx, r.key).Err()
		_ = r.Close()
	})
	require.NoError(t, r.rdb.Del(ctx, r.key).Err())
	return r
}

func TestNewRedisStoreBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore("not-a-url://", "")
	assert.Error(t, err)
}

func TestRedisStoreDefaultKey(t *testing.T) {
	t.Parallel()

	r, err := NewRedisStore("redis://localhost:6379/0", "")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, DefaultRedisKey, r.key)
	assert.Equal(t, "arena:state:updates", r.Channel())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, ErrNoState)

	want := fixtureState(t)
	require.NoError(t, r.Save(ctx, want))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.CurrentCycle, got.CurrentCycle)
	require.Len(t, got.Agents, 2)
	assert.Equal(t, "alpha", got.Agents[0].ID)
}

func TestRedisStorePublishesCycle(t *testing.T) {
	r := newTestRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, err := r.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Save(ctx, fixtureState(t)))

	select {
	case n := <-updates:
		assert.Equal(t, 2, n)
	case <-ctx.Done():
		t.Fatal("no update published")
	}
}
