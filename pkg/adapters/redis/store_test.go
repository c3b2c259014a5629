package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/rfqflow/pkg/adapters/redis"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunCheckpointerContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()
	threadID := "thread-ttl"

	require.NoError(t, store.Save(ctx, threadID, ports.SampleCheckpoint(threadID)))

	threads, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, threads, threadID)

	mr.FastForward(2 * time.Minute)

	_, err = store.Load(ctx, threadID)
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	threads, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)

	// The stale index member is gone too.
	members, err := client.ZRange(ctx, redis.DefaultPrefix+"index", 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-thread", ports.SampleCheckpoint("my-thread")))

	assert.True(t, mr.Exists("custom:app:t:my-thread"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-thread"}, list)
}

func TestRedisStore_ThreadIDsCannotReachReservedKeys(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	t.Run("index", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "victim", ports.SampleCheckpoint("victim")))
		require.NoError(t, store.Save(ctx, "index", ports.SampleCheckpoint("index")))
		require.NoError(t, store.Save(ctx, "other", ports.SampleCheckpoint("other")))

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"victim", "index", "other"}, list)

		cp, err := store.Load(ctx, "index")
		require.NoError(t, err)
		assert.Equal(t, "index", cp.ThreadID)
	})

	t.Run("lock", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "abc", time.Minute)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "lock:abc", ports.SampleCheckpoint("lock:abc")))
		require.NoError(t, store.Delete(ctx, "lock:abc"))

		require.NoError(t, unlock(ctx), "the holder still owns its lock")
		assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:abc"))

		again, err := locker.Lock(ctx, "abc", time.Minute)
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})
}
