package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// newTestRedis connects to the server at PNL_TEST_REDIS_ADDR, or skips.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PNL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PNL_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestCachedSnapshots(t *testing.T) {
	rdb := newTestRedis(t)
	account := "test-" + time.Now().Format("150405.000000")
	testSnapshots(t, NewCachedSnapshots(NewMemory(), rdb, time.Minute), account)
}

func TestCachedSnapshots_ReadThrough(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	account := "test-" + time.Now().Format("150405.000000")
	primary := NewMemory()
	cached := NewCachedSnapshots(primary, rdb, time.Minute)

	day := date.New(2024, 1, 31)
	require.NoError(t, primary.Put(ctx, account, pnl.NewSnapshot(day, pnl.NewBook(nil), "fp")))
	snap, err := cached.Get(ctx, account, day)
	require.NoError(t, err)
	require.NotNil(t, snap)

	// the cache now answers even when the primary changed behind its back
	require.NoError(t, primary.Put(ctx, account, pnl.NewSnapshot(day, pnl.NewBook(nil), "other")))
	snap, err = cached.Get(ctx, account, day)
	require.NoError(t, err)
	assert.Equal(t, "fp", snap.Fingerprint)

	ttl, err := rdb.TTL(ctx, snapshotKey(account, day)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
