package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// CachedSnapshots wraps a primary SnapshotStore with a Redis read-through
// cache. Writes go to the primary store then refresh the cache; reads check
// Redis first then fall back to the primary.
type CachedSnapshots struct {
	primary pnl.SnapshotStore
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedSnapshots creates a cached wrapper around a primary store.
func NewCachedSnapshots(primary pnl.SnapshotStore, rdb *redis.Client, ttl time.Duration) *CachedSnapshots {
	return &CachedSnapshots{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedSnapshots) Put(ctx context.Context, account string, snap *pnl.Snapshot) error {
	if err := s.primary.Put(ctx, account, snap); err != nil {
		return err
	}
	if data, err := encodeSnapshot(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(account, snap.Date), data, s.ttl)
	}
	return nil
}

func (s *CachedSnapshots) Get(ctx context.Context, account string, day date.Date) (*pnl.Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(account, day)).Bytes()
	if err == nil {
		if snap, err := decodeSnapshot(data); err == nil {
			return snap, nil
		}
	}

	// cache miss
	snap, err := s.primary.Get(ctx, account, day)
	if err != nil || snap == nil {
		return snap, err
	}
	if data, err := encodeSnapshot(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(account, day), data, s.ttl)
	}
	return snap, nil
}

// Dates is not cached: the list changes with every write.
func (s *CachedSnapshots) Dates(ctx context.Context, account string) ([]date.Date, error) {
	return s.primary.Dates(ctx, account)
}

func snapshotKey(account string, day date.Date) string {
	return fmt.Sprintf("pnl:snapshot:%s:%s", account, day)
}

var _ pnl.SnapshotStore = (*CachedSnapshots)(nil)
