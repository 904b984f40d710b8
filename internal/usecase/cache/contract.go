package cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// MemoryStore is the in-process L1 store.
type MemoryStore interface {
	Get(key string) (domain.CacheEntry, bool)
	Set(e domain.CacheEntry)
}

// EntryStore is the persistent L2 store. Get returns domain.ErrCacheMiss for
// missing or expired entries and increments the hit counter on success.
type EntryStore interface {
	Put(ctx context.Context, e domain.CacheEntry) error
	Get(ctx context.Context, key string, now time.Time) (domain.CacheEntry, error)
	Sweeper
}

// VectorStore is the L3 similarity index, partitioned by normalized destination.
type VectorStore interface {
	Put(ctx context.Context, rec domain.VectorRecord) error
	Candidates(ctx context.Context, destination string, now time.Time) ([]domain.VectorRecord, error)
	Sweeper
}

// Sweeper removes rows that expired at or before now and reports how many.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}
