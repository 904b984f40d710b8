// Package entry is the Redis-backed L2 tier: serialized results keyed by cache key.
package entry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

const sweepBatch = 100

// store is the consumer interface for cache entries (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/cache.EntryStore on hashes.
// Keys carry a server-side expiry of ttl+grace as a backstop for the sweep.
type Repo struct {
	store  store
	prefix string
	grace  time.Duration
}

// New creates an entry repository. prefix namespaces every key (e.g. "staydex:").
func New(s store, prefix string, grace time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, grace: grace}
}

// Put upserts the entry.
func (r *Repo) Put(ctx context.Context, e domain.CacheEntry) error {
	item := db.HashSetItem{
		Key:    r.entryKey(e.Key),
		Fields: buildHashFields(e),
		TTL:    e.TTL + r.grace,
	}
	if err := r.store.HSetMulti(ctx, []db.HashSetItem{item}); err != nil {
		return fmt.Errorf("put entry %s: %w", e.Key, err)
	}
	return nil
}

// Get returns the live entry for key and bumps its hit counter.
// Missing and expired entries both yield domain.ErrCacheMiss.
func (r *Repo) Get(ctx context.Context, key string, now time.Time) (domain.CacheEntry, error) {
	redisKey := r.entryKey(key)
	m, err := r.store.HGetAll(ctx, redisKey)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("get entry %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}

	e, err := parseHashFields(key, m)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	if !e.Live(now) {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}

	hits, err := r.store.HIncrBy(ctx, redisKey, fieldHits, 1)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("count hit %s: %w", key, err)
	}
	e.Hits = hits
	return e, nil
}

// Sweep deletes entries whose createdAt+ttl is not after now. Returns the number removed.
func (r *Repo) Sweep(ctx context.Context, now time.Time) (int, error) {
	keys, err := r.store.Scan(ctx, r.entryKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan entries: %w", err)
	}

	removed := 0
	for start := 0; start < len(keys); start += sweepBatch {
		end := min(start+sweepBatch, len(keys))
		batch := keys[start:end]

		maps, err := r.store.HGetAllMulti(ctx, batch)
		if err != nil {
			return removed, fmt.Errorf("load entries: %w", err)
		}

		var expired []string
		for i, m := range maps {
			if len(m) == 0 {
				continue
			}
			e, err := parseHashFields(strings.TrimPrefix(batch[i], r.entryKey("")), m)
			if err != nil || !e.Live(now) {
				expired = append(expired, batch[i])
			}
		}
		if len(expired) == 0 {
			continue
		}
		if err := r.store.Del(ctx, expired...); err != nil {
			return removed, fmt.Errorf("delete expired entries: %w", err)
		}
		removed += len(expired)
	}
	return removed, nil
}

func (r *Repo) entryKey(key string) string {
	return r.prefix + "entry:" + key
}
