// Package vectors is the Redis-backed L3 tier: feature vectors partitioned by destination.
//
// Each vector lives in its own hash; a per-destination set indexes the keys so
// candidate retrieval never scans other destinations.
package vectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/cachekey"
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
}

// Repo implements usecase/cache.VectorStore.
type Repo struct {
	store  store
	prefix string
	grace  time.Duration
}

// New creates a vector repository. prefix namespaces every key.
func New(s store, prefix string, grace time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, grace: grace}
}

// Put stores rec and indexes it under its destination.
func (r *Repo) Put(ctx context.Context, rec domain.VectorRecord) error {
	item := db.HashSetItem{
		Key:    r.vecKey(rec.Key),
		Fields: buildHashFields(rec),
		TTL:    rec.TTL + r.grace,
	}
	if err := r.store.HSetMulti(ctx, []db.HashSetItem{item}); err != nil {
		return fmt.Errorf("put vector %s: %w", rec.Key, err)
	}
	if err := r.store.SAdd(ctx, r.destKey(rec.Destination), rec.Key); err != nil {
		return fmt.Errorf("index vector %s: %w", rec.Key, err)
	}
	return nil
}

// Candidates returns the live vectors stored for exactly this destination.
func (r *Repo) Candidates(ctx context.Context, destination string, now time.Time) ([]domain.VectorRecord, error) {
	setKey := r.destKey(destination)
	members, err := r.store.SMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("list vectors for %q: %w", destination, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, r.vecKeys(members))
	if err != nil {
		return nil, fmt.Errorf("load vectors for %q: %w", destination, err)
	}

	out := make([]domain.VectorRecord, 0, len(maps))
	var stale []string
	for i, m := range maps {
		if len(m) == 0 {
			stale = append(stale, members[i])
			continue
		}
		rec, err := parseHashFields(m)
		if err != nil || rec.Destination != destination || !rec.Live(now) {
			continue
		}
		out = append(out, rec)
	}

	if len(stale) > 0 {
		// Leftovers from server-side expiry; Sweep retries if this fails.
		_ = r.store.SRem(ctx, setKey, stale...)
	}
	return out, nil
}

// Sweep drops expired vectors and dangling index members. Returns vectors removed.
func (r *Repo) Sweep(ctx context.Context, now time.Time) (int, error) {
	sets, err := r.store.Scan(ctx, r.prefix+"dest:*")
	if err != nil {
		return 0, fmt.Errorf("scan partitions: %w", err)
	}

	removed := 0
	for _, setKey := range sets {
		n, err := r.sweepPartition(ctx, setKey, now)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (r *Repo) sweepPartition(ctx context.Context, setKey string, now time.Time) (int, error) {
	members, err := r.store.SMembers(ctx, setKey)
	if err != nil {
		return 0, fmt.Errorf("list partition %s: %w", setKey, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, r.vecKeys(members))
	if err != nil {
		return 0, fmt.Errorf("load partition %s: %w", setKey, err)
	}

	var drop, expired []string
	for i, m := range maps {
		if len(m) == 0 {
			drop = append(drop, members[i])
			continue
		}
		rec, err := parseHashFields(m)
		if err != nil || !rec.Live(now) {
			drop = append(drop, members[i])
			expired = append(expired, r.vecKey(members[i]))
		}
	}

	if err := r.store.Del(ctx, expired...); err != nil {
		return 0, fmt.Errorf("delete expired vectors: %w", err)
	}
	if err := r.store.SRem(ctx, setKey, drop...); err != nil {
		return len(expired), fmt.Errorf("unindex vectors in %s: %w", strings.TrimPrefix(setKey, r.prefix), err)
	}
	return len(expired), nil
}

func (r *Repo) vecKey(key string) string {
	return r.prefix + "vec:" + key
}

func (r *Repo) vecKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.vecKey(k)
	}
	return out
}

func (r *Repo) destKey(destination string) string {
	return r.prefix + "dest:" + cachekey.Partition(destination)
}
