package cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/vector"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

// Query identifies one request across all tiers.
type Query struct {
	Key         string
	Destination string // normalized; partitions L3
	Vector      domain.FeatureVector
}

// Tier is one level of the lookup chain. Lookup returns domain.ErrCacheMiss on a miss.
type Tier interface {
	Name() domain.CacheTier
	Lookup(ctx context.Context, q Query, now time.Time) (domain.CacheEntry, error)
	Store(ctx context.Context, q Query, e domain.CacheEntry) error
}

type memoryTier struct {
	store MemoryStore
}

func (t memoryTier) Name() domain.CacheTier { return domain.TierMemory }

func (t memoryTier) Lookup(_ context.Context, q Query, _ time.Time) (domain.CacheEntry, error) {
	e, ok := t.store.Get(q.Key)
	if !ok {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}
	return e, nil
}

func (t memoryTier) Store(_ context.Context, q Query, e domain.CacheEntry) error {
	e.Key = q.Key
	t.store.Set(e)
	return nil
}

type persistentTier struct {
	store EntryStore
	ttl   time.Duration
}

func (t persistentTier) Name() domain.CacheTier { return domain.TierPersistent }

func (t persistentTier) Lookup(ctx context.Context, q Query, now time.Time) (domain.CacheEntry, error) {
	return t.store.Get(ctx, q.Key, now) //nolint:wrapcheck // repository errors are already wrapped
}

func (t persistentTier) Store(ctx context.Context, q Query, e domain.CacheEntry) error {
	e.Key = q.Key
	e.TTL = t.ttl
	return t.store.Put(ctx, e) //nolint:wrapcheck // repository errors are already wrapped
}

// vectorTier resolves the most similar stored request for the same destination
// through the L2 store; an expired L2 entry makes the whole lookup a miss.
type vectorTier struct {
	vectors   VectorStore
	entries   EntryStore
	ttl       time.Duration
	threshold float64
}

func (t vectorTier) Name() domain.CacheTier { return domain.TierVector }

func (t vectorTier) Lookup(ctx context.Context, q Query, now time.Time) (domain.CacheEntry, error) {
	candidates, err := t.vectors.Candidates(ctx, q.Destination, now)
	if err != nil {
		return domain.CacheEntry{}, err //nolint:wrapcheck // repository errors are already wrapped
	}

	bestKey, best := bestMatch(q.Vector, candidates)
	if bestKey == "" {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}
	metrics.CacheSimilarity.Observe(best)
	if best < t.threshold {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}
	return t.entries.Get(ctx, bestKey, now) //nolint:wrapcheck // repository errors are already wrapped
}

func (t vectorTier) Store(ctx context.Context, q Query, e domain.CacheEntry) error {
	return t.vectors.Put(ctx, domain.VectorRecord{ //nolint:wrapcheck // repository errors are already wrapped
		Key:         q.Key,
		Destination: q.Destination,
		Vector:      q.Vector,
		CreatedAt:   e.CreatedAt,
		TTL:         t.ttl,
	})
}

// bestMatch returns the candidate key with the highest cosine similarity to v.
func bestMatch(v domain.FeatureVector, candidates []domain.VectorRecord) (string, float64) {
	var (
		bestKey string
		best    = -1.0
	)
	for i := range candidates {
		sim := vector.Cosine(v[:], candidates[i].Vector[:])
		if sim > best {
			best, bestKey = sim, candidates[i].Key
		}
	}
	return bestKey, best
}
