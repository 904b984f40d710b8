// Package cache chains the L1 memory, L2 persistent and L3 vector tiers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/cachekey"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

// Config holds tier TTLs and the L3 match threshold.
type Config struct {
	PersistentTTL       time.Duration
	VectorTTL           time.Duration
	SimilarityThreshold float64
}

// Service looks up tiers in order and writes resolved results to all of them.
// Any tier failure degrades to a miss (lookup) or a no-op (store).
type Service struct {
	tiers  []Tier
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a cache service over the three stores.
func New(memory MemoryStore, entries EntryStore, vectors VectorStore, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		tiers: []Tier{
			memoryTier{store: memory},
			persistentTier{store: entries, ttl: cfg.PersistentTTL},
			vectorTier{vectors: vectors, entries: entries, ttl: cfg.VectorTTL, threshold: cfg.SimilarityThreshold},
		},
		now:    time.Now,
		logger: logger.With(zap.String("component", "cache")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryFor builds the tier query for c.
func QueryFor(c domain.SearchCriteria) Query {
	return Query{
		Key:         cachekey.Key(c),
		Destination: domain.NormalizeDestination(c.Destination),
		Vector:      cachekey.Vector(c),
	}
}

// Get returns the first hit in tier order, promoting hits below L1 into L1.
func (s *Service) Get(ctx context.Context, c domain.SearchCriteria) (*domain.SearchResult, bool) {
	q := QueryFor(c)
	now := s.now()

	for i, tier := range s.tiers {
		name := string(tier.Name())

		e, err := tier.Lookup(ctx, q, now)
		if err != nil {
			if !errors.Is(err, domain.ErrCacheMiss) {
				metrics.CacheStoreErrorsTotal.WithLabelValues(name, "get").Inc()
				s.logger.Warn("Cache tier lookup failed, treating as miss",
					zap.String("tier", name), zap.String("key", q.Key), zap.Error(err))
			}
			metrics.CacheLookupsTotal.WithLabelValues(name, "miss").Inc()
			continue
		}

		var result domain.SearchResult
		if err := json.Unmarshal(e.Payload, &result); err != nil {
			metrics.CacheLookupsTotal.WithLabelValues(name, "error").Inc()
			s.logger.Warn("Failed to decode cached result",
				zap.String("tier", name), zap.String("key", e.Key), zap.Error(err))
			continue
		}
		metrics.CacheLookupsTotal.WithLabelValues(name, "hit").Inc()
		s.logger.Debug("Cache hit", zap.String("tier", name), zap.String("key", q.Key), zap.Int64("hits", e.Hits))

		if i > 0 {
			s.store(ctx, s.tiers[0], q, e)
		}
		result.CacheTier = tier.Name()
		return &result, true
	}
	return nil, false
}

// Put writes result to every tier under the key of c.
func (s *Service) Put(ctx context.Context, c domain.SearchCriteria, result *domain.SearchResult) {
	stored := *result
	stored.CacheTier = domain.TierNone
	payload, err := json.Marshal(&stored)
	if err != nil {
		s.logger.Warn("Failed to encode result for cache", zap.Error(err))
		return
	}

	n := c.Normalized()
	q := QueryFor(c)
	e := domain.CacheEntry{
		Key:         q.Key,
		Payload:     payload,
		Destination: q.Destination,
		CheckIn:     n.CheckIn.String(),
		CheckOut:    n.CheckOut.String(),
		Guests:      n.Guests(),
		CreatedAt:   s.now(),
	}
	for _, tier := range s.tiers {
		s.store(ctx, tier, q, e)
	}
}

func (s *Service) store(ctx context.Context, tier Tier, q Query, e domain.CacheEntry) {
	if err := tier.Store(ctx, q, e); err != nil {
		name := string(tier.Name())
		metrics.CacheStoreErrorsTotal.WithLabelValues(name, "put").Inc()
		s.logger.Warn("Cache tier write failed", zap.String("tier", name), zap.String("key", q.Key), zap.Error(err))
	}
}
