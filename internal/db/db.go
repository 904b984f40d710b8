// Package db holds the storage contracts shared by the cache repositories.
package db

import (
	"context"
	"fmt"
	"time"
)

// readyPollInterval is the delay between readiness pings.
const readyPollInterval = 100 * time.Millisecond

// Store is the Redis/Valkey command surface behind the persistent cache tiers
// and the rate-limit counters. Repositories depend on narrower local interfaces.
//
//nolint:interfacebloat // facade over three repositories
type Store interface {
	Pinger
	HashStore
	SetStore
	CounterStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash written by a pipelined HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
	TTL    time.Duration // applied with PEXPIRE in the same round-trip when > 0
}

// HashStore stores cache entries and vector records as hashes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// SetStore maintains destination partitions of the vector index.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
}

// CounterStore holds fixed-window rate-limit counters.
type CounterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// WaitForReady pings p until it answers or timeout expires.
func WaitForReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w (last ping: %w)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
