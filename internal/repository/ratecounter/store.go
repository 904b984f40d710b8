// Package ratecounter persists fixed-window rate-limit counters in Redis.
package ratecounter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Store implements usecase/ratelimit.CounterStore with one key per client window
// (INCRBY + PEXPIRE NX at the window end).
type Store struct {
	store  store
	prefix string
}

// New creates a counter store. prefix namespaces every key.
func New(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix}
}

// Increment adds each entry's Count to the counter of its client window.
func (s *Store) Increment(ctx context.Context, entries []domain.RateLimitEntry) error {
	now := time.Now()
	var errs []error
	for _, e := range entries {
		ttl := e.WindowResetAt.Sub(now)
		if ttl <= 0 || e.Count == 0 {
			continue
		}
		key := s.counterKey(e.ClientID, e.WindowResetAt)
		if _, err := s.store.IncrBy(ctx, key, int64(e.Count)); err != nil {
			errs = append(errs, fmt.Errorf("rate counter INCRBY %s: %w", key, err))
			continue
		}
		// TTL only on first write so repeated increments do not extend the window.
		if err := s.store.Expire(ctx, key, ttl, true); err != nil {
			errs = append(errs, fmt.Errorf("rate counter EXPIRE %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// LoadActive returns counters whose window has not ended at now.
func (s *Store) LoadActive(ctx context.Context, now time.Time) ([]domain.RateLimitEntry, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"rl:*")
	if err != nil {
		return nil, fmt.Errorf("scan rate counters: %w", err)
	}

	out := make([]domain.RateLimitEntry, 0, len(keys))
	for _, key := range keys {
		client, resetAt, ok := s.parseKey(key)
		if !ok || !resetAt.After(now) {
			continue
		}
		data, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("rate counter GET %s: %w", key, err)
		}
		count, err := strconv.Atoi(string(data))
		if err != nil {
			continue
		}
		out = append(out, domain.RateLimitEntry{ClientID: client, Count: count, WindowResetAt: resetAt})
	}
	return out, nil
}

// Sweep deletes counters whose window ended at or before now.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"rl:*")
	if err != nil {
		return 0, fmt.Errorf("scan rate counters: %w", err)
	}

	var expired []string
	for _, key := range keys {
		if _, resetAt, ok := s.parseKey(key); !ok || !resetAt.After(now) {
			expired = append(expired, key)
		}
	}
	if err := s.store.Del(ctx, expired...); err != nil {
		return 0, fmt.Errorf("delete rate counters: %w", err)
	}
	return len(expired), nil
}

// counterKey follows {prefix}rl:{client}:{reset_ms}. Client IDs may contain ':' (IPv6).
func (s *Store) counterKey(client string, resetAt time.Time) string {
	return s.prefix + "rl:" + client + ":" + strconv.FormatInt(resetAt.UnixMilli(), 10)
}

func (s *Store) parseKey(key string) (string, time.Time, bool) {
	rest := strings.TrimPrefix(key, s.prefix+"rl:")
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || rest == key {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:i], time.UnixMilli(ms), true
}
