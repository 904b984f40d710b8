// Package sqlcache implements the L2, L3 and rate-counter stores on SQLite or Postgres.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

// conn is the consumer interface over *sqldb.DB (ISP).
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EntryRepo implements usecase/cache.EntryStore on the cache_entries table.
type EntryRepo struct {
	db conn
}

// NewEntryRepo creates an L2 repository.
func NewEntryRepo(c conn) *EntryRepo {
	return &EntryRepo{db: c}
}

const upsertEntry = `
INSERT INTO cache_entries (key, payload, destination, check_in, check_out, guests, hit_count, created_at, ttl_ms)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT (key) DO UPDATE SET
	payload     = excluded.payload,
	destination = excluded.destination,
	check_in    = excluded.check_in,
	check_out   = excluded.check_out,
	guests      = excluded.guests,
	hit_count   = 0,
	created_at  = excluded.created_at,
	ttl_ms      = excluded.ttl_ms`

// Put upserts the entry.
func (r *EntryRepo) Put(ctx context.Context, e domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, upsertEntry,
		e.Key, e.Payload, e.Destination, e.CheckIn, e.CheckOut, e.Guests,
		e.CreatedAt.UnixMilli(), e.TTL.Milliseconds(),
	)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("cache entry %s: %w", e.Key, err)}
	}
	return nil
}

// Get returns the live entry for key and bumps its hit counter.
// Missing and expired rows both yield domain.ErrCacheMiss.
func (r *EntryRepo) Get(ctx context.Context, key string, now time.Time) (domain.CacheEntry, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE key = ? AND created_at + ttl_ms > ?`,
		key, now.UnixMilli())
	if err != nil {
		return domain.CacheEntry{}, &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("count hit %s: %w", key, err)}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}

	var (
		e                = domain.CacheEntry{Key: key}
		createdMS, ttlMS int64
	)
	err = r.db.QueryRowContext(ctx,
		`SELECT payload, destination, check_in, check_out, guests, hit_count, created_at, ttl_ms
		 FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Payload, &e.Destination, &e.CheckIn, &e.CheckOut, &e.Guests, &e.Hits, &createdMS, &ttlMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CacheEntry{}, domain.ErrCacheMiss
		}
		return domain.CacheEntry{}, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("cache entry %s: %w", key, err)}
	}
	e.CreatedAt = time.UnixMilli(createdMS)
	e.TTL = time.Duration(ttlMS) * time.Millisecond
	return e, nil
}

// Sweep deletes rows whose createdAt+ttl is not after now.
func (r *EntryRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweep(ctx, r.db, `DELETE FROM cache_entries WHERE created_at + ttl_ms <= ?`, now.UnixMilli())
}

func sweep(ctx context.Context, c conn, query string, args ...any) (int, error) {
	res, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return int(n), nil
}
