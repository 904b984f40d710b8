package sqlcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

// CounterRepo implements usecase/ratelimit.CounterStore on the rate_limits table.
type CounterRepo struct {
	db conn
}

// NewCounterRepo creates a rate-counter repository.
func NewCounterRepo(c conn) *CounterRepo {
	return &CounterRepo{db: c}
}

// A row holds one window per client; a newer window replaces the count instead of adding to it.
const incrementCounter = `
INSERT INTO rate_limits (client_id, count, reset_at)
VALUES (?, ?, ?)
ON CONFLICT (client_id) DO UPDATE SET
	count    = CASE WHEN rate_limits.reset_at = excluded.reset_at
	                THEN rate_limits.count + excluded.count
	                ELSE excluded.count END,
	reset_at = excluded.reset_at
WHERE excluded.reset_at >= rate_limits.reset_at`

// Increment adds each entry's Count to the counter of its client window.
func (r *CounterRepo) Increment(ctx context.Context, entries []domain.RateLimitEntry) error {
	var errs []error
	for _, e := range entries {
		if e.Count == 0 {
			continue
		}
		_, err := r.db.ExecContext(ctx, incrementCounter, e.ClientID, e.Count, e.WindowResetAt.UnixMilli())
		if err != nil {
			errs = append(errs, &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("rate counter %s: %w", e.ClientID, err)})
		}
	}
	return errors.Join(errs...)
}

// LoadActive returns counters whose window has not ended at now.
func (r *CounterRepo) LoadActive(ctx context.Context, now time.Time) ([]domain.RateLimitEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT client_id, count, reset_at FROM rate_limits WHERE reset_at > ?`, now.UnixMilli())
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	var out []domain.RateLimitEntry
	for rows.Next() {
		var (
			e       domain.RateLimitEntry
			resetMS int64
		)
		if err := rows.Scan(&e.ClientID, &e.Count, &resetMS); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		e.WindowResetAt = time.UnixMilli(resetMS)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

// Sweep deletes counters whose window ended at or before now.
func (r *CounterRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweep(ctx, r.db, `DELETE FROM rate_limits WHERE reset_at <= ?`, now.UnixMilli())
}
