package sqlcache

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/vector"
)

// VectorRepo implements usecase/cache.VectorStore on the cache_vectors table.
type VectorRepo struct {
	db conn
}

// NewVectorRepo creates an L3 repository.
func NewVectorRepo(c conn) *VectorRepo {
	return &VectorRepo{db: c}
}

const upsertVector = `
INSERT INTO cache_vectors (key, destination, vector, created_at, ttl_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
	destination = excluded.destination,
	vector      = excluded.vector,
	created_at  = excluded.created_at,
	ttl_ms      = excluded.ttl_ms`

// Put upserts rec.
func (r *VectorRepo) Put(ctx context.Context, rec domain.VectorRecord) error {
	_, err := r.db.ExecContext(ctx, upsertVector,
		rec.Key, rec.Destination, vector.Encode(rec.Vector[:]),
		rec.CreatedAt.UnixMilli(), rec.TTL.Milliseconds(),
	)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("vector %s: %w", rec.Key, err)}
	}
	return nil
}

// Candidates returns the live vectors stored for exactly this destination.
func (r *VectorRepo) Candidates(ctx context.Context, destination string, now time.Time) ([]domain.VectorRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, vector, created_at, ttl_ms FROM cache_vectors
		 WHERE destination = ? AND created_at + ttl_ms > ?`,
		destination, now.UnixMilli())
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("vectors for %q: %w", destination, err)}
	}
	defer rows.Close()

	var out []domain.VectorRecord
	for rows.Next() {
		var (
			rec              = domain.VectorRecord{Destination: destination}
			blob             []byte
			createdMS, ttlMS int64
		)
		if err := rows.Scan(&rec.Key, &blob, &createdMS, &ttlMS); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		raw, err := vector.Decode(blob)
		if err != nil || len(raw) != domain.FeatureVectorDim {
			continue
		}
		copy(rec.Vector[:], raw)
		rec.CreatedAt = time.UnixMilli(createdMS)
		rec.TTL = time.Duration(ttlMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

// Sweep deletes rows whose createdAt+ttl is not after now.
func (r *VectorRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweep(ctx, r.db, `DELETE FROM cache_vectors WHERE created_at + ttl_ms <= ?`, now.UnixMilli())
}
