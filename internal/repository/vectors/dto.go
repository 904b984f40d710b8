package vectors

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/vector"
)

const (
	fieldKey         = "key"
	fieldDestination = "destination"
	fieldVector      = "vector"
	fieldCreatedAt   = "created_at"
	fieldTTL         = "ttl_ms"
)

func buildHashFields(rec domain.VectorRecord) map[string]string {
	return map[string]string{
		fieldKey:         rec.Key,
		fieldDestination: rec.Destination,
		fieldVector:      string(vector.Encode(rec.Vector[:])),
		fieldCreatedAt:   strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		fieldTTL:         strconv.FormatInt(rec.TTL.Milliseconds(), 10),
	}
}

func parseHashFields(m map[string]string) (domain.VectorRecord, error) {
	raw, err := vector.Decode([]byte(m[fieldVector]))
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("vector %s: %w", m[fieldKey], err)
	}
	if len(raw) != domain.FeatureVectorDim {
		return domain.VectorRecord{}, fmt.Errorf("vector %s: dimension %d, want %d",
			m[fieldKey], len(raw), domain.FeatureVectorDim)
	}
	createdMS, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("vector %s: bad %s: %w", m[fieldKey], fieldCreatedAt, err)
	}
	ttlMS, err := strconv.ParseInt(m[fieldTTL], 10, 64)
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("vector %s: bad %s: %w", m[fieldKey], fieldTTL, err)
	}

	rec := domain.VectorRecord{
		Key:         m[fieldKey],
		Destination: m[fieldDestination],
		CreatedAt:   time.UnixMilli(createdMS),
		TTL:         time.Duration(ttlMS) * time.Millisecond,
	}
	copy(rec.Vector[:], raw)
	return rec, nil
}
