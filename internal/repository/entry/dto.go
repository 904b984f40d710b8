package entry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const (
	fieldPayload     = "payload"
	fieldDestination = "destination"
	fieldCheckIn     = "check_in"
	fieldCheckOut    = "check_out"
	fieldGuests      = "guests"
	fieldHits        = "hits"
	fieldCreatedAt   = "created_at"
	fieldTTL         = "ttl_ms"
)

// buildHashFields flattens an entry for HSET. The hit counter restarts on every write.
func buildHashFields(e domain.CacheEntry) map[string]string {
	return map[string]string{
		fieldPayload:     string(e.Payload),
		fieldDestination: e.Destination,
		fieldCheckIn:     e.CheckIn,
		fieldCheckOut:    e.CheckOut,
		fieldGuests:      strconv.Itoa(e.Guests),
		fieldHits:        "0",
		fieldCreatedAt:   strconv.FormatInt(e.CreatedAt.UnixMilli(), 10),
		fieldTTL:         strconv.FormatInt(e.TTL.Milliseconds(), 10),
	}
}

// parseHashFields rebuilds an entry from HGETALL output.
func parseHashFields(key string, m map[string]string) (domain.CacheEntry, error) {
	createdMS, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("entry %s: bad %s: %w", key, fieldCreatedAt, err)
	}
	ttlMS, err := strconv.ParseInt(m[fieldTTL], 10, 64)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("entry %s: bad %s: %w", key, fieldTTL, err)
	}
	guests, _ := strconv.Atoi(m[fieldGuests])
	hits, _ := strconv.ParseInt(m[fieldHits], 10, 64)

	return domain.CacheEntry{
		Key:         key,
		Payload:     []byte(m[fieldPayload]),
		Destination: m[fieldDestination],
		CheckIn:     m[fieldCheckIn],
		CheckOut:    m[fieldCheckOut],
		Guests:      guests,
		Hits:        hits,
		CreatedAt:   time.UnixMilli(createdMS),
		TTL:         time.Duration(ttlMS) * time.Millisecond,
	}, nil
}
