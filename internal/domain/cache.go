package domain

import "time"

// FeatureVectorDim is the fixed length of a FeatureVector.
const FeatureVectorDim = 7

// FeatureVector is the numeric encoding of a request for approximate matching:
// destination hash, check-in days, check-out days, adults, children, budget min, budget max.
type FeatureVector [FeatureVectorDim]float32

// CacheEntry is a serialized SearchResult with metadata.
type CacheEntry struct {
	Key         string
	Payload     []byte
	Destination string
	CheckIn     string
	CheckOut    string
	Guests      int
	Hits        int64
	CreatedAt   time.Time
	TTL         time.Duration
}

// Live reports whether the entry is still visible at now.
func (e *CacheEntry) Live(now time.Time) bool {
	return e.CreatedAt.Add(e.TTL).After(now)
}

// VectorRecord is a FeatureVector pointing back to a cache key.
type VectorRecord struct {
	Key         string
	Destination string
	Vector      FeatureVector
	CreatedAt   time.Time
	TTL         time.Duration
}

// Live reports whether the record is still visible at now.
func (r *VectorRecord) Live(now time.Time) bool {
	return r.CreatedAt.Add(r.TTL).After(now)
}

// RateLimitEntry is the fixed-window counter for one client.
type RateLimitEntry struct {
	ClientID      string
	Count         int
	WindowResetAt time.Time
}
