package ratelimit

import (
	"context"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// CounterStore persists window counters so a restart does not reset active windows.
// Increment adds Count to the counter identified by (ClientID, WindowResetAt).
type CounterStore interface {
	Increment(ctx context.Context, entries []domain.RateLimitEntry) error
	LoadActive(ctx context.Context, now time.Time) ([]domain.RateLimitEntry, error)
}
