package pipeline

import (
	"context"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// RateLimiter admits or rejects a client's request.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) error
}

// Cache is the tiered result cache. Failures inside it degrade to misses.
type Cache interface {
	Get(ctx context.Context, c domain.SearchCriteria) (*domain.SearchResult, bool)
	Put(ctx context.Context, c domain.SearchCriteria, result *domain.SearchResult)
}

// Scraper fans out to scrape targets and returns per-target results in input order.
type Scraper interface {
	ScrapeAll(ctx context.Context, c domain.SearchCriteria, targets []string) []domain.SourceResult
}

// Generator is the generative fallback.
type Generator interface {
	Analyze(ctx context.Context, c domain.SearchCriteria, listings []domain.Listing) (*domain.SearchResult, error)
	OpenWeb(ctx context.Context, c domain.SearchCriteria) (*domain.SearchResult, error)
}
