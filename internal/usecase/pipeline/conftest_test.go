package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type mockLimiter struct {
	mu      sync.Mutex
	calls   int
	allowFn func(clientID string) error
}

func (m *mockLimiter) Allow(_ context.Context, clientID string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.allowFn == nil {
		return nil
	}
	return m.allowFn(clientID)
}

type mockCache struct {
	mu     sync.Mutex
	hit    *domain.SearchResult
	puts   []*domain.SearchResult
	putCtx []context.Context
}

func (m *mockCache) Get(context.Context, domain.SearchCriteria) (*domain.SearchResult, bool) {
	if m.hit == nil {
		return nil, false
	}
	cp := *m.hit
	return &cp, true
}

func (m *mockCache) Put(ctx context.Context, _ domain.SearchCriteria, r *domain.SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, r)
	m.putCtx = append(m.putCtx, ctx)
}

func (m *mockCache) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

type mockScraper struct {
	mu       sync.Mutex
	calls    int
	targets  []string
	scrapeFn func(ctx context.Context) []domain.SourceResult
}

func (m *mockScraper) ScrapeAll(ctx context.Context, _ domain.SearchCriteria, targets []string) []domain.SourceResult {
	m.mu.Lock()
	m.calls++
	m.targets = targets
	m.mu.Unlock()
	if m.scrapeFn == nil {
		return nil
	}
	return m.scrapeFn(ctx)
}

type mockGenerator struct {
	mu          sync.Mutex
	analyzed    []domain.Listing
	openWebRuns int
	analyzeFn   func(ctx context.Context, listings []domain.Listing) (*domain.SearchResult, error)
	openWebFn   func(ctx context.Context) (*domain.SearchResult, error)
}

func (m *mockGenerator) Analyze(ctx context.Context, _ domain.SearchCriteria, listings []domain.Listing) (*domain.SearchResult, error) {
	m.mu.Lock()
	m.analyzed = listings
	m.mu.Unlock()
	if m.analyzeFn == nil {
		return &domain.SearchResult{Mode: domain.ModeAnalysis, Listings: listings, Summary: "ranked"}, nil
	}
	return m.analyzeFn(ctx, listings)
}

func (m *mockGenerator) OpenWeb(ctx context.Context, _ domain.SearchCriteria) (*domain.SearchResult, error) {
	m.mu.Lock()
	m.openWebRuns++
	m.mu.Unlock()
	if m.openWebFn == nil {
		return &domain.SearchResult{Mode: domain.ModeOpenWeb, Summary: "from the web"}, nil
	}
	return m.openWebFn(ctx)
}

type fixture struct {
	limiter   *mockLimiter
	cache     *mockCache
	scraper   *mockScraper
	generator *mockGenerator
	cfg       Config
}

func newFixture() *fixture {
	return &fixture{
		limiter:   &mockLimiter{},
		cache:     &mockCache{},
		scraper:   &mockScraper{},
		generator: &mockGenerator{},
		cfg: Config{
			Sources:   []string{"airbnb", "booking"},
			Deadline:  2 * time.Second,
			Heartbeat: time.Hour,
		},
	}
}

func (f *fixture) service() *Service {
	return New(f.limiter, f.cache, f.scraper, f.generator, f.cfg, zap.NewNop(),
		WithIDGenerator(func() string { return "res-1" }))
}

func parisCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Destination: "Paris",
		CheckIn:     domain.NewDate(2026, time.June, 1),
		CheckOut:    domain.NewDate(2026, time.June, 4),
		Adults:      2,
	}
}

func ptr(f float64) *float64 { return &f }

func parisScrape(context.Context) []domain.SourceResult {
	return []domain.SourceResult{
		domain.NewSourceResult("airbnb", []domain.Listing{
			{Source: "airbnb", Title: "Marais loft", URL: "https://www.airbnb.com/rooms/1", PricePerNight: ptr(140)},
			{Source: "airbnb", Title: "Canal studio", URL: "https://www.airbnb.com/rooms/2"},
		}, nil),
		domain.NewSourceResult("booking", nil, context.DeadlineExceeded),
	}
}
