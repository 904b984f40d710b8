package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

func TestResolve_ParisScrapeAndAnalysis(t *testing.T) {
	f := newFixture()
	f.scraper.scrapeFn = parisScrape

	res, err := f.service().Resolve(context.Background(), "1.2.3.4", parisCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ResolutionID != "res-1" || res.Mode != domain.ModeAnalysis || res.CacheTier != domain.TierNone {
		t.Errorf("result = %+v", res)
	}
	if res.Destination != "Paris" || len(res.Listings) != 2 || res.Summary != "ranked" {
		t.Errorf("result = %+v", res)
	}
	if len(f.generator.analyzed) != 2 || f.generator.openWebRuns != 0 {
		t.Errorf("analyzed = %d, open web runs = %d", len(f.generator.analyzed), f.generator.openWebRuns)
	}
	if len(f.scraper.targets) != 2 || f.scraper.targets[0] != "airbnb" {
		t.Errorf("targets = %v", f.scraper.targets)
	}

	if len(res.Sources) != 2 {
		t.Fatalf("sources = %+v", res.Sources)
	}
	if !res.Sources[0].Success || res.Sources[0].Listings != 2 {
		t.Errorf("airbnb outcome = %+v", res.Sources[0])
	}
	if res.Sources[1].Success || res.Sources[1].Error != "timed out" {
		t.Errorf("booking outcome = %+v", res.Sources[1])
	}

	if f.cache.putCount() != 1 {
		t.Fatalf("puts = %d, want 1", f.cache.putCount())
	}
	if _, ok := f.cache.putCtx[0].Deadline(); !ok {
		t.Error("write-back must be bounded")
	}
}

func TestResolve_CacheHitShortCircuits(t *testing.T) {
	f := newFixture()
	f.cache.hit = &domain.SearchResult{ResolutionID: "old", Mode: domain.ModeAnalysis, CacheTier: domain.TierPersistent, Summary: "cached"}

	res, err := f.service().Resolve(context.Background(), "c", parisCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CacheTier != domain.TierPersistent || res.ResolutionID != "res-1" || res.Summary != "cached" {
		t.Errorf("result = %+v", res)
	}
	if f.scraper.calls != 0 || f.cache.putCount() != 0 {
		t.Errorf("scrape calls = %d, puts = %d", f.scraper.calls, f.cache.putCount())
	}
}

func TestResolve_NothingScrapedUsesOpenWeb(t *testing.T) {
	f := newFixture()
	f.scraper.scrapeFn = func(context.Context) []domain.SourceResult {
		return []domain.SourceResult{domain.NewSourceResult("airbnb", nil, nil)}
	}

	res, err := f.service().Resolve(context.Background(), "c", parisCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != domain.ModeOpenWeb || f.generator.openWebRuns != 1 {
		t.Errorf("result = %+v, runs = %d", res, f.generator.openWebRuns)
	}
	if res.Sources[0].Error != "no listings found" {
		t.Errorf("outcome = %+v", res.Sources[0])
	}
	if f.cache.putCount() != 1 {
		t.Errorf("puts = %d", f.cache.putCount())
	}
}

func TestResolve_OpenWebFailureIsUserVisible(t *testing.T) {
	f := newFixture()
	f.generator.openWebFn = func(context.Context) (*domain.SearchResult, error) {
		return nil, &domain.ProviderError{StatusCode: 401, Err: errors.New("invalid api key sk-123")}
	}

	_, err := f.service().Resolve(context.Background(), "c", parisCriteria())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if p := domain.PublicError(err); p.Code != domain.CodeUnavailable || p.Message != "search is temporarily unavailable" {
		t.Errorf("public error = %+v", p)
	}
	if f.cache.putCount() != 0 {
		t.Error("failures must not be cached")
	}
}

func TestResolve_AnalysisFailureDegradesToScraped(t *testing.T) {
	f := newFixture()
	f.scraper.scrapeFn = parisScrape
	f.generator.analyzeFn = func(context.Context, []domain.Listing) (*domain.SearchResult, error) {
		return nil, domain.ErrUpstreamUnavailable
	}

	res, err := f.service().Resolve(context.Background(), "c", parisCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != domain.ModeAnalysis || len(res.Listings) != 2 || res.Summary != "" {
		t.Errorf("result = %+v", res)
	}
	if f.generator.openWebRuns != 0 {
		t.Error("open web must not run when listings were scraped")
	}
}

func TestResolve_ParseFailureReturnedButNotCached(t *testing.T) {
	f := newFixture()
	f.generator.openWebFn = func(context.Context) (*domain.SearchResult, error) {
		return &domain.SearchResult{Mode: domain.ModeOpenWeb, ParseFailed: true}, nil
	}

	res, err := f.service().Resolve(context.Background(), "c", parisCriteria())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ParseFailed {
		t.Errorf("result = %+v", res)
	}
	if f.cache.putCount() != 0 {
		t.Error("parse failures must not be cached")
	}
}

func TestResolve_EmptyOpenWebIsNoResults(t *testing.T) {
	f := newFixture()
	f.generator.openWebFn = func(context.Context) (*domain.SearchResult, error) {
		return &domain.SearchResult{Mode: domain.ModeOpenWeb}, nil
	}

	if _, err := f.service().Resolve(context.Background(), "c", parisCriteria()); !errors.Is(err, domain.ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

func TestResolve_RateLimited(t *testing.T) {
	f := newFixture()
	f.limiter.allowFn = func(string) error { return &domain.RateLimitError{RetryAfter: 30 * time.Second} }

	_, err := f.service().Resolve(context.Background(), "c", parisCriteria())

	var rl *domain.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 30*time.Second {
		t.Fatalf("err = %v", err)
	}
	if f.scraper.calls != 0 {
		t.Error("rate-limited request must not scrape")
	}
}

func TestResolve_InvalidCriteriaRejectedFirst(t *testing.T) {
	f := newFixture()

	_, err := f.service().Resolve(context.Background(), "c", domain.SearchCriteria{Destination: "Paris"})
	if !errors.Is(err, domain.ErrInvalidCriteria) {
		t.Fatalf("err = %v", err)
	}
	if f.limiter.calls != 0 {
		t.Error("invalid criteria must not consume rate limit")
	}
}

func TestResolve_GlobalDeadline(t *testing.T) {
	f := newFixture()
	f.cfg.Deadline = 50 * time.Millisecond
	released := make(chan struct{})
	f.scraper.scrapeFn = func(ctx context.Context) []domain.SourceResult {
		<-ctx.Done()
		close(released)
		return nil
	}

	start := time.Now()
	_, err := f.service().Resolve(context.Background(), "c", parisCriteria())

	if !errors.Is(err, domain.ErrResolutionTimeout) {
		t.Fatalf("err = %v, want ErrResolutionTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v", elapsed)
	}
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("abandoned work was not signalled to stop")
	}
	if f.cache.putCount() != 0 {
		t.Error("timed-out work must not be cached")
	}
}

func TestResolve_GeoRadiusFilter(t *testing.T) {
	f := newFixture()
	f.scraper.scrapeFn = func(context.Context) []domain.SourceResult {
		return []domain.SourceResult{domain.NewSourceResult("airbnb", []domain.Listing{
			{Title: "near", URL: "u1", Lat: ptr(48.857), Lng: ptr(2.352)},
			{Title: "far", URL: "u2", Lat: ptr(43.296), Lng: ptr(5.369)},
			{Title: "unknown", URL: "u3"},
		}, nil)}
	}
	c := parisCriteria()
	c.Location = &domain.GeoPoint{Lat: 48.8566, Lng: 2.3522}
	c.RadiusKM = 10

	res, err := f.service().Resolve(context.Background(), "c", c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Listings) != 2 || res.Listings[0].Title != "near" || res.Listings[1].Title != "unknown" {
		t.Errorf("listings = %+v", res.Listings)
	}
}

func TestPublicSourceError(t *testing.T) {
	tests := []struct {
		r    domain.SourceResult
		want string
	}{
		{domain.NewSourceResult("a", []domain.Listing{{}}, nil), ""},
		{domain.NewSourceResult("a", nil, nil), "no listings found"},
		{domain.NewSourceResult("a", nil, domain.ErrCircuitOpen), "browser unavailable"},
		{domain.NewSourceResult("a", nil, domain.ErrUnknownSource), "unknown source"},
		{domain.NewSourceResult("a", nil, errors.New("chrome: websocket closed")), "failed"},
	}
	for _, tt := range tests {
		if got := publicSourceError(tt.r); got != tt.want {
			t.Errorf("publicSourceError(%v) = %q, want %q", tt.r.Err, got, tt.want)
		}
	}
}
