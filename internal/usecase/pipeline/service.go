// Package pipeline resolves a search end to end: rate limit, tiered cache,
// scraping, generative analysis or open-web fallback, and cache write-back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/geo"
	"github.com/kailas-cloud/staydex/internal/logger"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

const (
	writeBackTimeout = 5 * time.Second
	defaultDeadline  = 60 * time.Second
	defaultHeartbeat = 15 * time.Second
)

// Config holds resolution settings.
type Config struct {
	Sources   []string
	Deadline  time.Duration
	Heartbeat time.Duration
}

// Service is the search pipeline.
type Service struct {
	limiter   RateLimiter
	cache     Cache
	scraper   Scraper
	generator Generator
	cfg       Config
	logger    *zap.Logger
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides resolution id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates the pipeline.
func New(
	limiter RateLimiter, cache Cache, scraper Scraper, generator Generator,
	cfg Config, logger *zap.Logger, opts ...Option,
) *Service {
	s := &Service{
		limiter:   limiter,
		cache:     cache,
		scraper:   scraper,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "pipeline")),
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// progressFunc reports a stage transition. It must not block.
type progressFunc func(stage domain.Stage, message string, percent int)

func noProgress(domain.Stage, string, int) {}

// Resolve answers one search. Invalid criteria, rate limiting, the global
// deadline and an unavailable provider with nothing scraped are the only errors.
func (s *Service) Resolve(ctx context.Context, clientID string, c domain.SearchCriteria) (*domain.SearchResult, error) {
	if err := s.admit(ctx, clientID, c); err != nil {
		return nil, err
	}
	return s.resolveWithDeadline(ctx, c, noProgress)
}

func (s *Service) admit(ctx context.Context, clientID string, c domain.SearchCriteria) error {
	if err := c.Validate(); err != nil {
		metrics.PipelineResolutionsTotal.WithLabelValues("invalid").Inc()
		return err //nolint:wrapcheck // ValidationError is already public
	}
	if err := s.limiter.Allow(ctx, clientID); err != nil {
		metrics.PipelineResolutionsTotal.WithLabelValues("rate_limited").Inc()
		return err //nolint:wrapcheck // RateLimitError carries retry-after
	}
	return nil
}

type outcome struct {
	result *domain.SearchResult
	err    error
}

// resolveWithDeadline races the resolution against the global deadline.
// When the deadline wins the work is cancelled and its result discarded;
// pages and the browser lease are released by their own cleanup paths.
func (s *Service) resolveWithDeadline(
	ctx context.Context, c domain.SearchCriteria, progress progressFunc,
) (*domain.SearchResult, error) {
	start := time.Now()
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := s.resolve(workCtx, c, progress)
		done <- outcome{result: res, err: err}
	}()

	timer := time.NewTimer(s.cfg.Deadline)
	defer timer.Stop()

	select {
	case o := <-done:
		metrics.PipelineResolutionDuration.Observe(time.Since(start).Seconds())
		if o.err != nil {
			metrics.PipelineResolutionsTotal.WithLabelValues("error").Inc()
		}
		return o.result, o.err
	case <-timer.C:
		metrics.PipelineResolutionsTotal.WithLabelValues("timeout").Inc()
		logger.FromContextOr(ctx, s.logger).Warn("resolution deadline exceeded",
			zap.String("destination", c.Destination),
			zap.Duration("deadline", s.cfg.Deadline),
		)
		return nil, fmt.Errorf("%w after %s", domain.ErrResolutionTimeout, s.cfg.Deadline)
	case <-ctx.Done():
		metrics.PipelineResolutionsTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("resolution abandoned: %w", ctx.Err())
	}
}

func (s *Service) resolve(ctx context.Context, c domain.SearchCriteria, progress progressFunc) (*domain.SearchResult, error) {
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("destination", c.Destination))
	resolutionID := s.newID()

	progress(domain.StageCache, "checking cache", 5)
	if cached, ok := s.cache.Get(ctx, c); ok {
		cached.ResolutionID = resolutionID
		metrics.PipelineResolutionsTotal.WithLabelValues(string(cached.CacheTier)).Inc()
		log.Debug("served from cache", zap.String("tier", string(cached.CacheTier)))
		return cached, nil
	}

	progress(domain.StageScrape, fmt.Sprintf("searching %d sources", len(s.cfg.Sources)), 15)
	scraped := s.scraper.ScrapeAll(ctx, c, s.cfg.Sources)
	listings := withinRadius(c, collectListings(scraped))
	progress(domain.StageScrape, fmt.Sprintf("found %d listings", len(listings)), 50)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolution abandoned: %w", err)
	}

	var (
		res *domain.SearchResult
		err error
	)
	if len(listings) > 0 {
		progress(domain.StageAnalysis, "ranking listings", 60)
		res, err = s.generator.Analyze(ctx, c, listings)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("resolution abandoned: %w", ctx.Err())
			}
			log.Warn("analysis unavailable, returning scraped listings", zap.Error(err))
			res = unrankedResult(c, listings)
		}
	} else {
		progress(domain.StageOpenWeb, "searching the open web", 60)
		res, err = s.generator.OpenWeb(ctx, c)
		if err != nil {
			log.Error("open web fallback failed with nothing scraped", zap.Error(err))
			return nil, err //nolint:wrapcheck // already ErrUpstreamUnavailable or a context error
		}
		if !res.Usable() && !res.ParseFailed {
			return nil, domain.ErrNoResults
		}
	}

	res.ResolutionID = resolutionID
	res.Destination = c.Destination
	res.CacheTier = domain.TierNone
	res.Sources = sourceOutcomes(scraped)
	metrics.PipelineResolutionsTotal.WithLabelValues(string(res.Mode)).Inc()

	progress(domain.StageFinalize, "saving results", 90)
	if res.Usable() && !res.ParseFailed {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
		s.cache.Put(writeCtx, c, res)
		cancel()
	}

	log.Info("search resolved",
		zap.String("mode", string(res.Mode)),
		zap.Int("listings", len(res.Listings)),
		zap.Bool("parse_failed", res.ParseFailed),
	)
	return res, nil
}

func unrankedResult(c domain.SearchCriteria, listings []domain.Listing) *domain.SearchResult {
	return &domain.SearchResult{
		Destination: c.Destination,
		Mode:        domain.ModeAnalysis,
		Listings:    listings,
		CacheTier:   domain.TierNone,
		GeneratedAt: time.Now().UTC(),
	}
}

func collectListings(results []domain.SourceResult) []domain.Listing {
	var out []domain.Listing
	for _, r := range results {
		if r.Success {
			out = append(out, r.Listings...)
		}
	}
	return out
}

// withinRadius drops listings whose known coordinates fall outside the
// requested radius. Listings without coordinates are kept.
func withinRadius(c domain.SearchCriteria, listings []domain.Listing) []domain.Listing {
	if c.Location == nil || c.RadiusKM <= 0 {
		return listings
	}
	out := listings[:0]
	for _, l := range listings {
		if l.Lat != nil && l.Lng != nil &&
			!geo.WithinRadius(c.Location.Lat, c.Location.Lng, *l.Lat, *l.Lng, c.RadiusKM) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func sourceOutcomes(results []domain.SourceResult) []domain.SourceOutcome {
	out := make([]domain.SourceOutcome, len(results))
	for i, r := range results {
		out[i] = domain.SourceOutcome{
			Source:   r.Source,
			Success:  r.Success,
			Listings: len(r.Listings),
			Error:    publicSourceError(r),
		}
	}
	return out
}

// publicSourceError keeps per-source failures coarse; browser and extractor
// internals stay in logs.
func publicSourceError(r domain.SourceResult) string {
	switch {
	case r.Success:
		return ""
	case r.Err == nil:
		return r.Error
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(r.Err, domain.ErrCircuitOpen), errors.Is(r.Err, domain.ErrBrowserUnavailable):
		return "browser unavailable"
	case errors.Is(r.Err, domain.ErrUnknownSource):
		return "unknown source"
	default:
		return "failed"
	}
}
