// Package scrape fans a search out to every source on one shared browser.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

var errExtractorPanic = errors.New("extractor panicked")

// Config bounds each source's work.
type Config struct {
	NavigationTimeout time.Duration
	ExtractionTimeout time.Duration
}

// Service scrapes sources concurrently, isolating failures per source.
type Service struct {
	pool       BrowserPool
	extractors Extractors
	cfg        Config
	logger     *zap.Logger
}

// New creates a scrape orchestrator.
func New(pool BrowserPool, extractors Extractors, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		pool:       pool,
		extractors: extractors,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "scrape")),
	}
}

// ScrapeAll scrapes every target and returns one result per target in input order.
// It never fails as a whole: per-source errors land in the corresponding result.
func (s *Service) ScrapeAll(ctx context.Context, criteria domain.SearchCriteria, targets []string) []domain.SourceResult {
	results := make([]domain.SourceResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	session, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("browser unavailable, skipping scrape", zap.Error(err))
		for i, target := range targets {
			results[i] = domain.NewSourceResult(target, nil, err)
			metrics.ScrapeSourceTotal.WithLabelValues(target, "error").Inc()
		}
		return results
	}
	defer session.Release()

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			results[i] = s.scrapeOne(ctx, session, criteria, target)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) scrapeOne(
	ctx context.Context, session Session, criteria domain.SearchCriteria, source string,
) domain.SourceResult {
	start := time.Now()
	listings, err := s.extract(ctx, session, criteria, source)
	metrics.ScrapeSourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	res := domain.NewSourceResult(source, listings, err)
	switch {
	case err != nil:
		metrics.ScrapeSourceTotal.WithLabelValues(source, "error").Inc()
		s.logger.Warn("source failed", zap.String("source", source), zap.Error(err))
	case !res.Success:
		metrics.ScrapeSourceTotal.WithLabelValues(source, "empty").Inc()
		s.logger.Info("source returned no listings", zap.String("source", source))
	default:
		metrics.ScrapeSourceTotal.WithLabelValues(source, "success").Inc()
		s.logger.Debug("source scraped",
			zap.String("source", source),
			zap.Int("listings", len(listings)),
			zap.Duration("took", time.Since(start)),
		)
	}
	return res
}

func (s *Service) extract(
	ctx context.Context, session Session, criteria domain.SearchCriteria, source string,
) (listings []domain.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			listings, err = nil, fmt.Errorf("%w: %v", errExtractorPanic, r)
		}
	}()

	extractor, err := s.extractors.Get(source)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrUnknownSource and the name
	}

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.logger.Debug("page close failed", zap.String("source", source), zap.Error(cerr))
		}
	}()

	_, err = bounded(ctx, s.cfg.NavigationTimeout, func(navCtx context.Context) ([]domain.Listing, error) {
		return nil, page.Navigate(navCtx, extractor.SearchURL(criteria))
	})
	if err != nil {
		return nil, stageError("navigation", s.cfg.NavigationTimeout, err)
	}

	listings, err = bounded(ctx, s.cfg.ExtractionTimeout, func(extCtx context.Context) ([]domain.Listing, error) {
		return extractor.Extract(extCtx, page)
	})
	if err != nil {
		return nil, stageError("extraction", s.cfg.ExtractionTimeout, err)
	}
	return listings, nil
}

type stageResult struct {
	listings []domain.Listing
	err      error
}

// bounded runs fn under a timeout and returns when the timeout fires even if fn
// ignores its context. An abandoned fn finishes in the background; its page is
// closed underneath it by the caller.
func bounded(
	ctx context.Context, limit time.Duration, fn func(context.Context) ([]domain.Listing, error),
) ([]domain.Listing, error) {
	stageCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan stageResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageResult{err: fmt.Errorf("%w: %v", errExtractorPanic, r)}
			}
		}()
		listings, err := fn(stageCtx)
		done <- stageResult{listings: listings, err: err}
	}()

	select {
	case res := <-done:
		return res.listings, res.err
	case <-stageCtx.Done():
		return nil, stageCtx.Err() //nolint:wrapcheck // stageError adds the stage
	}
}

func stageError(stage string, limit time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", stage, limit, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
