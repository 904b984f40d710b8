// Package generative answers searches through an external chat model, either by
// ranking scraped listings (analysis) or by searching the open web.
package generative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Config controls provider calls.
type Config struct {
	Timeout        time.Duration // per call, not per resolution
	MaxRetries     int
	BackoffBase    time.Duration
	WebSearch      bool
	AllowedDomains []string
}

// Service is the generative fallback.
type Service struct {
	client Completer
	cfg    Config
	allow  *allowList
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the generative fallback.
func New(client Completer, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s := &Service{
		client: client,
		cfg:    cfg,
		allow:  newAllowList(cfg.AllowedDomains),
		logger: logger.With(zap.String("component", "generative")),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenWeb asks the provider for listings matching c without scraped input.
// A response that cannot be parsed yields a result with ParseFailed set and no error.
func (s *Service) OpenWeb(ctx context.Context, c domain.SearchCriteria) (*domain.SearchResult, error) {
	text, err := s.call(ctx, domain.ModeOpenWeb, openWebPrompt(c, s.cfg.WebSearch))
	if err != nil {
		return nil, err
	}

	res := s.newResult(c, domain.ModeOpenWeb)
	parsed, ok := parseResponse(text)
	if !ok {
		s.parseFailed(domain.ModeOpenWeb, text)
		res.ParseFailed = true
		return res, nil
	}

	res.Summary = normaliseSummary(parsed.Summary)
	res.Listings = s.sanitize(parsed.toListings())
	metrics.GenerativeRequestsTotal.WithLabelValues(string(domain.ModeOpenWeb), "success").Inc()
	return res, nil
}

// Analyze asks the provider to rank and summarize scraped listings. Listed
// facts always come from the scraped set; the model only orders them and adds
// per-listing notes. When the response cannot be parsed the scraped listings
// are returned unranked with ParseFailed set.
func (s *Service) Analyze(
	ctx context.Context, c domain.SearchCriteria, listings []domain.Listing,
) (*domain.SearchResult, error) {
	text, err := s.call(ctx, domain.ModeAnalysis, analysisPrompt(c, listings))
	if err != nil {
		return nil, err
	}

	res := s.newResult(c, domain.ModeAnalysis)
	parsed, ok := parseResponse(text)
	if !ok {
		s.parseFailed(domain.ModeAnalysis, text)
		res.ParseFailed = true
		res.Listings = listings
		return res, nil
	}

	res.Summary = normaliseSummary(parsed.Summary)
	res.Listings = s.sanitize(rankListings(listings, parsed.Listings))
	metrics.GenerativeRequestsTotal.WithLabelValues(string(domain.ModeAnalysis), "success").Inc()
	return res, nil
}

// call runs the prompt with a per-call timeout, retrying retryable failures
// with exponential backoff.
func (s *Service) call(ctx context.Context, mode domain.Mode, p domain.Prompt) (string, error) {
	modeLabel := string(mode)
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.GenerativeRetriesTotal.WithLabelValues(modeLabel).Inc()
			backoff := s.cfg.BackoffBase << (attempt - 1)
			s.logger.Info("retrying provider call",
				zap.String("mode", modeLabel),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("waiting to retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		text, err := s.client.Complete(callCtx, p)
		cancel()
		metrics.GenerativeRequestDuration.WithLabelValues(modeLabel).Observe(time.Since(start).Seconds())

		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.GenerativeRequestsTotal.WithLabelValues(modeLabel, "cancelled").Inc()
			return "", fmt.Errorf("provider call abandoned: %w", ctx.Err())
		}
		if !domain.IsRetryable(err) {
			break
		}
	}

	metrics.GenerativeRequestsTotal.WithLabelValues(modeLabel, "error").Inc()
	s.logger.Warn("provider unavailable", zap.String("mode", modeLabel), zap.Error(lastErr))

	if errors.Is(lastErr, domain.ErrUpstreamUnavailable) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, lastErr)
}

func (s *Service) newResult(c domain.SearchCriteria, mode domain.Mode) *domain.SearchResult {
	return &domain.SearchResult{
		Destination: c.Destination,
		Mode:        mode,
		Listings:    []domain.Listing{},
		CacheTier:   domain.TierNone,
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Service) parseFailed(mode domain.Mode, text string) {
	metrics.GenerativeParseFailuresTotal.WithLabelValues(string(mode)).Inc()
	metrics.GenerativeRequestsTotal.WithLabelValues(string(mode), "parse_failed").Inc()
	s.logger.Warn("provider response is not parseable JSON",
		zap.String("mode", string(mode)),
		zap.Int("length", len(text)),
	)
}
