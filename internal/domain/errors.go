package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCriteria signals malformed or out-of-range search criteria.
	ErrInvalidCriteria = errors.New("invalid search criteria")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrResolutionTimeout signals that the global resolution deadline fired.
	ErrResolutionTimeout = errors.New("search timed out")
	// ErrUpstreamUnavailable signals that the generative provider could not serve the request.
	ErrUpstreamUnavailable = errors.New("search is temporarily unavailable")
	// ErrCircuitOpen signals that browser launches are suspended after repeated failures.
	ErrCircuitOpen = errors.New("browser launch circuit open")
	// ErrBrowserUnavailable signals that no browser could be obtained.
	ErrBrowserUnavailable = errors.New("browser unavailable")
	// ErrNoResults signals that neither scraping nor the fallback produced listings.
	ErrNoResults = errors.New("no results")
	// ErrUnknownSource signals a scrape target without a registered extractor.
	ErrUnknownSource = errors.New("unknown source")
	// ErrCacheMiss signals that a cache tier holds no live entry for a key.
	ErrCacheMiss = errors.New("cache miss")
)

// ValidationError wraps ErrInvalidCriteria with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidCriteria.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidCriteria }

// NewValidationError creates a criteria validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitError wraps ErrRateLimited with the time until the window resets.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ProviderError describes a failed call to the generative provider.
// It unwraps to ErrUpstreamUnavailable so callers never see provider text.
type ProviderError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generative provider (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generative provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrUpstreamUnavailable, e.Err} }

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
