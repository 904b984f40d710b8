// Package chi serves the search API over HTTP: single-shot JSON and a
// server-sent event stream of resolution progress.
package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/logger"
	healthuc "github.com/kailas-cloud/staydex/internal/usecase/health"
)

// maxBodyBytes caps a criteria document, both as a body and as a decoded query.
const maxBodyBytes = 64 << 10

// SearchService resolves criteria for a client.
type SearchService interface {
	Resolve(ctx context.Context, clientID string, c domain.SearchCriteria) (*domain.SearchResult, error)
	Stream(ctx context.Context, clientID string, c domain.SearchCriteria) <-chan domain.Event
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ClientResolver derives the rate-limit identity of a request.
type ClientResolver interface {
	Resolve(remoteAddr, forwardedFor, realIP string) string
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, payload domain.ErrorPayload) bool

// Server holds the HTTP handlers of the search API.
type Server struct {
	search        SearchService
	health        HealthChecker
	clients       ClientResolver
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, health HealthChecker, clients ClientResolver, logger *zap.Logger) *Server {
	s := &Server{
		search:  search,
		health:  health,
		clients: clients,
		logger:  logger.With(zap.String("component", "http")),
	}
	s.errorHandlers = []errorHandler{
		rateLimitHandler,
		sentinelHandler(domain.ErrInvalidCriteria, http.StatusBadRequest),
		sentinelHandler(domain.ErrResolutionTimeout, http.StatusGatewayTimeout),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrNoResults, http.StatusNotFound),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Get("/v1/search/stream", s.SearchStream)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var c domain.SearchCriteria
	if err := decodeCriteria(http.MaxBytesReader(w, r.Body, maxBodyBytes), &c); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	result, err := s.search.Resolve(r.Context(), s.clientID(r), c)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SearchStream handles GET /v1/search/stream?q=<base64 JSON criteria>.
func (s *Server) SearchStream(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r.URL.Query().Get("q"))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := s.search.Stream(ctx, s.clientID(r), c)
	sse := newEventWriter(w)
	sse.open()

	for ev := range events {
		if err := sse.write(ev); err != nil {
			logger.FromContextOr(ctx, s.logger).Debug("stream client gone", zap.Error(err))
			return
		}
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

func (s *Server) clientID(r *http.Request) string {
	return s.clients.Resolve(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP"))
}

// decodeCriteria reads one JSON criteria document.
func decodeCriteria(body io.Reader, c *domain.SearchCriteria) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(c); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return domain.NewValidationError("body", "must be a JSON search criteria object")
	}
	return nil
}

// criteriaFromQuery decodes the q parameter, accepting URL-safe and standard base64
// with or without padding.
func criteriaFromQuery(q string) (domain.SearchCriteria, error) {
	var c domain.SearchCriteria
	q = strings.TrimSpace(q)
	if q == "" {
		return c, domain.NewValidationError("q", "is required")
	}
	if len(q) > base64.StdEncoding.EncodedLen(maxBodyBytes) {
		return c, domain.NewValidationError("q", "is too long")
	}

	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding,
	} {
		if raw, err = enc.DecodeString(q); err == nil {
			break
		}
	}
	if err != nil {
		return c, domain.NewValidationError("q", "must be base64 encoded")
	}

	return c, decodeCriteria(strings.NewReader(string(raw)), &c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, payload domain.ErrorPayload) {
	writeJSON(w, status, payload)
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, payload domain.ErrorPayload) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, payload)
		return true
	}
}

// rateLimitHandler handles ErrRateLimited with a Retry-After header in whole seconds.
func rateLimitHandler(w http.ResponseWriter, err error, payload domain.ErrorPayload) bool {
	if !errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		secs := max(int(math.Ceil(rl.RetryAfter.Seconds())), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeError(w, http.StatusTooManyRequests, payload)
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	payload := domain.PublicError(err)
	for _, h := range s.errorHandlers {
		if h(w, err, payload) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, payload)
}
