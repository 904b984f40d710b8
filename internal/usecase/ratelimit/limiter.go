// Package ratelimit implements the per-client fixed-window request limiter.
package ratelimit

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

const (
	persistTimeout       = 2 * time.Second
	defaultFlushInterval = time.Second
	defaultMaxPending    = 10_000
)

type clientWindow struct {
	clientID string
	count    int
	resetAt  time.Time
	el       *list.Element
}

type windowKey struct {
	clientID string
	resetAt  time.Time
}

// Limiter is an in-memory fixed-window limiter with optional write-behind persistence.
// The hot path never waits on the store: increments are queued and flushed by Run.
type Limiter struct {
	mu         sync.Mutex
	window     time.Duration
	max        int
	maxEntries int
	entries    map[string]*clientWindow
	order      *list.List // insertion order; front is oldest, and therefore earliest to reset
	now        func() time.Time
	logger     *zap.Logger

	store         CounterStore
	flushInterval time.Duration
	maxPending    int
	pendingMu     sync.Mutex
	pending       map[windowKey]int
	dropped       int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithStore attaches write-behind persistence.
func WithStore(s CounterStore) Option {
	return func(l *Limiter) { l.store = s }
}

// WithFlushInterval sets how often queued increments reach the store.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Limiter) { l.flushInterval = d }
}

// WithMaxPending bounds the number of distinct windows queued between flushes.
// Increments for new windows beyond it are dropped.
func WithMaxPending(n int) Option {
	return func(l *Limiter) { l.maxPending = n }
}

// New creates a limiter allowing max requests per window per client,
// tracking at most maxEntries clients.
func New(window time.Duration, maxRequests, maxEntries int, logger *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		window:     window,
		max:        maxRequests,
		maxEntries: maxEntries,
		entries:    make(map[string]*clientWindow),
		order:      list.New(),
		now:        time.Now,
		logger:     logger.With(zap.String("component", "ratelimit")),

		flushInterval: defaultFlushInterval,
		maxPending:    defaultMaxPending,
		pending:       make(map[windowKey]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore loads active windows from the store. Counters already tracked in memory win.
func (l *Limiter) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	active, err := l.store.LoadActive(ctx, l.now())
	if err != nil {
		return err //nolint:wrapcheck // store errors are already wrapped
	}

	sort.Slice(active, func(i, j int) bool { return active[i].WindowResetAt.Before(active[j].WindowResetAt) })

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range active {
		if _, ok := l.entries[e.ClientID]; ok {
			continue
		}
		l.insert(e.ClientID, e.Count, e.WindowResetAt)
	}
	l.evictOverCap()
	metrics.RateLimitTrackedClients.Set(float64(len(l.entries)))

	l.logger.Info("Rate limit windows restored", zap.Int("clients", len(active)))
	return nil
}

// Allow counts a request for clientID. It returns nil when admitted and a
// *domain.RateLimitError carrying the time until the window resets otherwise.
func (l *Limiter) Allow(_ context.Context, clientID string) error {
	l.mu.Lock()
	now := l.now()
	l.evictExpired(now)

	w, ok := l.entries[clientID]
	if !ok || !now.Before(w.resetAt) {
		if ok {
			l.remove(w)
		}
		w = l.insert(clientID, 1, now.Add(l.window))
		l.evictOverCap()
	} else {
		w.count++
	}
	count, resetAt := w.count, w.resetAt
	metrics.RateLimitTrackedClients.Set(float64(len(l.entries)))
	l.mu.Unlock()

	l.enqueue(clientID, resetAt)

	if count > l.max {
		metrics.RateLimitDecisionsTotal.WithLabelValues("denied").Inc()
		return &domain.RateLimitError{RetryAfter: resetAt.Sub(now)}
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	return nil
}

// Run flushes queued increments every flush interval until ctx is done, then
// flushes once more with a fresh deadline.
func (l *Limiter) Run(ctx context.Context) {
	if l.store == nil {
		return
	}
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			l.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(ctx, persistTimeout)
			l.Flush(flushCtx)
			cancel()
		}
	}
}

// Flush writes queued increments to the store. A failed batch is logged and discarded.
func (l *Limiter) Flush(ctx context.Context) {
	if l.store == nil {
		return
	}
	l.pendingMu.Lock()
	pending, dropped := l.pending, l.dropped
	l.pending = make(map[windowKey]int, len(pending))
	l.dropped = 0
	l.pendingMu.Unlock()

	if dropped > 0 {
		l.logger.Warn("Rate limit increments dropped, write-behind queue full", zap.Int("dropped", dropped))
	}
	if len(pending) == 0 {
		return
	}

	batch := make([]domain.RateLimitEntry, 0, len(pending))
	for k, n := range pending {
		batch = append(batch, domain.RateLimitEntry{ClientID: k.clientID, Count: n, WindowResetAt: k.resetAt})
	}
	if err := l.store.Increment(ctx, batch); err != nil {
		l.logger.Warn("Failed to persist rate limit counters",
			zap.Int("windows", len(batch)), zap.Error(err))
	}
}

func (l *Limiter) enqueue(clientID string, resetAt time.Time) {
	if l.store == nil {
		return
	}
	key := windowKey{clientID: clientID, resetAt: resetAt}

	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	if _, ok := l.pending[key]; !ok && len(l.pending) >= l.maxPending {
		l.dropped++
		return
	}
	l.pending[key]++
}

func (l *Limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) insert(clientID string, count int, resetAt time.Time) *clientWindow {
	w := &clientWindow{clientID: clientID, count: count, resetAt: resetAt}
	w.el = l.order.PushBack(w)
	l.entries[clientID] = w
	return w
}

func (l *Limiter) remove(w *clientWindow) {
	l.order.Remove(w.el)
	delete(l.entries, w.clientID)
}

// evictExpired drops windows that have ended. Windows are appended with a
// constant length, so expired ones cluster at the front.
func (l *Limiter) evictExpired(now time.Time) {
	for el := l.order.Front(); el != nil; el = l.order.Front() {
		w := el.Value.(*clientWindow) //nolint:forcetypeassert // list only holds *clientWindow
		if now.Before(w.resetAt) {
			return
		}
		l.remove(w)
	}
}

func (l *Limiter) evictOverCap() {
	if l.maxEntries <= 0 {
		return
	}
	for len(l.entries) > l.maxEntries {
		l.remove(l.order.Front().Value.(*clientWindow)) //nolint:forcetypeassert // list only holds *clientWindow
	}
}
