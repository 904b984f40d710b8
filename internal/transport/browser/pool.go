// Package browser manages the shared headless browser used by the scrape stage.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/metrics"
)

var errExitedAfterLaunch = errors.New("browser exited right after launch")

// Browser is a running browser process. Alive reports false once the process
// has exited or its connection is gone.
type Browser interface {
	NewPage(ctx context.Context) (domain.Page, error)
	Alive() bool
	Close() error
}

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) { return f(ctx) }

// PoolConfig holds recycle and circuit-breaker limits.
type PoolConfig struct {
	MaxUses          int           // pages opened before recycle
	MaxAge           time.Duration // browser lifetime before recycle
	FailureThreshold uint32        // consecutive launch failures that open the breaker
	Cooldown         time.Duration // open-state duration before a trial launch
	LaunchTimeout    time.Duration
}

type instance struct {
	browser    Browser
	launchedAt time.Time
	uses       int
	inFlight   int
	broken     bool
	detached   bool // no new leases; closed when inFlight reaches zero
	closed     bool
}

// Pool shares one browser among concurrent scrapes. Launches are collapsed into a
// single in-flight attempt guarded by a circuit breaker. A browser that is due for
// recycling or has crashed stops taking new leases at once; it is closed when its
// last lease is released.
type Pool struct {
	mu       sync.Mutex
	cfg      PoolConfig
	launcher Launcher
	current  *instance
	closed   bool
	group    singleflight.Group
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// NewPool creates a pool. No browser is started until the first Acquire.
func NewPool(launcher Launcher, cfg PoolConfig, logger *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		cfg:      cfg,
		launcher: launcher,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "browser_pool")),
	}
	for _, opt := range opts {
		opt(p)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "browser-launch",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BrowserBreakerState.Set(float64(to))
			p.logger.Warn("Browser launch breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return p
}

// Lease is a hold on the shared browser. Release must be called exactly once;
// extra calls are ignored.
type Lease struct {
	pool *Pool
	inst *instance
	once sync.Once
}

// Acquire returns a lease on the shared browser, launching it if needed.
// It fails with domain.ErrCircuitOpen while the launch breaker is open and with
// domain.ErrBrowserUnavailable when the launch fails or the pool is shut down.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: pool is shut down", domain.ErrBrowserUnavailable)
		}
		if p.current != nil {
			if reason := p.retireReason(p.current); reason != "" {
				p.detachLocked(reason)
			}
		}
		if inst := p.current; inst != nil {
			inst.inFlight++
			p.mu.Unlock()
			return &Lease{pool: p, inst: inst}, nil
		}
		p.mu.Unlock()

		if err := p.launchShared(ctx); err != nil {
			return nil, err
		}
	}
}

// NewPage opens a page on the leased browser.
func (l *Lease) NewPage(ctx context.Context) (domain.Page, error) {
	l.pool.mu.Lock()
	l.inst.uses++
	l.pool.mu.Unlock()

	page, err := l.inst.browser.NewPage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.pool.markBroken(l.inst, err)
		}
		return nil, fmt.Errorf("open page: %w", err)
	}
	metrics.BrowserPagesInFlight.Inc()
	return &trackedPage{Page: page}, nil
}

// Release returns the lease. The last lease on a retired browser closes it.
func (l *Lease) Release() {
	l.once.Do(func() {
		p := l.pool
		p.mu.Lock()
		defer p.mu.Unlock()

		l.inst.inFlight--
		if l.inst.inFlight > 0 {
			return
		}
		if l.inst.detached {
			p.closeLocked(l.inst)
			return
		}
		if p.current == l.inst {
			if reason := p.retireReason(l.inst); reason != "" {
				p.detachLocked(reason)
			}
		}
	})
}

// State reports the launch breaker state: "closed", "half-open" or "open".
func (p *Pool) State() string {
	return p.breaker.State().String()
}

// Shutdown closes the live browser, if any. Later Acquire calls fail.
func (p *Pool) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.current == nil {
		return nil
	}
	inst := p.current
	p.current = nil
	inst.closed = true
	metrics.BrowserRecyclesTotal.WithLabelValues("shutdown").Inc()
	if err := inst.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// launchShared starts a browser unless another caller is already doing so.
// The launch itself is detached from ctx so one caller giving up does not fail the others.
func (p *Pool) launchShared(ctx context.Context) error {
	ch := p.group.DoChan("launch", func() (any, error) {
		b, err := p.breaker.Execute(func() (any, error) {
			launchCtx, cancel := context.WithTimeout(context.Background(), p.cfg.LaunchTimeout)
			defer cancel()
			browser, err := p.launcher.Launch(launchCtx)
			if err != nil {
				return nil, err //nolint:wrapcheck // wrapped by the caller
			}
			if !browser.Alive() {
				_ = browser.Close()
				return nil, errExitedAfterLaunch
			}
			return browser, nil
		})
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		browser := b.(Browser) //nolint:forcetypeassert // launcher returns Browser
		if p.closed {
			_ = browser.Close()
			return nil, fmt.Errorf("%w: pool is shut down", domain.ErrBrowserUnavailable)
		}
		p.current = &instance{browser: browser, launchedAt: p.now()}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrBrowserUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err == nil {
			if !res.Shared {
				metrics.BrowserLaunchesTotal.WithLabelValues("success").Inc()
				p.logger.Info("Browser launched")
			}
			return nil
		}
		if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
			metrics.BrowserLaunchesTotal.WithLabelValues("rejected").Inc()
			return domain.ErrCircuitOpen
		}
		if errors.Is(res.Err, domain.ErrBrowserUnavailable) {
			return res.Err
		}
		if !res.Shared {
			metrics.BrowserLaunchesTotal.WithLabelValues("error").Inc()
			p.logger.Error("Browser launch failed", zap.Error(res.Err))
		}
		return fmt.Errorf("%w: %w", domain.ErrBrowserUnavailable, res.Err)
	}
}

// retireReason reports why inst should take no new leases, or "" if it is usable.
func (p *Pool) retireReason(inst *instance) string {
	switch {
	case inst.broken || !inst.browser.Alive():
		return "crashed"
	case p.cfg.MaxUses > 0 && inst.uses >= p.cfg.MaxUses:
		return "uses"
	case p.cfg.MaxAge > 0 && p.now().Sub(inst.launchedAt) >= p.cfg.MaxAge:
		return "age"
	}
	return ""
}

// markBroken retires inst after a failed page open so the next Acquire relaunches.
func (p *Pool) markBroken(inst *instance, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst.broken = true
	if p.current == inst {
		p.logger.Warn("Browser failed to open a page", zap.Error(cause))
		p.detachLocked("crashed")
	}
}

// detachLocked stops handing out the current browser and closes it once idle.
// Caller holds p.mu.
func (p *Pool) detachLocked(reason string) {
	inst := p.current
	p.current = nil
	inst.detached = true
	metrics.BrowserRecyclesTotal.WithLabelValues(reason).Inc()
	p.logger.Info("Recycling browser",
		zap.String("reason", reason), zap.Int("uses", inst.uses),
		zap.Int("in_flight", inst.inFlight),
		zap.Duration("age", p.now().Sub(inst.launchedAt)))
	if inst.inFlight == 0 {
		p.closeLocked(inst)
	}
}

// closeLocked closes inst once. Caller holds p.mu.
func (p *Pool) closeLocked(inst *instance) {
	if inst.closed {
		return
	}
	inst.closed = true
	if err := inst.browser.Close(); err != nil {
		p.logger.Warn("Failed to close browser", zap.Error(err))
	}
}

// trackedPage keeps the in-flight page gauge accurate across double Close calls.
type trackedPage struct {
	domain.Page
	once sync.Once
}

func (t *trackedPage) Close() error {
	var err error
	t.once.Do(func() {
		metrics.BrowserPagesInFlight.Dec()
		err = t.Page.Close()
	})
	return err //nolint:wrapcheck // page errors pass through unchanged
}
