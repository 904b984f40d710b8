package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// ChromeConfig holds Chrome process settings.
type ChromeConfig struct {
	ExecPath  string // empty = chromedp default lookup
	Headless  bool
	UserAgent string
}

// ChromeLauncher starts Chrome through chromedp.
type ChromeLauncher struct {
	cfg    ChromeConfig
	filter RequestFilter
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher whose pages abort requests matched by filter.
func NewChromeLauncher(cfg ChromeConfig, filter RequestFilter, logger *zap.Logger) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg, filter: filter, logger: logger}
}

// Launch starts a browser process and waits until it is ready or ctx expires.
// The process outlives ctx; it ends on Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		filter:      l.filter,
		logger:      l.logger,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	filter      RequestFilter
	logger      *zap.Logger
}

// NewPage opens a tab with request interception enabled.
func (b *chromeBrowser) NewPage(ctx context.Context) (domain.Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if paused, ok := ev.(*fetch.EventRequestPaused); ok {
			go b.handlePaused(tabCtx, paused)
		}
	})

	page := &chromePage{ctx: tabCtx, cancel: cancel}
	if err := page.run(ctx, fetch.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("enable request interception: %w", err)
	}
	return page, nil
}

func (b *chromeBrowser) handlePaused(tabCtx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	var err error
	if b.filter.Blocked(ev.ResourceType, ev.Request.URL) {
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil && tabCtx.Err() == nil {
		b.logger.Debug("Request interception failed", zap.String("url", ev.Request.URL), zap.Error(err))
	}
}

// Alive reports whether the browser context is still open.
func (b *chromeBrowser) Alive() bool {
	return b.ctx.Err() == nil
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// run executes actions on the tab, bounded by the caller's ctx as well as the tab's lifetime.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr //nolint:wrapcheck // caller distinguishes deadline from page errors
		}
		return err //nolint:wrapcheck // chromedp errors describe the failing action
	}
	return nil
}
