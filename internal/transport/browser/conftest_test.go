package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type fakePage struct {
	closed atomic.Int32
}

func (p *fakePage) Navigate(context.Context, string) error      { return nil }
func (p *fakePage) Evaluate(context.Context, string, any) error { return nil }
func (p *fakePage) Close() error {
	p.closed.Add(1)
	return nil
}

type fakeBrowser struct {
	id         int
	closed     atomic.Bool
	crashed    atomic.Bool // NewPage fails, Alive still true
	exited     atomic.Bool // Alive false
	pageErrors atomic.Int32
}

func (b *fakeBrowser) NewPage(context.Context) (domain.Page, error) {
	if b.closed.Load() || b.crashed.Load() || b.exited.Load() {
		b.pageErrors.Add(1)
		return nil, errors.New("target closed")
	}
	return &fakePage{}, nil
}

func (b *fakeBrowser) Alive() bool { return !b.exited.Load() }

func (b *fakeBrowser) Close() error {
	b.closed.Store(true)
	return nil
}

// fakeLauncher counts launches; fail makes every launch error, delay slows them
// down and crash makes every launched browser fail to open pages.
type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	browsers []*fakeBrowser
	fail     bool
	crash    bool
	delay    time.Duration
}

func (l *fakeLauncher) Launch(ctx context.Context) (Browser, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.fail {
		return nil, errors.New("chrome not found")
	}
	b := &fakeBrowser{id: l.launches}
	b.crashed.Store(l.crash)
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeLauncher) browser(i int) *fakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browsers[i]
}

func (l *fakeLauncher) setFail(v bool) {
	l.mu.Lock()
	l.fail = v
	l.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}
