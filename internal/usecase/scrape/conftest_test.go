package scrape

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type mockPool struct {
	acquireErr error
	acquired   atomic.Int32
	session    *mockSession
}

func (m *mockPool) Acquire(context.Context) (Session, error) {
	m.acquired.Add(1)
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return m.session, nil
}

type mockSession struct {
	mu         sync.Mutex
	pages      []*mockPage
	pageErr    error
	navigateFn func(ctx context.Context, url string) error
	released   atomic.Int32
}

func (m *mockSession) NewPage(context.Context) (domain.Page, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	p := &mockPage{navigateFn: m.navigateFn}
	m.mu.Lock()
	m.pages = append(m.pages, p)
	m.mu.Unlock()
	return p, nil
}

func (m *mockSession) Release() { m.released.Add(1) }

func (m *mockSession) allClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		if p.closed.Load() != 1 {
			return false
		}
	}
	return true
}

type mockPage struct {
	navigateFn func(ctx context.Context, url string) error
	closed     atomic.Int32
}

func (p *mockPage) Navigate(ctx context.Context, url string) error {
	if p.navigateFn != nil {
		return p.navigateFn(ctx, url)
	}
	return nil
}

func (p *mockPage) Evaluate(context.Context, string, any) error { return nil }

func (p *mockPage) Close() error {
	p.closed.Add(1)
	return nil
}

type mockExtractor struct {
	source    string
	extractFn func(ctx context.Context) ([]domain.Listing, error)
}

func (m *mockExtractor) Source() string { return m.source }

func (m *mockExtractor) SearchURL(domain.SearchCriteria) string {
	return "https://" + m.source + ".test/search"
}

func (m *mockExtractor) Extract(ctx context.Context, _ domain.Page) ([]domain.Listing, error) {
	if m.extractFn == nil {
		return nil, nil
	}
	return m.extractFn(ctx)
}

type mockRegistry map[string]domain.Extractor

func (r mockRegistry) Get(source string) (domain.Extractor, error) {
	e, ok := r[source]
	if !ok {
		return nil, errors.Join(domain.ErrUnknownSource, errors.New(source))
	}
	return e, nil
}
