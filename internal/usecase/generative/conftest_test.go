package generative

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type mockCompleter struct {
	mu         sync.Mutex
	prompts    []domain.Prompt
	completeFn func(ctx context.Context, call int) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	call := len(m.prompts)
	m.mu.Unlock()
	return m.completeFn(ctx, call)
}

func (m *mockCompleter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func reply(text string) func(context.Context, int) (string, error) {
	return func(context.Context, int) (string, error) { return text, nil }
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Timeout:        time.Second,
		MaxRetries:     2,
		BackoffBase:    time.Millisecond,
		AllowedDomains: []string{"airbnb.com", "booking.com"},
	}
}

func newTestService(m *mockCompleter, cfg Config) *Service {
	return New(m, cfg, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
}

func ptr(f float64) *float64 { return &f }

func parisCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{Destination: "Paris", Adults: 2}
}
