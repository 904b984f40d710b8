package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

// mockMemory is a plain map; TTL behaviour of L1 is covered in repository/memcache.
type mockMemory struct {
	entries map[string]domain.CacheEntry
	gets    []string
}

func newMockMemory() *mockMemory {
	return &mockMemory{entries: map[string]domain.CacheEntry{}}
}

func (m *mockMemory) Get(key string) (domain.CacheEntry, bool) {
	m.gets = append(m.gets, key)
	e, ok := m.entries[key]
	return e, ok
}

func (m *mockMemory) Set(e domain.CacheEntry) { m.entries[e.Key] = e }

type mockEntries struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	getErr  error
	putErr  error
	gets    []string
	swept   int
}

func newMockEntries() *mockEntries {
	return &mockEntries{entries: map[string]domain.CacheEntry{}}
}

func (m *mockEntries) Put(_ context.Context, e domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[e.Key] = e
	return nil
}

func (m *mockEntries) Get(_ context.Context, key string, now time.Time) (domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, key)
	if m.getErr != nil {
		return domain.CacheEntry{}, m.getErr
	}
	e, ok := m.entries[key]
	if !ok || !e.Live(now) {
		return domain.CacheEntry{}, domain.ErrCacheMiss
	}
	e.Hits++
	m.entries[key] = e
	return e, nil
}

func (m *mockEntries) Sweep(context.Context, time.Time) (int, error) {
	return m.swept, nil
}

type mockVectors struct {
	records  []domain.VectorRecord
	candErr  error
	putErr   error
	sweepErr error
}

func (m *mockVectors) Put(_ context.Context, rec domain.VectorRecord) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockVectors) Candidates(_ context.Context, destination string, now time.Time) ([]domain.VectorRecord, error) {
	if m.candErr != nil {
		return nil, m.candErr
	}
	var out []domain.VectorRecord
	for _, r := range m.records {
		if r.Destination == destination && r.Live(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockVectors) Sweep(context.Context, time.Time) (int, error) {
	return 0, m.sweepErr
}
