package vectors

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

// mockStore keeps hashes and sets in memory. Fn hooks override behavior.
type mockStore struct {
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}

	smembersFn func(ctx context.Context, key string) ([]string, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, sets: map[string]map[string]struct{}{}}
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		h := map[string]string{}
		for k, v := range it.Fields {
			h[k] = v
		}
		m.hashes[it.Key] = h
	}
	return nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		h := map[string]string{}
		for f, v := range m.hashes[k] {
			h[f] = v
		}
		out[i] = h
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range m.sets {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockStore) SAdd(_ context.Context, key string, members ...string) error {
	s := m.sets[key]
	if s == nil {
		s = map[string]struct{}{}
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *mockStore) SRem(_ context.Context, key string, members ...string) error {
	for _, mem := range members {
		delete(m.sets[key], mem)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "test:", time.Minute), ms
}

func testRecord(key, dest string, created time.Time, ttl time.Duration) domain.VectorRecord {
	return domain.VectorRecord{
		Key:         key,
		Destination: dest,
		Vector:      domain.FeatureVector{0.5, 20240, 20244, 2, 0, 100, 250},
		CreatedAt:   created,
		TTL:         ttl,
	}
}
