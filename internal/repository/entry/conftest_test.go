package entry

import (
	"context"
	"path"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/staydex/internal/db"
	"github.com/kailas-cloud/staydex/internal/domain"
)

// mockStore keeps hashes in memory and records TTLs. Fn hooks override behavior.
type mockStore struct {
	hashes map[string]map[string]string
	ttls   map[string]time.Duration

	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	hincrByFn func(ctx context.Context, key, field string, val int64) (int64, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		h := m.hashes[it.Key]
		if h == nil {
			h = map[string]string{}
			m.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
		if it.TTL > 0 {
			m.ttls[it.Key] = it.TTL
		}
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		h, _ := m.HGetAll(ctx, k)
		out[i] = h
	}
	return out, nil
}

func (m *mockStore) HIncrBy(ctx context.Context, key, field string, val int64) (int64, error) {
	if m.hincrByFn != nil {
		return m.hincrByFn(ctx, key, field, val)
	}
	h := m.hashes[key]
	if h == nil {
		h = map[string]string{}
		m.hashes[key] = h
	}
	n, _ := strconv.ParseInt(h[field], 10, 64)
	n += val
	h[field] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.hashes, k)
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
	return keys, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "test:", time.Minute), ms
}

func testEntry(key string, created time.Time, ttl time.Duration) domain.CacheEntry {
	return domain.CacheEntry{
		Key:         key,
		Payload:     []byte(`{"destination":"paris"}`),
		Destination: "paris",
		CheckIn:     "2025-06-01",
		CheckOut:    "2025-06-05",
		Guests:      2,
		CreatedAt:   created,
		TTL:         ttl,
	}
}
