package sqlcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

var t0 = time.UnixMilli(1_750_000_000_000)

func testEntry(key string, ttl time.Duration) domain.CacheEntry {
	return domain.CacheEntry{
		Key:         key,
		Payload:     []byte(`{"destination":"paris"}`),
		Destination: "paris",
		CheckIn:     "2025-06-01",
		CheckOut:    "2025-06-05",
		Guests:      2,
		CreatedAt:   t0,
		TTL:         ttl,
	}
}

func TestEntryRepo_PutGetCountsHits(t *testing.T) {
	repo := NewEntryRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.Put(ctx, testEntry("k1", time.Hour)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, err := repo.Get(ctx, "k1", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Hits != 1 || e.Guests != 2 || string(e.Payload) != `{"destination":"paris"}` {
		t.Errorf("entry = %+v", e)
	}
	if !e.CreatedAt.Equal(t0) || e.TTL != time.Hour {
		t.Errorf("timestamps not round-tripped: %v %v", e.CreatedAt, e.TTL)
	}

	e, _ = repo.Get(ctx, "k1", t0.Add(time.Minute))
	if e.Hits != 2 {
		t.Errorf("Hits = %d, want 2", e.Hits)
	}
}

func TestEntryRepo_UpsertResetsHits(t *testing.T) {
	repo := NewEntryRepo(openTestDB(t))
	ctx := context.Background()
	_ = repo.Put(ctx, testEntry("k1", time.Hour))
	_, _ = repo.Get(ctx, "k1", t0)

	updated := testEntry("k1", 2*time.Hour)
	updated.Payload = []byte(`{}`)
	if err := repo.Put(ctx, updated); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, err := repo.Get(ctx, "k1", t0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Hits != 1 || string(e.Payload) != `{}` || e.TTL != 2*time.Hour {
		t.Errorf("entry after upsert = %+v", e)
	}
}

func TestEntryRepo_TTLBoundary(t *testing.T) {
	repo := NewEntryRepo(openTestDB(t))
	ctx := context.Background()
	_ = repo.Put(ctx, testEntry("k1", time.Hour))

	if _, err := repo.Get(ctx, "k1", t0.Add(time.Hour-time.Millisecond)); err != nil {
		t.Fatalf("entry must be visible before ttl: %v", err)
	}
	if _, err := repo.Get(ctx, "k1", t0.Add(time.Hour)); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss at ttl", err)
	}
	if _, err := repo.Get(ctx, "missing", t0); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss for missing key", err)
	}
}

func TestEntryRepo_ExpiredRowsStayUntilSweep(t *testing.T) {
	d := openTestDB(t)
	repo := NewEntryRepo(d)
	ctx := context.Background()
	_ = repo.Put(ctx, testEntry("old", time.Minute))
	_ = repo.Put(ctx, testEntry("fresh", time.Hour))

	later := t0.Add(10 * time.Minute)
	_, _ = repo.Get(ctx, "old", later)

	var rows int
	if err := d.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&rows); err != nil || rows != 2 {
		t.Fatalf("rows before sweep = %d (%v), want 2", rows, err)
	}

	n, err := repo.Sweep(ctx, later)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if _, err := repo.Get(ctx, "fresh", later); err != nil {
		t.Errorf("fresh entry lost: %v", err)
	}
}

func TestVectorRepo_Candidates(t *testing.T) {
	repo := NewVectorRepo(openTestDB(t))
	ctx := context.Background()

	vec := domain.FeatureVector{0.25, 20240, 20244, 2, 1, 0, 300}
	records := []domain.VectorRecord{
		{Key: "a", Destination: "paris", Vector: vec, CreatedAt: t0, TTL: time.Hour},
		{Key: "b", Destination: "paris", Vector: vec, CreatedAt: t0, TTL: time.Minute},
		{Key: "c", Destination: "rome", Vector: vec, CreatedAt: t0, TTL: time.Hour},
	}
	for _, rec := range records {
		if err := repo.Put(ctx, rec); err != nil {
			t.Fatalf("Put %s: %v", rec.Key, err)
		}
	}

	got, err := repo.Candidates(ctx, "paris", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 1 || got[0].Key != "a" || got[0].Vector != vec {
		t.Fatalf("candidates = %+v, want only a", got)
	}

	n, err := repo.Sweep(ctx, t0.Add(time.Minute))
	if err != nil || n != 1 {
		t.Errorf("Sweep = %d, %v; want 1", n, err)
	}
}

func TestCounterRepo_IncrementAndLoad(t *testing.T) {
	repo := NewCounterRepo(openTestDB(t))
	ctx := context.Background()
	w1 := t0.Add(time.Minute)
	w2 := t0.Add(2 * time.Minute)

	steps := [][]domain.RateLimitEntry{
		{{ClientID: "a", Count: 2, WindowResetAt: w1}, {ClientID: "b", Count: 1, WindowResetAt: t0}},
		{{ClientID: "a", Count: 3, WindowResetAt: w1}},
		{{ClientID: "a", Count: 1, WindowResetAt: t0}}, // older window must not overwrite
	}
	for _, s := range steps {
		if err := repo.Increment(ctx, s); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}

	got, err := repo.LoadActive(ctx, t0)
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if len(got) != 1 || got[0].ClientID != "a" || got[0].Count != 5 {
		t.Fatalf("active = %+v, want a=5", got)
	}

	// a new window replaces the count
	_ = repo.Increment(ctx, []domain.RateLimitEntry{{ClientID: "a", Count: 1, WindowResetAt: w2}})
	got, _ = repo.LoadActive(ctx, t0)
	if len(got) != 1 || got[0].Count != 1 || !got[0].WindowResetAt.Equal(w2) {
		t.Fatalf("active after new window = %+v", got)
	}

	n, err := repo.Sweep(ctx, t0)
	if err != nil || n != 1 {
		t.Errorf("Sweep = %d, %v; want 1 (client b)", n, err)
	}
}
