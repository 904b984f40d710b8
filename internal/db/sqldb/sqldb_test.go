package sqldb

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), Config{Dialect: SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestOpen_AppliesMigrations(t *testing.T) {
	d := openTestDB(t)

	versions, err := d.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("expected migration 1 applied, got %v", versions)
	}

	for _, table := range []string{"cache_entries", "cache_vectors", "rate_limits"} {
		var n int
		err := d.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil || n != 1 {
			t.Errorf("table %s missing (n=%d, err=%v)", table, n, err)
		}
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "staydex.db")

	d1, err := Open(context.Background(), Config{Dialect: SQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := d1.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	d1.Close()

	d2, err := Open(context.Background(), Config{Dialect: SQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer d2.Close()

	v2, err := d2.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestOpen_UnknownDialect(t *testing.T) {
	if _, err := Open(context.Background(), Config{Dialect: "oracle"}); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: Postgres}
	got := pg.Rebind("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Errorf("postgres rebind = %q", got)
	}

	lite := &DB{dialect: SQLite}
	if q := "SELECT ?"; lite.Rebind(q) != q {
		t.Error("sqlite must keep ? placeholders")
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_index.sql")
	if err != nil || v != 7 {
		t.Fatalf("want 7, got %d (%v)", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Fatal("expected error for unnumbered file")
	}
}
