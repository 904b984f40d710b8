// Package sqldb opens the SQL backends (SQLite, Postgres) and applies embedded migrations.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/kailas-cloud/staydex/internal/db"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect selects placeholder style and migration set.
type Dialect string

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = "sqlite"
	// Postgres uses $N placeholders.
	Postgres Dialect = "postgres"
)

// Config holds connection parameters.
type Config struct {
	Dialect Dialect
	DSN     string // file path or ":memory:" for sqlite, URL for postgres
}

// DB wraps *sql.DB with dialect-aware query rebinding.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open connects, configures the pool and runs pending migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var driver string
	switch cfg.Dialect {
	case SQLite:
		driver = "sqlite"
	case Postgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", cfg.Dialect)
	}

	conn, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := &DB{sql: conn, dialect: cfg.Dialect}

	if cfg.Dialect == SQLite {
		// Single writer avoids "database is locked"; also pins :memory: to one connection.
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("applying %q: %w", pragma, err)
			}
		}
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := d.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, &db.Error{Op: db.OpMigrate, Err: err}
	}

	return d, nil
}

// Dialect returns the configured dialect.
func (d *DB) Dialect() Dialect { return d.dialect }

// Rebind rewrites ? placeholders to the dialect's style.
func (d *DB) Rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ExecContext runs a statement after rebinding.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.Rebind(query), args...) //nolint:wrapcheck // callers wrap with db.Error
}

// QueryContext runs a query after rebinding.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.Rebind(query), args...) //nolint:wrapcheck // callers wrap with db.Error
}

// QueryRowContext runs a single-row query after rebinding.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.sql.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (d *DB) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, d, timeout) //nolint:wrapcheck // already wrapped
}

// Close closes the connection pool.
func (d *DB) Close() {
	_ = d.sql.Close()
}

// AppliedMigrations returns applied migration versions in ascending order.
func (d *DB) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := d.QueryContext(ctx, "SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// migrate applies embedded migrations for the dialect that are not yet recorded.
func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	dir := "migrations/" + string(d.dialect)
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		err = d.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		if err := d.applyMigration(ctx, version, string(content)); err != nil {
			return err
		}
	}

	return nil
}

func (d *DB) applyMigration(ctx context.Context, version int, content string) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return errors.Join(fmt.Errorf("applying migration %d: %w", version, err), tx.Rollback())
	}

	record := d.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, record, version, time.Now().UnixMilli()); err != nil {
		return errors.Join(fmt.Errorf("recording migration %d: %w", version, err), tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", version, err)
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}
