package sqlcache

import (
	"context"
	"testing"

	"github.com/kailas-cloud/staydex/internal/db/sqldb"
)

func openTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	d, err := sqldb.Open(context.Background(), sqldb.Config{Dialect: sqldb.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}
