package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("MINDTREE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("MINDTREE_TEST_DATABASE_URL is not set")
	}
	return dsn
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := OpenSQL(ctx, testDatabaseURL(t), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)
	migrations, err := MigrationFS("")
	require.NoError(t, err)
	_, err = ApplyMigrations(ctx, db, migrations)
	require.NoError(t, err)
	return db
}

func TestPostgresStore(t *testing.T) {
	db := openTestDB(t)
	runStoreSuite(t, func(t *testing.T) Store {
		_, err := db.ExecContext(context.Background(), `TRUNCATE nodes`)
		require.NoError(t, err)
		return NewPostgresStore(db)
	})
}
