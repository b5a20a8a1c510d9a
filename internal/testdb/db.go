package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/lingo-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// DatabaseURLEnv names the environment variable holding the test database URL.
const DatabaseURLEnv = "DATABASE_URL"

// TestTimeout bounds connection and migration steps.
const TestTimeout = 30 * time.Second

// GetTestDatabaseURL returns the test database URL, or "" when unset.
func GetTestDatabaseURL() string {
	return os.Getenv(DatabaseURLEnv)
}

// ShouldSkipDatabaseTest reports whether no test database is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// GetTestDB connects to the test database and applies all migrations. The
// test is skipped when DATABASE_URL is unset. The connection is closed when
// the test finishes.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skip(DatabaseURLEnv + " not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := postgres.Open(ctx, GetTestDatabaseURL(), logger)
	require.NoError(t, err, "connect to %s", postgres.MaskDatabaseURL(GetTestDatabaseURL()))
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	require.NoError(t, postgres.Migrate(ctx, db, "up", logger), "apply migrations")
	return db
}

// WithTx runs fn inside a transaction that is rolled back afterwards, even
// when fn panics or fails the test.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "begin transaction")

	defer func() {
		// sql.ErrTxDone is expected if fn already ended the transaction.
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
