package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Set TEST_DATABASE_URL to run these against a disposable Postgres.
func openTestDB(t *testing.T) *Stores {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrations must be re-runnable")

	return NewPostgresStores(db)
}

func TestPostgresStores(t *testing.T) {
	stores := openTestDB(t)

	t.Run("sessions", func(t *testing.T) { testSessionStore(t, stores.Sessions) })
	t.Run("transcriptions", func(t *testing.T) { testTranscriptionStore(t, stores.Transcriptions) })
	t.Run("reports", func(t *testing.T) { testReportStore(t, stores.Reports) })
	t.Run("audit", func(t *testing.T) { testAuditLogStore(t, stores.AuditLogs) })
	t.Run("users", func(t *testing.T) { testUserStore(t, stores.Users) })
}
