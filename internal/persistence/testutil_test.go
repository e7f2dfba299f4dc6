package persistence_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"PerpIndexer/internal/persistence"
	"PerpIndexer/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// setupTestDB returns a migrated database. It uses TEST_POSTGRES_DSN when
// set and otherwise starts a throwaway postgres container.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	testutil.RequireIntegration(t)

	ctx := context.Background()
	dsn := testutil.TestPostgresDSN()

	if dsn == "" {
		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("perpindexer_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		require.NoError(t, err, "failed to start postgres container")
		t.Cleanup(func() {
			if err := container.Terminate(ctx); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "failed to get connection string")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	migrator := persistence.NewMigrator(db, testutil.MigrationsDir(t), zerolog.Nop())
	_, err = migrator.Up(ctx)
	require.NoError(t, err, "failed to apply migrations")

	// A shared external database keeps rows between runs.
	_, err = db.ExecContext(ctx, `TRUNCATE indexer.entities, indexer.event_archive`)
	require.NoError(t, err)

	return db
}
