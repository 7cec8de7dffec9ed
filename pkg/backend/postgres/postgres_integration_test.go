//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dittovec_test"),
		tcpostgres.WithUsername("dittovec_test"),
		tcpostgres.WithPassword("dittovec_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresIntegration(t *testing.T) {
	dsn := startPostgres(t)

	open := func(t *testing.T) store.Backend {
		b := backendtest.Open(t, Adapter{}, store.Descriptor{
			Name: "rel1", Category: store.CategoryRelational, Kind: Kind, Enabled: true,
			Config: map[string]any{"dsn": dsn, "dimension": backendtest.Dimension},
		})
		// subtests share one database
		_, err := b.(*Store).pool.Exec(t.Context(), "TRUNCATE "+table)
		require.NoError(t, err)
		return b
	}

	backendtest.RunConformanceSuite(t, Kind, open)

	t.Run("MigrationsIdempotent", func(t *testing.T) {
		require.NoError(t, runMigrations(t.Context(), dsn, "rel1"))
		require.NoError(t, runMigrations(t.Context(), dsn, "rel1"))
	})

	t.Run("StatusReportsPool", func(t *testing.T) {
		st, err := open(t).GetStatus(t.Context())
		require.NoError(t, err)
		assert.Contains(t, st, "pool_total_conns")
		assert.Equal(t, table, st["table"])
	})
}
