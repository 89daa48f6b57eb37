package wrds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupWRDS creates a PostgreSQL container that mimics the WRDS schemas the
// client queries. Returns a cleanup function that must be called after tests
// complete.
//
// WRDS stores CRSP numeric identifiers as DOUBLE PRECISION; the schema here
// does the same so the casts in the pull queries are exercised.
func setupWRDS(t *testing.T) (*Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	client, err := NewClientDSN(ctx, dsn)
	require.NoError(t, err, "failed to create wrds client")

	createWRDSSchemas(t, ctx, client)

	cleanup := func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return client, cleanup
}

func createWRDSSchemas(t *testing.T, ctx context.Context, client *Client) {
	t.Helper()

	statements := []string{
		`CREATE SCHEMA crsp`,
		`CREATE SCHEMA crsp_a_indexes`,
		`CREATE SCHEMA markit`,
		`CREATE TABLE crsp.msf (
			permno DOUBLE PRECISION NOT NULL,
			permco DOUBLE PRECISION,
			date DATE NOT NULL,
			ret DOUBLE PRECISION,
			retx DOUBLE PRECISION,
			prc DOUBLE PRECISION,
			altprc DOUBLE PRECISION,
			vol DOUBLE PRECISION,
			shrout DOUBLE PRECISION,
			cfacshr DOUBLE PRECISION,
			cfacpr DOUBLE PRECISION
		)`,
		`CREATE TABLE crsp.msenames (
			permno DOUBLE PRECISION NOT NULL,
			namedt DATE NOT NULL,
			nameendt DATE NOT NULL,
			shrcd DOUBLE PRECISION,
			exchcd DOUBLE PRECISION,
			comnam VARCHAR(64),
			shrcls VARCHAR(8),
			naics VARCHAR(8),
			siccd DOUBLE PRECISION
		)`,
		`CREATE TABLE crsp.msedelist (
			permno DOUBLE PRECISION NOT NULL,
			dlstdt DATE NOT NULL,
			dlstcd DOUBLE PRECISION,
			dlret DOUBLE PRECISION,
			dlretx DOUBLE PRECISION
		)`,
		`CREATE TABLE crsp_a_indexes.msix (
			caldt DATE NOT NULL,
			vwretd DOUBLE PRECISION,
			vwretx DOUBLE PRECISION,
			ewretd DOUBLE PRECISION,
			ewretx DOUBLE PRECISION,
			sprtrn DOUBLE PRECISION,
			spindx DOUBLE PRECISION,
			totval DOUBLE PRECISION,
			totcnt DOUBLE PRECISION,
			usdval DOUBLE PRECISION,
			usdcnt DOUBLE PRECISION
		)`,
		`CREATE TABLE markit.cds2020 (
			date DATE NOT NULL,
			ticker VARCHAR(32),
			redcode VARCHAR(16),
			tenor VARCHAR(8),
			parspread DOUBLE PRECISION,
			convspread DOUBLE PRECISION
		)`,
	}

	for _, stmt := range statements {
		_, err := client.pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to create wrds test schema")
	}
}

func ptr[T any](v T) *T {
	return &v
}

func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
