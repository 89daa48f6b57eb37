package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get native port (9000)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	// Connect to ClickHouse
	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// Create tables. Statements mirror the embedded migrations, inlined
	// here because importing the migrations package from this test would
	// create an import cycle.
	createTables(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

func createTables(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS crsp_monthly_stock (
			permno      Int64,
			date        Date,
			permco      Nullable(Int64),
			shrcd       Nullable(Int64),
			exchcd      Nullable(Int64),
			comnam      Nullable(String),
			shrcls      Nullable(String),
			ret         Nullable(Float64),
			retx        Nullable(Float64),
			dlret       Nullable(Float64),
			dlretx      Nullable(Float64),
			dlstcd      Nullable(Int64),
			prc         Nullable(Float64),
			altprc      Nullable(Float64),
			vol         Nullable(Float64),
			shrout      Nullable(Float64),
			cfacshr     Nullable(Float64),
			cfacpr      Nullable(Float64),
			naics       Nullable(String),
			siccd       Nullable(Int64),
			adj_shrout  Nullable(Float64),
			adj_prc     Nullable(Float64),
			market_cap  Nullable(Float64)
		) ENGINE = ReplacingMergeTree()
		ORDER BY (permno, date)
		SETTINGS index_granularity = 8192
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS crsp_monthly_index (
			date    Date,
			vwretd  Nullable(Float64),
			vwretx  Nullable(Float64),
			ewretd  Nullable(Float64),
			ewretx  Nullable(Float64),
			sprtrn  Nullable(Float64),
			spindx  Nullable(Float64),
			totval  Nullable(Float64),
			totcnt  Nullable(Int64),
			usdval  Nullable(Float64),
			usdcnt  Nullable(Int64)
		) ENGINE = ReplacingMergeTree()
		ORDER BY date
		SETTINGS index_granularity = 8192
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS markit_cds_spread (
			date        Date,
			ticker      Nullable(String),
			redcode     Nullable(String),
			tenor       Nullable(String),
			parspread   Nullable(Float64),
			convspread  Nullable(Float64)
		) ENGINE = MergeTree()
		ORDER BY date
		SETTINGS index_granularity = 8192
	`)
	require.NoError(t, err)
}

// ptr is a helper to create pointers for test values
func ptr[T any](v T) *T {
	return &v
}

func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
