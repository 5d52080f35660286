package resilient

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/db"
)

// setupResilient connects the full stack to the test PostgreSQL instance.
// Tests are skipped when RAMPART_TEST_DATABASE_URL is unset or in short
// mode.
func setupResilient(t *testing.T) *ResilientDatabase {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database integration test in short mode")
	}

	dsn := os.Getenv("RAMPART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RAMPART_TEST_DATABASE_URL not set, skipping database integration test")
	}

	cfg := config.NewDefaultConfig()
	cfg.Database.DSN = dsn

	rd := NewResilientDatabase(db.New(&cfg.Database), &cfg.Database)
	require.NoError(t, rd.Connect(context.Background()))
	t.Cleanup(func() { rd.Disconnect() })

	return rd
}

// scratchTable creates a uniquely named table for one test. Temp tables are
// no use here: they are connection-local and the pool routes statements
// across connections.
func scratchTable(t *testing.T, rd *ResilientDatabase) string {
	t.Helper()

	name := fmt.Sprintf("resilient_scratch_%d", time.Now().UnixNano())
	result := rd.Execute(context.Background(),
		fmt.Sprintf("CREATE TABLE %s (id BIGINT PRIMARY KEY, note TEXT)", name))
	require.True(t, result.Success, "create table: %v", result.Err)

	t.Cleanup(func() {
		rd.Execute(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
	})

	return name
}

func TestIntegrationFetchScalar(t *testing.T) {
	rd := setupResilient(t)

	result := rd.FetchScalar(context.Background(), "SELECT 1")
	require.True(t, result.Success, "fetch scalar: %v", result.Err)
	require.EqualValues(t, 1, result.Data)
	require.Zero(t, result.RetryCount)
	require.Greater(t, result.ExecutionTime, time.Duration(0))
}

func TestIntegrationExecuteAndFetch(t *testing.T) {
	rd := setupResilient(t)
	table := scratchTable(t, rd)
	ctx := context.Background()

	result := rd.ExecuteMany(ctx,
		fmt.Sprintf("INSERT INTO %s (id, note) VALUES ($1, $2)", table),
		[][]any{{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"}})
	require.True(t, result.Success, "execute many: %v", result.Err)
	require.Equal(t, int64(3), result.Data)

	result = rd.Fetch(ctx, fmt.Sprintf("SELECT id, note FROM %s ORDER BY id", table))
	require.True(t, result.Success, "fetch: %v", result.Err)

	rows := result.Data.([]Row)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"id", "note"}, rows[0].Columns())

	note, ok := rows[1].Get("note")
	require.True(t, ok)
	require.Equal(t, "b", note)

	result = rd.FetchOne(ctx, fmt.Sprintf("SELECT note FROM %s WHERE id = $1", table), int64(3))
	require.True(t, result.Success, "fetch one: %v", result.Err)
	row := result.Data.(Row)
	require.Equal(t, map[string]any{"note": "c"}, row.Map())

	// No match yields a successful result with nil data.
	result = rd.FetchOne(ctx, fmt.Sprintf("SELECT note FROM %s WHERE id = $1", table), int64(404))
	require.True(t, result.Success, "fetch one (miss): %v", result.Err)
	require.Nil(t, result.Data)

	result = rd.Execute(ctx, fmt.Sprintf("UPDATE %s SET note = 'x' WHERE id <= $1", table), int64(2))
	require.True(t, result.Success, "execute: %v", result.Err)
	require.Equal(t, "UPDATE 2", result.Data)
}

func TestIntegrationExecuteManyAtomic(t *testing.T) {
	rd := setupResilient(t)
	table := scratchTable(t, rd)
	ctx := context.Background()

	// The third set collides with the first; nothing may survive.
	result := rd.ExecuteMany(ctx,
		fmt.Sprintf("INSERT INTO %s (id, note) VALUES ($1, $2)", table),
		[][]any{{int64(1), "a"}, {int64(2), "b"}, {int64(1), "dup"}})
	require.True(t, result.Failed())

	count := rd.FetchScalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	require.True(t, count.Success, "count: %v", count.Err)
	require.EqualValues(t, 0, count.Data)
}

func TestIntegrationExecuteManyEmpty(t *testing.T) {
	rd := setupResilient(t)
	table := scratchTable(t, rd)

	result := rd.ExecuteMany(context.Background(),
		fmt.Sprintf("INSERT INTO %s (id, note) VALUES ($1, $2)", table), nil)
	require.True(t, result.Success, "execute many: %v", result.Err)
	require.Equal(t, int64(0), result.Data)
}

func TestIntegrationNonRetryableFailsOnce(t *testing.T) {
	rd := setupResilient(t)

	start := time.Now()
	result := rd.Execute(context.Background(), "SELECT FROM WHERE")
	require.True(t, result.Failed())
	require.Equal(t, 1, result.RetryCount)
	// A statement error must not burn the backoff schedule.
	require.Less(t, time.Since(start), time.Second)
}

func TestIntegrationWithTransaction(t *testing.T) {
	rd := setupResilient(t)
	table := scratchTable(t, rd)
	ctx := context.Background()

	result := rd.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id, note) VALUES (10, 'tx')", table))
		return err
	})
	require.True(t, result.Success, "transaction: %v", result.Err)

	count := rd.FetchScalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = 10", table))
	require.True(t, count.Success, "count: %v", count.Err)
	require.EqualValues(t, 1, count.Data)
}

func TestIntegrationHealthCheck(t *testing.T) {
	rd := setupResilient(t)

	rd.FetchScalar(context.Background(), "SELECT 1")

	result := rd.HealthCheck(context.Background())
	require.True(t, result.Success, "health check: %v", result.Err)

	status := result.Data.(*HealthStatus)
	require.Equal(t, "connected", status.State)
	require.False(t, status.CircuitBreakerOpen)
	require.GreaterOrEqual(t, status.TotalQueries, int64(1))
	require.NotNil(t, status.Pool)
	require.Greater(t, status.Pool.MaxConns, int32(0))
}
