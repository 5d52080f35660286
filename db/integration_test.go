package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rampartdb/rampart/config"
)

// integrationDSN returns the connection string for the test PostgreSQL
// instance. Tests are skipped when RAMPART_TEST_DATABASE_URL is unset or
// in short mode.
func integrationDSN(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database integration test in short mode")
	}

	dsn := os.Getenv("RAMPART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RAMPART_TEST_DATABASE_URL not set, skipping database integration test")
	}

	return dsn
}

func setupIntegrationDatabase(t *testing.T) *Database {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Database.DSN = integrationDSN(t)

	d := New(&cfg.Database)
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { d.Disconnect() })

	return d
}

func TestIntegrationConnectLifecycle(t *testing.T) {
	d := setupIntegrationDatabase(t)

	require.True(t, d.IsConnected())
	require.Equal(t, StateConnected, d.State())
	require.True(t, d.TestConnection(context.Background()))

	snap := d.Metrics().Snapshot()
	require.Equal(t, int64(1), snap.TotalReconnections)
	require.False(t, snap.LastConnectionTime.IsZero())

	require.NoError(t, d.Disconnect())
	require.False(t, d.IsConnected())
	require.Equal(t, StateDisconnected, d.State())

	// Disconnect is idempotent.
	require.NoError(t, d.Disconnect())
}

func TestIntegrationMarkDisconnectedForcesRecheck(t *testing.T) {
	d := setupIntegrationDatabase(t)

	d.MarkDisconnected()
	require.False(t, d.IsConnected())
	require.Equal(t, StateDisconnected, d.State())

	// The handles are intact; a reconnect restores the state.
	require.NoError(t, d.Connect(context.Background()))
	require.True(t, d.IsConnected())
}

func TestIntegrationTransactionRoundTrip(t *testing.T) {
	d := setupIntegrationDatabase(t)
	ctx := context.Background()

	err := d.WithTransaction(ctx, func(tx pgx.Tx) error {
		var one int
		return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
	require.NoError(t, err)
}

func TestIntegrationSessionRollback(t *testing.T) {
	d := setupIntegrationDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.Migrate(ctx))

	boom := errors.New("abort")
	err := d.WithSession(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&User{UserID: 991199}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The insert must not have survived the rollback.
	var count int64
	err = d.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.Model(&User{}).Where("user_id = ?", int64(991199)).Count(&count).Error
	})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIntegrationPoolSerializesAtCapacity(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.DSN = integrationDSN(t)
	cfg.Database.MinConns = 1
	cfg.Database.MaxConns = 1

	d := New(&cfg.Database)
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { d.Disconnect() })

	ctx := context.Background()
	const hold = 300 * time.Millisecond

	start := time.Now()
	holding := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- d.WithTransaction(ctx, func(tx pgx.Tx) error {
			close(holding)
			time.Sleep(hold)
			var one int
			return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
		})
	}()

	// The second caller suspends until the first scope exits.
	<-holding
	err := d.WithTransaction(ctx, func(tx pgx.Tx) error {
		var one int
		return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.GreaterOrEqual(t, time.Since(start), hold)
}

func TestIntegrationFailedScopeReleasesConnection(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.DSN = integrationDSN(t)
	cfg.Database.MinConns = 1
	cfg.Database.MaxConns = 1

	d := New(&cfg.Database)
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { d.Disconnect() })

	boom := errors.New("abort")
	err := d.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// With only one connection in the pool, a leak would make this second
	// scope block until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = d.WithTransaction(ctx, func(tx pgx.Tx) error {
		var one int
		return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
	require.NoError(t, err)
}
