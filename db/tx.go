package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rampartdb/rampart/consts"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/metrics"
)

// measuredTx wraps a pgx.Tx to record metrics on commit or rollback.
type measuredTx struct {
	pgx.Tx
	start time.Time
}

func (mtx *measuredTx) Commit(ctx context.Context) error {
	err := mtx.Tx.Commit(ctx)
	if err == nil {
		metrics.DBTransactionsTotal.WithLabelValues("commit").Inc()
	}
	metrics.DBTransactionDuration.Observe(time.Since(mtx.start).Seconds())
	return err
}

func (mtx *measuredTx) Rollback(ctx context.Context) error {
	err := mtx.Tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		// Deferred rollback after a successful commit; nothing happened.
		return err
	}

	// A rollback attempt is counted even if the rollback itself fails.
	metrics.DBTransactionsTotal.WithLabelValues("rollback").Inc()
	metrics.DBTransactionDuration.Observe(time.Since(mtx.start).Seconds())
	return err
}

// BeginTx starts a raw transaction wrapped for metric collection.
func (d *Database) BeginTx(ctx context.Context) (pgx.Tx, error) {
	pool := d.Pool()
	if pool == nil {
		return nil, consts.ErrPoolNotReady
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &measuredTx{Tx: tx, start: time.Now()}, nil
}

// WithTransaction runs fn inside a raw transaction. The transaction
// commits when fn returns nil and rolls back when it returns an error or
// panics; the connection goes back to the pool on every path.
func (d *Database) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.BeginTx(ctx)
	if err != nil {
		if errors.Is(err, consts.ErrPoolNotReady) {
			return err
		}
		logger.Errorf("[DB] failed to begin transaction: %v", err)
		return consts.ErrDBBeginTransactionFailed
	}
	defer tx.Rollback(ctx)

	logger.Debug("[DB] transaction started")

	if err := fn(tx); err != nil {
		logger.Debug("[DB] transaction rolled back", "error", err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Errorf("[DB] failed to commit transaction: %v", err)
		return consts.ErrDBCommitTransactionFailed
	}

	logger.Debug("[DB] transaction committed")
	return nil
}
