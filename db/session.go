package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/rampartdb/rampart/consts"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/metrics"
)

// WithSession runs fn with an ORM session scoped to one transaction. The
// session commits when fn returns nil, rolls back when it returns an error
// or panics, and its connection is always released back to the engine.
func (d *Database) WithSession(ctx context.Context, fn func(tx *gorm.DB) error) error {
	orm := d.ORM()
	if orm == nil {
		return consts.ErrEngineNotReady
	}

	tx := orm.WithContext(ctx).Begin()
	if tx.Error != nil {
		logger.Errorf("[DB] failed to begin session: %v", tx.Error)
		return consts.ErrDBBeginTransactionFailed
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
			metrics.DBSessionsTotal.WithLabelValues("rollback").Inc()
		}
	}()

	if err := fn(tx); err != nil {
		logger.Debug("[DB] session rolled back", "error", err.Error())
		return err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Errorf("[DB] failed to commit session: %v", err)
		return consts.ErrDBCommitTransactionFailed
	}

	committed = true
	metrics.DBSessionsTotal.WithLabelValues("commit").Inc()
	return nil
}

// WithSessionTransaction is WithSession with nested-transaction semantics:
// fn runs inside an explicit transaction block, so transactions opened
// within it become savepoints whose fate is decided by the outer scope.
func (d *Database) WithSessionTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	orm := d.ORM()
	if orm == nil {
		return consts.ErrEngineNotReady
	}

	err := orm.WithContext(ctx).Transaction(fn)
	if err != nil {
		metrics.DBSessionsTotal.WithLabelValues("rollback").Inc()
		return err
	}

	metrics.DBSessionsTotal.WithLabelValues("commit").Inc()
	return nil
}
