package db

import (
	"context"
	"fmt"

	"github.com/rampartdb/rampart/consts"
	"github.com/rampartdb/rampart/logger"
)

// Migrate synchronizes the schema for every managed model while holding a
// cluster-wide advisory lock, so only one process runs DDL at a time.
func (d *Database) Migrate(ctx context.Context) error {
	pool := d.Pool()
	orm := d.ORM()
	if pool == nil || orm == nil {
		return consts.ErrNotConnected
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for schema sync: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", consts.SchemaAdvisoryLockID); err != nil {
		return fmt.Errorf("failed to take schema advisory lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", consts.SchemaAdvisoryLockID); err != nil {
			logger.Warnf("[DB] failed to release schema advisory lock: %v", err)
		}
	}()

	logger.Info("[DB] synchronizing schema...")

	if err := orm.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("schema sync failed: %w", err)
	}

	logger.Info("[DB] schema is up to date")
	return nil
}

// DropTables drops every managed table, referencing tables first. Intended
// for operator tooling and tests, never for the normal lifecycle path.
func (d *Database) DropTables(ctx context.Context) error {
	orm := d.ORM()
	if orm == nil {
		return consts.ErrEngineNotReady
	}

	logger.Warn("[DB] dropping all managed tables")

	migrator := orm.WithContext(ctx).Migrator()
	models := AllModels()
	for i := len(models) - 1; i >= 0; i-- {
		if err := migrator.DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", models[i], err)
		}
	}

	return nil
}
