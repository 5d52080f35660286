package resilient

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// WithTransaction runs fn inside a raw transaction once the connection is
// usable. The transaction commits when fn returns nil and rolls back when
// it returns an error or panics; the connection goes back to the pool on
// every path. The callback runs at most once.
func (rd *ResilientDatabase) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) Result {
	start := time.Now()

	if err := rd.ensureConnected(ctx); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	if err := rd.db.WithTransaction(ctx, fn); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	return Result{Success: true, ExecutionTime: time.Since(start)}
}

// WithSession runs fn inside an ORM session once the connection is usable.
// The session commits when fn returns nil, rolls back when it returns an
// error or panics, and always ends. The callback runs at most once.
func (rd *ResilientDatabase) WithSession(ctx context.Context, fn func(tx *gorm.DB) error) Result {
	start := time.Now()

	if err := rd.ensureConnected(ctx); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	if err := rd.db.WithSession(ctx, fn); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	return Result{Success: true, ExecutionTime: time.Since(start)}
}

// WithSessionTransaction is the explicit begin-block variant of
// WithSession: fn runs inside an ORM transaction scope, so commits issued
// by nested helpers defer to the outer scope via savepoints.
func (rd *ResilientDatabase) WithSessionTransaction(ctx context.Context, fn func(tx *gorm.DB) error) Result {
	start := time.Now()

	if err := rd.ensureConnected(ctx); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	if err := rd.db.WithSessionTransaction(ctx, fn); err != nil {
		return Result{Err: err, ExecutionTime: time.Since(start)}
	}

	return Result{Success: true, ExecutionTime: time.Since(start)}
}
