package resilient

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rampartdb/rampart/consts"
	"github.com/rampartdb/rampart/logger"
)

// Execute runs a statement that returns no rows (INSERT, UPDATE, DELETE).
// Data carries the command tag string, e.g. "INSERT 0 1".
func (rd *ResilientDatabase) Execute(ctx context.Context, sql string, args ...any) Result {
	return rd.retryOperation(ctx, "execute", func(ctx context.Context) (any, error) {
		pool := rd.db.Pool()
		if pool == nil {
			return nil, consts.ErrPoolNotReady
		}

		tag, err := pool.Exec(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		logger.Debug("[RESILIENT] executed statement", "query", truncateQuery(sql), "tag", tag.String())
		return tag.String(), nil
	})
}

// Fetch runs a query and returns every matching row. Data carries []Row.
func (rd *ResilientDatabase) Fetch(ctx context.Context, sql string, args ...any) Result {
	return rd.retryOperation(ctx, "fetch", func(ctx context.Context) (any, error) {
		pool := rd.db.Pool()
		if pool == nil {
			return nil, consts.ErrPoolNotReady
		}

		rows, err := pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		out, err := collectRows(rows)
		if err != nil {
			return nil, err
		}

		logger.Debug("[RESILIENT] fetched rows", "query", truncateQuery(sql), "rows", len(out))
		return out, nil
	})
}

// FetchOne runs a query and returns the first row. Data carries a Row, or
// nil when the query matches nothing.
func (rd *ResilientDatabase) FetchOne(ctx context.Context, sql string, args ...any) Result {
	return rd.retryOperation(ctx, "fetch_one", func(ctx context.Context) (any, error) {
		pool := rd.db.Pool()
		if pool == nil {
			return nil, consts.ErrPoolNotReady
		}

		rows, err := pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		if !rows.Next() {
			return nil, rows.Err()
		}

		row, err := newRow(rows)
		if err != nil {
			return nil, err
		}

		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return row, nil
	})
}

// FetchScalar runs a query and returns the first column of the first row.
// Data is nil when the query matches nothing.
func (rd *ResilientDatabase) FetchScalar(ctx context.Context, sql string, args ...any) Result {
	return rd.retryOperation(ctx, "fetch_scalar", func(ctx context.Context) (any, error) {
		pool := rd.db.Pool()
		if pool == nil {
			return nil, consts.ErrPoolNotReady
		}

		rows, err := pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		if !rows.Next() {
			return nil, rows.Err()
		}

		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	})
}

// ExecuteMany runs one statement over many argument sets atomically: every
// set applies inside a single transaction via the pgx batch protocol, so a
// failure leaves none of them behind. Data carries the total number of
// affected rows as int64.
func (rd *ResilientDatabase) ExecuteMany(ctx context.Context, sql string, argSets [][]any) Result {
	return rd.retryOperation(ctx, "execute_many", func(ctx context.Context) (any, error) {
		if len(argSets) == 0 {
			return int64(0), nil
		}

		pool := rd.db.Pool()
		if pool == nil {
			return nil, consts.ErrPoolNotReady
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, args := range argSets {
			batch.Queue(sql, args...)
		}

		results := tx.SendBatch(ctx, batch)
		var affected int64
		for range argSets {
			tag, execErr := results.Exec()
			if execErr != nil {
				results.Close()
				return nil, execErr
			}
			affected += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		logger.Debug("[RESILIENT] batch executed", "query", truncateQuery(sql), "sets", len(argSets), "rows", affected)
		return affected, nil
	})
}

func truncateQuery(sql string) string {
	const limit = 50
	if len(sql) <= limit {
		return sql
	}
	return sql[:limit] + "..."
}
