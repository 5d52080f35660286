package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rampartdb/rampart/logger"
)

type traceQueryKey struct{}

type traceQueryData struct {
	sql   string
	start time.Time
}

// queryTracer logs every statement issued over the pool. It is attached to
// the connection config only when log_queries is enabled, so the cost is
// zero in the default configuration.
type queryTracer struct{}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceQueryKey{}, traceQueryData{sql: data.SQL, start: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	td, ok := ctx.Value(traceQueryKey{}).(traceQueryData)
	if !ok {
		return
	}

	elapsed := time.Since(td.start)
	if data.Err != nil {
		logger.Warnf("[DB] query failed in %s: %s | %v", elapsed, truncateSQL(td.sql), data.Err)
		return
	}

	logger.Debugf("[DB] %s in %s | %s", data.CommandTag.String(), elapsed, truncateSQL(td.sql))
}

func truncateSQL(sql string) string {
	const max = 60
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
