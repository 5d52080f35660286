package resilient

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rampartdb/rampart/pkg/circuitbreaker"
)

// isRetryableError reports whether a failed operation may succeed when run
// again. Transport-level failures qualify; logic errors (bad SQL,
// constraint violations), caller cancellation and an open circuit are
// final. Keeping the two classes apart stops retry loops from masking real
// bugs while still absorbing flaky network and pool exhaustion conditions.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
		switch pgErr.Code {
		// Class 08: connection exceptions.
		case "08000", "08001", "08003", "08004", "08006", "08007", "08P01":
			return true
		// Class 53: insufficient resources (too many connections).
		case "53300":
			return true
		// Class 57: the server is going away or killed the backend.
		case "57P01", "57P02", "57P03":
			return true
		// Class 40: serialization failure or deadlock; safe to re-run.
		case "40001", "40P01":
			return true
		}
		// Any other SQLSTATE is a statement-level problem a retry cannot fix.
		return false
	}

	// The request provably never reached the server.
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return false
}
