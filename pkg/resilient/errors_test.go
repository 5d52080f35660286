package resilient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rampartdb/rampart/pkg/circuitbreaker"
)

// timeoutError mimics a net.Error from a dial or read deadline.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// safeToRetryError mimics pgconn errors raised before any data was written
// to the server.
type safeToRetryError struct{}

func (safeToRetryError) Error() string     { return "conn busy" }
func (safeToRetryError) SafeToRetry() bool { return true }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"wrapped cancellation", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"circuit open", circuitbreaker.ErrCircuitOpen, false},

		{"pg connection failure", &pgconn.PgError{Code: "08000"}, true},
		{"pg cannot connect now", &pgconn.PgError{Code: "08001"}, true},
		{"pg connection does not exist", &pgconn.PgError{Code: "08003"}, true},
		{"pg connection rejected", &pgconn.PgError{Code: "08004"}, true},
		{"pg connection dropped", &pgconn.PgError{Code: "08006"}, true},
		{"pg protocol violation", &pgconn.PgError{Code: "08P01"}, true},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"pg crash shutdown", &pgconn.PgError{Code: "57P02"}, true},
		{"pg cannot connect now 57", &pgconn.PgError{Code: "57P03"}, true},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock detected", &pgconn.PgError{Code: "40P01"}, true},

		{"pg syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, false},
		{"pg disk full", &pgconn.PgError{Code: "53100"}, false},
		{"wrapped pg syntax error", fmt.Errorf("execute: %w", &pgconn.PgError{Code: "42601"}), false},
		{"wrapped pg connection dropped", fmt.Errorf("execute: %w", &pgconn.PgError{Code: "08006"}), true},

		{"safe to retry", safeToRetryError{}, true},
		{"net timeout", timeoutError{}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"broken pipe", syscall.EPIPE, true},

		{"plain error", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableError(%v) = %v, expected %v", tt.err, got, tt.retryable)
			}
		})
	}
}

// A cancellation always wins over the shape of the wrapped error: once the
// caller gave up, running the statement again is never correct.
func TestCancellationBeatsTransientShape(t *testing.T) {
	err := fmt.Errorf("read tcp: %w: %w", io.ErrUnexpectedEOF, context.Canceled)

	if isRetryableError(err) {
		t.Error("Expected a canceled operation to be non-retryable even over a dead connection")
	}
}
