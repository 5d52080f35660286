package resilient

import "time"

// Result is the uniform outcome of every facade operation. Expected failure
// modes (connection unavailable, open circuit, exhausted retries, pool not
// initialized) come back as a failed Result rather than a panic, so callers
// branch on Failed instead of recovering.
//
// ExecutionTime spans the whole call, including backoff sleeps between
// attempts. RetryCount is the zero-based attempt index on success and the
// number of attempts consumed on failure.
type Result struct {
	Success       bool
	Data          any
	Err           error
	ExecutionTime time.Duration
	RetryCount    int
}

// Failed reports whether the operation did not complete.
func (r Result) Failed() bool {
	return !r.Success
}

// ErrorMessage returns the error text for display, or "" when the
// operation succeeded.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}

	return r.Err.Error()
}
