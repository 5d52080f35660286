package resilient

import (
	"errors"
	"testing"
	"time"
)

func TestResultFailed(t *testing.T) {
	ok := Result{Success: true, Data: int64(1), ExecutionTime: time.Millisecond}
	if ok.Failed() {
		t.Error("Expected a successful result to report Failed() == false")
	}

	bad := Result{Err: errors.New("boom"), RetryCount: 3}
	if !bad.Failed() {
		t.Error("Expected a failed result to report Failed() == true")
	}
}

func TestResultErrorMessage(t *testing.T) {
	if got := (Result{Success: true}).ErrorMessage(); got != "" {
		t.Errorf("Expected empty message on success, got %q", got)
	}

	r := Result{Err: errors.New("connection refused")}
	if got := r.ErrorMessage(); got != "connection refused" {
		t.Errorf("Expected the error text, got %q", got)
	}
}
