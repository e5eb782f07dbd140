package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(2, 10*time.Millisecond, 100*time.Millisecond)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil error", err: nil, attempt: 0, want: false},
		{name: "attempts exhausted", err: errors.New("boom"), attempt: 2, want: false},
		{name: "context canceled", err: context.Canceled, attempt: 0, want: false},
		{name: "wrapped cancellation", err: &FetchError{Err: fmt.Errorf("fetch: %w", context.Canceled)}, attempt: 0, want: false},
		{name: "request deadline exceeded", err: context.DeadlineExceeded, attempt: 0, want: true},
		{name: "client timeout", err: &FetchError{Err: &url.Error{Op: "Get", URL: "https://example.com/", Err: context.DeadlineExceeded}}, attempt: 0, want: true},
		{name: "network timeout", err: timeoutErr{}, attempt: 0, want: true},
		{name: "http 500", err: &FetchError{StatusCode: http.StatusInternalServerError}, attempt: 0, want: true},
		{name: "http 429", err: &FetchError{StatusCode: http.StatusTooManyRequests}, attempt: 1, want: true},
		{name: "http 404 not retried", err: &FetchError{StatusCode: http.StatusNotFound}, attempt: 0, want: false},
		{name: "http 403 not retried", err: &FetchError{StatusCode: http.StatusForbidden}, attempt: 0, want: false},
		{name: "generic error retried", err: errors.New("connection reset"), attempt: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestExponentialRetryPolicyBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(5, 100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 8; attempt++ {
		backoff := policy.Backoff(attempt)
		require.Positive(t, backoff)
		require.LessOrEqual(t, backoff, time.Second)
	}
	// The first backoff sits in [base/2, base).
	first := policy.Backoff(0)
	require.GreaterOrEqual(t, first, 50*time.Millisecond)
	require.Less(t, first, 100*time.Millisecond)
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(-1, 0, 0)
	require.False(t, policy.ShouldRetry(errors.New("boom"), 0))
}
