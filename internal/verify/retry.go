package verify

import (
	"context"
	"time"

	"authwatch/internal/target"
)

// RetryPolicy separates what is retryable from how retries are scheduled.
// Retries run sequentially: each attempt waits for the prior attempt's
// resolution plus the computed backoff, never amplifying load on a server
// that is already struggling.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(status int, err error) bool
}

// StepBackoff returns min(step*attempt, ceiling).
func StepBackoff(step, ceiling time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := step * time.Duration(attempt)
		if delay > ceiling {
			return ceiling
		}
		return delay
	}
}

// RetryServerErrors treats 5xx responses and transport failures as retryable.
// 4xx responses are conclusive and never retried.
func RetryServerErrors(status int, err error) bool {
	if status >= 500 {
		return true
	}
	if status == 0 && err != nil {
		return true
	}
	return false
}

// Do runs call until it succeeds, the policy's retryable predicate declines,
// or MaxAttempts is reached. It returns the last response (possibly nil), the
// number of attempts issued, and the last error.
func (p RetryPolicy) Do(ctx context.Context, call func(context.Context) (*target.RawResponse, error)) (*target.RawResponse, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryServerErrors
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = StepBackoff(100*time.Millisecond, time.Second)
	}

	var lastResp *target.RawResponse
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := call(ctx)
		lastResp, lastErr = resp, err
		if err == nil {
			return resp, attempt, nil
		}
		status := 0
		if apiErr, ok := target.IsAPIError(err); ok {
			status = apiErr.StatusCode
		}
		if !retryable(status, err) || attempt == maxAttempts {
			return lastResp, attempt, lastErr
		}
		select {
		case <-ctx.Done():
			return lastResp, attempt, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return lastResp, maxAttempts, lastErr
}
