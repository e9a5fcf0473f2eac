package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"authwatch/internal/target"
)

func TestRetryPolicyCeiling(t *testing.T) {
	calls := 0
	policy := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return 0 },
	}
	_, attempts, err := policy.Do(context.Background(), func(context.Context) (*target.RawResponse, error) {
		calls++
		return nil, &target.APIError{StatusCode: 503, Body: []byte("unavailable")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected exactly 3 attempts under continuous 5xx, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestRetryPolicyConclusiveStatusNotRetried(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return 0 }}
	_, attempts, err := policy.Do(context.Background(), func(context.Context) (*target.RawResponse, error) {
		calls++
		return nil, &target.APIError{StatusCode: 401, Body: []byte("unauthorized")}
	})
	if err == nil {
		t.Fatal("expected the 401 error back")
	}
	if attempts != 1 || calls != 1 {
		t.Fatalf("401 must not be retried, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestRetryPolicyTransportErrorsRetried(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 2, Backoff: func(int) time.Duration { return 0 }}
	resp, attempts, err := policy.Do(context.Background(), func(context.Context) (*target.RawResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &target.RawResponse{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if resp == nil || resp.StatusCode != 200 {
		t.Fatalf("expected final response, got %+v", resp)
	}
}

func TestRetryPolicyContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		MaxAttempts: 5,
		Backoff:     func(int) time.Duration { return time.Minute },
	}
	_, attempts, err := policy.Do(ctx, func(context.Context) (*target.RawResponse, error) {
		cancel()
		return nil, &target.APIError{StatusCode: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestStepBackoff(t *testing.T) {
	backoff := StepBackoff(100*time.Millisecond, time.Second)
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{10, time.Second},
		{25, time.Second},
		{0, 100 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := backoff(tc.attempt); got != tc.want {
			t.Fatalf("backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryServerErrors(t *testing.T) {
	if !RetryServerErrors(500, &target.APIError{StatusCode: 500}) {
		t.Fatal("500 should be retryable")
	}
	if RetryServerErrors(401, &target.APIError{StatusCode: 401}) {
		t.Fatal("401 should not be retryable")
	}
	if !RetryServerErrors(0, errors.New("dial tcp: connection refused")) {
		t.Fatal("transport errors should be retryable")
	}
	if RetryServerErrors(200, nil) {
		t.Fatal("success should not be retryable")
	}
}
