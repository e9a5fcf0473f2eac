package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"authwatch/internal/target"
)

// APIVerifier asks the session-status endpoint directly. A 200 body with a
// user object is near-conclusive either way; 401/403 are conclusive and never
// retried; only 5xx responses and transport failures are retried.
type APIVerifier struct{}

func (v APIVerifier) Name() Method { return MethodAPI }

func (v APIVerifier) Verify(ctx context.Context, client *target.Client, cfg Config) VerificationResult {
	start := time.Now()
	result := VerificationResult{
		Method:  MethodAPI,
		Details: map[string]any{},
	}

	policy := RetryPolicy{
		MaxAttempts: cfg.apiMaxAttempts(),
		Backoff:     StepBackoff(100*time.Millisecond, time.Second),
		Retryable:   RetryServerErrors,
	}
	raw, attempts, err := policy.Do(ctx, func(ctx context.Context) (*target.RawResponse, error) {
		_, raw, err := client.SessionStatus(ctx)
		return raw, err
	})
	result.RetryAttempts = attempts
	result.ResponseTimeMS = time.Since(start).Milliseconds()
	if raw != nil {
		result.Details["status_code"] = raw.StatusCode
	}

	if err != nil {
		if apiErr, ok := target.IsAPIError(err); ok {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				result.IsAuthenticated = false
				result.Confidence = 0.9
				result.Details["reason"] = "session endpoint rejected the request"
				return result
			}
		}
		// Exhausted retries or transport/parse failure: degrade instead of
		// propagating so the aggregator still gets a decision.
		result.IsAuthenticated = false
		result.Confidence = 0.1
		result.Error = summarizeError(err)
		result.Details["reason"] = "session endpoint unavailable"
		return result
	}

	var status target.SessionStatus
	if jsonErr := json.Unmarshal(raw.Body, &status); jsonErr != nil {
		result.IsAuthenticated = false
		result.Confidence = 0.1
		result.Error = summarizeError(jsonErr)
		result.Details["reason"] = "session endpoint returned malformed JSON"
		return result
	}

	if status.Authenticated() {
		result.IsAuthenticated = true
		result.Confidence = 0.95
		result.Details["user_id"] = status.User.ID
		if status.Expires != "" {
			result.Details["expires"] = status.Expires
		}
		return result
	}
	result.IsAuthenticated = false
	result.Confidence = 0.9
	result.Details["reason"] = "session endpoint returned no user"
	return result
}
