package verify

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"authwatch/internal/target"
)

// EndpointVerifier exercises a protected route end to end: unlike the session
// endpoint it proves the whole middleware chain accepts the session. A 403
// still counts as authenticated, only unauthorized for the resource.
type EndpointVerifier struct{}

func (v EndpointVerifier) Name() Method { return MethodEndpoint }

func (v EndpointVerifier) Verify(ctx context.Context, client *target.Client, cfg Config) VerificationResult {
	start := time.Now()
	result := VerificationResult{
		Method:  MethodEndpoint,
		Details: map[string]any{},
	}

	query := url.Values{}
	query.Set("since", time.Now().AddDate(0, 0, -7).Format("2006-01-02"))
	query.Set("until", time.Now().Format("2006-01-02"))

	policy := RetryPolicy{
		MaxAttempts: cfg.endpointMaxAttempts(),
		Backoff:     StepBackoff(100*time.Millisecond, time.Second),
		Retryable:   RetryServerErrors,
	}
	raw, attempts, err := policy.Do(ctx, func(ctx context.Context) (*target.RawResponse, error) {
		return client.ProtectedProbe(ctx, query)
	})
	result.RetryAttempts = attempts
	result.ResponseTimeMS = time.Since(start).Milliseconds()
	if raw != nil {
		result.Details["status_code"] = raw.StatusCode
	}

	status := 0
	if raw != nil {
		status = raw.StatusCode
	}
	switch {
	case err == nil && status >= 200 && status < 300:
		result.IsAuthenticated = true
		result.Confidence = 0.85
		result.Details["reason"] = "protected endpoint accepted the session"
	case status == http.StatusUnauthorized:
		result.IsAuthenticated = false
		result.Confidence = 0.9
		result.Details["reason"] = "protected endpoint rejected the session"
	case status == http.StatusForbidden:
		result.IsAuthenticated = true
		result.Confidence = 0.75
		result.Details["reason"] = "authenticated but not authorized for this resource"
	case status >= 500 || (status == 0 && err != nil):
		result.IsAuthenticated = false
		result.Confidence = 0.2
		result.Error = summarizeError(err)
		result.Details["reason"] = "protected endpoint unavailable"
	default:
		result.IsAuthenticated = false
		result.Confidence = 0.3
		result.Error = summarizeError(err)
		result.Details["reason"] = "inconclusive response from protected endpoint"
	}
	return result
}
