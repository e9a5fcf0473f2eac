package verify

import (
	"context"
	"time"

	"authwatch/internal/target"
)

// nearExpiryWindow is how close to expiry a cookie may be before its signal
// weakens: a session about to lapse mid-check is unreliable evidence.
const nearExpiryWindow = 5 * time.Minute

// shortValueLength flags cookie values too small to hold a real encoded
// session payload.
const shortValueLength = 20

// CookieVerifier inspects the tracked session cookie without touching the
// network. Absence and expiry are strong unauthenticated signals; weakened
// attributes only lower confidence in an otherwise-authenticated reading.
type CookieVerifier struct{}

func (v CookieVerifier) Name() Method { return MethodCookie }

func (v CookieVerifier) Verify(ctx context.Context, client *target.Client, cfg Config) VerificationResult {
	start := time.Now()
	result := VerificationResult{
		Method:  MethodCookie,
		Details: map[string]any{},
	}
	defer func() {
		result.ResponseTimeMS = time.Since(start).Milliseconds()
	}()

	cookie, ok := client.SessionCookie()
	if !ok {
		result.IsAuthenticated = false
		result.Confidence = 0.95
		result.Details["reason"] = "session cookie absent"
		return result
	}
	result.Details["cookie_name"] = cookie.Name
	result.Details["http_only"] = cookie.HTTPOnly
	result.Details["secure"] = cookie.Secure
	result.Details["same_site"] = cookie.SameSite
	if !cookie.Expires.IsZero() {
		result.Details["expires"] = cookie.Expires.UTC().Format(time.RFC3339)
	}

	now := time.Now()
	expired := cookie.Expired(now)
	if !expired {
		// The payload may carry an earlier expiry than the cookie attribute.
		if payload, payloadErr := cookie.Payload(); payloadErr == nil && payload.Expires != "" {
			if payloadExpiry, parseErr := time.Parse(time.RFC3339, payload.Expires); parseErr == nil && !payloadExpiry.After(now) {
				expired = true
				result.Details["payload_expires"] = payload.Expires
			}
		}
	}
	if expired {
		result.IsAuthenticated = false
		result.Confidence = 0.95
		result.Details["reason"] = "session cookie expired"
		return result
	}

	result.IsAuthenticated = true
	window := cfg.nearExpiry()
	switch {
	case cookie.ExpiresWithin(window, now):
		result.Confidence = 0.6
		result.Details["reason"] = "session cookie expires within " + window.String()
	case !cookie.HasSecurityAttributes():
		result.Confidence = 0.7
		result.Details["reason"] = "session cookie missing security attributes"
	case len(cookie.Value) < shortValueLength:
		result.Confidence = 0.5
		result.Details["reason"] = "session cookie value suspiciously short"
	default:
		result.Confidence = 0.8
		result.Details["reason"] = "session cookie present and well-formed"
	}
	return result
}
