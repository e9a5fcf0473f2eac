package verify

import (
	"context"
	"strings"
	"time"

	"authwatch/internal/target"
)

// authTokenKeys are the client-side storage keys that sessions are known to
// leave behind. Matching is case-insensitive on the exact names plus a
// "token" substring heuristic.
var authTokenKeys = []string{
	"accessToken",
	"authToken",
	"auth_token",
	"session_token",
	"id_token",
	"refreshToken",
}

// substantialValueLength separates real tokens from placeholder junk.
const substantialValueLength = 10

// StorageVerifier scans client-side storage for auth-token residue. It is the
// weakest of the four methods: legitimate sessions may store nothing client
// side, so even absence is only moderate evidence.
type StorageVerifier struct{}

func (v StorageVerifier) Name() Method { return MethodStorage }

func (v StorageVerifier) Verify(ctx context.Context, client *target.Client, cfg Config) VerificationResult {
	start := time.Now()
	result := VerificationResult{
		Method:  MethodStorage,
		Details: map[string]any{},
	}
	defer func() {
		result.ResponseTimeMS = time.Since(start).Milliseconds()
	}()

	entries := cfg.StorageState.LocalStorageEntries()
	substantial := make([]string, 0)
	suspicious := make([]string, 0)
	for _, entry := range entries {
		if !isAuthTokenKey(entry.Name) {
			continue
		}
		if len(entry.Value) > substantialValueLength {
			substantial = append(substantial, entry.Name)
		} else {
			suspicious = append(suspicious, entry.Name)
		}
	}
	result.Details["substantial_keys"] = substantial
	result.Details["suspicious_keys"] = suspicious
	result.Details["entries_scanned"] = len(entries)

	switch {
	case len(substantial) > 0:
		result.IsAuthenticated = true
		result.Confidence = 0.6
		result.Details["reason"] = "substantial auth tokens found in storage"
	case len(suspicious) > 0:
		result.IsAuthenticated = true
		result.Confidence = 0.2
		result.Details["reason"] = "only short or placeholder token values found"
	default:
		result.IsAuthenticated = false
		result.Confidence = 0.4
		result.Details["reason"] = "no auth tokens in storage (sessions may store nothing client-side)"
	}
	return result
}

func isAuthTokenKey(name string) bool {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, key := range authTokenKeys {
		if lowered == strings.ToLower(key) {
			return true
		}
	}
	return strings.Contains(lowered, "token") || strings.Contains(lowered, "auth")
}
