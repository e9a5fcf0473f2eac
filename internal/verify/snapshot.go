package verify

import (
	"context"
	"encoding/json"
	"time"

	"authwatch/internal/target"
)

// DebugSnapshot captures cookie, session-API, and storage state at a point in
// time. Capture is best-effort: it never fails, it records what it could see.
type DebugSnapshot struct {
	Timestamp         string          `json:"timestamp"`
	CookiePresent     bool            `json:"cookie_present"`
	Cookie            *CookieSnapshot `json:"cookie,omitempty"`
	SessionStatusCode int             `json:"session_status_code,omitempty"`
	SessionUser       string          `json:"session_user,omitempty"`
	SessionRaw        json.RawMessage `json:"session_raw,omitempty"`
	StorageKeys       []string        `json:"storage_keys,omitempty"`
	CaptureErrors     []string        `json:"capture_errors,omitempty"`
}

type CookieSnapshot struct {
	Name     string `json:"name"`
	Expires  string `json:"expires,omitempty"`
	Expired  bool   `json:"expired"`
	HTTPOnly bool   `json:"http_only"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"same_site,omitempty"`
	ValueLen int    `json:"value_len"`
}

func (s *DebugSnapshot) SessionPresent() bool {
	return s != nil && s.SessionUser != ""
}

// CaptureSnapshot reads the current cookie, session response, and storage
// keys for diagnostics.
func CaptureSnapshot(ctx context.Context, client *target.Client, cfg Config) *DebugSnapshot {
	snapshot := &DebugSnapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if cookie, ok := client.SessionCookie(); ok {
		snapshot.CookiePresent = true
		cookieSnap := &CookieSnapshot{
			Name:     cookie.Name,
			Expired:  cookie.Expired(time.Now()),
			HTTPOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
			SameSite: cookie.SameSite,
			ValueLen: len(cookie.Value),
		}
		if !cookie.Expires.IsZero() {
			cookieSnap.Expires = cookie.Expires.UTC().Format(time.RFC3339)
		}
		snapshot.Cookie = cookieSnap
	}

	status, raw, err := client.SessionStatus(ctx)
	if raw != nil {
		snapshot.SessionStatusCode = raw.StatusCode
		snapshot.SessionRaw = json.RawMessage(raw.Body)
	}
	if err != nil {
		snapshot.CaptureErrors = append(snapshot.CaptureErrors, "session: "+err.Error())
	} else if status.Authenticated() {
		snapshot.SessionUser = status.User.ID
	}

	for _, entry := range cfg.StorageState.LocalStorageEntries() {
		snapshot.StorageKeys = append(snapshot.StorageKeys, entry.Name)
	}
	return snapshot
}
