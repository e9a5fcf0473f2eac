package target

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the session cookie the application sets after login.
const DefaultCookieName = "app.session-token"

// DefaultSessionMaxAge matches the application's session cookie MaxAge.
const DefaultSessionMaxAge = 86400 * time.Second

// SessionCookie is a session cookie together with the attributes the server
// set it with. http.CookieJar discards attributes on read-back, so the client
// tracks the session cookie itself.
type SessionCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"httpOnly"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"sameSite,omitempty"`
}

func (c *SessionCookie) Expired(now time.Time) bool {
	if c == nil {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c *SessionCookie) ExpiresWithin(window time.Duration, now time.Time) bool {
	if c == nil || c.Expires.IsZero() {
		return false
	}
	return c.Expires.After(now) && c.Expires.Before(now.Add(window))
}

// HasSecurityAttributes reports whether the cookie carries the HttpOnly and
// SameSite attributes the session contract requires.
func (c *SessionCookie) HasSecurityAttributes() bool {
	if c == nil {
		return false
	}
	return c.HTTPOnly && strings.EqualFold(c.SameSite, "lax")
}

// Payload decodes the base64 JSON session payload from the cookie value.
func (c *SessionCookie) Payload() (SessionPayload, error) {
	if c == nil {
		return SessionPayload{}, fmt.Errorf("no session cookie")
	}
	return DecodeSessionValue(c.Value)
}

func EncodeSessionValue(payload SessionPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeSessionValue(value string) (SessionPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
	if err != nil {
		return SessionPayload{}, fmt.Errorf("decode session cookie value: %w", err)
	}
	var payload SessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SessionPayload{}, fmt.Errorf("parse session payload: %w", err)
	}
	return payload, nil
}

// MockSessionCookie fabricates a valid-looking session cookie without running
// the real login flow. Intended for test environments only; callers gate it
// on E2E_MOCK_AUTH_ENABLED.
func MockSessionCookie(name string, user SessionUser, accessToken string, ttl time.Duration, secure bool) (SessionCookie, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultSessionMaxAge
	}
	expires := time.Now().Add(ttl)
	value, err := EncodeSessionValue(SessionPayload{
		User:        user,
		Expires:     expires.UTC().Format(time.RFC3339),
		AccessToken: accessToken,
	})
	if err != nil {
		return SessionCookie{}, err
	}
	return SessionCookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	}, nil
}

func fromHTTPCookie(c *http.Cookie) SessionCookie {
	sameSite := ""
	switch c.SameSite {
	case http.SameSiteLaxMode:
		sameSite = "Lax"
	case http.SameSiteStrictMode:
		sameSite = "Strict"
	case http.SameSiteNoneMode:
		sameSite = "None"
	}
	expires := c.Expires
	if expires.IsZero() && c.MaxAge > 0 {
		expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
	}
	return SessionCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  expires,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}
