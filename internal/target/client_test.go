package target

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientDefaults(t *testing.T) {
	client := NewClient(Config{})
	if client.BaseURL() != "http://localhost:3000" {
		t.Fatalf("unexpected base URL %s", client.BaseURL())
	}
	if client.SessionPath() != "/api/auth/session" {
		t.Fatalf("unexpected session path %s", client.SessionPath())
	}
	if client.CookieName() != DefaultCookieName {
		t.Fatalf("unexpected cookie name %s", client.CookieName())
	}
}

func TestClientSendsSessionCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(DefaultCookieName); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte(`{"user":{"id":"u-1"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	client.SetSessionCookie(SessionCookie{
		Name:    DefaultCookieName,
		Value:   "session-value",
		Expires: time.Now().Add(time.Hour),
	})

	status, _, err := client.SessionStatus(context.Background())
	if err != nil {
		t.Fatalf("session status: %v", err)
	}
	if !status.Authenticated() {
		t.Fatal("expected authenticated status")
	}
	if gotCookie != "session-value" {
		t.Fatalf("server saw cookie %q", gotCookie)
	}
}

func TestClientOmitsExpiredCookie(t *testing.T) {
	var sawCookie bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(DefaultCookieName); err == nil {
			sawCookie = true
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	client.SetSessionCookie(SessionCookie{
		Name:    DefaultCookieName,
		Value:   "stale",
		Expires: time.Now().Add(-time.Hour),
	})

	if _, _, err := client.SessionStatus(context.Background()); err != nil {
		t.Fatalf("session status: %v", err)
	}
	if sawCookie {
		t.Fatal("expired cookie must not be sent")
	}
}

func TestClientAPIErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	raw, err := client.ProtectedProbe(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error for 401")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError with 401, got %v", err)
	}
	if raw == nil || raw.StatusCode != http.StatusUnauthorized {
		t.Fatal("raw response must accompany the error")
	}
}

func TestClientAbsorbsSetCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     DefaultCookieName,
			Value:    "rotated-value",
			Path:     "/",
			MaxAge:   3600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Write([]byte(`{"user":{"id":"u-1"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, _, err := client.SessionStatus(context.Background()); err != nil {
		t.Fatalf("session status: %v", err)
	}
	cookie, ok := client.SessionCookie()
	if !ok {
		t.Fatal("expected rotated cookie tracked")
	}
	if cookie.Value != "rotated-value" || !cookie.HTTPOnly || cookie.SameSite != "Lax" {
		t.Fatalf("rotated cookie lost attributes: %+v", cookie)
	}
	if cookie.Expires.IsZero() {
		t.Fatal("MaxAge must be converted to an expiry")
	}
}

func TestClientClearsCookieOnServerDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: DefaultCookieName, Value: "", MaxAge: -1})
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	client.SetSessionCookie(SessionCookie{
		Name:    DefaultCookieName,
		Value:   "soon-gone",
		Expires: time.Now().Add(time.Hour),
	})
	if _, _, err := client.SessionStatus(context.Background()); err != nil {
		t.Fatalf("session status: %v", err)
	}
	if _, ok := client.SessionCookie(); ok {
		t.Fatal("expected cookie cleared after server delete")
	}
}

func TestClientQueryAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") != "2026-03-01" {
			t.Errorf("missing query parameter, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Debug") != "1" {
			t.Error("missing extra header")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.RawRequest(context.Background(), http.MethodGet, "/api/summary", RequestOptions{
		Query:        map[string][]string{"since": {"2026-03-01"}},
		ExtraHeaders: map[string]string{"X-Debug": "1"},
	})
	if err != nil {
		t.Fatalf("raw request: %v", err)
	}
}
