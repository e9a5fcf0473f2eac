package target

import (
	"testing"
	"time"
)

func TestSessionValueRoundTrip(t *testing.T) {
	payload := SessionPayload{
		User:           SessionUser{ID: "u-1", Name: "Test User", Email: "test@example.com"},
		Expires:        "2027-01-01T00:00:00Z",
		AccessToken:    "gho_testtoken1234567890",
		InstallationID: 42,
	}
	value, err := EncodeSessionValue(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSessionValue(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.User.ID != "u-1" || decoded.AccessToken != payload.AccessToken || decoded.InstallationID != 42 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeSessionValueTolerantOfPadding(t *testing.T) {
	value, err := EncodeSessionValue(SessionPayload{User: SessionUser{ID: "u-1"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSessionValue(value + "==")
	if err != nil {
		t.Fatalf("decode with padding: %v", err)
	}
	if decoded.User.ID != "u-1" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestDecodeSessionValueRejectsGarbage(t *testing.T) {
	if _, err := DecodeSessionValue("not!base64!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeSessionValue("aGVsbG8"); err == nil {
		t.Fatal("expected JSON parse error for non-JSON payload")
	}
}

func TestMockSessionCookieContract(t *testing.T) {
	cookie, err := MockSessionCookie("", SessionUser{ID: "u-1"}, "gho_token", 0, true)
	if err != nil {
		t.Fatalf("mock cookie: %v", err)
	}
	if cookie.Name != DefaultCookieName {
		t.Fatalf("expected default cookie name, got %s", cookie.Name)
	}
	if !cookie.HTTPOnly || !cookie.Secure || cookie.SameSite != "Lax" || cookie.Path != "/" {
		t.Fatalf("cookie attributes violate the session contract: %+v", cookie)
	}
	ttl := time.Until(cookie.Expires)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Fatalf("expected default 24h ttl, got %s", ttl)
	}
	payload, err := cookie.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.User.ID != "u-1" || payload.AccessToken != "gho_token" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSessionCookieExpiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cookie := SessionCookie{Name: DefaultCookieName, Expires: now.Add(-time.Second)}
	if !cookie.Expired(now) {
		t.Fatal("expected expired")
	}
	cookie.Expires = now.Add(2 * time.Minute)
	if cookie.Expired(now) {
		t.Fatal("not yet expired")
	}
	if !cookie.ExpiresWithin(5*time.Minute, now) {
		t.Fatal("expected near expiry")
	}
	if cookie.ExpiresWithin(time.Minute, now) {
		t.Fatal("2 minutes out is not within 1 minute")
	}
	cookie.Expires = time.Time{}
	if cookie.Expired(now) {
		t.Fatal("session cookies without expiry never read as expired")
	}
	if cookie.ExpiresWithin(5*time.Minute, now) {
		t.Fatal("session cookies without expiry are never near expiry")
	}
}

func TestHasSecurityAttributes(t *testing.T) {
	cookie := SessionCookie{HTTPOnly: true, SameSite: "lax"}
	if !cookie.HasSecurityAttributes() {
		t.Fatal("SameSite comparison must be case-insensitive")
	}
	cookie.SameSite = "Strict"
	if cookie.HasSecurityAttributes() {
		t.Fatal("contract requires SameSite=Lax")
	}
	cookie = SessionCookie{SameSite: "Lax"}
	if cookie.HasSecurityAttributes() {
		t.Fatal("contract requires HttpOnly")
	}
}
