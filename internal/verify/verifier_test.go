package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestResolveMethodSelection(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"api", "cookie", "endpoint", "storage"}},
		{"all", []string{"api", "cookie", "endpoint", "storage"}},
		{"api,cookie", []string{"api", "cookie"}},
		{" Endpoint , STORAGE ", []string{"endpoint", "storage"}},
		{"api,,cookie", []string{"api", "cookie"}},
	}
	for _, tc := range cases {
		got := ResolveMethodSelection(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ResolveMethodSelection(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRunHealthySession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/session":
			w.Write([]byte(`{"user":{"id":"u-1","name":"Test User"},"expires":"2027-01-01T00:00:00Z"}`))
		case "/api/summary":
			w.Write([]byte(`{"summary":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	installCookie(t, client, time.Hour)

	report := Run(context.Background(), client, Config{}, []string{"api", "cookie", "endpoint"})
	if !report.Outcome.IsAuthenticated {
		t.Fatalf("expected authenticated, outcome %+v", report.Outcome)
	}
	if report.Outcome.OverallConfidence < 0.8 {
		t.Fatalf("expected overall confidence >= 0.8, got %.3f", report.Outcome.OverallConfidence)
	}
	if report.Authenticated != 3 || report.Unauthenticated != 0 {
		t.Fatalf("expected 3/0 split, got %d/%d", report.Authenticated, report.Unauthenticated)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
}

func TestRunLoggedOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/session":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	report := Run(context.Background(), newTestClient(t, server), Config{}, []string{"api", "cookie", "endpoint"})
	if report.Outcome.IsAuthenticated {
		t.Fatalf("expected unauthenticated, outcome %+v", report.Outcome)
	}
	if report.Outcome.OverallConfidence < 0.8 {
		t.Fatalf("expected overall confidence >= 0.8, got %.3f", report.Outcome.OverallConfidence)
	}
}

func TestRunUnknownMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	report := Run(context.Background(), newTestClient(t, server), Config{}, []string{"api", "dns"})
	if len(report.Results) != 2 {
		t.Fatalf("expected both methods reported, got %d", len(report.Results))
	}
	unknown := report.Results[1]
	if unknown.Method != "dns" || unknown.Error != "unknown verification method" {
		t.Fatalf("expected zero-confidence unknown-method result, got %+v", unknown)
	}
	if unknown.Confidence != 0 {
		t.Fatalf("unknown method must not carry confidence, got %.2f", unknown.Confidence)
	}
	if len(report.Outcome.Results) != 1 {
		t.Fatalf("unknown method must not enter the consensus, got %d aggregated results", len(report.Outcome.Results))
	}
	if report.Authenticated+report.Unauthenticated != 1 {
		t.Fatalf("unknown method must not be counted, got %d/%d", report.Authenticated, report.Unauthenticated)
	}
}

func TestRunUnknownMethodsCastNoVote(t *testing.T) {
	// Two typo'd names beside one conclusive authenticated API result: the
	// placeholders must not outvote the real signal.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"u-1"},"expires":"2027-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	installCookie(t, client, time.Hour)

	report := Run(context.Background(), client, Config{}, []string{"api", "bogus1", "bogus2"})
	if !report.Outcome.IsAuthenticated {
		t.Fatalf("expected authenticated despite typo'd methods, outcome %+v", report.Outcome)
	}
	if report.Authenticated != 1 || report.Unauthenticated != 0 {
		t.Fatalf("expected 1/0 split, got %d/%d", report.Authenticated, report.Unauthenticated)
	}
}

func TestRunDebugSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"u-1"},"expires":"2027-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	installCookie(t, client, time.Hour)

	plain := Run(context.Background(), client, Config{}, []string{"api", "cookie"})
	if plain.Snapshot != nil {
		t.Fatalf("expected no snapshot without debug, got %+v", plain.Snapshot)
	}

	debugged := Run(context.Background(), client, Config{Debug: true}, []string{"api", "cookie"})
	if debugged.Snapshot == nil {
		t.Fatal("expected debug run to carry a snapshot")
	}
	if !debugged.Snapshot.CookiePresent {
		t.Fatal("snapshot should record the installed cookie")
	}
	if !debugged.Snapshot.SessionPresent() {
		t.Fatalf("snapshot should record the session user, got %+v", debugged.Snapshot)
	}
}

func TestRunDegradedSessionEndpoint(t *testing.T) {
	// Session endpoint down, cookie valid, protected endpoint answering 403:
	// the run must still come out authenticated.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/session":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/api/summary":
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	installCookie(t, client, time.Hour)

	report := Run(context.Background(), client, Config{APIMaxAttempts: 1}, []string{"api", "cookie", "endpoint"})
	if !report.Outcome.IsAuthenticated {
		t.Fatalf("expected authenticated despite degraded session endpoint, outcome %+v", report.Outcome)
	}
	if !report.Outcome.Disagreement() {
		t.Fatal("expected the run to record verifier disagreement")
	}
}
