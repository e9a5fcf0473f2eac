package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestEndpointVerifierAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("since") == "" || r.URL.Query().Get("until") == "" {
			t.Error("expected date-range query parameters")
		}
		w.Write([]byte(`{"summary":"ok"}`))
	}))
	defer server.Close()

	result := EndpointVerifier{}.Verify(context.Background(), newTestClient(t, server), Config{})
	if !result.IsAuthenticated {
		t.Fatal("expected authenticated")
	}
	if result.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %.2f", result.Confidence)
	}
}

func TestEndpointVerifierUnauthorized(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	result := EndpointVerifier{}.Verify(context.Background(), newTestClient(t, server), Config{})
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated")
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %.2f", result.Confidence)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("401 must be conclusive, server saw %d requests", got)
	}
}

func TestEndpointVerifierForbiddenStillAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	result := EndpointVerifier{}.Verify(context.Background(), newTestClient(t, server), Config{})
	if !result.IsAuthenticated {
		t.Fatal("403 proves the session was accepted")
	}
	if result.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %.2f", result.Confidence)
	}
}

func TestEndpointVerifierServerErrorRetryBudget(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	result := EndpointVerifier{}.Verify(context.Background(), newTestClient(t, server), Config{})
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated")
	}
	if result.Confidence != 0.2 {
		t.Fatalf("expected confidence 0.2, got %.2f", result.Confidence)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected endpoint retry budget of 2, server saw %d requests", got)
	}
}

func TestEndpointVerifierInconclusiveStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	result := EndpointVerifier{}.Verify(context.Background(), newTestClient(t, server), Config{})
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated on inconclusive status")
	}
	if result.Confidence != 0.3 {
		t.Fatalf("expected confidence 0.3, got %.2f", result.Confidence)
	}
}
