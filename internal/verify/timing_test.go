package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestProfileByName(t *testing.T) {
	profile, ok := ProfileByName("ci-standard")
	if !ok {
		t.Fatal("expected ci-standard to exist")
	}
	if profile.TimeoutMultiplier != 2.5 {
		t.Fatalf("unexpected multiplier %.1f", profile.TimeoutMultiplier)
	}
	if _, ok := ProfileByName("warp-speed"); ok {
		t.Fatal("expected unknown profile to be rejected")
	}
	if len(ProfileNames()) != 6 {
		t.Fatalf("expected 6 profiles, got %d", len(ProfileNames()))
	}
}

func TestProfilerMeasuresAndCaches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	profiler := NewProfiler()
	profiler.isCI = false
	client := newTestClient(t, server)

	if profiler.State() != "uninitialized" {
		t.Fatalf("expected uninitialized state, got %s", profiler.State())
	}

	profile := profiler.Profile(context.Background(), client)
	if profile.Name != "fast-local" {
		t.Fatalf("expected fast-local for a loopback server, got %s", profile.Name)
	}
	if profiler.State() != "profiled" {
		t.Fatalf("expected profiled state, got %s", profiler.State())
	}
	first := hits.Load()
	if first != 6 {
		t.Fatalf("expected 3 navigation + 3 session samples, got %d", first)
	}

	// Second call must come from cache.
	profiler.Profile(context.Background(), client)
	if hits.Load() != first {
		t.Fatalf("expected cached profile, server saw %d extra requests", hits.Load()-first)
	}
}

func TestProfilerTTLExpiry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	profiler := NewProfiler()
	profiler.isCI = false
	profiler.ttl = 0
	client := newTestClient(t, server)

	profiler.Profile(context.Background(), client)
	profiler.Profile(context.Background(), client)
	if hits.Load() != 12 {
		t.Fatalf("expected re-measurement after TTL expiry, server saw %d requests", hits.Load())
	}
}

func TestProfilerReset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	profiler := NewProfiler()
	profiler.isCI = false
	profiler.Profile(context.Background(), newTestClient(t, server))
	profiler.Reset()
	if profiler.State() != "uninitialized" {
		t.Fatalf("expected uninitialized after reset, got %s", profiler.State())
	}
	if profiler.Metrics().MeasuredAt.Unix() > 0 {
		t.Fatal("expected metrics cleared after reset")
	}
}

func TestProfilerUnreachableTargetDefaultsToRobust(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	profiler := NewProfiler()
	profiler.isCI = false
	profile := profiler.Profile(context.Background(), newTestClient(t, server))
	if profile.Name != "robust" {
		t.Fatalf("expected robust on measurement failure, got %s", profile.Name)
	}
}

func TestClassifyEnvironmentCI(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "ci-fast"},
		{80, "ci-fast"},
		{60, "ci-standard"},
		{20, "ci-slow"},
	}
	for _, tc := range cases {
		profile := classifyEnvironment(EnvironmentMetrics{PerformanceScore: tc.score}, true, nil)
		if profile.Name != tc.want {
			t.Fatalf("score %.0f: expected %s, got %s", tc.score, tc.want, profile.Name)
		}
	}
}

func TestClassifyEnvironmentLocal(t *testing.T) {
	cases := []struct {
		nav, session float64
		want         string
	}{
		{50, 40, "fast-local"},
		{500, 300, "local-dev"},
		{1500, 900, "robust"},
	}
	for _, tc := range cases {
		profile := classifyEnvironment(EnvironmentMetrics{NavigationMS: tc.nav, SessionMS: tc.session}, false, nil)
		if profile.Name != tc.want {
			t.Fatalf("nav=%.0f session=%.0f: expected %s, got %s", tc.nav, tc.session, tc.want, profile.Name)
		}
	}
}

func TestClassifyEnvironmentFailure(t *testing.T) {
	profile := classifyEnvironment(EnvironmentMetrics{}, true, errors.New("connection refused"))
	if profile.Name != "robust" {
		t.Fatalf("expected robust, got %s", profile.Name)
	}
}

func TestPerformanceScore(t *testing.T) {
	if got := performanceScore(0, 0); got != 100 {
		t.Fatalf("expected perfect score for zero latency, got %.2f", got)
	}
	if got := performanceScore(3000, 2000); got != 0 {
		t.Fatalf("expected floor score for saturated latency, got %.2f", got)
	}
	if got := performanceScore(1500, 1000); got != 50 {
		t.Fatalf("expected midpoint score 50, got %.2f", got)
	}
}
