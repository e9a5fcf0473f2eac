package server

import "testing"

func testConfigWithTarget() ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Targets = []TargetConfig{
		{
			Name:              "staging",
			BaseURL:           "http://localhost:3000",
			MaxConcurrentRuns: 1,
			RPM:               2,
		},
	}
	return cfg
}

func TestQuickCheckToRequest(t *testing.T) {
	cfg := testConfigWithTarget()
	request, err := quickCheckToRequest(QuickCheckRequest{
		Target:  "Staging",
		Methods: "api,cookie",
	}, cfg)
	if err != nil {
		t.Fatalf("quickCheckToRequest returned error: %v", err)
	}
	if request.Target != "staging" {
		t.Fatalf("expected lowercase target, got %q", request.Target)
	}
	if len(request.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %v", request.Methods)
	}
	if request.TimeoutSec != cfg.Runs.DefaultTimeoutSec {
		t.Fatalf("expected default timeout %d, got %d", cfg.Runs.DefaultTimeoutSec, request.TimeoutSec)
	}
}

func TestQuickCheckToRequestRejectUnknownTarget(t *testing.T) {
	cfg := testConfigWithTarget()
	_, err := quickCheckToRequest(QuickCheckRequest{Target: "production"}, cfg)
	if err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestQuickCheckToRequestRejectEmptyTarget(t *testing.T) {
	cfg := testConfigWithTarget()
	_, err := quickCheckToRequest(QuickCheckRequest{}, cfg)
	if err == nil {
		t.Fatalf("expected error for missing target")
	}
}

func TestTargetGuardConcurrencyLimit(t *testing.T) {
	guard := NewTargetGuard(testConfigWithTarget())
	lease, err := guard.Acquire("staging")
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if _, err := guard.Acquire("staging"); err == nil {
		t.Fatalf("expected concurrent-run limit rejection")
	}
	guard.Release(lease)
	lease2, err := guard.Acquire("staging")
	if err != nil {
		t.Fatalf("Acquire after Release failed: %v", err)
	}
	guard.Release(lease2)
}

func TestTargetGuardRateLimit(t *testing.T) {
	guard := NewTargetGuard(testConfigWithTarget())
	for i := 0; i < 2; i++ {
		lease, err := guard.Acquire("staging")
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		guard.Release(lease)
	}
	if _, err := guard.Acquire("staging"); err == nil {
		t.Fatalf("expected rate limit rejection after 2 acquisitions")
	}
}

func TestTargetGuardUnknownTarget(t *testing.T) {
	guard := NewTargetGuard(testConfigWithTarget())
	if _, err := guard.Acquire("nope"); err == nil {
		t.Fatalf("expected rejection for unconfigured target")
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(2)
	if !limiter.Allow("ip-1") || !limiter.Allow("ip-1") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatalf("expected third request to be limited")
	}
	if !limiter.Allow("ip-2") {
		t.Fatalf("expected separate key to have its own window")
	}
}
