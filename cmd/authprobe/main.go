package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"authwatch/internal/storagestate"
	"authwatch/internal/target"
	"authwatch/internal/verify"
)

func main() {
	baseURL := flag.String("base-url", envOr("NEXTAUTH_URL", "http://localhost:3000"), "Base URL of the application under verification")
	sessionPath := flag.String("session-path", "/api/auth/session", "Path of the session-status endpoint")
	protectedPath := flag.String("protected-path", "/api/summary", "Path of a protected endpoint used for probing")
	cookieName := flag.String("cookie-name", target.DefaultCookieName, "Name of the session cookie")
	methods := flag.String("methods", "all", "Comma-separated methods: api,cookie,endpoint,storage,all")
	threshold := flag.Float64("threshold", 0.6, "Weighted-score threshold for the authenticated decision")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP timeout per request")
	storageStatePath := flag.String("storage-state", "", "Path to a storage-state JSON file (cookies + localStorage)")
	mockAuth := flag.Bool("mock-auth", envOr("E2E_MOCK_AUTH_ENABLED", "") == "true", "Fabricate a mock session cookie instead of reusing stored state")
	mockUserID := flag.String("mock-user-id", "mock-user-1", "User ID for the mock session")
	mockUserEmail := flag.String("mock-user-email", "mock@example.com", "Email for the mock session")
	mockUserName := flag.String("mock-user-name", "Mock User", "Display name for the mock session")
	expect := flag.String("expect", "", "Assert final state: authenticated|unauthenticated (empty = report only)")
	checkName := flag.String("check-name", "auth-verification", "Label used for failure artifacts")
	artifactsDir := flag.String("artifacts-dir", "test-artifacts", "Directory for failure screenshots and context JSON")
	profile := flag.String("profile", "", "Timing profile name (empty = measure the environment)")
	format := flag.String("format", "text", "Output format: text|json")
	outputPath := flag.String("out", "", "Write full report JSON to this file")
	baselineInPath := flag.String("baseline-in", "", "Load baseline report JSON and run drift comparison")
	baselineOutPath := flag.String("baseline-out", "", "Write current report as future baseline JSON")
	strict := flag.Bool("strict", false, "Exit non-zero on disagreement or baseline degradation")
	debug := flag.Bool("debug", envOr("AUTH_DEBUG", "") == "true", "Capture a debug snapshot alongside the report")
	flag.Parse()

	client := target.NewClient(target.Config{
		BaseURL:       *baseURL,
		SessionPath:   *sessionPath,
		ProtectedPath: *protectedPath,
		CookieName:    *cookieName,
		UserAgent:     "authwatch/cli",
		Timeout:       *timeout,
	})

	cfg := verify.Config{
		CookieName:          *cookieName,
		ConfidenceThreshold: *threshold,
		Debug:               *debug,
	}

	if strings.TrimSpace(*storageStatePath) != "" {
		state, err := storagestate.Load(*storageStatePath)
		if err != nil {
			exitWith("failed to load storage state: " + err.Error())
		}
		cfg.StorageState = state
		if cookie, ok := state.FindCookie(*cookieName); ok {
			client.SetSessionCookie(cookie.ToSessionCookie())
		}
	}

	if *mockAuth {
		cookie, err := target.MockSessionCookie(*cookieName, target.SessionUser{
			ID:    *mockUserID,
			Name:  *mockUserName,
			Email: *mockUserEmail,
		}, "mock-access-token", 24*time.Hour, strings.HasPrefix(*baseURL, "https://"))
		if err != nil {
			exitWith("failed to fabricate mock session: " + err.Error())
		}
		client.SetSessionCookie(cookie)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout*8)
	defer cancel()

	timing := resolveProfile(ctx, client, *profile)
	selected := verify.ResolveMethodSelection(*methods)
	report := verify.Run(ctx, client, cfg, selected)

	var drift *verify.DriftReport
	if strings.TrimSpace(*baselineInPath) != "" {
		baseline, err := readReport(*baselineInPath)
		if err != nil {
			exitWith("failed to read baseline report: " + err.Error())
		}
		d := verify.CompareWithBaseline(report, baseline)
		drift = &d
	}

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "json":
		printJSON(report, timing, drift)
	default:
		printText(report, timing, drift)
	}

	if strings.TrimSpace(*outputPath) != "" {
		if err := writeReport(*outputPath, report); err != nil {
			exitWith("failed to write report: " + err.Error())
		}
	}
	if strings.TrimSpace(*baselineOutPath) != "" {
		if err := writeReport(*baselineOutPath, report); err != nil {
			exitWith("failed to write baseline report: " + err.Error())
		}
	}

	if expectation, ok := parseExpect(*expect); ok {
		if err := verify.Expect(report.Outcome, expectation); err != nil {
			snapshot := report.Snapshot
			if snapshot == nil {
				snapshot = verify.CaptureSnapshot(ctx, client, cfg)
			}
			reporter := verify.NewReporter(*artifactsDir)
			wrapped := reporter.Report(*checkName, client.BaseURL()+client.SessionPath(), err, report.Outcome, snapshot, nil)
			fmt.Fprintln(os.Stderr, wrapped.Error())
			os.Exit(1)
		}
	}

	if *strict && (report.Outcome.Disagreement() || (drift != nil && drift.Degraded)) {
		os.Exit(1)
	}
}

func parseExpect(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "authenticated", "auth", "true":
		return true, true
	case "unauthenticated", "unauth", "false":
		return false, true
	default:
		return false, false
	}
}

func resolveProfile(ctx context.Context, client *target.Client, name string) verify.TimingProfile {
	if strings.TrimSpace(name) != "" {
		profile, ok := verify.ProfileByName(name)
		if !ok {
			exitWith(fmt.Sprintf("unknown timing profile %q (known: %s)", name, strings.Join(verify.ProfileNames(), ",")))
		}
		return profile
	}
	return verify.NewProfiler().Profile(ctx, client)
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func printText(report verify.Report, timing verify.TimingProfile, drift *verify.DriftReport) {
	fmt.Printf("Target: %s\n", report.Target)
	fmt.Printf("Generated: %s\n", report.GeneratedAt)
	fmt.Printf("Profile: %s\n\n", timing.Name)

	for _, result := range report.Results {
		state := "UNAUTH"
		if result.IsAuthenticated {
			state = "AUTH"
		}
		fmt.Printf("[%s] %s confidence=%.2f (%dms", state, result.Method, result.Confidence, result.ResponseTimeMS)
		if result.RetryAttempts > 0 {
			fmt.Printf(", retries=%d", result.RetryAttempts)
		}
		fmt.Printf(")\n")
		if result.Error != "" {
			fmt.Printf("  error: %s\n", result.Error)
		}
		if len(result.Details) > 0 {
			detailsJSON, _ := json.Marshal(result.Details)
			fmt.Printf("  details: %s\n", detailsJSON)
		}
	}

	decision := "unauthenticated"
	if report.Outcome.IsAuthenticated {
		decision = "authenticated"
	}
	fmt.Printf("\nConsensus: %s (weighted=%.3f confidence=%.3f auth=%d unauth=%d)\n",
		decision, report.Outcome.WeightedScore, report.Outcome.OverallConfidence,
		report.Authenticated, report.Unauthenticated)
	if report.Outcome.Disagreement() {
		fmt.Println("Warning: verifiers disagree on the decision")
	}

	if report.Snapshot != nil {
		fmt.Printf("\nDebug snapshot: cookie_present=%t session_present=%t storage_keys=%d\n",
			report.Snapshot.CookiePresent, report.Snapshot.SessionPresent(), len(report.Snapshot.StorageKeys))
	}

	if drift != nil {
		fmt.Printf("\nBaseline drift: degraded=%t score_drift=%+.3f\n", drift.Degraded, drift.WeightedScoreDrift)
		for _, finding := range drift.Findings {
			fmt.Printf("  - %s\n", finding)
		}
	}
}

func printJSON(report verify.Report, timing verify.TimingProfile, drift *verify.DriftReport) {
	payload := map[string]any{
		"report":  report,
		"profile": timing.Name,
	}
	if drift != nil {
		payload["drift"] = drift
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		exitWith("failed to encode report JSON: " + err.Error())
	}
	fmt.Println(string(data))
}

func writeReport(path string, report verify.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	cleanPath := filepath.Clean(path)
	return os.WriteFile(cleanPath, data, 0o644)
}

func readReport(path string) (verify.Report, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return verify.Report{}, err
	}
	var report verify.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return verify.Report{}, err
	}
	return report, nil
}

func exitWith(message string) {
	fmt.Fprintln(os.Stderr, "error:", message)
	os.Exit(2)
}
