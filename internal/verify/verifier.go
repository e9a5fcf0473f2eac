package verify

import (
	"context"
	"strings"
	"time"

	"authwatch/internal/target"
)

// Verifier is a single authentication check. Implementations never propagate
// transport errors: a failed check comes back as a low-confidence result so
// the aggregator always has a full set of inputs.
type Verifier interface {
	Name() Method
	Verify(ctx context.Context, client *target.Client, cfg Config) VerificationResult
}

func AvailableVerifiers() []Verifier {
	return []Verifier{
		APIVerifier{},
		CookieVerifier{},
		EndpointVerifier{},
		StorageVerifier{},
	}
}

func DefaultMethodOrder() []string {
	return []string{"api", "cookie", "endpoint", "storage"}
}

func ResolveMethodSelection(selection string) []string {
	value := strings.TrimSpace(strings.ToLower(selection))
	if value == "" || value == "all" {
		return DefaultMethodOrder()
	}
	items := strings.Split(value, ",")
	names := make([]string, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(strings.ToLower(item))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Run executes the selected verifiers sequentially and aggregates their
// results into a consensus outcome.
func Run(ctx context.Context, client *target.Client, cfg Config, methodNames []string) Report {
	all := make(map[Method]Verifier)
	for _, verifier := range AvailableVerifiers() {
		all[verifier.Name()] = verifier
	}
	if len(methodNames) == 0 {
		methodNames = DefaultMethodOrder()
	}

	start := time.Now()
	results := make([]VerificationResult, 0, len(methodNames))
	// Unknown method names are reported but excluded from the consensus:
	// a typo must not cast a vote.
	decided := make([]VerificationResult, 0, len(methodNames))
	for _, name := range methodNames {
		method := Method(strings.ToLower(strings.TrimSpace(name)))
		verifier, ok := all[method]
		if !ok {
			results = append(results, VerificationResult{
				Method:     method,
				Confidence: 0,
				Error:      "unknown verification method",
			})
			continue
		}
		checkStart := time.Now()
		result := verifier.Verify(ctx, client, cfg)
		result.Method = verifier.Name()
		if result.ResponseTimeMS == 0 {
			result.ResponseTimeMS = time.Since(checkStart).Milliseconds()
		}
		results = append(results, result)
		decided = append(decided, result)
	}

	outcome := Aggregate(decided, cfg.threshold())
	report := Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Target:      client.BaseURL(),
		Results:     results,
		Outcome:     outcome,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	for _, result := range decided {
		if result.IsAuthenticated {
			report.Authenticated++
		} else {
			report.Unauthenticated++
		}
	}
	if cfg.Debug {
		report.Snapshot = CaptureSnapshot(ctx, client, cfg)
	}
	return report
}
