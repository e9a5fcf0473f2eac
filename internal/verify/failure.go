package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type FailureType string

const (
	FailureCookieLost        FailureType = "cookie-lost"
	FailureSessionAPI        FailureType = "session-api-failed"
	FailureProtectedEndpoint FailureType = "protected-endpoint-failed"
	FailureNavigationTiming  FailureType = "navigation-timing"
	FailureServerUnavailable FailureType = "server-unavailable"
	FailureUnknown           FailureType = "unknown"
)

type Environment struct {
	IsCI      bool   `json:"is_ci"`
	UserAgent string `json:"user_agent,omitempty"`
	Viewport  string `json:"viewport,omitempty"`
}

type Artifacts struct {
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	TracePath      string `json:"trace_path,omitempty"`
	LogPath        string `json:"log_path,omitempty"`
}

type Debugging struct {
	PossibleCauses   []string `json:"possible_causes"`
	SuggestedActions []string `json:"suggested_actions"`
}

// FailureContext is the diagnostic bundle written when a verification
// assertion fails. Constructed once, written to disk, never mutated.
type FailureContext struct {
	Timestamp    string           `json:"timestamp"`
	CheckName    string           `json:"check_name"`
	FailureType  FailureType      `json:"failure_type"`
	ErrorMessage string           `json:"error_message"`
	CurrentURL   string           `json:"current_url,omitempty"`
	AuthState    ConsensusOutcome `json:"auth_state"`
	Snapshot     *DebugSnapshot   `json:"snapshot,omitempty"`
	Environment  Environment      `json:"environment"`
	Artifacts    Artifacts        `json:"artifacts"`
	Debugging    Debugging        `json:"debugging"`
}

// failureGuidance is a static lookup, not inferred: each classification maps
// to a fixed list of causes and actions.
var failureGuidance = map[FailureType]Debugging{
	FailureCookieLost: {
		PossibleCauses: []string{
			"session cookie was cleared or never set",
			"cookie domain/path does not match the request URL",
			"storage state file is stale or missing the session cookie",
		},
		SuggestedActions: []string{
			"re-run the login or mock-auth setup step",
			"regenerate the storage state file",
			"verify the cookie name matches the application configuration",
		},
	},
	FailureSessionAPI: {
		PossibleCauses: []string{
			"session endpoint cannot decode the cookie (secret mismatch)",
			"session expired server-side while the cookie remained",
			"session endpoint is misrouted or returning an empty body",
		},
		SuggestedActions: []string{
			"check NEXTAUTH_SECRET matches between cookie producer and server",
			"inspect the raw session response in the failure context",
			"confirm the session endpoint path in the target configuration",
		},
	},
	FailureProtectedEndpoint: {
		PossibleCauses: []string{
			"middleware rejects a session the session endpoint accepts",
			"protected route requires additional authorization",
			"protected route path changed",
		},
		SuggestedActions: []string{
			"compare session-endpoint and protected-endpoint status codes",
			"check route-level authorization requirements",
			"confirm the protected endpoint path in the target configuration",
		},
	},
	FailureNavigationTiming: {
		PossibleCauses: []string{
			"server is slow to respond under load",
			"timing profile too aggressive for this environment",
		},
		SuggestedActions: []string{
			"reset the timing profiler to force re-measurement",
			"select a slower profile (ci-slow or robust) explicitly",
		},
	},
	FailureServerUnavailable: {
		PossibleCauses: []string{
			"target server is not running",
			"base URL or port is wrong",
		},
		SuggestedActions: []string{
			"start the target application before verification",
			"check the target base URL",
		},
	},
	FailureUnknown: {
		PossibleCauses: []string{
			"failure pattern does not match any known signature",
		},
		SuggestedActions: []string{
			"inspect the failure context JSON and per-method details",
		},
	},
}

// Classify pattern-matches the failure against known signatures.
func Classify(snapshot *DebugSnapshot, cause error) FailureType {
	message := ""
	if cause != nil {
		message = strings.ToLower(cause.Error())
	}
	switch {
	case strings.Contains(message, "connection refused") || strings.Contains(message, "no such host") || strings.Contains(message, "connection reset"):
		return FailureServerUnavailable
	case strings.Contains(message, "timeout") || strings.Contains(message, "deadline exceeded"):
		return FailureNavigationTiming
	case snapshot != nil && !snapshot.CookiePresent && !snapshot.SessionPresent():
		return FailureCookieLost
	case snapshot != nil && snapshot.CookiePresent && !snapshot.SessionPresent():
		return FailureSessionAPI
	case snapshot != nil && snapshot.SessionPresent():
		return FailureProtectedEndpoint
	default:
		return FailureUnknown
	}
}

// Reporter writes diagnostic bundles under the artifact directory and wraps
// assertion failures with classification and remediation guidance.
type Reporter struct {
	ArtifactDir string
	Environment Environment
	now         func() time.Time
}

func NewReporter(artifactDir string) *Reporter {
	if strings.TrimSpace(artifactDir) == "" {
		artifactDir = "test-artifacts"
	}
	return &Reporter{
		ArtifactDir: artifactDir,
		Environment: Environment{IsCI: envBool("CI")},
		now:         time.Now,
	}
}

// Report classifies the failure, writes the context JSON (and screenshot when
// provided), and returns a VerificationError wrapping cause. The original
// error stays reachable through errors.Is/errors.As.
func (r *Reporter) Report(checkName, currentURL string, cause error, outcome ConsensusOutcome, snapshot *DebugSnapshot, screenshot []byte) error {
	failureType := Classify(snapshot, cause)
	timestamp := r.now().UTC()
	context := &FailureContext{
		Timestamp:    timestamp.Format(time.RFC3339),
		CheckName:    checkName,
		FailureType:  failureType,
		ErrorMessage: summarizeError(cause),
		CurrentURL:   currentURL,
		AuthState:    outcome,
		Snapshot:     snapshot,
		Environment:  r.Environment,
		Debugging:    failureGuidance[failureType],
	}

	stem := artifactStem(checkName, timestamp)
	if len(screenshot) > 0 {
		path := filepath.Join(r.ArtifactDir, stem+".png")
		if err := writeArtifact(path, screenshot); err == nil {
			context.Artifacts.ScreenshotPath = path
		}
	}
	contextPath := filepath.Join(r.ArtifactDir, stem+".json")
	if data, err := json.MarshalIndent(context, "", "  "); err == nil {
		if err := writeArtifact(contextPath, data); err == nil {
			context.Artifacts.LogPath = contextPath
		}
	}

	return &VerificationError{
		Type:    failureType,
		Context: context,
		cause:   cause,
	}
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func artifactStem(checkName string, at time.Time) string {
	name := strings.ToLower(strings.TrimSpace(checkName))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" {
		name = "check"
	}
	return fmt.Sprintf("%s-%s", name, at.Format("20060102-150405"))
}

// VerificationError is the enriched assertion failure handed back to the
// caller: classification, per-method breakdown, causes, and actions in one
// readable message, with the original error preserved underneath.
type VerificationError struct {
	Type    FailureType
	Context *FailureContext
	cause   error
}

func (e *VerificationError) Unwrap() error { return e.cause }

func (e *VerificationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "authentication verification failed [%s]: %s\n", e.Type, e.Context.ErrorMessage)
	fmt.Fprintf(&b, "consensus: authenticated=%t weighted_score=%.3f overall_confidence=%.3f\n",
		e.Context.AuthState.IsAuthenticated, e.Context.AuthState.WeightedScore, e.Context.AuthState.OverallConfidence)
	for _, result := range e.Context.AuthState.Results {
		fmt.Fprintf(&b, "  %-8s authenticated=%-5t confidence=%.2f attempts=%d\n",
			result.Method, result.IsAuthenticated, result.Confidence, result.RetryAttempts)
	}
	if len(e.Context.Debugging.PossibleCauses) > 0 {
		b.WriteString("possible causes:\n")
		for _, cause := range e.Context.Debugging.PossibleCauses {
			fmt.Fprintf(&b, "  - %s\n", cause)
		}
	}
	if len(e.Context.Debugging.SuggestedActions) > 0 {
		b.WriteString("suggested actions:\n")
		for _, action := range e.Context.Debugging.SuggestedActions {
			fmt.Fprintf(&b, "  - %s\n", action)
		}
	}
	if e.Context.Artifacts.LogPath != "" {
		fmt.Fprintf(&b, "failure context: %s\n", e.Context.Artifacts.LogPath)
	}
	if e.Context.Artifacts.ScreenshotPath != "" {
		fmt.Fprintf(&b, "screenshot: %s\n", e.Context.Artifacts.ScreenshotPath)
	}
	return strings.TrimRight(b.String(), "\n")
}
