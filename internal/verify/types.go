package verify

import (
	"strings"
	"time"

	"authwatch/internal/storagestate"
)

// Method identifies one verification strategy.
type Method string

const (
	MethodAPI      Method = "api"
	MethodCookie   Method = "cookie"
	MethodEndpoint Method = "endpoint"
	MethodStorage  Method = "storage"
)

// VerificationResult is one verifier's judgement. Created fresh per call and
// never mutated afterwards.
type VerificationResult struct {
	Method          Method         `json:"method"`
	IsAuthenticated bool           `json:"is_authenticated"`
	Confidence      float64        `json:"confidence"`
	Details         map[string]any `json:"details,omitempty"`
	ResponseTimeMS  int64          `json:"response_time_ms"`
	RetryAttempts   int            `json:"retry_attempts"`
	Error           string         `json:"error,omitempty"`
}

// ConsensusOutcome is derived purely from a set of VerificationResults.
type ConsensusOutcome struct {
	IsAuthenticated     bool                 `json:"is_authenticated"`
	OverallConfidence   float64              `json:"overall_confidence"`
	WeightedScore       float64              `json:"weighted_score"`
	SimpleConsensus     bool                 `json:"simple_consensus"`
	ConfidenceConsensus bool                 `json:"confidence_consensus"`
	Results             []VerificationResult `json:"results"`
}

// Disagreement reports whether the verifiers split on the decision.
func (o ConsensusOutcome) Disagreement() bool {
	authenticated := 0
	for _, result := range o.Results {
		if result.IsAuthenticated {
			authenticated++
		}
	}
	return authenticated > 0 && authenticated < len(o.Results)
}

type Config struct {
	CookieName          string
	ConfidenceThreshold float64
	APIMaxAttempts      int
	EndpointMaxAttempts int
	NearExpiryWindow    string
	StorageState        *storagestate.State
	Debug               bool
}

func (c Config) threshold() float64 {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return 0.6
	}
	return c.ConfidenceThreshold
}

func (c Config) apiMaxAttempts() int {
	if c.APIMaxAttempts <= 0 {
		return 3
	}
	return clampInt(c.APIMaxAttempts, 1, 8)
}

func (c Config) endpointMaxAttempts() int {
	if c.EndpointMaxAttempts <= 0 {
		return 2
	}
	return clampInt(c.EndpointMaxAttempts, 1, 8)
}

func (c Config) nearExpiry() time.Duration {
	if parsed, err := time.ParseDuration(strings.TrimSpace(c.NearExpiryWindow)); err == nil && parsed > 0 {
		return parsed
	}
	return nearExpiryWindow
}

// Report is the output of one verification run.
type Report struct {
	GeneratedAt     string               `json:"generated_at"`
	Target          string               `json:"target"`
	Results         []VerificationResult `json:"results"`
	Outcome         ConsensusOutcome     `json:"outcome"`
	Authenticated   int                  `json:"authenticated"`
	Unauthenticated int                  `json:"unauthenticated"`
	DurationMS      int64                `json:"duration_ms"`
	Snapshot        *DebugSnapshot       `json:"snapshot,omitempty"`
}
