package verify

import (
	"fmt"
	"math"
	"strings"
)

// DriftReport compares a verification run against a stored baseline so CI can
// catch a target whose authentication behavior is quietly degrading (rising
// retry counts, falling confidences) before it flips the consensus.
type DriftReport struct {
	Target             string             `json:"target"`
	BaselineTarget     string             `json:"baseline_target"`
	DecisionChanged    bool               `json:"decision_changed"`
	WeightedScoreDrift float64            `json:"weighted_score_drift"`
	ConfidenceDrift    map[string]float64 `json:"confidence_drift"`
	Findings           []string           `json:"findings"`
	Degraded           bool               `json:"degraded"`
}

// confidenceDriftWarn is the per-method confidence drop that marks a run as
// degraded even when the decision did not flip.
const confidenceDriftWarn = 0.15

func CompareWithBaseline(current, baseline Report) DriftReport {
	drift := DriftReport{
		Target:          current.Target,
		BaselineTarget:  baseline.Target,
		ConfidenceDrift: map[string]float64{},
		Findings:        []string{},
	}
	if strings.TrimSpace(current.Target) != strings.TrimSpace(baseline.Target) {
		drift.Findings = append(drift.Findings, fmt.Sprintf("target mismatch: current=%s baseline=%s", current.Target, baseline.Target))
	}

	drift.DecisionChanged = current.Outcome.IsAuthenticated != baseline.Outcome.IsAuthenticated
	if drift.DecisionChanged {
		drift.Findings = append(drift.Findings, fmt.Sprintf("consensus decision changed: baseline=%t current=%t",
			baseline.Outcome.IsAuthenticated, current.Outcome.IsAuthenticated))
		drift.Degraded = true
	}

	drift.WeightedScoreDrift = round3(current.Outcome.WeightedScore - baseline.Outcome.WeightedScore)

	baselineByMethod := map[Method]VerificationResult{}
	for _, result := range baseline.Results {
		baselineByMethod[result.Method] = result
	}
	for _, result := range current.Results {
		base, ok := baselineByMethod[result.Method]
		if !ok {
			drift.Findings = append(drift.Findings, fmt.Sprintf("method %s missing from baseline", result.Method))
			continue
		}
		delta := round3(result.Confidence - base.Confidence)
		drift.ConfidenceDrift[string(result.Method)] = delta
		if delta < 0 && math.Abs(delta) >= confidenceDriftWarn {
			drift.Findings = append(drift.Findings, fmt.Sprintf("%s confidence dropped %.3f -> %.3f", result.Method, base.Confidence, result.Confidence))
			drift.Degraded = true
		}
		if result.RetryAttempts > base.RetryAttempts {
			drift.Findings = append(drift.Findings, fmt.Sprintf("%s retries rose %d -> %d", result.Method, base.RetryAttempts, result.RetryAttempts))
		}
	}
	return drift
}
