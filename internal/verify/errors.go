package verify

import "fmt"

// Only assertion and timing errors escape the verification layer; transport
// and parse failures are absorbed into low-confidence results by the
// verifiers themselves.

// AssertionError reports that the consensus outcome disagrees with the
// caller's expectation.
type AssertionError struct {
	Expected bool
	Outcome  ConsensusOutcome
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("authentication state mismatch: expected authenticated=%t, consensus says authenticated=%t (weighted score %.3f, confidence %.3f)",
		e.Expected, e.Outcome.IsAuthenticated, e.Outcome.WeightedScore, e.Outcome.OverallConfidence)
}

// TimingError reports that a condition was not met within its window.
type TimingError struct {
	Condition string
	Window    string
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("condition %q not met within %s", e.Condition, e.Window)
}

// Expect returns an AssertionError when the outcome disagrees with the
// expected authentication state.
func Expect(outcome ConsensusOutcome, expectAuthenticated bool) error {
	if outcome.IsAuthenticated == expectAuthenticated {
		return nil
	}
	return &AssertionError{Expected: expectAuthenticated, Outcome: outcome}
}
