package verify

import "math"

// strongConfidence is the floor above which a result counts toward the
// confidence-consensus path.
const strongConfidence = 0.7

// Aggregate combines verifier results into a single decision. When at least
// two results carry strong confidence, the confidence-weighted score against
// the threshold decides; otherwise simple majority is the safer default. A
// single low-confidence dissent must not override several high-confidence
// agreeing signals.
//
// Aggregate is a pure function of its inputs: identical results yield an
// identical outcome.
func Aggregate(results []VerificationResult, threshold float64) ConsensusOutcome {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}

	clamped := make([]VerificationResult, len(results))
	copy(clamped, results)
	for i := range clamped {
		clamped[i].Confidence = clamp(clamped[i].Confidence, 0, 1)
	}

	outcome := ConsensusOutcome{Results: clamped}
	if len(clamped) == 0 {
		return outcome
	}

	authenticatedCount := 0
	strongCount := 0
	totalConfidence := 0.0
	authenticatedConfidence := 0.0
	for _, result := range clamped {
		totalConfidence += result.Confidence
		if result.IsAuthenticated {
			authenticatedCount++
			authenticatedConfidence += result.Confidence
		}
		if result.Confidence >= strongConfidence {
			strongCount++
		}
	}

	outcome.SimpleConsensus = authenticatedCount > len(clamped)-authenticatedCount
	if totalConfidence > 0 {
		outcome.WeightedScore = authenticatedConfidence / totalConfidence
	}

	outcome.ConfidenceConsensus = strongCount >= 2
	if outcome.ConfidenceConsensus {
		outcome.IsAuthenticated = outcome.WeightedScore >= threshold
	} else {
		outcome.IsAuthenticated = outcome.SimpleConsensus
	}

	// Scale mean confidence by decisiveness: a weighted score near the 0.5
	// midpoint means the methods cancelled each other out and the overall
	// confidence should reflect that, while 0.9 or 0.1 is fully decisive.
	meanConfidence := totalConfidence / float64(len(clamped))
	decisiveness := clamp(math.Abs(outcome.WeightedScore-0.5)*2.5, 0, 1)
	outcome.OverallConfidence = round3(meanConfidence * decisiveness)
	outcome.WeightedScore = round3(outcome.WeightedScore)

	return outcome
}
