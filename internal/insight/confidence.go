package insight

import (
	"math"

	"cropsight/internal/types"
)

// Confidence scoring weights. The three factors sum to at most 100.
const (
	completenessWeight = 0.4 // completeness percentage scaled, capped at 40
	completenessCap    = 40.0
	qualityWeight      = 30.0 // share of high-quality vegetation signals
)

// ScoreConfidence computes the numeric confidence score for a window.
//
// Three additive factors: signal completeness (up to 40 points), the fraction
// of vegetation signals graded high quality (up to 30 points), and temporal
// spread by distinct vegetation signal count (30 points at three or more).
// The result is rounded and clamped to [0, 100].
func ScoreConfidence(input *types.InferenceInput) int {
	score := math.Min(completenessCap, float64(input.Completeness)*completenessWeight)

	if n := len(input.Vegetation); n > 0 {
		high := 0
		for _, v := range input.Vegetation {
			if v.DataQuality == types.QualityHigh {
				high++
			}
		}
		score += float64(high) / float64(n) * qualityWeight
	}

	score += temporalSpreadPoints(len(input.Vegetation))

	out := int(math.Round(score))
	if out < 0 {
		out = 0
	}
	if out > 100 {
		out = 100
	}
	return out
}

// temporalSpreadPoints rewards windows with several vegetation observations;
// a single pass says little about trend.
func temporalSpreadPoints(vegetation int) float64 {
	switch {
	case vegetation >= 3:
		return 30
	case vegetation == 2:
		return 20
	case vegetation == 1:
		return 10
	default:
		return 0
	}
}

// ConfidenceFromCompleteness buckets completeness into the persisted insight
// confidence level. This is deliberately coarser than ScoreConfidence: the
// persisted insight answers "how much data backed this comparison", not "how
// trustworthy is the latest reading".
func ConfidenceFromCompleteness(completeness int) types.ConfidenceLevel {
	switch {
	case completeness >= 70:
		return types.ConfidenceHigh
	case completeness >= 40:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
