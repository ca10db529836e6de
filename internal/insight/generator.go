package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"cropsight/internal/types"
)

// Severity thresholds on the NDVI delta (current minus baseline). More
// negative is worse.
const (
	severityHighDelta   = -0.15
	severityMediumDelta = -0.08
)

// Generator derives the persisted performance-deviation insight for a field
// and season. Apart from the generated ID and timestamp the output is a pure
// function of the stored signals.
type Generator struct {
	assembler *Assembler
	baselines *BaselineResolver
	clock     types.Clock
}

// NewGenerator creates an insight generator.
func NewGenerator(assembler *Assembler, baselines *BaselineResolver, clock types.Clock) *Generator {
	return &Generator{assembler: assembler, baselines: baselines, clock: clock}
}

// Generate assembles the season window, resolves the baseline, and derives
// severity, confidence, summary, and evidence. It does not persist anything;
// the caller owns the write.
func (g *Generator) Generate(ctx context.Context, fieldID, seasonID string) (*types.Insight, error) {
	if err := requireIDs(fieldID, seasonID); err != nil {
		return nil, err
	}

	input, err := g.assembler.AssembleSeason(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}

	current, err := seasonMeanNDVI(input.Vegetation)
	if err != nil {
		return nil, err
	}

	baseline, err := g.baselines.Resolve(ctx, fieldID, seasonID)
	if err != nil {
		return nil, err
	}

	delta, deltaPercent := deviation(current, baseline.NDVI)
	severity := severityFor(delta)
	confidence := ConfidenceFromCompleteness(input.Completeness)

	now := g.clock.Now()
	return &types.Insight{
		ID:         "ins_" + uuid.NewString(),
		FieldID:    fieldID,
		SeasonID:   seasonID,
		Type:       types.InsightTypePerformanceDeviation,
		Severity:   severity,
		Confidence: confidence,
		Summary: buildSummary(seasonID, current, baseline, delta, deltaPercent,
			severity, input.Completeness, len(input.Vegetation), len(input.Weather)),
		Evidence: types.InsightEvidence{
			CurrentNDVI:        current,
			BaselineNDVI:       baseline.NDVI,
			BaselineType:       baseline.Type,
			Delta:              delta,
			DeltaPercent:       deltaPercent,
			SignalCompleteness: input.Completeness,
			VegetationSignals:  len(input.Vegetation),
			WeatherSignals:     len(input.Weather),
			Thresholds:         Thresholds(),
		},
		SuggestedAction: suggestAction(severity, confidence, baseline),
		GeneratedAt:     now,
	}, nil
}

// seasonMeanNDVI averages the per-pass NDVI means, or returns nil when the
// season recorded no vegetation signals.
func seasonMeanNDVI(veg []types.VegetationSignal) (*float64, error) {
	if len(veg) == 0 {
		return nil, nil
	}
	means := make([]float64, len(veg))
	for i, v := range veg {
		means[i] = v.NDVI.Mean
	}
	mean, err := stats.Mean(means)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to aggregate ndvi means", err)
	}
	return &mean, nil
}

// deviation computes delta and delta percent against the baseline. Delta
// percent is undefined for a zero baseline and stays nil there; a zero
// division must never leak an Inf or NaN into stored evidence.
func deviation(current, baseline *float64) (delta, deltaPercent *float64) {
	if current == nil || baseline == nil {
		return nil, nil
	}
	d := *current - *baseline
	delta = &d
	if *baseline != 0 {
		p := d / *baseline * 100
		deltaPercent = &p
	}
	return delta, deltaPercent
}

// severityFor rates the deviation. An unknown delta (no current value or no
// baseline) is low severity: absence of evidence is not evidence of stress.
func severityFor(delta *float64) types.Severity {
	if delta == nil {
		return types.SeverityLow
	}
	switch {
	case *delta <= severityHighDelta:
		return types.SeverityHigh
	case *delta <= severityMediumDelta:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// buildSummary renders the one-line human summary. Fully deterministic: no
// timestamps, no randomness, fixed two-decimal formatting.
func buildSummary(
	seasonID string,
	current *float64,
	baseline Baseline,
	delta, deltaPercent *float64,
	severity types.Severity,
	completeness, vegCount, wxCount int,
) string {
	coverage := fmt.Sprintf("%d%% signal coverage from %d vegetation and %d weather signals",
		completeness, vegCount, wxCount)

	if current == nil {
		return fmt.Sprintf("No vegetation observations recorded for season %s; deviation could not be assessed (%s).",
			seasonID, coverage)
	}
	if baseline.NDVI == nil {
		return fmt.Sprintf("Season %s NDVI averaged %.2f with no baseline available for comparison; severity %s at %s.",
			seasonID, *current, severity, coverage)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Season %s NDVI averaged %.2f against a %s baseline of %.2f (delta %+.2f",
		seasonID, *current, *baseline.Type, *baseline.NDVI, *delta)
	if deltaPercent != nil {
		fmt.Fprintf(&b, ", %+.2f%%", *deltaPercent)
	}
	fmt.Fprintf(&b, "); severity %s at %s.", severity, coverage)
	return b.String()
}

// suggestAction picks at most one recommendation. First match wins; order is
// part of the contract.
func suggestAction(severity types.Severity, confidence types.ConfidenceLevel, baseline Baseline) *string {
	var msg string
	switch {
	case confidence == types.ConfidenceLow:
		msg = "Collect additional observations before acting; signal coverage is too sparse for a reliable comparison."
	case baseline.NDVI == nil:
		msg = "Record more seasons of observations to establish a comparison baseline for this field."
	case severity == types.SeverityHigh:
		msg = "Investigate likely stressors such as water deficit or pest pressure and verify with ground scouting."
	case severity == types.SeverityMedium:
		msg = "Increase monitoring frequency and schedule ground scouting to confirm the decline."
	default:
		return nil
	}
	return &msg
}
