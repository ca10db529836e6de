package insight

import (
	"fmt"
	"time"

	"cropsight/internal/types"
)

// Rule identifiers traced by provenance reconstruction. Stable; auditors key
// off these strings.
const (
	RuleStatusThreshold   = "status_threshold"
	RuleCompletenessGate  = "completeness_gate"
	RuleCategoryMap       = "category_map"
	RuleConfidenceWeights = "confidence_weights"
)

// RuleTrace records one rule evaluation during provenance replay.
type RuleTrace struct {
	RuleID        string   `json:"rule_id"`
	Name          string   `json:"name"`
	Evaluated     bool     `json:"evaluated"`
	Outcome       string   `json:"outcome"`
	ContributesTo []string `json:"contributes_to"`
}

// SignalLineage identifies one signal that fed the derivation.
type SignalLineage struct {
	SignalType  string            `json:"signal_type"`
	SignalID    string            `json:"signal_id"`
	Timestamp   time.Time         `json:"timestamp"`
	DataQuality types.DataQuality `json:"data_quality"`
}

// CategoryProvenance names the rules that produced the emitted category.
type CategoryProvenance struct {
	Category types.Category `json:"category"`
	RuleIDs  []string       `json:"rule_ids"`
}

// Provenance is the reconstructed audit trail for a derivation. It is built
// on demand by replaying the stored inputs and is never persisted; only
// GeneratedAt varies between replays over the same data.
type Provenance struct {
	FieldID       string             `json:"field_id"`
	WindowStart   time.Time          `json:"window_start"`
	WindowEnd     time.Time          `json:"window_end"`
	RuleTraces    []RuleTrace        `json:"rule_traces"`
	SignalLineage []SignalLineage    `json:"signal_lineage"`
	Category      CategoryProvenance `json:"category"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Reconstruct replays the classifier, completeness gate, category map, and
// confidence scorer over an assembled window and records each step.
func Reconstruct(input *types.InferenceInput, clock types.Clock) *Provenance {
	status := ClassifyStatus(input)
	category := EmitCategory(status, input.Completeness)
	score := ScoreConfidence(input)

	traces := make([]RuleTrace, 0, 4)

	statusOutcome := "no_status"
	if status != nil {
		statusOutcome = string(status.Status)
	}
	traces = append(traces, RuleTrace{
		RuleID:        RuleStatusThreshold,
		Name:          "NDVI mean of most recent vegetation signal against fixed thresholds",
		Evaluated:     true,
		Outcome:       statusOutcome,
		ContributesTo: []string{"status", "category"},
	})

	gate := RuleTrace{
		RuleID:        RuleCompletenessGate,
		Name:          "completeness below 50% forces the forecast category",
		Evaluated:     status != nil,
		Outcome:       "skipped",
		ContributesTo: []string{"category"},
	}
	if status != nil {
		if input.Completeness < ForecastCompletenessFloor {
			gate.Outcome = "forced_forecast"
		} else {
			gate.Outcome = "passed"
		}
	}
	traces = append(traces, gate)

	traces = append(traces, RuleTrace{
		RuleID:        RuleCategoryMap,
		Name:          "health status to category mapping",
		Evaluated:     true,
		Outcome:       string(category.Category),
		ContributesTo: []string{"category", "message"},
	})

	traces = append(traces, RuleTrace{
		RuleID:        RuleConfidenceWeights,
		Name:          "weighted confidence from completeness, quality, and temporal spread",
		Evaluated:     true,
		Outcome:       fmt.Sprintf("score=%d", score),
		ContributesTo: []string{"confidence"},
	})

	return &Provenance{
		FieldID:       input.FieldID,
		WindowStart:   input.WindowStart,
		WindowEnd:     input.WindowEnd,
		RuleTraces:    traces,
		SignalLineage: lineageFor(input),
		Category: CategoryProvenance{
			Category: category.Category,
			RuleIDs:  categoryRuleIDs(status),
		},
		GeneratedAt: clock.Now(),
	}
}

// lineageFor lists every signal in the window, vegetation first, each set in
// ascending timestamp order as assembled.
func lineageFor(input *types.InferenceInput) []SignalLineage {
	lineage := make([]SignalLineage, 0, len(input.Vegetation)+len(input.Weather))
	for _, v := range input.Vegetation {
		lineage = append(lineage, SignalLineage{
			SignalType:  "vegetation",
			SignalID:    v.ID,
			Timestamp:   v.Timestamp,
			DataQuality: v.DataQuality,
		})
	}
	for _, w := range input.Weather {
		lineage = append(lineage, SignalLineage{
			SignalType:  "weather",
			SignalID:    w.ID,
			Timestamp:   w.Timestamp,
			DataQuality: w.DataQuality,
		})
	}
	return lineage
}

// categoryRuleIDs names the rules that participated in producing the emitted
// category. The completeness gate only participates when a status existed for
// it to potentially override.
func categoryRuleIDs(status *types.StatusResult) []string {
	if status == nil {
		return []string{RuleStatusThreshold, RuleCategoryMap}
	}
	return []string{RuleStatusThreshold, RuleCompletenessGate, RuleCategoryMap}
}
