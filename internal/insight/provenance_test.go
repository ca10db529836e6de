package insight

import (
	"encoding/json"
	"testing"
	"time"

	"cropsight/internal/types"
)

func TestReconstructTracesEveryRule(t *testing.T) {
	input := inputWith(vegSeries(3, 0.55, types.QualityHigh), makeWxSignals(5, seasonStart), 80)
	clock := &mockClock{now: time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)}

	got := Reconstruct(input, clock)

	wantRules := []string{RuleStatusThreshold, RuleCompletenessGate, RuleCategoryMap, RuleConfidenceWeights}
	if len(got.RuleTraces) != len(wantRules) {
		t.Fatalf("rule traces = %d, want %d", len(got.RuleTraces), len(wantRules))
	}
	for i, want := range wantRules {
		if got.RuleTraces[i].RuleID != want {
			t.Errorf("trace[%d] = %s, want %s", i, got.RuleTraces[i].RuleID, want)
		}
	}

	if got.RuleTraces[0].Outcome != "watch" {
		t.Errorf("status trace outcome = %q, want watch for NDVI 0.55", got.RuleTraces[0].Outcome)
	}
	if got.RuleTraces[1].Outcome != "passed" {
		t.Errorf("gate outcome = %q, want passed at 80%% completeness", got.RuleTraces[1].Outcome)
	}
	if got.RuleTraces[2].Outcome != "advisory" {
		t.Errorf("category trace outcome = %q, want advisory", got.RuleTraces[2].Outcome)
	}

	if len(got.SignalLineage) != 8 {
		t.Fatalf("lineage entries = %d, want 8", len(got.SignalLineage))
	}
	if got.SignalLineage[0].SignalType != "vegetation" || got.SignalLineage[3].SignalType != "weather" {
		t.Error("lineage must list vegetation signals before weather signals")
	}

	if got.Category.Category != types.CategoryAdvisory {
		t.Errorf("category provenance = %s, want advisory", got.Category.Category)
	}
	if !got.GeneratedAt.Equal(clock.now) {
		t.Errorf("generated at = %v, want clock time", got.GeneratedAt)
	}
}

func TestReconstructNoVegetation(t *testing.T) {
	input := inputWith(nil, makeWxSignals(4, seasonStart), 11)
	got := Reconstruct(input, &mockClock{now: seasonEnd})

	if got.RuleTraces[0].Outcome != "no_status" {
		t.Errorf("status outcome = %q, want no_status", got.RuleTraces[0].Outcome)
	}
	gate := got.RuleTraces[1]
	if gate.Evaluated || gate.Outcome != "skipped" {
		t.Errorf("gate = %+v, want unevaluated and skipped without a status", gate)
	}
	if got.Category.Category != types.CategoryForecast {
		t.Errorf("category = %s, want forecast", got.Category.Category)
	}
	// Without a status the gate never participated in the category.
	for _, id := range got.Category.RuleIDs {
		if id == RuleCompletenessGate {
			t.Error("completeness gate must not appear in category rule ids without a status")
		}
	}
}

func TestReconstructLowCompletenessGate(t *testing.T) {
	input := inputWith(vegSeries(1, 0.9, types.QualityHigh), nil, 20)
	got := Reconstruct(input, &mockClock{now: seasonEnd})

	if got.RuleTraces[1].Outcome != "forced_forecast" {
		t.Errorf("gate outcome = %q, want forced_forecast", got.RuleTraces[1].Outcome)
	}
	if got.Category.Category != types.CategoryForecast {
		t.Errorf("category = %s, want forecast despite healthy NDVI", got.Category.Category)
	}
}

// TestReconstructDeterministicEncoding locks the replay contract: everything
// except the generation timestamp must serialize identically across calls
// over the same stored data.
func TestReconstructDeterministicEncoding(t *testing.T) {
	input := inputWith(vegSeries(4, 0.62, types.QualityMedium), makeWxSignals(12, seasonStart), 53)
	clock := &mockClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	encode := func() []byte {
		p := Reconstruct(input, clock)
		p.GeneratedAt = time.Time{}
		raw, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}
		return raw
	}

	first, second := encode(), encode()
	if string(first) != string(second) {
		t.Errorf("replays diverged:\n%s\n%s", first, second)
	}
}
