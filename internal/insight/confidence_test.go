package insight

import (
	"testing"
	"time"

	"cropsight/internal/types"
)

func TestScoreConfidence(t *testing.T) {
	cases := []struct {
		name         string
		veg          []types.VegetationSignal
		completeness int
		want         int
	}{
		{
			// 40 (capped) + 30 (all high quality) + 30 (>=3 signals)
			name:         "perfect window",
			veg:          vegSeries(6, 0.7, types.QualityHigh),
			completeness: 100,
			want:         100,
		},
		{
			// Completeness factor caps at 40 even though 100*0.4 == 40 exactly;
			// anything above 100 cannot occur but the cap guards the math.
			name:         "empty window",
			veg:          nil,
			completeness: 0,
			want:         0,
		},
		{
			// 50*0.4=20 + 0 quality (all low) + 30 temporal
			name:         "low quality signals",
			veg:          vegSeries(3, 0.7, types.QualityLow),
			completeness: 50,
			want:         50,
		},
		{
			// 50*0.4=20 + 15 (half high) + 20 (two signals)
			name: "mixed quality pair",
			veg: []types.VegetationSignal{
				makeVegSignal("v1", seasonStart, 0.7, types.QualityHigh),
				makeVegSignal("v2", seasonStart.Add(120*time.Hour), 0.7, types.QualityMedium),
			},
			completeness: 50,
			want:         55,
		},
		{
			// 10*0.4=4 + 30 + 10 (single signal)
			name:         "single high quality pass",
			veg:          vegSeries(1, 0.7, types.QualityHigh),
			completeness: 10,
			want:         44,
		},
		{
			// 83*0.4=33.2 + 30 + 30 = 93.2 -> 93
			name:         "rounding",
			veg:          vegSeries(3, 0.7, types.QualityHigh),
			completeness: 83,
			want:         93,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreConfidence(inputWith(tc.veg, nil, tc.completeness))
			if got != tc.want {
				t.Errorf("ScoreConfidence = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestConfidenceFromCompleteness(t *testing.T) {
	cases := []struct {
		completeness int
		want         types.ConfidenceLevel
	}{
		{100, types.ConfidenceHigh},
		{70, types.ConfidenceHigh},
		{69, types.ConfidenceMedium},
		{40, types.ConfidenceMedium},
		{39, types.ConfidenceLow},
		{0, types.ConfidenceLow},
	}

	for _, tc := range cases {
		if got := ConfidenceFromCompleteness(tc.completeness); got != tc.want {
			t.Errorf("ConfidenceFromCompleteness(%d) = %s, want %s", tc.completeness, got, tc.want)
		}
	}
}
