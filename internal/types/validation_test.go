package types

import (
	"strings"
	"testing"
	"time"
)

func TestNDVIStatsValidate(t *testing.T) {
	cases := []struct {
		name    string
		stats   NDVIStats
		wantErr string
	}{
		{"valid", NDVIStats{Mean: 0.5, Min: 0.2, Max: 0.8, StdDev: 0.1}, ""},
		{"mean too high", NDVIStats{Mean: 1.2, Min: 0.2, Max: 0.8}, "validation_invalid_ndvi"},
		{"mean too low", NDVIStats{Mean: -1.5, Min: -1, Max: 0}, "validation_invalid_ndvi"},
		{"negative stddev", NDVIStats{Mean: 0.5, Min: 0.2, Max: 0.8, StdDev: -0.1}, "validation_invalid_ndvi"},
		{"min above max", NDVIStats{Mean: 0.5, Min: 0.9, Max: 0.8}, "validation_invalid_ndvi"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.stats.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestWeatherSignalValidate(t *testing.T) {
	base := WeatherSignal{
		FieldID:     "f1",
		SeasonID:    "s1",
		Timestamp:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RainfallMM:  3.2,
		DataQuality: QualityHigh,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}

	neg := base
	neg.RainfallMM = -1
	if err := neg.Validate(); err == nil {
		t.Error("expected negative rainfall to be rejected")
	}

	noField := base
	noField.FieldID = ""
	if err := noField.Validate(); err == nil {
		t.Error("expected missing field_id to be rejected")
	}

	badQuality := base
	badQuality.DataQuality = "excellent"
	if err := badQuality.Validate(); err == nil {
		t.Error("expected unknown data quality to be rejected")
	}
}

func TestSeasonValidate(t *testing.T) {
	ok := Season{
		Name:      "2025 wheat",
		StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid season rejected: %v", err)
	}

	inverted := ok
	inverted.StartDate, inverted.EndDate = inverted.EndDate, inverted.StartDate
	if err := inverted.Validate(); err == nil {
		t.Error("expected inverted bounds to be rejected")
	}

	equal := ok
	equal.EndDate = equal.StartDate
	if err := equal.Validate(); err == nil {
		t.Error("expected zero-length season to be rejected")
	}
}

func TestValidateTimeWindow(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := ValidateTimeWindow(TimeWindow{Start: start, End: start.Add(30 * 24 * time.Hour)}); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	if err := ValidateTimeWindow(TimeWindow{Start: start, End: start}); err == nil {
		t.Error("expected empty window to be rejected")
	}
	if err := ValidateTimeWindow(TimeWindow{Start: start, End: start.Add(400 * 24 * time.Hour)}); err == nil {
		t.Error("expected oversized window to be rejected")
	}
}
