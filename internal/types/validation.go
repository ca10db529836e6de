package types

import (
	"fmt"
	"time"
)

// Validation constraint constants.
const (
	MinNDVI           = -1.0
	MaxNDVI           = 1.0
	MaxNameLength     = 200
	MaxSignalBatch    = 100
	MaxWindowDays     = 366
	VegetationCadence = 5 // expected days between satellite passes
)

// ValidNDVI reports whether v falls inside the physical NDVI range.
func ValidNDVI(v float64) bool {
	return v >= MinNDVI && v <= MaxNDVI
}

// Validate checks the NDVI statistics block for physical plausibility.
func (s NDVIStats) Validate() error {
	for name, v := range map[string]float64{
		"mean": s.Mean,
		"min":  s.Min,
		"max":  s.Max,
	} {
		if !ValidNDVI(v) {
			return fmt.Errorf("%s: ndvi %s %.4f outside [-1, 1]", ErrCodeValidationInvalidNDVI, name, v)
		}
	}
	if s.StdDev < 0 {
		return fmt.Errorf("%s: ndvi std_dev must not be negative", ErrCodeValidationInvalidNDVI)
	}
	if s.Min > s.Max {
		return fmt.Errorf("%s: ndvi min exceeds max", ErrCodeValidationInvalidNDVI)
	}
	return nil
}

// Validate checks a vegetation signal before it is appended to the store.
func (v VegetationSignal) Validate() error {
	if v.FieldID == "" || v.SeasonID == "" {
		return fmt.Errorf("%s: field_id and season_id are required", ErrCodeValidationMissingField)
	}
	if v.Timestamp.IsZero() {
		return fmt.Errorf("%s: timestamp is required", ErrCodeValidationMissingField)
	}
	if err := v.NDVI.Validate(); err != nil {
		return err
	}
	return validQuality(v.DataQuality)
}

// Validate checks a weather signal before it is appended to the store.
func (w WeatherSignal) Validate() error {
	if w.FieldID == "" || w.SeasonID == "" {
		return fmt.Errorf("%s: field_id and season_id are required", ErrCodeValidationMissingField)
	}
	if w.Timestamp.IsZero() {
		return fmt.Errorf("%s: timestamp is required", ErrCodeValidationMissingField)
	}
	if w.RainfallMM < 0 {
		return fmt.Errorf("%s: rainfall_mm must not be negative", ErrCodeValidationRainfall)
	}
	return validQuality(w.DataQuality)
}

// Validate enforces the immutable season bound invariant: start strictly
// before end.
func (s Season) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%s: name is required", ErrCodeValidationMissingField)
	}
	if !s.StartDate.Before(s.EndDate) {
		return fmt.Errorf("%s: start_date must be before end_date", ErrCodeValidationSeasonBounds)
	}
	return nil
}

// ValidateTimeWindow ensures End > Start and bounds the window length.
func ValidateTimeWindow(tw TimeWindow) error {
	if tw.Start.IsZero() || tw.End.IsZero() {
		return fmt.Errorf("%s: window start and end are required", ErrCodeValidationTimeWindow)
	}
	if !tw.End.After(tw.Start) {
		return fmt.Errorf("%s: end must be after start", ErrCodeValidationTimeWindow)
	}
	if tw.End.Sub(tw.Start) > MaxWindowDays*24*time.Hour {
		return fmt.Errorf("%s: maximum window is %d days", ErrCodeValidationTimeWindow, MaxWindowDays)
	}
	return nil
}

func validQuality(q DataQuality) error {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return nil
	default:
		return fmt.Errorf("%s: data_quality must be high, medium or low", ErrCodeValidationDataQuality)
	}
}
