package types

import (
	"time"
)

// DataQuality grades an individual observation. Quality feeds the confidence
// scorer: only high-quality vegetation signals count toward the quality factor.
type DataQuality string

const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// HealthStatus is the crop-health bucket derived from the most recent NDVI mean.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWatch    HealthStatus = "watch"
	StatusStressed HealthStatus = "stressed"
)

// Category is the user-facing classification of an inference.
type Category string

const (
	CategoryObservation Category = "observation"
	CategoryAdvisory    Category = "advisory"
	CategoryAlert       Category = "alert"
	CategoryForecast    Category = "forecast"
)

// Severity rates how far a season has deviated below its baseline.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConfidenceLevel buckets the numeric confidence score for persisted insights.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// BaselineType records which comparison source produced the baseline NDVI.
type BaselineType string

const (
	BaselinePreviousSeason BaselineType = "previous_season"
	BaselineHistoricalMean BaselineType = "historical_mean"
)

// InsightTypePerformanceDeviation is the only insight type the engine emits.
const InsightTypePerformanceDeviation = "performance_deviation"

// NDVIStats summarises the NDVI distribution of a single satellite pass over
// a field. All values are in [-1, 1].
type NDVIStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// VegetationSignal is one satellite-derived vegetation observation.
// Signals are append-only: once stored they are never mutated or deleted.
type VegetationSignal struct {
	ID          string      `json:"id"`
	FieldID     string      `json:"field_id"`
	SeasonID    string      `json:"season_id"`
	Timestamp   time.Time   `json:"timestamp"`
	NDVI        NDVIStats   `json:"ndvi"`
	DataQuality DataQuality `json:"data_quality"`
	CreatedAt   time.Time   `json:"created_at"`
}

// WeatherSignal is one ground/weather observation. Append-only.
type WeatherSignal struct {
	ID           string      `json:"id"`
	FieldID      string      `json:"field_id"`
	SeasonID     string      `json:"season_id"`
	Timestamp    time.Time   `json:"timestamp"`
	RainfallMM   float64     `json:"rainfall_mm"`
	TemperatureC float64     `json:"temperature_c"`
	DataQuality  DataQuality `json:"data_quality"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Season is a named, bounded time window scoping signals and insights.
// Bounds are immutable once created; StartDate is strictly before EndDate.
type Season struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// Field is a farmer's registered plot. The engine only needs its ID; the rest
// is registry metadata surfaced through the API.
type Field struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Crop      string    `json:"crop,omitempty"`
	AreaHa    *float64  `json:"area_ha,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TimeWindow is an explicit [Start, End) observation window, used by the
// legacy window-based assembler path.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// InferenceInput is the assembled signal window the engine derives from.
// It is constructed fresh per request and never persisted.
type InferenceInput struct {
	FieldID     string
	WindowStart time.Time
	WindowEnd   time.Time

	// Vegetation and Weather are ordered ascending by timestamp; the
	// assembler enforces this regardless of repository ordering.
	Vegetation []VegetationSignal
	Weather    []WeatherSignal

	// Completeness is the observed-vs-expected signal density in [0, 100].
	Completeness int
}

// StatusThresholds snapshots the fixed NDVI classification thresholds so a
// persisted insight remains explainable if constants ever change.
type StatusThresholds struct {
	Healthy float64 `json:"healthy"`
	Watch   float64 `json:"watch"`
}

// StatusResult is the classifier output. Ephemeral.
type StatusResult struct {
	Status     HealthStatus     `json:"status"`
	NDVIMean   float64          `json:"ndvi_mean"`
	Thresholds StatusThresholds `json:"thresholds"`
}

// CategoryResult is the emitter output. Ephemeral.
type CategoryResult struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// InsightEvidence is the structured audit payload persisted alongside an
// insight. It must round-trip exactly through JSONB storage.
type InsightEvidence struct {
	CurrentNDVI        *float64         `json:"current_ndvi"`
	BaselineNDVI       *float64         `json:"baseline_ndvi"`
	BaselineType       *BaselineType    `json:"baseline_type"`
	Delta              *float64         `json:"delta"`
	DeltaPercent       *float64         `json:"delta_percent"`
	SignalCompleteness int              `json:"signal_completeness"`
	VegetationSignals  int              `json:"vegetation_signal_count"`
	WeatherSignals     int              `json:"weather_signal_count"`
	Thresholds         StatusThresholds `json:"thresholds"`
}

// Insight is the persisted performance-deviation conclusion for a field and
// season. Write-once: there is no update or delete path, and the store
// enforces uniqueness on (FieldID, SeasonID).
type Insight struct {
	ID              string          `json:"id"`
	FieldID         string          `json:"field_id"`
	SeasonID        string          `json:"season_id"`
	Type            string          `json:"type"`
	Severity        Severity        `json:"severity"`
	Confidence      ConfidenceLevel `json:"confidence"`
	Summary         string          `json:"summary"`
	Evidence        InsightEvidence `json:"evidence"`
	SuggestedAction *string         `json:"suggested_action"`
	GeneratedAt     time.Time       `json:"generated_at"`
	CreatedAt       time.Time       `json:"created_at"`
}
