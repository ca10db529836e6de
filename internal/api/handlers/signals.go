package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cropsight/internal/core"
	"cropsight/internal/ingest"
	"cropsight/internal/types"
)

// SignalIngestor is the ingestion surface the signal handler requires.
// *ingest.Service satisfies it.
type SignalIngestor interface {
	IngestVegetation(ctx context.Context, batch []types.VegetationSignal) (*ingest.BatchResult, error)
	IngestWeather(ctx context.Context, batch []types.WeatherSignal) (*ingest.BatchResult, error)
}

// SignalReader provides read access to stored signals.
// *db.SignalRepository satisfies it.
type SignalReader interface {
	GetBySeason(ctx context.Context, fieldID, seasonID string) ([]types.VegetationSignal, []types.WeatherSignal, error)
	GetByWindow(ctx context.Context, fieldID string, window types.TimeWindow) ([]types.VegetationSignal, []types.WeatherSignal, error)
}

// VegetationSignalRequest is one vegetation observation in an ingestion batch.
type VegetationSignalRequest struct {
	FieldID     string          `json:"field_id" validate:"required"`
	SeasonID    string          `json:"season_id" validate:"required"`
	Timestamp   time.Time       `json:"timestamp" validate:"required"`
	NDVI        types.NDVIStats `json:"ndvi"`
	DataQuality string          `json:"data_quality" validate:"required,quality"`
}

// WeatherSignalRequest is one weather observation in an ingestion batch.
type WeatherSignalRequest struct {
	FieldID      string    `json:"field_id" validate:"required"`
	SeasonID     string    `json:"season_id" validate:"required"`
	Timestamp    time.Time `json:"timestamp" validate:"required"`
	RainfallMM   float64   `json:"rainfall_mm" validate:"gte=0"`
	TemperatureC float64   `json:"temperature_c"`
	DataQuality  string    `json:"data_quality" validate:"required,quality"`
}

// IngestVegetationRequest is the request body for POST /v1/signals/vegetation.
type IngestVegetationRequest struct {
	Signals []VegetationSignalRequest `json:"signals" validate:"required,min=1,max=100,dive"`
}

// IngestWeatherRequest is the request body for POST /v1/signals/weather.
type IngestWeatherRequest struct {
	Signals []WeatherSignalRequest `json:"signals" validate:"required,min=1,max=100,dive"`
}

// SignalWindowResponse groups the stored signals returned by GET /v1/signals.
type SignalWindowResponse struct {
	Vegetation []types.VegetationSignal `json:"vegetation"`
	Weather    []types.WeatherSignal    `json:"weather"`
}

// SignalHandler manages signal ingestion and retrieval endpoints.
type SignalHandler struct {
	ingestor  SignalIngestor
	reader    SignalReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewSignalHandler creates a SignalHandler with the provided dependencies.
func NewSignalHandler(ingestor SignalIngestor, reader SignalReader, v *core.Validator, l *slog.Logger) *SignalHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SignalHandler{ingestor: ingestor, reader: reader, validator: v, logger: l}
}

// RegisterRoutes mounts signal routes on the provided chi.Router.
func (h *SignalHandler) RegisterRoutes(r chi.Router) {
	r.Route("/signals", func(r chi.Router) {
		r.Post("/vegetation", h.IngestVegetation)
		r.Post("/weather", h.IngestWeather)
		r.Get("/", h.Get)
	})
}

// IngestVegetation handles POST /v1/signals/vegetation.
func (h *SignalHandler) IngestVegetation(w http.ResponseWriter, r *http.Request) {
	var req IngestVegetationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	batch := make([]types.VegetationSignal, len(req.Signals))
	for i, sig := range req.Signals {
		batch[i] = types.VegetationSignal{
			FieldID:     sig.FieldID,
			SeasonID:    sig.SeasonID,
			Timestamp:   sig.Timestamp.UTC(),
			NDVI:        sig.NDVI,
			DataQuality: types.DataQuality(sig.DataQuality),
		}
	}

	result, err := h.ingestor.IngestVegetation(r.Context(), batch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: result})
}

// IngestWeather handles POST /v1/signals/weather.
func (h *SignalHandler) IngestWeather(w http.ResponseWriter, r *http.Request) {
	var req IngestWeatherRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	batch := make([]types.WeatherSignal, len(req.Signals))
	for i, sig := range req.Signals {
		batch[i] = types.WeatherSignal{
			FieldID:      sig.FieldID,
			SeasonID:     sig.SeasonID,
			Timestamp:    sig.Timestamp.UTC(),
			RainfallMM:   sig.RainfallMM,
			TemperatureC: sig.TemperatureC,
			DataQuality:  types.DataQuality(sig.DataQuality),
		}
	}

	result, err := h.ingestor.IngestWeather(r.Context(), batch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: result})
}

// Get handles GET /v1/signals. Signals are selected either by season
// (field_id + season_id) or by an explicit window (field_id + start + end).
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	fieldID := r.URL.Query().Get("field_id")
	if fieldID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"field_id query parameter is required",
			nil,
		))
		return
	}

	var (
		vegetation []types.VegetationSignal
		weather    []types.WeatherSignal
		err        error
	)

	if seasonID := r.URL.Query().Get("season_id"); seasonID != "" {
		vegetation, weather, err = h.reader.GetBySeason(r.Context(), fieldID, seasonID)
	} else {
		window, werr := parseWindowQuery(r)
		if werr != nil {
			core.Error(w, r, werr)
			return
		}
		vegetation, weather, err = h.reader.GetByWindow(r.Context(), fieldID, window)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SignalWindowResponse{
		Vegetation: vegetation,
		Weather:    weather,
	}})
}

// parseWindowQuery reads RFC 3339 start/end query parameters into a TimeWindow.
func parseWindowQuery(r *http.Request) (types.TimeWindow, error) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")
	if startRaw == "" || endRaw == "" {
		return types.TimeWindow{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"either season_id or both start and end query parameters are required",
			nil,
		)
	}

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return types.TimeWindow{}, types.NewAppError(
			types.ErrCodeValidationTimeWindow,
			"start must be an RFC 3339 timestamp",
			err,
		)
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return types.TimeWindow{}, types.NewAppError(
			types.ErrCodeValidationTimeWindow,
			"end must be an RFC 3339 timestamp",
			err,
		)
	}

	return types.TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}
