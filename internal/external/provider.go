package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cropsight/internal/types"
)

// ObservationProvider abstracts the upstream satellite/weather data vendor.
// Implementations translate between domain types and the vendor's REST API.
type ObservationProvider interface {
	// FetchVegetation retrieves raw vegetation observations for a field over
	// the given [Start, End) window, ordered ascending by timestamp.
	FetchVegetation(ctx context.Context, fieldID string, window types.TimeWindow) ([]VegetationObservation, error)

	// FetchWeather retrieves raw weather observations for a field over the
	// given [Start, End) window, ordered ascending by timestamp.
	FetchWeather(ctx context.Context, fieldID string, window types.TimeWindow) ([]WeatherObservation, error)
}

// VegetationObservation is one raw vegetation reading from the provider,
// before it is bound to a season and persisted as a signal.
type VegetationObservation struct {
	Timestamp   time.Time         `json:"timestamp"`
	NDVI        types.NDVIStats   `json:"ndvi"`
	DataQuality types.DataQuality `json:"data_quality"`
}

// WeatherObservation is one raw weather reading from the provider.
type WeatherObservation struct {
	Timestamp    time.Time         `json:"timestamp"`
	RainfallMM   float64           `json:"rainfall_mm"`
	TemperatureC float64           `json:"temperature_c"`
	DataQuality  types.DataQuality `json:"data_quality"`
}

// observationsEnvelope is the outer response shape of the provider's
// observation list endpoints.
type observationsEnvelope[T any] struct {
	Observations []T `json:"observations"`
}

// ProviderClientConfig holds the configuration for creating a ProviderHTTPClient.
type ProviderClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// ProviderHTTPClient implements ObservationProvider by making direct HTTP
// calls to the vendor's REST API through the package Transport, so every
// fetch inherits the provider's retry and circuit-breaking contract and can
// be exercised against httptest servers.
type ProviderHTTPClient struct {
	transport *Transport
	apiKey    string
	baseURL   string
	logger    *slog.Logger
}

// NewProviderClient creates a new ProviderHTTPClient. The httpClient timeout
// should be set to the configured provider timeout.
func NewProviderClient(httpClient *http.Client, cfg ProviderClientConfig) *ProviderHTTPClient {
	transport := NewTransport(httpClient, TransportConfig{
		Name: "observation-provider",
		Policy: RetryPolicy{
			MaxRetries: 2,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		UserAgent: "CropSight/1.0",
	})
	return NewProviderClientWithTransport(transport, cfg)
}

// NewProviderClientWithTransport creates a ProviderHTTPClient over a
// caller-configured Transport. Tests use it to disable retries and waits.
func NewProviderClientWithTransport(transport *Transport, cfg ProviderClientConfig) *ProviderHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProviderHTTPClient{
		transport: transport,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:    logger,
	}
}

// FetchVegetation sends GET /v1/fields/{field_id}/vegetation with the window
// bounds as RFC 3339 query parameters.
func (c *ProviderHTTPClient) FetchVegetation(ctx context.Context, fieldID string, window types.TimeWindow) ([]VegetationObservation, error) {
	return fetchObservations[VegetationObservation](ctx, c, fieldID, "vegetation", window)
}

// FetchWeather sends GET /v1/fields/{field_id}/weather with the window bounds
// as RFC 3339 query parameters.
func (c *ProviderHTTPClient) FetchWeather(ctx context.Context, fieldID string, window types.TimeWindow) ([]WeatherObservation, error) {
	return fetchObservations[WeatherObservation](ctx, c, fieldID, "weather", window)
}

func fetchObservations[T any](ctx context.Context, c *ProviderHTTPClient, fieldID, kind string, window types.TimeWindow) ([]T, error) {
	if fieldID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"field ID is required to fetch observations",
			nil,
		)
	}
	if err := types.ValidateTimeWindow(window); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationTimeWindow, "invalid observation window", err)
	}

	query := url.Values{}
	query.Set("start", window.Start.UTC().Format(time.RFC3339))
	query.Set("end", window.End.UTC().Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/v1/fields/%s/%s?%s", c.baseURL, url.PathEscape(fieldID), kind, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create provider observation request",
			err,
		)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.InfoContext(ctx, "fetching provider observations",
		"field_id", fieldID,
		"kind", kind,
		"window_start", window.Start.UTC().Format(time.RFC3339),
		"window_end", window.End.UTC().Format(time.RFC3339),
	)

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, c.wrapError("FetchObservations", err)
	}
	defer resp.Body.Close()

	// The transport passes 4xx responses (other than 429) through unretried.
	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "FetchObservations")
	}

	var envelope observationsEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalSerialization,
			"failed to decode provider observation response",
			err,
		)
	}

	c.logger.InfoContext(ctx, "provider observations fetched",
		"field_id", fieldID,
		"kind", kind,
		"count", len(envelope.Observations),
	)

	return envelope.Observations, nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *ProviderHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("provider API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			"provider authentication failed (401)",
			fmt.Errorf("provider %s returned 401: %s", operation, bodyStr),
		)
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("provider resource not found (404): %s", operation),
			fmt.Errorf("provider %s returned 404: %s", operation, bodyStr),
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("provider client error (%d): %s", resp.StatusCode, operation),
			fmt.Errorf("provider %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("provider server error (%d): %s", resp.StatusCode, operation),
			fmt.Errorf("provider %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	}
}

// wrapError converts transport errors into provider-scoped errors,
// preserving the code when the cause is already an AppError.
func (c *ProviderHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("provider %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamProvider,
		fmt.Sprintf("provider %s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ ObservationProvider = (*ProviderHTTPClient)(nil)
