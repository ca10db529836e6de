package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cropsight/internal/core"
	"cropsight/internal/insight"
)

// InsightHandler exposes the derivation engine: insight get-or-generate,
// ephemeral inference, and provenance reconstruction.
type InsightHandler struct {
	service insight.Service
	logger  *slog.Logger
}

// NewInsightHandler creates an InsightHandler with the provided dependencies.
func NewInsightHandler(service insight.Service, l *slog.Logger) *InsightHandler {
	if l == nil {
		l = slog.Default()
	}
	return &InsightHandler{service: service, logger: l}
}

// RegisterRoutes mounts the engine routes on the provided chi.Router.
//
// Season-scoped derivations hang off the field/season pair; the window-based
// inference path takes explicit start/end query parameters instead. The
// routes are registered flat rather than via a nested Route so the mounted
// /fields subrouter from FieldHandler keeps serving GET /fields/{id}.
func (h *InsightHandler) RegisterRoutes(r chi.Router) {
	r.Get("/fields/{field_id}/inference", h.GetInferenceWindow)
	r.Get("/fields/{field_id}/seasons/{season_id}/insight", h.GetOrGenerateInsight)
	r.Get("/fields/{field_id}/seasons/{season_id}/inference", h.GetInference)
	r.Get("/fields/{field_id}/seasons/{season_id}/provenance", h.GetProvenance)
}

// GetOrGenerateInsight handles GET /v1/fields/{field_id}/seasons/{season_id}/insight.
// The first call generates and persists the insight; subsequent calls return
// the stored row, so the endpoint is idempotent and safe to retry.
func (h *InsightHandler) GetOrGenerateInsight(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "field_id")
	seasonID := chi.URLParam(r, "season_id")

	result, err := h.service.GetOrGenerateInsight(r.Context(), fieldID, seasonID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// GetInference handles GET /v1/fields/{field_id}/seasons/{season_id}/inference.
// The result is derived fresh on every call and never persisted.
func (h *InsightHandler) GetInference(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "field_id")
	seasonID := chi.URLParam(r, "season_id")

	result, err := h.service.GetInference(r.Context(), fieldID, seasonID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// GetInferenceWindow handles GET /v1/fields/{field_id}/inference with explicit
// RFC 3339 start/end query parameters.
func (h *InsightHandler) GetInferenceWindow(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "field_id")

	window, err := parseWindowQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.GetInferenceWindow(r.Context(), fieldID, window)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// GetProvenance handles GET /v1/fields/{field_id}/seasons/{season_id}/provenance.
// Provenance is reconstructed by replaying the rule chain; it is never stored.
func (h *InsightHandler) GetProvenance(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "field_id")
	seasonID := chi.URLParam(r, "season_id")

	result, err := h.service.GetProvenance(r.Context(), fieldID, seasonID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}
