// Package handlers contains the HTTP handler implementations for the
// CropSight API. Each handler depends on narrow, locally defined interfaces
// so it can be tested against in-memory fakes without touching the store.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cropsight/internal/core"
	"cropsight/internal/types"
)

// FieldRepo defines the data access contract for field registry operations.
// Mirrors the concrete db.FieldRepository methods used by this handler.
type FieldRepo interface {
	Create(ctx context.Context, f *types.Field) error
	GetByID(ctx context.Context, id string) (*types.Field, error)
	List(ctx context.Context) ([]types.Field, error)
}

// CreateFieldRequest is the request body for POST /v1/fields.
type CreateFieldRequest struct {
	Name   string   `json:"name" validate:"required,max=200"`
	Crop   string   `json:"crop,omitempty" validate:"omitempty,max=100"`
	AreaHa *float64 `json:"area_ha,omitempty" validate:"omitempty,gt=0"`
}

// FieldHandler manages the field registry endpoints.
type FieldHandler struct {
	repo      FieldRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewFieldHandler creates a FieldHandler with the provided dependencies.
func NewFieldHandler(repo FieldRepo, v *core.Validator, l *slog.Logger) *FieldHandler {
	if l == nil {
		l = slog.Default()
	}
	return &FieldHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts field routes on the provided chi.Router.
func (h *FieldHandler) RegisterRoutes(r chi.Router) {
	r.Route("/fields", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// Create handles POST /v1/fields.
func (h *FieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFieldRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	field := &types.Field{
		ID:     "fld_" + uuid.NewString(),
		Name:   req.Name,
		Crop:   req.Crop,
		AreaHa: req.AreaHa,
	}
	if err := h.repo.Create(r.Context(), field); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "field created", "field_id", field.ID)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: field})
}

// Get handles GET /v1/fields/{id}.
func (h *FieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	field, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: field})
}

// List handles GET /v1/fields.
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	fields, err := h.repo.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: fields})
}
