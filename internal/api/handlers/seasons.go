package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cropsight/internal/core"
	"cropsight/internal/types"
)

// SeasonRepo defines the data access contract for season operations.
// Mirrors the concrete db.SeasonRepository methods used by this handler.
type SeasonRepo interface {
	Create(ctx context.Context, s *types.Season) error
	GetByID(ctx context.Context, id string) (*types.Season, error)
	List(ctx context.Context) ([]types.Season, error)
}

// CreateSeasonRequest is the request body for POST /v1/seasons.
// Bounds are immutable after creation; there is no update endpoint.
type CreateSeasonRequest struct {
	Name      string    `json:"name" validate:"required,max=200"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// SeasonHandler manages the season endpoints.
type SeasonHandler struct {
	repo      SeasonRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewSeasonHandler creates a SeasonHandler with the provided dependencies.
func NewSeasonHandler(repo SeasonRepo, v *core.Validator, l *slog.Logger) *SeasonHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SeasonHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts season routes on the provided chi.Router.
func (h *SeasonHandler) RegisterRoutes(r chi.Router) {
	r.Route("/seasons", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// Create handles POST /v1/seasons.
func (h *SeasonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSeasonRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	season := &types.Season{
		ID:        "ssn_" + uuid.NewString(),
		Name:      req.Name,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
	}
	if err := season.Validate(); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationSeasonBounds,
			"start_date must be strictly before end_date",
			err,
		))
		return
	}

	if err := h.repo.Create(r.Context(), season); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "season created",
		"season_id", season.ID,
		"start_date", season.StartDate,
		"end_date", season.EndDate,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: season})
}

// Get handles GET /v1/seasons/{id}.
func (h *SeasonHandler) Get(w http.ResponseWriter, r *http.Request) {
	season, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: season})
}

// List handles GET /v1/seasons.
func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.repo.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: seasons})
}
