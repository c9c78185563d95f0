package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/middleware"
	api "audiolicense/pkg/contracts/api/v1"
	"audiolicense/pkg/contracts/domain"
)

// TierListResponse wraps a tier list
type TierListResponse struct {
	Tiers []domain.LicenseTier `json:"tiers"`
}

// CatalogHandler serves the license catalog
type CatalogHandler struct {
	catalog   CatalogService
	validator *middleware.Validator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(catalog CatalogService, v *middleware.Validator, eh *apperrors.ErrorHandler, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:   catalog,
		validator: v,
		errors:    eh,
		logger:    logger.With(slog.String("handler", "catalog")),
	}
}

// PublicRoutes are readable without credentials
func (h *CatalogHandler) PublicRoutes(r chi.Router) {
	r.Get("/tiers", h.ListTiers)
	r.Get("/tiers/default", h.DefaultTier)
}

// AdminRoutes mutate the catalog
func (h *CatalogHandler) AdminRoutes(r chi.Router) {
	r.Post("/upsert", h.Upsert)
	r.Post("/delete", h.Delete)
	r.Post("/reorder", h.Reorder)
}

// ListTiers handles GET /api/license/tiers. ?active=true returns only active tiers.
func (h *CatalogHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errors.HandleError(w, r, apperrors.InvalidParameter("active"))
			return
		}
		activeOnly = v
	}

	list := h.catalog.List
	if activeOnly {
		list = h.catalog.GetActive
	}
	tiers, err := list(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if tiers == nil {
		tiers = []domain.LicenseTier{}
	}
	render.JSON(w, r, TierListResponse{Tiers: tiers})
}

// DefaultTier handles GET /api/license/tiers/default
func (h *CatalogHandler) DefaultTier(w http.ResponseWriter, r *http.Request) {
	tier, err := h.catalog.GetDefault(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, tier)
}

// Upsert handles POST /api/license/upsert
func (h *CatalogHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req api.TierUpsertRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	tier, err := h.catalog.Upsert(r.Context(), req.ToTier())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	render.Status(r, status)
	render.JSON(w, r, tier)
}

// Delete handles POST /api/license/delete
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req api.TierDeleteRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), req.ID); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles POST /api/license/reorder
func (h *CatalogHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req api.TierReorderRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	tiers, err := h.catalog.Reorder(r.Context(), req.IDs)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, TierListResponse{Tiers: tiers})
}
