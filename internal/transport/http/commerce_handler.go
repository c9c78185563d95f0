package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/middleware"
	api "audiolicense/pkg/contracts/api/v1"
)

// CommerceHandler serves synchronization and cart-time resolution
type CommerceHandler struct {
	syncer    SyncService
	resyncer  ResyncService
	resolver  VariationResolver
	validator *middleware.Validator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewCommerceHandler creates a commerce handler. resyncer may be nil.
func NewCommerceHandler(syncer SyncService, resyncer ResyncService, resolver VariationResolver, v *middleware.Validator, eh *apperrors.ErrorHandler, logger *slog.Logger) *CommerceHandler {
	return &CommerceHandler{
		syncer:    syncer,
		resyncer:  resyncer,
		resolver:  resolver,
		validator: v,
		errors:    eh,
		logger:    logger.With(slog.String("handler", "commerce")),
	}
}

// AdminRoutes drive synchronization
func (h *CommerceHandler) AdminRoutes(r chi.Router) {
	r.Post("/synchronize", h.Synchronize)
	if h.resyncer != nil {
		r.Post("/resync", h.ResyncAll)
	}
}

// CartRoutes are called by the storefront at checkout
func (h *CommerceHandler) CartRoutes(r chi.Router) {
	r.Post("/resolve-variation", h.ResolveVariation)
}

// Synchronize handles POST /api/commerce/synchronize. Partial failures are
// reported in the result with 200; the caller decides whether to retry.
func (h *CommerceHandler) Synchronize(w http.ResponseWriter, r *http.Request) {
	var req api.SynchronizeRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	result, err := h.syncer.Synchronize(r.Context(), req.AssetID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// ResyncAll handles POST /api/commerce/resync
func (h *CommerceHandler) ResyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.resyncer.ResyncAll(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// ResolveVariation handles POST /api/cart/resolve-variation. A miss is
// answered with found=false, never with an error status.
func (h *CommerceHandler) ResolveVariation(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveVariationRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req.ProductID, req.LicenseIdentifier, req.AssetID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}
