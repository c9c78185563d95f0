package http

import (
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/middleware"
	api "audiolicense/pkg/contracts/api/v1"
)

// FulfillmentHandler issues certificates and serves their documents
type FulfillmentHandler struct {
	certs     CertificateService
	artifacts ArtifactReader
	validator *middleware.Validator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewFulfillmentHandler creates a fulfillment handler
func NewFulfillmentHandler(certs CertificateService, artifacts ArtifactReader, v *middleware.Validator, eh *apperrors.ErrorHandler, logger *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{
		certs:     certs,
		artifacts: artifacts,
		validator: v,
		errors:    eh,
		logger:    logger.With(slog.String("handler", "fulfillment")),
	}
}

// InternalRoutes are called by the order system
func (h *FulfillmentHandler) InternalRoutes(r chi.Router) {
	r.Post("/issue-certificate", h.IssueCertificate)
	r.Get("/certificates/{orderID}/{itemID}", h.GetCertificate)
}

// IssueCertificate handles POST /api/fulfillment/issue-certificate.
// Answers 201 on first issuance and 200 when an existing certificate is returned.
func (h *FulfillmentHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req api.IssueCertificateRequest
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	ref, err := h.certs.Issue(r.Context(), req.OrderID, req.OrderItemID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if !ref.Reused {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, ref)
}

// GetCertificate handles GET /api/fulfillment/certificates/{orderID}/{itemID}
func (h *FulfillmentHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		h.errors.HandleError(w, r, apperrors.InvalidParameter("orderID"))
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		h.errors.HandleError(w, r, apperrors.InvalidParameter("itemID"))
		return
	}

	ref, err := h.certs.Lookup(r.Context(), orderID, itemID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ref)
}

// ServeArtifact handles GET /certificates/*. Only rendered certificate
// documents reached through a signed download link are served.
func (h *FulfillmentHandler) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if p == "" || path.Ext(p) != ".html" || !strings.HasPrefix(path.Base(p), "license-") {
		h.errors.NotFound(w, r)
		return
	}
	if !h.artifacts.LinkValid(p, r.URL.Query().Get("sig")) {
		h.logger.WarnContext(r.Context(), "artifact request without valid signature",
			slog.String("path", p))
		h.errors.NotFound(w, r)
		return
	}

	ok, err := h.artifacts.Exists(r.Context(), p)
	if err != nil {
		h.errors.HandleError(w, r, apperrors.Upstream("http.ServeArtifact", err))
		return
	}
	if !ok {
		h.errors.NotFound(w, r)
		return
	}
	data, err := h.artifacts.Read(r.Context(), p)
	if err != nil {
		h.errors.HandleError(w, r, apperrors.Upstream("http.ServeArtifact", err))
		return
	}

	w.Header().Set("Content-Type", mime.TypeByExtension(".html"))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
