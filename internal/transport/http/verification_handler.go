package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "audiolicense/internal/errors"
)

// VerificationHandler answers public serial lookups
type VerificationHandler struct {
	verifier Verifier
	errors   *apperrors.ErrorHandler
	logger   *slog.Logger
}

// NewVerificationHandler creates a verification handler
func NewVerificationHandler(verifier Verifier, eh *apperrors.ErrorHandler, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		verifier: verifier,
		errors:   eh,
		logger:   logger.With(slog.String("handler", "verification")),
	}
}

// Verify handles GET /api/verify/{serial}. Invalid serials are answered with
// 200 and valid=false plus a reason.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifier.Verify(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, result)
}
