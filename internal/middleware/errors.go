package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	apperrors "audiolicense/internal/errors"
)

func problemType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return apperrors.TypeUnauthorized
	case http.StatusTooManyRequests:
		return apperrors.TypeRateLimit
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperrors.TypeValidation
	case http.StatusInternalServerError:
		return apperrors.TypeInternal
	default:
		return "/errors/unknown"
	}
}

// writeStatusProblem renders an RFC 7807 response for a middleware rejection
func writeStatusProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := apperrors.NewProblemDetails(status, problemType(status), http.StatusText(status), detail, r.URL.Path).
		WithExtension("trace_id", GetRequestID(r.Context()))
	_ = render.Render(w, r, problem)
}

func writePanicProblem(logger *slog.Logger, w http.ResponseWriter, r *http.Request, rvr any) {
	logger.ErrorContext(r.Context(), "panic recovered",
		slog.String("panic", fmt.Sprint(rvr)),
		slog.String("stack", string(debug.Stack())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	writeStatusProblem(w, r, http.StatusInternalServerError, "An unexpected error occurred")
}
