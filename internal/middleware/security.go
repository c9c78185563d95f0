package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type clientKey struct{}

// APIKeyAuth admits requests carrying one of keys in the X-API-Key header.
// Admin clients are named by key position ("admin-1", "admin-2", ...).
// With no keys configured every request is rejected.
func APIKeyAuth(logger *slog.Logger, keys []string) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "auth"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logger.WarnContext(ctx, "missing API key",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", ClientIP(r)))
				writeStatusProblem(w, r, http.StatusUnauthorized, "API key required")
				return
			}

			client := matchKey(keys, apiKey)
			if client == "" {
				logger.WarnContext(ctx, "invalid API key",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", ClientIP(r)))
				writeStatusProblem(w, r, http.StatusUnauthorized, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, clientKey{}, client)))
		})
	}
}

func matchKey(keys []string, candidate string) string {
	client := ""
	for i, k := range keys {
		if k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(candidate)) == 1 && client == "" {
			client = "admin-" + strconv.Itoa(i+1)
		}
	}
	return client
}

// ClientName returns the authenticated admin client, if any
func ClientName(ctx context.Context) string {
	name, _ := ctx.Value(clientKey{}).(string)
	return name
}

// AuditLog records every mutating admin request with its outcome
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "audit"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "admin action",
				slog.String("client", ClientName(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", GetRequestID(r.Context())))
		})
	}
}
