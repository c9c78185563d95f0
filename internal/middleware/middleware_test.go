package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	apierrors "audiolicense/internal/errors"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/shared/testutil"
	api "audiolicense/pkg/contracts/api/v1"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		assert.Equal(t, seen, infrastructure.GetTraceID(r.Context()))
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"reused when present", "req-123", true},
		{"replaced when too long", strings.Repeat("x", 129), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
			}
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/commerce/synchronize", nil))

	testutil.AssertLogContains(t, logs, slog.LevelError, "request completed")
	assert.True(t, logs.ContainsAttr("status", int64(http.StatusBadGateway)))
}

func TestRecoverer(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := RequestID(Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, apierrors.TypeInternal, body["type"])
	assert.NotEmpty(t, body["trace_id"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestTimeout(t *testing.T) {
	h := Timeout(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(1, 2, time.Minute, logger)
	h := rl.Handler(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/license/tiers", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)
	limited := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Equal(t, apierrors.TypeRateLimit, decodeProblem(t, limited)["type"])

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code, "limits are per client")
	assert.Equal(t, 2, rl.Clients())
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "rate limit exceeded")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rl := NewRateLimiter(1, 1, time.Minute, logger)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.limiterFor("a")
	rl.limiterFor("b")
	now = now.Add(2 * time.Minute)
	rl.limiterFor("c")
	assert.Equal(t, 1, rl.Clients())
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}})(okHandler)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/cart/resolve-variation", nil)
	preflight.Header.Set("Origin", "https://shop.example.com")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIKeyAuth(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	var client string
	h := APIKeyAuth(logger, []string{"first-key", "second-key"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client = ClientName(r.Context())
	}))

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantClient string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong", "nope", http.StatusUnauthorized, ""},
		{"second key", "second-key", http.StatusOK, "admin-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client = ""
			req := httptest.NewRequest(http.MethodPost, "/api/license/tiers", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantClient, client)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, apierrors.TypeUnauthorized, decodeProblem(t, rec)["type"])
			}
		})
	}
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "invalid API key")
}

func TestAPIKeyAuth_NoKeysRejectsAll(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := APIKeyAuth(logger, nil)(okHandler)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-Key", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditLog(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := AuditLog(logger)(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/license/tiers", nil))
	assert.Equal(t, 0, logs.Count())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/license/reorder", nil))
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "admin action")
}

func TestDecodeAndValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		body       string
		wantFields []string
		wantCode   string
	}{
		{"valid", `{"name":"Standard","price_type":"fixed","price_value":"9.99"}`, nil, ""},
		{"missing name", `{"price_type":"fixed","price_value":"9.99"}`, []string{"name"}, "VALIDATION_FAILED"},
		{"bad price type", `{"name":"x","price_type":"free","price_value":"0"}`, []string{"price_type"}, "VALIDATION_FAILED"},
		{"negative price", `{"name":"x","price_type":"fixed","price_value":"-1"}`, []string{"price_value"}, "VALIDATION_FAILED"},
		{"unknown field", `{"name":"x","price_type":"fixed","colour":"red"}`, nil, "INVALID_REQUEST"},
		{"malformed", `{"name":`, nil, "INVALID_REQUEST"},
		{"empty", ``, nil, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst api.TierUpsertRequest
			err := v.DecodeAndValidate(req, &dst)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "9.99", dst.PriceValue.StringFixed(2))
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
			if tt.wantFields != nil {
				fields, ok := apiErr.Details.([]apierrors.FieldError)
				require.True(t, ok)
				var names []string
				for _, f := range fields {
					names = append(names, f.Field)
				}
				assert.Equal(t, tt.wantFields, names)
			}
		})
	}
}

func TestMaxBody(t *testing.T) {
	h := RequestID(MaxBody(8)(okHandler))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ids":["a","b","c"]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json")(okHandler)

	tests := []struct {
		method, contentType string
		want                int
	}{
		{http.MethodGet, "", http.StatusOK},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s %q", tt.method, tt.contentType)
	}
}

func TestOTel_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(OTel(noop.NewTracerProvider().Tracer("test"), infrastructure.NoopEngineMetrics()))
	var route string
	r.Get("/api/verify/{serial}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/probe", func(w http.ResponseWriter, req *http.Request) {
		route = routePattern(req)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/verify/PFX-2024-00010-00003", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, "/probe", route)
}
