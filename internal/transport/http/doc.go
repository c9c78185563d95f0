// Package http exposes the license engine over HTTP.
//
// Handlers are thin: they decode and validate the request, call one engine
// component through a small interface and render the result with
// go-chi/render. Errors go through apperrors.ErrorHandler, which maps domain
// error kinds onto RFC 7807 problem responses:
//
//	ValidationError -> 400
//	NotFoundError   -> 404
//	ConflictError   -> 409
//	UpstreamError   -> 502 (retryable)
//	context timeout -> 504
//
// Resolution misses and failed verifications are not errors; they are
// answered with 200 and a structured result.
//
// # Routes
//
//	GET  /api/license/tiers                         public
//	GET  /api/license/tiers/default                 public
//	POST /api/license/upsert|delete|reorder         admin (X-API-Key)
//	POST /api/commerce/synchronize|resync           admin
//	POST /api/cart/resolve-variation                public, rate limited
//	POST /api/fulfillment/issue-certificate         internal (X-API-Key)
//	GET  /api/fulfillment/certificates/{o}/{i}      internal
//	GET  /api/verify/{serial}                       public, rate limited
//	GET  /certificates/*                            stored artifacts
//	GET  /api/health, /api/health/ready, /api/health/live, /api/version
//	GET  /metrics
package http
