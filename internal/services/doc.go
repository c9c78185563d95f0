// Package services holds application services that sit between the HTTP
// handlers and the engine components but belong to no single component.
//
// # Health
//
// HealthService reports liveness, readiness and build information.
// Readiness runs every registered Check concurrently under a per-check
// timeout; any failing check makes the service "not_ready":
//
//	health := services.NewHealthService(version, logger,
//	    services.Check{Name: "catalog_storage", Fn: db.Ping},
//	    services.Check{Name: "certificate_storage", Fn: artifacts.Check},
//	)
//
// Checks take a context and must not block past its deadline.
package services
