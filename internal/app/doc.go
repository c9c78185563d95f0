// Package app wires the licensing engine together and manages its lifecycle.
//
// New selects a backend for each concern from the configuration:
//
//	storage    memory | file (JSON under data_dir) | postgres (GORM)
//	locking    memory | redis (RedLock)
//	events     log | kafka (logged and published)
//	commerce   memory (optionally seeded from YAML) | woo (WooCommerce REST)
//
// and builds the catalog, synchronizer, resyncer, resolver, certificate
// generator and verifier on top. Backends with a network dependency add a
// readiness check to the health service.
//
// Start serves HTTP in the background; Stop shuts the server down within
// the configured timeout and closes backend connections in reverse order.
// Run combines both with SIGINT/SIGTERM handling.
package app
