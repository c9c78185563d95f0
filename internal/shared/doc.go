// Package shared provides common test helpers used across the license engine.
//
// The testutil subpackage provides:
//
//	- A buffered slog handler for asserting log output
//	- Fixture builders for tiers, assets and orders
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    tier := testutil.FixedTier("standard", "9.99")
//	    ...
//	}
//
// It must not contain business logic or depend on packages other than
// pkg/contracts.
package shared
