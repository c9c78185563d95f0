// Package catalog owns the ordered set of license tiers offered for every asset.
//
// Mutations run as load-modify-save under the catalog lock so that the
// single-default and unique-slug rules hold across concurrent writers.
// Committed changes are announced to listeners (the commerce resyncer) and to
// the event sink as license.catalog_changed.
package catalog
