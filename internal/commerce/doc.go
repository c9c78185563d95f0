// Package commerce projects the license catalog onto the commerce system.
//
// The Synchronizer reconciles one asset's product and variations with the
// active tiers. The Resyncer re-runs it for every linked asset after a catalog
// change. Collaborators are reached only through the ports in ports.go; the
// in-memory stores back tests and local development and the woo subpackage
// speaks the WooCommerce REST API.
package commerce
