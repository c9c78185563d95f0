// Package pricing is the single place where a license tier's sale price is
// derived from an asset's base price.
//
// The synchronizer prices variations with Price and the resolver's price
// fallback compares stored variation prices against Price using Equal. Both
// must go through this package so the two can never disagree.
//
// Example:
//
//	sale, err := pricing.Price(asset.BasePrice, tier)
//	if err != nil {
//	    return fmt.Errorf("price tier %s: %w", tier.ID, err)
//	}
package pricing
