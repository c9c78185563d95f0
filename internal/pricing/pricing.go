package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"audiolicense/pkg/contracts/domain"
)

// ErrUnknownPriceType is returned for a tier whose price type is neither fixed nor markup.
var ErrUnknownPriceType = errors.New("unknown price type")

// CurrencyPlaces is the number of minor-unit digits of the single supported currency.
const CurrencyPlaces = 2

// Tolerance is half a minor currency unit.
var Tolerance = decimal.New(5, -(CurrencyPlaces + 1))

// Price returns the sale price of tier for an asset whose base price is base.
// Fixed tiers ignore base; markup tiers add their value to it.
func Price(base decimal.Decimal, tier domain.LicenseTier) (decimal.Decimal, error) {
	switch tier.PriceType {
	case domain.PriceTypeFixed:
		return tier.PriceValue, nil
	case domain.PriceTypeMarkup:
		return base.Add(tier.PriceValue), nil
	default:
		return decimal.Zero, fmt.Errorf("tier %q: %w: %q", tier.ID, ErrUnknownPriceType, tier.PriceType)
	}
}

// Equal reports whether two prices are the same within currency precision.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// Format renders a price with the currency's minor-unit digits.
func Format(p decimal.Decimal) string {
	return p.StringFixed(CurrencyPlaces)
}
