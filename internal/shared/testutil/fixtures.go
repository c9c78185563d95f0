package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"audiolicense/pkg/contracts/domain"
)

// Dec parses a decimal literal and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// FixedTier returns an active fixed-price tier whose id equals its slug
func FixedTier(slug, price string) domain.LicenseTier {
	return domain.LicenseTier{
		ID:         slug,
		Slug:       slug,
		Name:       titleCase(slug),
		PriceType:  domain.PriceTypeFixed,
		PriceValue: Dec(price),
		Active:     true,
	}
}

// MarkupTier returns an active markup tier whose id equals its slug
func MarkupTier(slug, markup string) domain.LicenseTier {
	t := FixedTier(slug, markup)
	t.PriceType = domain.PriceTypeMarkup
	return t
}

// Asset returns an asset with the given base price
func Asset(id, basePrice string) domain.Asset {
	return domain.Asset{
		ID:             id,
		Title:          "Track " + id,
		CreatorName:    "Test Artist",
		BasePrice:      Dec(basePrice),
		DeliverableRef: "deliverables/" + id + ".wav",
	}
}

// CompletedOrder returns a completed order with one line item
func CompletedOrder(orderID, itemID int64, productID, variationID string) domain.Order {
	created := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	completed := created.Add(time.Hour)
	return domain.Order{
		ID:             orderID,
		Status:         domain.OrderStatusCompleted,
		PurchaserEmail: "jane@example.com",
		PurchaserName:  "Jane Doe",
		DateCreated:    created,
		DateCompleted:  &completed,
		Items: []domain.OrderItem{{
			ID:          itemID,
			OrderID:     orderID,
			ProductID:   productID,
			VariationID: variationID,
			Name:        "Track license",
		}},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
