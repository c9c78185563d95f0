// Package api contains API contract definitions for the license engine.
// Version v1 represents the current stable API version.
package api

import (
	"github.com/shopspring/decimal"

	"audiolicense/pkg/contracts/domain"
)

// License catalog requests

// TierUpsertRequest creates or updates a license tier
type TierUpsertRequest struct {
	ID          string          `json:"id,omitempty" validate:"omitempty,max=64"`
	Slug        string          `json:"slug,omitempty" validate:"omitempty,max=63"`
	Name        string          `json:"name" validate:"required,max=120"`
	PriceType   string          `json:"price_type" validate:"required,oneof=fixed markup"`
	PriceValue  decimal.Decimal `json:"price_value" validate:"gte=0"`
	Active      bool            `json:"active"`
	IsDefault   bool            `json:"is_default"`
	SortOrder   int             `json:"sort_order" validate:"min=0"`
	Popular     bool            `json:"popular"`
	Description string          `json:"description,omitempty" validate:"max=2000"`
	Features    []string        `json:"features,omitempty" validate:"max=50,dive,max=200"`
}

// ToTier converts the request into a domain tier
func (r TierUpsertRequest) ToTier() domain.LicenseTier {
	return domain.LicenseTier{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		PriceType:   domain.PriceType(r.PriceType),
		PriceValue:  r.PriceValue,
		Active:      r.Active,
		IsDefault:   r.IsDefault,
		SortOrder:   r.SortOrder,
		Popular:     r.Popular,
		Description: r.Description,
		Features:    r.Features,
	}
}

// TierDeleteRequest hard-deletes a tier
type TierDeleteRequest struct {
	ID string `json:"id" validate:"required"`
}

// TierReorderRequest assigns sort order by position
type TierReorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// Commerce requests

// SynchronizeRequest reconciles one asset's product
type SynchronizeRequest struct {
	AssetID string `json:"asset_id" validate:"required"`
}

// ResolveVariationRequest maps a license identifier to a variation at cart time
type ResolveVariationRequest struct {
	ProductID         string `json:"product_id" validate:"required"`
	LicenseIdentifier string `json:"license_identifier" validate:"required,max=200"`
	AssetID           string `json:"asset_id,omitempty"`
}

// Fulfillment requests

// IssueCertificateRequest mints the certificate for an order line
type IssueCertificateRequest struct {
	OrderID     int64 `json:"order_id" validate:"required,gt=0"`
	OrderItemID int64 `json:"order_item_id" validate:"required,gt=0"`
}
