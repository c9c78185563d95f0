// Package domain contains the core domain models for the license engine.
// These types serve as the Single Source of Truth (SSOT) for all layers of the application.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceType selects how a tier's sale price is derived from an asset's base price
type PriceType string

const (
	// PriceTypeFixed sells the tier at PriceValue regardless of the base price
	PriceTypeFixed PriceType = "fixed"
	// PriceTypeMarkup sells the tier at base price plus PriceValue
	PriceTypeMarkup PriceType = "markup"
)

// Valid reports whether the price type is one of the known values
func (p PriceType) Valid() bool {
	return p == PriceTypeFixed || p == PriceTypeMarkup
}

// LicenseTier is a named, priced license option offered for every asset
type LicenseTier struct {
	ID          string          `json:"id" yaml:"id"`
	Slug        string          `json:"slug" yaml:"slug"`
	Name        string          `json:"name" yaml:"name"`
	PriceType   PriceType       `json:"price_type" yaml:"price_type"`
	PriceValue  decimal.Decimal `json:"price_value" yaml:"price_value"`
	Active      bool            `json:"active" yaml:"active"`
	IsDefault   bool            `json:"is_default" yaml:"is_default"`
	SortOrder   int             `json:"sort_order" yaml:"sort_order"`
	Popular     bool            `json:"popular" yaml:"popular"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Features    []string        `json:"features,omitempty" yaml:"features"`
	CreatedAt   time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of the tier
func (t LicenseTier) Clone() LicenseTier {
	out := t
	if t.Features != nil {
		out.Features = append([]string(nil), t.Features...)
	}
	return out
}

// Matches reports whether identifier names this tier by id or slug (case-insensitive)
func (t LicenseTier) Matches(identifier string) bool {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return false
	}
	return strings.EqualFold(t.ID, id) || strings.EqualFold(t.Slug, id)
}

// CommerceRelevant reports whether a change from old to t affects the
// commerce projection (activity, slug or pricing).
func (t LicenseTier) CommerceRelevant(old LicenseTier) bool {
	return t.Active != old.Active ||
		t.Slug != old.Slug ||
		t.Name != old.Name ||
		t.PriceType != old.PriceType ||
		!t.PriceValue.Equal(old.PriceValue)
}

// CatalogChange describes a committed catalog mutation
type CatalogChange struct {
	CatalogID string    `json:"catalog_id"`
	Operation string    `json:"operation"` // upsert|delete|reorder
	TierIDs   []string  `json:"tier_ids"`
	Resync    bool      `json:"resync"` // change affects the commerce projection
	At        time.Time `json:"at"`
}
