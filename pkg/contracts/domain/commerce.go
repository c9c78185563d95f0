package domain

import (
	"github.com/shopspring/decimal"
)

// LicenseAttribute is the attribute axis name carried by variable products
const LicenseAttribute = "license"

// Asset is a sellable digital asset owned by the asset repository
type Asset struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	CreatorName    string          `json:"creator_name" yaml:"creator_name"`
	BasePrice      decimal.Decimal `json:"base_price" yaml:"base_price"`
	DeliverableRef string          `json:"deliverable_ref" yaml:"deliverable_ref"`
	Categories     []string        `json:"categories,omitempty" yaml:"categories"`
	Tags           []string        `json:"tags,omitempty" yaml:"tags"`
	ProductID      string          `json:"product_id,omitempty" yaml:"product_id"`
}

// ProductType distinguishes single-price products from variation-backed ones
type ProductType string

const (
	ProductTypeSimple   ProductType = "simple"
	ProductTypeVariable ProductType = "variable"
)

// ProductAttribute is an attribute axis with its allowed terms
type ProductAttribute struct {
	Name  string   `json:"name" yaml:"name"`
	Terms []string `json:"terms" yaml:"terms"`
}

// Product is the commerce-side projection of an asset
type Product struct {
	ID          string            `json:"id" yaml:"id"`
	AssetID     string            `json:"asset_id" yaml:"asset_id"`
	Title       string            `json:"title" yaml:"title"`
	Type        ProductType       `json:"type" yaml:"type"`
	Price       decimal.Decimal   `json:"price" yaml:"price"`
	DownloadRef string            `json:"download_ref,omitempty" yaml:"download_ref"`
	LinkedTier  string            `json:"linked_tier,omitempty" yaml:"linked_tier"`
	Attribute   *ProductAttribute `json:"attribute,omitempty" yaml:"attribute"`
	Categories  []string          `json:"categories,omitempty" yaml:"categories"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags"`
}

// Clone returns a deep copy of the product
func (p Product) Clone() Product {
	out := p
	if p.Attribute != nil {
		attr := ProductAttribute{Name: p.Attribute.Name, Terms: append([]string(nil), p.Attribute.Terms...)}
		out.Attribute = &attr
	}
	out.Categories = append([]string(nil), p.Categories...)
	out.Tags = append([]string(nil), p.Tags...)
	return out
}

// Variation is a purchasable SKU for one tier of one asset
type Variation struct {
	ID             string          `json:"id" yaml:"id"`
	ProductID      string          `json:"product_id" yaml:"product_id"`
	AttributeValue string          `json:"attribute_value" yaml:"attribute_value"`
	Price          decimal.Decimal `json:"price" yaml:"price"`
	DownloadRef    string          `json:"download_ref,omitempty" yaml:"download_ref"`
	Virtual        bool            `json:"virtual" yaml:"virtual"`
	Downloadable   bool            `json:"downloadable" yaml:"downloadable"`
	LinkedTier     string          `json:"linked_tier" yaml:"linked_tier"`
	LinkedAssetID  string          `json:"linked_asset_id" yaml:"linked_asset_id"`
}

// ProductRef identifies a synchronized product
type ProductRef struct {
	ProductID string      `json:"product_id"`
	AssetID   string      `json:"asset_id"`
	Type      ProductType `json:"type"`
}

// VariationRef summarizes a variation after synchronization
type VariationRef struct {
	VariationID string          `json:"variation_id"`
	TierID      string          `json:"tier_id"`
	TierSlug    string          `json:"tier_slug"`
	Price       decimal.Decimal `json:"price"`
}

// SyncFailure records a single tier or variation that could not be reconciled
type SyncFailure struct {
	TierID      string `json:"tier_id,omitempty"`
	VariationID string `json:"variation_id,omitempty"`
	Step        string `json:"step"`
	Error       string `json:"error"`
}

// SyncResult is the outcome of one synchronization run
type SyncResult struct {
	Product    ProductRef     `json:"product"`
	Variations []VariationRef `json:"variations"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Deleted    int            `json:"deleted"`
	Converted  bool           `json:"converted"`
	Failures   []SyncFailure  `json:"failures,omitempty"`
}

// Partial reports whether any step of the run failed
func (r SyncResult) Partial() bool {
	return len(r.Failures) > 0
}

// Resolution is the outcome of mapping a license identifier to a variation
type Resolution struct {
	Found       bool   `json:"found"`
	VariationID string `json:"variation_id,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
}
