package commerce

import (
	"context"

	"audiolicense/pkg/contracts/domain"
)

// AssetRepository reads assets and records their product link
type AssetRepository interface {
	Get(ctx context.Context, assetID string) (domain.Asset, error)
	LinkProduct(ctx context.Context, assetID, productID string) error
	ListLinked(ctx context.Context) ([]domain.Asset, error)
}

// ProductStore is the product and variation surface of the commerce system
type ProductStore interface {
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListVariations(ctx context.Context, productID string) ([]domain.Variation, error)
	GetVariation(ctx context.Context, variationID string) (domain.Variation, error)
	CreateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error)
	UpdateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error)
	DeleteVariation(ctx context.Context, productID, variationID string) error
	AttachCategory(ctx context.Context, productID string, categories, tags []string) error
}

// OrderStore reads orders and their line items
type OrderStore interface {
	GetOrder(ctx context.Context, orderID int64) (domain.Order, error)
	GetOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error)
}

// TierSource supplies the catalog tiers to project
type TierSource interface {
	List(ctx context.Context) ([]domain.LicenseTier, error)
}
