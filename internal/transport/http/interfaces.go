package http

import (
	"context"

	"audiolicense/internal/commerce"
	"audiolicense/pkg/contracts/domain"
)

// CatalogService is the license catalog as seen by the API
type CatalogService interface {
	List(ctx context.Context) ([]domain.LicenseTier, error)
	GetActive(ctx context.Context) ([]domain.LicenseTier, error)
	GetDefault(ctx context.Context) (domain.LicenseTier, error)
	Upsert(ctx context.Context, tier domain.LicenseTier) (domain.LicenseTier, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) ([]domain.LicenseTier, error)
}

// SyncService reconciles an asset's product with the catalog
type SyncService interface {
	Synchronize(ctx context.Context, assetID string) (domain.SyncResult, error)
}

// ResyncService reconciles every linked asset
type ResyncService interface {
	ResyncAll(ctx context.Context) (commerce.ResyncReport, error)
}

// VariationResolver maps a license identifier to a purchasable variation
type VariationResolver interface {
	Resolve(ctx context.Context, productID, identifier, assetID string) (domain.Resolution, error)
}

// CertificateService issues and looks up certificates
type CertificateService interface {
	Issue(ctx context.Context, orderID, itemID int64) (domain.CertificateRef, error)
	Lookup(ctx context.Context, orderID, itemID int64) (domain.CertificateRef, error)
}

// Verifier answers public serial lookups
type Verifier interface {
	Verify(ctx context.Context, serial string) (domain.VerificationResult, error)
}

// ArtifactReader reads stored certificate documents behind signed links
type ArtifactReader interface {
	Exists(ctx context.Context, p string) (bool, error)
	Read(ctx context.Context, p string) ([]byte, error)
	LinkValid(p, sig string) bool
}
