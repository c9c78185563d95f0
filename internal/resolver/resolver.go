// Package resolver maps a license identifier chosen at checkout to the
// purchasable variation of a product.
//
// Strategies run in order and the first match wins. The price fallback is
// unsafe when two tiers share a price: it returns the first variation in
// store order without any further tie-break.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/pricing"
	"audiolicense/pkg/contracts/domain"
)

// Strategy names
const (
	StrategyExact     = "exact_attribute"
	StrategyLabel     = "label"
	StrategySubstring = "substring"
	StrategyPrice     = "price_fallback"
)

// ProductReader is the read side of the commerce product store
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListVariations(ctx context.Context, productID string) ([]domain.Variation, error)
}

// TierLookup finds a catalog tier by id or slug
type TierLookup interface {
	Get(ctx context.Context, idOrSlug string) (domain.LicenseTier, error)
}

// AssetReader reads assets for price fallback
type AssetReader interface {
	Get(ctx context.Context, assetID string) (domain.Asset, error)
}

// Strategy is one matching rule
type Strategy struct {
	Name  string
	Match func(ctx context.Context, q *Query) (domain.Variation, bool, error)
}

// Query is the state shared by strategies during one resolution
type Query struct {
	Product    domain.Product
	Variations []domain.Variation
	Identifier string
	AssetID    string

	tiers     TierLookup
	tier      *domain.LicenseTier
	tierKnown bool
}

// Tier returns the catalog tier named by the identifier, if any
func (q *Query) Tier(ctx context.Context) (*domain.LicenseTier, error) {
	if q.tierKnown {
		return q.tier, nil
	}
	t, err := q.tiers.Get(ctx, q.Identifier)
	if err != nil {
		if apperrors.IsNotFound(err) {
			q.tierKnown = true
			return nil, nil
		}
		return nil, err
	}
	q.tier, q.tierKnown = &t, true
	return q.tier, nil
}

// Resolver resolves license identifiers
type Resolver struct {
	products   ProductReader
	tiers      TierLookup
	assets     AssetReader
	strategies []Strategy
	metrics    *infrastructure.EngineMetrics
	logger     *slog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithStrategies replaces the strategy chain
func WithStrategies(s ...Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

// WithMetrics sets the engine metrics
func WithMetrics(m *infrastructure.EngineMetrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver with the default strategy chain
func New(products ProductReader, tiers TierLookup, assets AssetReader, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		products: products,
		tiers:    tiers,
		assets:   assets,
		logger:   logger.With(slog.String("component", "resolver")),
	}
	r.strategies = r.DefaultStrategies()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultStrategies returns exact attribute, label, substring and price
// fallback, in that order
func (r *Resolver) DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyExact, Match: matchExact},
		{Name: StrategyLabel, Match: matchLabel},
		{Name: StrategySubstring, Match: matchSubstring},
		{Name: StrategyPrice, Match: r.matchPrice},
	}
}

// Resolve returns the variation of productID sold under identifier. A miss
// is a Resolution with Found unset; errors are collaborator failures.
func (r *Resolver) Resolve(ctx context.Context, productID, identifier, assetID string) (domain.Resolution, error) {
	const op = "resolver.Resolve"

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Resolution{}, apperrors.Validation(op, "product id is required").With("field", "product_id")
	}

	product, err := r.products.GetProduct(ctx, productID)
	if apperrors.IsNotFound(err) {
		return r.miss(ctx, productID, identifier, "product not found"), nil
	}
	if err != nil {
		return domain.Resolution{}, apperrors.Upstream(op, err)
	}
	if product.Type != domain.ProductTypeVariable {
		return r.miss(ctx, productID, identifier, "product has no variations"), nil
	}

	variations, err := r.products.ListVariations(ctx, productID)
	if err != nil {
		return domain.Resolution{}, apperrors.Upstream(op, err)
	}

	q := &Query{
		Product:    product,
		Variations: variations,
		Identifier: strings.TrimSpace(identifier),
		AssetID:    strings.TrimSpace(assetID),
		tiers:      r.tiers,
	}

	for _, s := range r.strategies {
		v, ok, err := s.Match(ctx, q)
		if err != nil {
			return domain.Resolution{}, apperrors.Upstream(op, err)
		}
		if !ok {
			continue
		}
		r.metrics.RecordResolution(ctx, s.Name)
		r.logger.DebugContext(ctx, "variation resolved",
			slog.String("product_id", productID),
			slog.String("identifier", q.Identifier),
			slog.String("variation_id", v.ID),
			slog.String("strategy", s.Name))
		return domain.Resolution{Found: true, VariationID: v.ID, Strategy: s.Name}, nil
	}

	return r.miss(ctx, productID, identifier, "no strategy matched"), nil
}

func (r *Resolver) miss(ctx context.Context, productID, identifier, reason string) domain.Resolution {
	r.metrics.RecordResolution(ctx, "")
	r.logger.InfoContext(ctx, "variation not resolved",
		slog.String("product_id", productID),
		slog.String("identifier", identifier),
		slog.String("reason", reason))
	return domain.Resolution{}
}

func matchExact(_ context.Context, q *Query) (domain.Variation, bool, error) {
	if q.Identifier == "" {
		return domain.Variation{}, false, nil
	}
	for _, v := range q.Variations {
		if strings.EqualFold(strings.TrimSpace(v.AttributeValue), q.Identifier) {
			return v, true, nil
		}
	}
	return domain.Variation{}, false, nil
}

// matchLabel looks the identifier up in the catalog and matches the tier's
// link, display name, slug or slugified name
func matchLabel(ctx context.Context, q *Query) (domain.Variation, bool, error) {
	if q.Identifier == "" {
		return domain.Variation{}, false, nil
	}
	tier, err := q.Tier(ctx)
	if err != nil || tier == nil {
		return domain.Variation{}, false, err
	}
	name := strings.TrimSpace(tier.Name)
	nameSlug := slug.Make(name)
	for _, v := range q.Variations {
		value := strings.TrimSpace(v.AttributeValue)
		if (tier.ID != "" && v.LinkedTier == tier.ID) ||
			(name != "" && strings.EqualFold(value, name)) ||
			strings.EqualFold(value, tier.Slug) ||
			(nameSlug != "" && strings.EqualFold(value, nameSlug)) {
			return v, true, nil
		}
	}
	return domain.Variation{}, false, nil
}

func matchSubstring(_ context.Context, q *Query) (domain.Variation, bool, error) {
	needle := strings.ToLower(q.Identifier)
	if needle == "" {
		return domain.Variation{}, false, nil
	}
	for _, v := range q.Variations {
		value := strings.ToLower(v.AttributeValue)
		if value == "" {
			continue
		}
		if strings.Contains(value, needle) || strings.Contains(needle, value) {
			return v, true, nil
		}
	}
	return domain.Variation{}, false, nil
}

// matchPrice prices the named tier for the asset and takes the first
// variation at that price. It only runs when the caller supplied an asset.
func (r *Resolver) matchPrice(ctx context.Context, q *Query) (domain.Variation, bool, error) {
	if q.Identifier == "" || q.AssetID == "" {
		return domain.Variation{}, false, nil
	}
	tier, err := q.Tier(ctx)
	if err != nil || tier == nil {
		return domain.Variation{}, false, err
	}
	asset, err := r.assets.Get(ctx, q.AssetID)
	if apperrors.IsNotFound(err) {
		return domain.Variation{}, false, nil
	}
	if err != nil {
		return domain.Variation{}, false, err
	}
	want, err := pricing.Price(asset.BasePrice, *tier)
	if err != nil {
		return domain.Variation{}, false, nil
	}

	var first *domain.Variation
	matches := 0
	for i := range q.Variations {
		if pricing.Equal(q.Variations[i].Price, want) {
			matches++
			if first == nil {
				first = &q.Variations[i]
			}
		}
	}
	if first == nil {
		return domain.Variation{}, false, nil
	}
	if matches > 1 {
		r.logger.WarnContext(ctx, "price fallback is ambiguous",
			slog.String("product_id", q.Product.ID),
			slog.String("tier_id", tier.ID),
			slog.String("price", pricing.Format(want)),
			slog.Int("candidates", matches))
	}
	return *first, true, nil
}
