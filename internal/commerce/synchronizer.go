package commerce

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/events"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/locking"
	"audiolicense/internal/pricing"
	"audiolicense/pkg/contracts/domain"
)

// Failure steps reported in SyncResult.Failures
const (
	StepPrice    = "price"
	StepCreate   = "create_variation"
	StepUpdate   = "update_variation"
	StepDelete   = "delete_variation"
	StepTaxonomy = "attach_category"
)

// Synchronizer reconciles an asset's product with the active license tiers
type Synchronizer struct {
	assets   AssetRepository
	products ProductStore
	tiers    TierSource
	locker   locking.Locker
	sink     events.Sink
	metrics  *infrastructure.EngineMetrics
	logger   *slog.Logger
}

// NewSynchronizer creates a Synchronizer. sink and metrics may be nil.
func NewSynchronizer(assets AssetRepository, products ProductStore, tiers TierSource, locker locking.Locker, sink events.Sink, metrics *infrastructure.EngineMetrics, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		assets:   assets,
		products: products,
		tiers:    tiers,
		locker:   locker,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "synchronizer")),
	}
}

// Synchronize makes the asset's product match the catalog. Running it again
// without intervening changes creates, updates and deletes nothing.
func (s *Synchronizer) Synchronize(ctx context.Context, assetID string) (domain.SyncResult, error) {
	const op = "commerce.Synchronize"

	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.SyncResult{}, apperrors.Validation(op, "asset id is required").With("field", "asset_id")
	}

	start := time.Now()
	var result domain.SyncResult
	err := s.locker.WithLock(ctx, locking.SyncKey(assetID), func(ctx context.Context) error {
		var err error
		result, err = s.run(ctx, op, assetID)
		return err
	})
	if err != nil && apperrors.KindOf(err) == "" {
		err = apperrors.Upstream(op, err)
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case result.Partial():
		outcome = "partial"
	}
	s.metrics.RecordSync(ctx, outcome, time.Since(start), result.Created, result.Updated, result.Deleted)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "synchronization failed",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()))
		return domain.SyncResult{}, err
	}

	s.logger.InfoContext(ctx, "asset synchronized",
		slog.String("asset_id", assetID),
		slog.String("product_id", result.Product.ProductID),
		slog.String("type", string(result.Product.Type)),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("deleted", result.Deleted),
		slog.Bool("converted", result.Converted),
		slog.Int("failures", len(result.Failures)))

	if s.sink != nil {
		s.sink.Emit(ctx, domain.NewEvent(domain.EventCommerceSynchronized, assetID, map[string]any{
			"asset_id":   assetID,
			"product_id": result.Product.ProductID,
			"type":       string(result.Product.Type),
			"created":    result.Created,
			"updated":    result.Updated,
			"deleted":    result.Deleted,
			"converted":  result.Converted,
			"partial":    result.Partial(),
		}))
	}
	return result, nil
}

func (s *Synchronizer) run(ctx context.Context, op, assetID string) (domain.SyncResult, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return domain.SyncResult{}, apperrors.Upstream(op, err)
	}
	all, err := s.tiers.List(ctx)
	if err != nil {
		return domain.SyncResult{}, apperrors.Upstream(op, err)
	}
	active := make([]domain.LicenseTier, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}

	var result domain.SyncResult

	// a tier that cannot be priced is reported and left out of the projection
	sellable := make([]pricedTier, 0, len(active))
	for _, t := range active {
		p, err := pricing.Price(asset.BasePrice, t)
		if err != nil {
			result.Failures = append(result.Failures, s.failure(ctx, asset.ID, t.ID, "", StepPrice, err))
			continue
		}
		sellable = append(sellable, pricedTier{tier: t, price: p})
	}

	desired := domain.Product{
		AssetID:     asset.ID,
		Title:       asset.Title,
		DownloadRef: asset.DeliverableRef,
	}
	switch len(sellable) {
	case 0:
		desired.Type = domain.ProductTypeSimple
		desired.Price = asset.BasePrice
	case 1:
		desired.Type = domain.ProductTypeSimple
		desired.Price = sellable[0].price
		desired.LinkedTier = sellable[0].tier.ID
	default:
		desired.Type = domain.ProductTypeVariable
		desired.Price = sellable[0].price
		for _, p := range sellable[1:] {
			if p.price.LessThan(desired.Price) {
				desired.Price = p.price
			}
		}
	}

	product, found, err := s.loadProduct(ctx, asset)
	if err != nil {
		return domain.SyncResult{}, apperrors.Upstream(op, err)
	}

	var existing []domain.Variation
	if found {
		existing, err = s.products.ListVariations(ctx, product.ID)
		if err != nil {
			return domain.SyncResult{}, apperrors.Upstream(op, err)
		}
	}

	if desired.Type == domain.ProductTypeVariable {
		desired.Attribute = &domain.ProductAttribute{
			Name:  domain.LicenseAttribute,
			Terms: attributeTerms(product.Attribute, all, slugsOf(sellable)),
		}
	}

	if !found {
		desired.ID = ""
		product, err = s.products.CreateProduct(ctx, desired)
		if err != nil {
			return domain.SyncResult{}, apperrors.Upstream(op, err)
		}
		if err := s.assets.LinkProduct(ctx, asset.ID, product.ID); err != nil {
			return domain.SyncResult{}, apperrors.Upstream(op, err)
		}
		s.logger.InfoContext(ctx, "product created",
			slog.String("asset_id", asset.ID),
			slog.String("product_id", product.ID),
			slog.String("type", string(product.Type)))
	} else {
		result.Converted = product.Type != desired.Type
		if next, changed := applyProduct(product, desired); changed {
			product, err = s.products.UpdateProduct(ctx, next)
			if err != nil {
				return domain.SyncResult{}, apperrors.Upstream(op, err)
			}
			if result.Converted {
				s.logger.InfoContext(ctx, "product converted",
					slog.String("asset_id", asset.ID),
					slog.String("product_id", product.ID),
					slog.String("type", string(product.Type)))
			}
		}
	}

	result.Product = domain.ProductRef{ProductID: product.ID, AssetID: asset.ID, Type: product.Type}

	// Variations: one per sellable tier on variable products, none otherwise.
	keep := make(map[string]bool, len(existing))
	if product.Type == domain.ProductTypeVariable {
		for _, p := range sellable {
			want := domain.Variation{
				ProductID:      product.ID,
				AttributeValue: p.tier.Slug,
				Price:          p.price,
				DownloadRef:    asset.DeliverableRef,
				Virtual:        true,
				Downloadable:   true,
				LinkedTier:     p.tier.ID,
				LinkedAssetID:  asset.ID,
			}

			current, ok := pickVariation(existing, keep, p.tier)
			switch {
			case !ok:
				created, err := s.products.CreateVariation(ctx, want)
				if err != nil {
					result.Failures = append(result.Failures, s.failure(ctx, asset.ID, p.tier.ID, "", StepCreate, err))
					continue
				}
				keep[created.ID] = true
				result.Created++
				result.Variations = append(result.Variations, variationRef(created, p.tier))
			case variationMatches(current, want):
				keep[current.ID] = true
				result.Variations = append(result.Variations, variationRef(current, p.tier))
			default:
				keep[current.ID] = true
				want.ID = current.ID
				updated, err := s.products.UpdateVariation(ctx, want)
				if err != nil {
					result.Failures = append(result.Failures, s.failure(ctx, asset.ID, p.tier.ID, current.ID, StepUpdate, err))
					result.Variations = append(result.Variations, variationRef(current, p.tier))
					continue
				}
				result.Updated++
				result.Variations = append(result.Variations, variationRef(updated, p.tier))
			}
		}
	}

	// Stale, orphaned and duplicate variations
	for _, v := range existing {
		if keep[v.ID] {
			continue
		}
		if err := s.products.DeleteVariation(ctx, product.ID, v.ID); err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			result.Failures = append(result.Failures, s.failure(ctx, asset.ID, v.LinkedTier, v.ID, StepDelete, err))
			continue
		}
		result.Deleted++
		s.logger.DebugContext(ctx, "variation removed",
			slog.String("asset_id", asset.ID),
			slog.String("variation_id", v.ID),
			slog.String("tier_id", v.LinkedTier))
	}

	if len(asset.Categories) > 0 || len(asset.Tags) > 0 {
		if err := s.products.AttachCategory(ctx, product.ID, asset.Categories, asset.Tags); err != nil {
			result.Failures = append(result.Failures, s.failure(ctx, asset.ID, "", "", StepTaxonomy, err))
		}
	}

	return result, nil
}

// loadProduct returns the asset's linked product. A link to a product that no
// longer exists is treated as no product.
func (s *Synchronizer) loadProduct(ctx context.Context, asset domain.Asset) (domain.Product, bool, error) {
	if asset.ProductID == "" {
		return domain.Product{}, false, nil
	}
	p, err := s.products.GetProduct(ctx, asset.ProductID)
	if apperrors.IsNotFound(err) {
		s.logger.WarnContext(ctx, "linked product missing, recreating",
			slog.String("asset_id", asset.ID),
			slog.String("product_id", asset.ProductID))
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	return p, true, nil
}

func (s *Synchronizer) failure(ctx context.Context, assetID, tierID, variationID, step string, err error) domain.SyncFailure {
	s.logger.WarnContext(ctx, "synchronization step failed",
		slog.String("asset_id", assetID),
		slog.String("tier_id", tierID),
		slog.String("variation_id", variationID),
		slog.String("step", step),
		slog.String("error", err.Error()))
	return domain.SyncFailure{TierID: tierID, VariationID: variationID, Step: step, Error: err.Error()}
}

// applyProduct copies the synchronized fields of desired onto current and
// reports whether anything changed
func applyProduct(current, desired domain.Product) (domain.Product, bool) {
	next := current.Clone()
	next.AssetID = desired.AssetID
	next.Title = desired.Title
	next.Type = desired.Type
	next.Price = desired.Price
	next.DownloadRef = desired.DownloadRef
	next.LinkedTier = desired.LinkedTier
	next.Attribute = nil
	if desired.Attribute != nil {
		attr := *desired.Attribute
		next.Attribute = &attr
	}

	changed := current.AssetID != next.AssetID ||
		current.Title != next.Title ||
		current.Type != next.Type ||
		!pricing.Equal(current.Price, next.Price) ||
		current.DownloadRef != next.DownloadRef ||
		current.LinkedTier != next.LinkedTier ||
		!sameAttribute(current.Attribute, next.Attribute)
	return next, changed
}

func sameAttribute(a, b *domain.ProductAttribute) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && slices.Equal(a.Terms, b.Terms)
}

// attributeTerms returns the active slugs in catalog order followed by terms
// already on the product that belong to inactive tiers still in the catalog
func attributeTerms(current *domain.ProductAttribute, all []domain.LicenseTier, activeSlugs []string) []string {
	terms := append([]string(nil), activeSlugs...)
	if current == nil {
		return terms
	}
	inactive := make(map[string]bool)
	for _, t := range all {
		if !t.Active {
			inactive[t.Slug] = true
		}
	}
	for _, term := range current.Terms {
		if inactive[term] && !slices.Contains(terms, term) {
			terms = append(terms, term)
		}
	}
	return terms
}

type pricedTier struct {
	tier  domain.LicenseTier
	price decimal.Decimal
}

func slugsOf(in []pricedTier) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = p.tier.Slug
	}
	return out
}

// pickVariation finds the first unclaimed variation for tier, by link and
// then by attribute value for variations created before links existed
func pickVariation(existing []domain.Variation, claimed map[string]bool, tier domain.LicenseTier) (domain.Variation, bool) {
	for _, v := range existing {
		if !claimed[v.ID] && v.LinkedTier == tier.ID {
			return v, true
		}
	}
	for _, v := range existing {
		if !claimed[v.ID] && v.LinkedTier == "" && strings.EqualFold(v.AttributeValue, tier.Slug) {
			return v, true
		}
	}
	return domain.Variation{}, false
}

func variationMatches(current, want domain.Variation) bool {
	return current.AttributeValue == want.AttributeValue &&
		pricing.Equal(current.Price, want.Price) &&
		current.DownloadRef == want.DownloadRef &&
		current.Virtual == want.Virtual &&
		current.Downloadable == want.Downloadable &&
		current.LinkedTier == want.LinkedTier &&
		current.LinkedAssetID == want.LinkedAssetID
}

func variationRef(v domain.Variation, tier domain.LicenseTier) domain.VariationRef {
	return domain.VariationRef{VariationID: v.ID, TierID: tier.ID, TierSlug: tier.Slug, Price: v.Price}
}
