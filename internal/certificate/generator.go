package certificate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"audiolicense/internal/commerce"
	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/events"
	"audiolicense/internal/files"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/locking"
	"audiolicense/pkg/contracts/domain"
)

// Issue outcomes recorded in metrics
const (
	OutcomeIssued     = "issued"
	OutcomeReused     = "reused"
	OutcomeRerendered = "rerendered"
	OutcomeError      = "error"
)

// ProductReader reads the products and variations an order line points at
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetVariation(ctx context.Context, variationID string) (domain.Variation, error)
}

// TierLookup finds a catalog tier by id or slug
type TierLookup interface {
	Get(ctx context.Context, idOrSlug string) (domain.LicenseTier, error)
}

// AssetReader reads asset metadata
type AssetReader interface {
	Get(ctx context.Context, assetID string) (domain.Asset, error)
}

// Deps are the collaborators of a Generator. Events and Metrics may be nil.
type Deps struct {
	Orders    commerce.OrderStore
	Products  ProductReader
	Tiers     TierLookup
	Assets    AssetReader
	Records   Store
	Artifacts files.Storage
	Renderer  Renderer
	Locker    locking.Locker
	Events    events.Sink
	Metrics   *infrastructure.EngineMetrics
}

// Options configures serials and links
type Options struct {
	SerialPrefix  string
	VerifyBaseURL string
	Brand         string
}

// Generator issues certificates
type Generator struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// NewGenerator creates a Generator. An empty serial prefix uses DefaultPrefix.
func NewGenerator(deps Deps, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SerialPrefix == "" {
		opts.SerialPrefix = DefaultPrefix
	}
	opts.VerifyBaseURL = strings.TrimRight(opts.VerifyBaseURL, "/")
	return &Generator{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: logger.With(slog.String("component", "certificate_generator")),
	}
}

// SetClock replaces the issuance clock
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// VerificationURL returns the public verification link for serial
func (g *Generator) VerificationURL(serial string) string {
	return g.opts.VerifyBaseURL + "/" + url.PathEscape(serial)
}

// Issue returns the certificate of an order line, creating it on first call.
// Calls for a pair whose record and artifact exist return the record
// unchanged; a record whose artifact is gone is re-rendered in place.
func (g *Generator) Issue(ctx context.Context, orderID, itemID int64) (domain.CertificateRef, error) {
	const op = "certificate.Issue"

	if orderID <= 0 {
		return domain.CertificateRef{}, apperrors.Validation(op, "order id must be positive").With("field", "order_id")
	}
	if itemID <= 0 {
		return domain.CertificateRef{}, apperrors.Validation(op, "order item id must be positive").With("field", "order_item_id")
	}

	start := time.Now()
	var (
		cert    domain.Certificate
		outcome string
	)
	err := g.deps.Locker.WithLock(ctx, locking.IssueKey(orderID, itemID), func(ctx context.Context) error {
		var err error
		cert, outcome, err = g.issueLocked(ctx, op, orderID, itemID)
		return err
	})
	if err != nil && apperrors.KindOf(err) == "" {
		err = apperrors.Upstream(op, err)
	}
	if err != nil {
		g.deps.Metrics.RecordIssue(ctx, OutcomeError, time.Since(start))
		infrastructure.RecordError(ctx, err)
		g.logger.ErrorContext(ctx, "certificate issuance failed",
			slog.Int64("order_id", orderID),
			slog.Int64("order_item_id", itemID),
			slog.String("error", err.Error()))
		return domain.CertificateRef{}, err
	}
	g.deps.Metrics.RecordIssue(ctx, outcome, time.Since(start))

	ref := g.ref(cert)
	ref.Reused = outcome != OutcomeIssued
	g.logger.InfoContext(ctx, "certificate ready",
		slog.String("serial", cert.Serial),
		slog.Int64("order_id", orderID),
		slog.Int64("order_item_id", itemID),
		slog.String("outcome", outcome))

	if outcome == OutcomeIssued && g.deps.Events != nil {
		g.deps.Events.Emit(ctx, domain.NewEvent(domain.EventCertificateIssued, cert.Serial, map[string]any{
			"serial":        cert.Serial,
			"order_id":      cert.OrderID,
			"order_item_id": cert.OrderItemID,
			"asset_id":      cert.AssetID,
			"tier_id":       cert.TierID,
			"file_path":     cert.FilePath,
			"download_url":  ref.DownloadURL,
		}))
	}
	return ref, nil
}

// Lookup returns the stored certificate of an order line
func (g *Generator) Lookup(ctx context.Context, orderID, itemID int64) (domain.CertificateRef, error) {
	const op = "certificate.Lookup"

	cert, err := g.deps.Records.Get(ctx, orderID, itemID)
	if err != nil {
		return domain.CertificateRef{}, apperrors.Upstream(op, err)
	}
	ref := g.ref(cert)
	ref.Reused = true
	return ref, nil
}

func (g *Generator) issueLocked(ctx context.Context, op string, orderID, itemID int64) (domain.Certificate, string, error) {
	existing, err := g.deps.Records.Get(ctx, orderID, itemID)
	switch {
	case err == nil:
		ok, err := g.deps.Artifacts.Exists(ctx, existing.FilePath)
		if err != nil {
			return domain.Certificate{}, "", apperrors.Upstream(op, err)
		}
		if ok {
			return existing, OutcomeReused, nil
		}
		g.logger.WarnContext(ctx, "certificate artifact missing, re-rendering",
			slog.String("serial", existing.Serial),
			slog.String("file_path", existing.FilePath))
		cert, err := g.render(ctx, op, existing)
		return cert, OutcomeRerendered, err
	case !apperrors.IsNotFound(err):
		return domain.Certificate{}, "", apperrors.Upstream(op, err)
	}

	issuedAt := g.now().UTC()
	serial := FormatSerial(g.opts.SerialPrefix, issuedAt.Year(), orderID, itemID)
	cert := domain.Certificate{
		Serial:      serial,
		OrderID:     orderID,
		OrderItemID: itemID,
		IssuedAt:    issuedAt,
		FilePath:    ArtifactPath(serial, issuedAt),
	}
	cert, err = g.render(ctx, op, cert)
	return cert, OutcomeIssued, err
}

// render fills in the detail snapshots missing from cert, writes the
// artifact and saves the record
func (g *Generator) render(ctx context.Context, op string, cert domain.Certificate) (domain.Certificate, error) {
	order, err := g.deps.Orders.GetOrder(ctx, cert.OrderID)
	if err != nil {
		return domain.Certificate{}, apperrors.Upstream(op, err)
	}
	item, err := g.deps.Orders.GetOrderItem(ctx, cert.OrderID, cert.OrderItemID)
	if err != nil {
		return domain.Certificate{}, apperrors.Upstream(op, err)
	}

	d, err := LookupLine(ctx, g.deps.Products, g.deps.Tiers, g.deps.Assets, item)
	if err != nil {
		return domain.Certificate{}, apperrors.Upstream(op, err)
	}
	if cert.AssetID == "" {
		cert.AssetID = d.AssetID
	}
	if cert.TierID == "" {
		cert.TierID = d.TierID
	}
	if cert.AssetTitle == "" {
		cert.AssetTitle = d.AssetTitle
	}
	if cert.TierName == "" {
		cert.TierName = d.TierName
	}
	if cert.AssetTitle == "" || cert.TierName == "" {
		g.logger.WarnContext(ctx, "certificate details incomplete",
			slog.String("serial", cert.Serial),
			slog.String("asset_id", cert.AssetID),
			slog.String("tier_id", cert.TierID))
	}

	data, err := g.deps.Renderer.Render(ctx, Document{
		Serial:          cert.Serial,
		Brand:           g.opts.Brand,
		AssetTitle:      cert.AssetTitle,
		CreatorName:     d.CreatorName,
		TierName:        cert.TierName,
		PurchaserName:   order.PurchaserName,
		OrderDate:       order.DateCreated,
		IssuedAt:        cert.IssuedAt,
		VerificationURL: g.VerificationURL(cert.Serial),
	})
	if err != nil {
		return domain.Certificate{}, err
	}
	if err := g.deps.Artifacts.Write(ctx, cert.FilePath, data); err != nil {
		return domain.Certificate{}, apperrors.Upstream(op, err)
	}
	if err := g.deps.Records.Save(ctx, cert); err != nil {
		return domain.Certificate{}, apperrors.Upstream(op, err)
	}
	return cert, nil
}

// LineDetails are the asset and tier an order line points at
type LineDetails struct {
	AssetID     string
	TierID      string
	AssetTitle  string
	CreatorName string
	TierName    string
}

// LookupLine follows an order line through its variation or product to the
// asset and tier. Missing links leave fields blank; other collaborator
// failures are returned.
func LookupLine(ctx context.Context, products ProductReader, tiers TierLookup, assets AssetReader, item domain.OrderItem) (LineDetails, error) {
	var d LineDetails

	if item.VariationID != "" {
		v, err := products.GetVariation(ctx, item.VariationID)
		switch {
		case err == nil:
			d.TierID, d.AssetID = v.LinkedTier, v.LinkedAssetID
		case !apperrors.IsNotFound(err):
			return d, err
		}
	}
	if (d.AssetID == "" || d.TierID == "") && item.ProductID != "" {
		p, err := products.GetProduct(ctx, item.ProductID)
		switch {
		case err == nil:
			if d.AssetID == "" {
				d.AssetID = p.AssetID
			}
			if d.TierID == "" {
				d.TierID = p.LinkedTier
			}
		case !apperrors.IsNotFound(err):
			return d, err
		}
	}

	if d.TierID != "" {
		t, err := tiers.Get(ctx, d.TierID)
		switch {
		case err == nil:
			d.TierName = t.Name
		case !apperrors.IsNotFound(err):
			return d, err
		}
	}
	if d.AssetID != "" {
		a, err := assets.Get(ctx, d.AssetID)
		switch {
		case err == nil:
			d.AssetTitle, d.CreatorName = a.Title, a.CreatorName
		case !apperrors.IsNotFound(err):
			return d, err
		}
	}
	return d, nil
}

func (g *Generator) ref(cert domain.Certificate) domain.CertificateRef {
	return domain.CertificateRef{
		Serial:          cert.Serial,
		OrderID:         cert.OrderID,
		OrderItemID:     cert.OrderItemID,
		AssetID:         cert.AssetID,
		IssuedAt:        cert.IssuedAt,
		FilePath:        cert.FilePath,
		DownloadURL:     g.deps.Artifacts.PublicURL(cert.FilePath),
		VerificationURL: g.VerificationURL(cert.Serial),
	}
}
