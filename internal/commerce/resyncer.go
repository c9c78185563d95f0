package commerce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/infrastructure"
	"audiolicense/pkg/contracts/domain"
)

// resyncTimeout bounds a catalog-triggered resync that outlives its request
const resyncTimeout = 5 * time.Minute

// AssetOutcome is the result of resynchronizing one asset
type AssetOutcome struct {
	AssetID string             `json:"asset_id"`
	Result  *domain.SyncResult `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ResyncReport summarizes a resync of every linked asset
type ResyncReport struct {
	Assets    []AssetOutcome `json:"assets"`
	Succeeded int            `json:"succeeded"`
	Partial   int            `json:"partial"`
	Failed    int            `json:"failed"`
}

// Resyncer re-synchronizes linked assets when the catalog changes
type Resyncer struct {
	assets      AssetRepository
	syncer      *Synchronizer
	concurrency int
	logger      *slog.Logger
}

// NewResyncer creates a Resyncer running at most concurrency syncs at once
func NewResyncer(assets AssetRepository, syncer *Synchronizer, concurrency int, logger *slog.Logger) *Resyncer {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resyncer{
		assets:      assets,
		syncer:      syncer,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "resyncer")),
	}
}

// CatalogChanged resyncs every linked asset for changes that affect commerce.
// The run is detached from the caller's cancellation.
func (r *Resyncer) CatalogChanged(ctx context.Context, change domain.CatalogChange) {
	if !change.Resync {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(infrastructure.EnsureTraceID(ctx)), resyncTimeout)
	defer cancel()

	report, err := r.ResyncAll(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "catalog resync failed",
			slog.String("operation", change.Operation),
			slog.String("error", err.Error()))
		return
	}
	r.logger.InfoContext(ctx, "catalog resync completed",
		slog.String("operation", change.Operation),
		slog.Any("tier_ids", change.TierIDs),
		slog.Int("assets", len(report.Assets)),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("partial", report.Partial),
		slog.Int("failed", report.Failed))
}

// ResyncAll synchronizes every asset linked to a product. Individual asset
// failures are reported, not returned.
func (r *Resyncer) ResyncAll(ctx context.Context) (ResyncReport, error) {
	linked, err := r.assets.ListLinked(ctx)
	if err != nil {
		return ResyncReport{}, apperrors.Upstream("commerce.ResyncAll", err)
	}

	outcomes := make([]AssetOutcome, len(linked))
	var mu sync.Mutex
	report := ResyncReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, a := range linked {
		g.Go(func() error {
			out := AssetOutcome{AssetID: a.ID}
			res, err := r.syncer.Synchronize(gctx, a.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				out.Error = err.Error()
				report.Failed++
			case res.Partial():
				out.Result = &res
				report.Partial++
			default:
				out.Result = &res
				report.Succeeded++
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	report.Assets = outcomes
	return report, nil
}
