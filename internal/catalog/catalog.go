package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/events"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/locking"
	"audiolicense/pkg/contracts/domain"
)

// Catalog operations
const (
	OpUpsert  = "upsert"
	OpDelete  = "delete"
	OpReorder = "reorder"
)

const fallbackSlug = "license"

// ChangeListener is notified after a catalog mutation commits
type ChangeListener interface {
	CatalogChanged(ctx context.Context, change domain.CatalogChange)
}

// ListenerFunc adapts a function to ChangeListener
type ListenerFunc func(ctx context.Context, change domain.CatalogChange)

// CatalogChanged implements ChangeListener
func (f ListenerFunc) CatalogChanged(ctx context.Context, change domain.CatalogChange) {
	f(ctx, change)
}

// Catalog manages the license tiers of one catalog
type Catalog struct {
	id      string
	repo    Repository
	locker  locking.Locker
	sink    events.Sink
	metrics *infrastructure.EngineMetrics
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	listeners []ChangeListener
}

// Option configures a Catalog
type Option func(*Catalog)

// WithEvents sets the sink receiving license.catalog_changed
func WithEvents(sink events.Sink) Option {
	return func(c *Catalog) { c.sink = sink }
}

// WithMetrics sets the engine metrics
func WithMetrics(m *infrastructure.EngineMetrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New creates a catalog service
func New(id string, repo Repository, locker locking.Locker, logger *slog.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		id:     id,
		repo:   repo,
		locker: locker,
		logger: logger.With(slog.String("component", "catalog"), slog.String("catalog_id", id)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the catalog id
func (c *Catalog) ID() string {
	return c.id
}

// Subscribe registers a listener for committed changes
func (c *Catalog) Subscribe(l ChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// List returns every tier in sort order
func (c *Catalog) List(ctx context.Context) ([]domain.LicenseTier, error) {
	tiers, err := c.repo.Load(ctx, c.id)
	if err != nil {
		return nil, apperrors.Upstream("catalog.List", err)
	}
	sortTiers(tiers)
	return tiers, nil
}

// GetActive returns the active tiers in sort order
func (c *Catalog) GetActive(ctx context.Context) ([]domain.LicenseTier, error) {
	tiers, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.LicenseTier, 0, len(tiers))
	for _, t := range tiers {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

// GetDefault returns the active default tier, falling back to the first
// active tier in sort order
func (c *Catalog) GetDefault(ctx context.Context) (domain.LicenseTier, error) {
	active, err := c.GetActive(ctx)
	if err != nil {
		return domain.LicenseTier{}, err
	}
	if len(active) == 0 {
		return domain.LicenseTier{}, apperrors.NotFound("catalog.GetDefault", "default tier", c.id)
	}
	for _, t := range active {
		if t.IsDefault {
			return t, nil
		}
	}
	return active[0], nil
}

// Get returns the tier named by id or slug
func (c *Catalog) Get(ctx context.Context, idOrSlug string) (domain.LicenseTier, error) {
	tiers, err := c.List(ctx)
	if err != nil {
		return domain.LicenseTier{}, err
	}
	if t, ok := find(tiers, idOrSlug); ok {
		return t, nil
	}
	return domain.LicenseTier{}, apperrors.NotFound("catalog.Get", "tier", idOrSlug)
}

// Upsert creates or updates a tier and returns the stored version
func (c *Catalog) Upsert(ctx context.Context, tier domain.LicenseTier) (domain.LicenseTier, error) {
	const op = "catalog.Upsert"

	tier.Name = strings.TrimSpace(tier.Name)
	if tier.Name == "" {
		return domain.LicenseTier{}, apperrors.Validation(op, "name is required").With("field", "name")
	}
	if !tier.PriceType.Valid() {
		return domain.LicenseTier{}, apperrors.Validation(op, "price type %q is not one of fixed, markup", tier.PriceType).With("field", "price_type")
	}
	if tier.PriceValue.IsNegative() {
		return domain.LicenseTier{}, apperrors.Validation(op, "price value must not be negative").With("field", "price_value")
	}

	var (
		stored domain.LicenseTier
		change domain.CatalogChange
	)
	err := c.mutate(ctx, op, func(tiers []domain.LicenseTier) ([]domain.LicenseTier, error) {
		now := c.now()
		idx := -1
		if tier.ID != "" {
			idx = indexByID(tiers, tier.ID)
		}

		var old *domain.LicenseTier
		if idx >= 0 {
			prev := tiers[idx].Clone()
			old = &prev
		}

		s, err := c.resolveSlug(op, tiers, idx, tier)
		if err != nil {
			return nil, err
		}
		tier.Slug = s

		if tier.ID == "" {
			tier.ID = uuid.New().String()
		}
		if old != nil {
			tier.CreatedAt = old.CreatedAt
			if tier.SortOrder == 0 {
				tier.SortOrder = old.SortOrder
			}
		} else {
			tier.CreatedAt = now
			if tier.SortOrder == 0 {
				tier.SortOrder = maxSortOrder(tiers) + 1
			}
		}
		tier.UpdatedAt = now
		tier = tier.Clone()

		if tier.IsDefault {
			for i := range tiers {
				if i != idx && tiers[i].IsDefault {
					tiers[i].IsDefault = false
					tiers[i].UpdatedAt = now
				}
			}
		}

		if idx >= 0 {
			tiers[idx] = tier
		} else {
			tiers = append(tiers, tier)
		}

		stored = tier
		change = domain.CatalogChange{
			CatalogID: c.id,
			Operation: OpUpsert,
			TierIDs:   []string{tier.ID},
			Resync:    (old == nil && tier.Active) || (old != nil && tier.CommerceRelevant(*old)),
			At:        now,
		}
		return tiers, nil
	})
	if err != nil {
		return domain.LicenseTier{}, err
	}

	c.logger.InfoContext(ctx, "tier stored",
		slog.String("tier_id", stored.ID),
		slog.String("slug", stored.Slug),
		slog.Bool("resync", change.Resync))
	c.publish(ctx, change)
	return stored, nil
}

// Delete removes a tier. Issued certificates keep their snapshot of it.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	const op = "catalog.Delete"
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation(op, "id is required").With("field", "id")
	}

	var change domain.CatalogChange
	err := c.mutate(ctx, op, func(tiers []domain.LicenseTier) ([]domain.LicenseTier, error) {
		idx := indexByID(tiers, id)
		if idx < 0 {
			return nil, apperrors.NotFound(op, "tier", id)
		}
		removed := tiers[idx]
		tiers = append(tiers[:idx], tiers[idx+1:]...)

		change = domain.CatalogChange{
			CatalogID: c.id,
			Operation: OpDelete,
			TierIDs:   []string{removed.ID},
			Resync:    true,
			At:        c.now(),
		}
		return tiers, nil
	})
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "tier deleted", slog.String("tier_id", id))
	c.publish(ctx, change)
	return nil
}

// Reorder assigns contiguous sort orders following ids. Tiers not listed keep
// their relative order after the listed ones; unknown ids are ignored.
func (c *Catalog) Reorder(ctx context.Context, ids []string) ([]domain.LicenseTier, error) {
	const op = "catalog.Reorder"

	var (
		result []domain.LicenseTier
		change domain.CatalogChange
	)
	err := c.mutate(ctx, op, func(tiers []domain.LicenseTier) ([]domain.LicenseTier, error) {
		now := c.now()
		placed := make(map[int]bool, len(tiers))
		ordered := make([]domain.LicenseTier, 0, len(tiers))

		for _, id := range ids {
			idx := indexByID(tiers, id)
			if idx < 0 || placed[idx] {
				continue
			}
			placed[idx] = true
			ordered = append(ordered, tiers[idx])
		}
		for i, t := range tiers {
			if !placed[i] {
				ordered = append(ordered, t)
			}
		}

		moved := make([]string, 0, len(ordered))
		for i := range ordered {
			if ordered[i].SortOrder != i+1 {
				ordered[i].SortOrder = i + 1
				ordered[i].UpdatedAt = now
			}
			moved = append(moved, ordered[i].ID)
		}

		result = cloneTiers(ordered)
		change = domain.CatalogChange{
			CatalogID: c.id,
			Operation: OpReorder,
			TierIDs:   moved,
			At:        now,
		}
		return ordered, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "tiers reordered", slog.Int("tier_count", len(result)))
	c.publish(ctx, change)
	return result, nil
}

// Seed stores tiers when the catalog is empty and reports whether it did
func (c *Catalog) Seed(ctx context.Context, seed []domain.LicenseTier) (bool, error) {
	seeded := false
	err := c.mutate(ctx, "catalog.Seed", func(tiers []domain.LicenseTier) ([]domain.LicenseTier, error) {
		if len(tiers) > 0 {
			return tiers, nil
		}
		now := c.now()
		out := make([]domain.LicenseTier, 0, len(seed))
		defaultSeen := false
		for i, t := range seed {
			t = t.Clone()
			if t.ID == "" {
				t.ID = uuid.New().String()
			}
			if t.Slug == "" {
				t.Slug = uniqueSlug(out, -1, t.Name)
			}
			if t.PriceType == "" {
				t.PriceType = domain.PriceTypeFixed
			}
			if t.SortOrder == 0 {
				t.SortOrder = i + 1
			}
			if t.IsDefault && defaultSeen {
				t.IsDefault = false
			}
			defaultSeen = defaultSeen || t.IsDefault
			t.CreatedAt, t.UpdatedAt = now, now
			out = append(out, t)
		}
		seeded = true
		return out, nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		c.logger.InfoContext(ctx, "catalog seeded", slog.Int("tier_count", len(seed)))
	}
	return seeded, nil
}

// mutate runs fn as load-modify-save under the catalog lock
func (c *Catalog) mutate(ctx context.Context, op string, fn func([]domain.LicenseTier) ([]domain.LicenseTier, error)) error {
	err := c.locker.WithLock(ctx, locking.CatalogKey(c.id), func(ctx context.Context) error {
		tiers, err := c.repo.Load(ctx, c.id)
		if err != nil {
			return apperrors.Upstream(op, err)
		}
		sortTiers(tiers)

		updated, err := fn(tiers)
		if err != nil {
			return err
		}
		sortTiers(updated)

		if err := c.repo.Save(ctx, c.id, updated); err != nil {
			return apperrors.Upstream(op, err)
		}
		return nil
	})
	if err != nil && apperrors.KindOf(err) == "" {
		// lock acquisition failures
		return apperrors.Upstream(op, err)
	}
	return err
}

func (c *Catalog) publish(ctx context.Context, change domain.CatalogChange) {
	c.metrics.RecordCatalogMutation(ctx, change.Operation)

	if c.sink != nil {
		c.sink.Emit(ctx, domain.NewEvent(domain.EventCatalogChanged, change.CatalogID, map[string]any{
			"catalog_id": change.CatalogID,
			"operation":  change.Operation,
			"tier_ids":   change.TierIDs,
			"resync":     change.Resync,
		}))
	}

	c.mu.RLock()
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l.CatalogChanged(ctx, change)
	}
}

// resolveSlug returns the slug to store for tier at idx (-1 for a new tier)
func (c *Catalog) resolveSlug(op string, tiers []domain.LicenseTier, idx int, tier domain.LicenseTier) (string, error) {
	if tier.Slug == "" {
		if idx >= 0 {
			return tiers[idx].Slug, nil
		}
		return uniqueSlug(tiers, idx, tier.Name), nil
	}

	s := slug.Make(tier.Slug)
	if s == "" {
		return "", apperrors.Validation(op, "slug %q has no usable characters", tier.Slug).With("field", "slug")
	}
	for i, t := range tiers {
		if i != idx && t.Slug == s {
			return "", apperrors.Conflict(op, "slug %q is already used by tier %s", s, t.ID).With("slug", s)
		}
	}
	return s, nil
}

// uniqueSlug derives a slug from name, appending -2, -3, ... until unused
func uniqueSlug(tiers []domain.LicenseTier, skip int, name string) string {
	base := slug.Make(name)
	if base == "" {
		base = fallbackSlug
	}
	taken := make(map[string]bool, len(tiers))
	for i, t := range tiers {
		if i != skip {
			taken[t.Slug] = true
		}
	}
	candidate := base
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return candidate
}

func indexByID(tiers []domain.LicenseTier, id string) int {
	for i, t := range tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func find(tiers []domain.LicenseTier, idOrSlug string) (domain.LicenseTier, bool) {
	for _, t := range tiers {
		if t.Matches(idOrSlug) {
			return t, true
		}
	}
	return domain.LicenseTier{}, false
}

func maxSortOrder(tiers []domain.LicenseTier) int {
	m := 0
	for _, t := range tiers {
		if t.SortOrder > m {
			m = t.SortOrder
		}
	}
	return m
}
