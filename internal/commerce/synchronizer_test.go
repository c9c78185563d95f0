package commerce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/events"
	"audiolicense/internal/locking"
	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

type stubTiers struct {
	mu    sync.Mutex
	tiers []domain.LicenseTier
	err   error
}

func (s *stubTiers) List(context.Context) ([]domain.LicenseTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.LicenseTier(nil), s.tiers...), nil
}

func (s *stubTiers) set(tiers ...domain.LicenseTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = tiers
}

func (s *stubTiers) setActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tiers {
		if s.tiers[i].ID == id {
			s.tiers[i].Active = active
		}
	}
}

// flakyShop fails variation creation for one tier
type flakyShop struct {
	*MemoryShop
	failTier string
}

func (f *flakyShop) CreateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error) {
	if v.LinkedTier == f.failTier {
		return domain.Variation{}, errors.New("upstream 500")
	}
	return f.MemoryShop.CreateVariation(ctx, v)
}

type syncFixture struct {
	assets *MemoryAssets
	shop   *MemoryShop
	tiers  *stubTiers
	events *events.Recorder
	sync   *Synchronizer
	logs   *testutil.BufferedSlogHandler
}

func newSyncFixture(t *testing.T, store ProductStore, tiers ...domain.LicenseTier) *syncFixture {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	f := &syncFixture{
		assets: NewMemoryAssets(testutil.Asset("a1", "5.00")),
		shop:   NewMemoryShop(),
		tiers:  &stubTiers{tiers: tiers},
		events: events.NewRecorder(),
		logs:   handler,
	}
	if store == nil {
		store = f.shop
	}
	f.sync = NewSynchronizer(f.assets, store, f.tiers, locking.NewLocal(), f.events, nil, logger)
	return f
}

func (f *syncFixture) product(t *testing.T) (domain.Product, []domain.Variation) {
	t.Helper()
	a, err := f.assets.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.NotEmpty(t, a.ProductID)
	p, err := f.shop.GetProduct(context.Background(), a.ProductID)
	require.NoError(t, err)
	vs, err := f.shop.ListVariations(context.Background(), p.ID)
	require.NoError(t, err)
	return p, vs
}

func TestSynchronize_NoActiveTiers(t *testing.T) {
	f := newSyncFixture(t, nil)

	res, err := f.sync.Synchronize(context.Background(), "a1")
	require.NoError(t, err)

	p, vs := f.product(t)
	assert.Equal(t, domain.ProductTypeSimple, p.Type)
	assert.True(t, p.Price.Equal(testutil.Dec("5.00")))
	assert.Empty(t, p.LinkedTier)
	assert.Empty(t, vs)
	assert.Equal(t, p.ID, res.Product.ProductID)
}

func TestSynchronize_SingleToVariableConversion(t *testing.T) {
	standard := testutil.FixedTier("standard", "9.99")
	f := newSyncFixture(t, nil, standard)
	ctx := context.Background()

	_, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)

	p, vs := f.product(t)
	assert.Equal(t, domain.ProductTypeSimple, p.Type)
	assert.Equal(t, "9.99", p.Price.StringFixed(2))
	assert.Equal(t, "standard", p.LinkedTier)
	assert.Empty(t, vs)

	f.tiers.set(standard, testutil.FixedTier("extended", "24.00"))
	res, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, res.Converted)
	assert.Equal(t, 2, res.Created)

	p, vs = f.product(t)
	assert.Equal(t, domain.ProductTypeVariable, p.Type)
	require.NotNil(t, p.Attribute)
	assert.Equal(t, domain.LicenseAttribute, p.Attribute.Name)
	assert.Equal(t, []string{"standard", "extended"}, p.Attribute.Terms)

	require.Len(t, vs, 2)
	prices := map[string]string{}
	for _, v := range vs {
		prices[v.AttributeValue] = v.Price.StringFixed(2)
		assert.True(t, v.Virtual)
		assert.True(t, v.Downloadable)
		assert.Equal(t, "a1", v.LinkedAssetID)
		assert.Equal(t, "deliverables/a1.wav", v.DownloadRef)
	}
	assert.Equal(t, map[string]string{"standard": "9.99", "extended": "24.00"}, prices)

	// back to a single tier
	f.tiers.setActive("extended", false)
	res, err = f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, res.Converted)
	assert.Equal(t, 2, res.Deleted)

	p, vs = f.product(t)
	assert.Equal(t, domain.ProductTypeSimple, p.Type)
	assert.Nil(t, p.Attribute)
	assert.Empty(t, vs)
}

func TestSynchronize_MarkupPricing(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"), testutil.MarkupTier("premium", "10.00"))

	res, err := f.sync.Synchronize(context.Background(), "a1")
	require.NoError(t, err)

	byTier := map[string]string{}
	for _, v := range res.Variations {
		byTier[v.TierSlug] = v.Price.StringFixed(2)
	}
	assert.Equal(t, "15.00", byTier["premium"])
	assert.Equal(t, "9.99", byTier["standard"])

	p, _ := f.product(t)
	assert.Equal(t, "9.99", p.Price.StringFixed(2), "variable product shows its lowest price")
}

func TestSynchronize_Idempotent(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"), testutil.FixedTier("extended", "24.00"))
	ctx := context.Background()

	first, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	_, before := f.product(t)

	second, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	_, after := f.product(t)

	assert.Equal(t, 2, first.Created)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Zero(t, second.Deleted)
	assert.False(t, second.Converted)
	assert.Equal(t, before, after)
	assert.Equal(t, first.Product, second.Product)
}

func TestSynchronize_SelfHealing(t *testing.T) {
	f := newSyncFixture(t, nil,
		testutil.FixedTier("standard", "9.99"),
		testutil.FixedTier("extended", "24.00"),
		testutil.FixedTier("exclusive", "99.00"))
	ctx := context.Background()

	_, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)

	f.tiers.setActive("exclusive", false)
	res, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	p, vs := f.product(t)
	assert.Len(t, vs, 2)
	assert.Equal(t, []string{"standard", "extended"}, p.Attribute.Terms[:2])
	assert.Contains(t, p.Attribute.Terms, "exclusive", "inactive tier keeps its term")

	f.tiers.setActive("exclusive", true)
	res, err = f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	_, vs = f.product(t)
	assert.Len(t, vs, 3)
}

func TestSynchronize_RepairsDriftAndDuplicates(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"), testutil.FixedTier("extended", "24.00"))
	ctx := context.Background()

	_, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	p, vs := f.product(t)

	// manual price edit, a duplicate, and an orphan for a deleted tier
	drifted := vs[0]
	drifted.Price = testutil.Dec("1.00")
	_, err = f.shop.UpdateVariation(ctx, drifted)
	require.NoError(t, err)

	dup := vs[1]
	dup.ID = ""
	_, err = f.shop.CreateVariation(ctx, dup)
	require.NoError(t, err)

	_, err = f.shop.CreateVariation(ctx, domain.Variation{ProductID: p.ID, AttributeValue: "gone", LinkedTier: "gone", Price: testutil.Dec("3.00")})
	require.NoError(t, err)

	res, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Deleted)
	assert.Zero(t, res.Created)

	_, vs = f.product(t)
	require.Len(t, vs, 2)
	assert.Equal(t, "9.99", vs[0].Price.StringFixed(2))
}

func TestSynchronize_AdoptsUnlinkedVariations(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"), testutil.FixedTier("extended", "24.00"))
	ctx := context.Background()

	p, err := f.shop.CreateProduct(ctx, domain.Product{AssetID: "a1", Title: "Track a1", Type: domain.ProductTypeVariable})
	require.NoError(t, err)
	legacy, err := f.shop.CreateVariation(ctx, domain.Variation{ProductID: p.ID, AttributeValue: "Standard", Price: testutil.Dec("9.99")})
	require.NoError(t, err)
	require.NoError(t, f.assets.LinkProduct(ctx, "a1", p.ID))

	res, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)

	v, err := f.shop.GetVariation(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "standard", v.LinkedTier)
	assert.Equal(t, "standard", v.AttributeValue)
}

func TestSynchronize_RecreatesMissingProduct(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"))
	ctx := context.Background()
	require.NoError(t, f.assets.LinkProduct(ctx, "a1", "deleted-product"))

	res, err := f.sync.Synchronize(ctx, "a1")
	require.NoError(t, err)
	assert.NotEqual(t, "deleted-product", res.Product.ProductID)

	a, err := f.assets.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, res.Product.ProductID, a.ProductID)
	assert.True(t, f.logs.ContainsMessage("linked product missing, recreating"))
}

func TestSynchronize_PartialFailure(t *testing.T) {
	shop := NewMemoryShop()
	flaky := &flakyShop{MemoryShop: shop, failTier: "extended"}
	f := newSyncFixture(t, flaky, testutil.FixedTier("standard", "9.99"), testutil.FixedTier("extended", "24.00"), testutil.FixedTier("exclusive", "99.00"))
	f.shop = shop

	res, err := f.sync.Synchronize(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, res.Partial())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "extended", res.Failures[0].TierID)
	assert.Equal(t, StepCreate, res.Failures[0].Step)
	assert.Equal(t, 2, res.Created)

	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "synchronization step failed")

	ev := f.events.Named(domain.EventCommerceSynchronized)
	require.Len(t, ev, 1)
	assert.Equal(t, true, ev[0].Payload["partial"])
}

func TestSynchronize_Taxonomy(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"))
	a := testutil.Asset("a1", "5.00")
	a.Categories = []string{"Ambient"}
	a.Tags = []string{"calm", "piano"}
	f.assets.Put(a)

	_, err := f.sync.Synchronize(context.Background(), "a1")
	require.NoError(t, err)

	p, _ := f.product(t)
	assert.Equal(t, []string{"Ambient"}, p.Categories)
	assert.Equal(t, []string{"calm", "piano"}, p.Tags)
}

func TestSynchronize_Errors(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"))
	ctx := context.Background()

	_, err := f.sync.Synchronize(ctx, " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.sync.Synchronize(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	f.tiers.err = errors.New("catalog unavailable")
	_, err = f.sync.Synchronize(ctx, "a1")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Empty(t, f.events.Named(domain.EventCommerceSynchronized))
}

func TestSynchronize_ConcurrentCallsConverge(t *testing.T) {
	f := newSyncFixture(t, nil, testutil.FixedTier("standard", "9.99"), testutil.FixedTier("extended", "24.00"))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.sync.Synchronize(context.Background(), "a1")
			return err
		})
	}
	require.NoError(t, g.Wait())

	_, vs := f.product(t)
	assert.Len(t, vs, 2)
}
