package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

// openTestDB connects to LICENSING_TEST_POSTGRES_DSN or skips
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LICENSING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LICENSING_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	logger, _ := testutil.NewTestLogger(t)

	db, err := Connect(ctx, dsn, PoolOptions{MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, RunMigrations(ctx, db, logger))
	require.NoError(t, Ping(ctx, db))
	return db
}

func TestCatalogRepository_Postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewCatalogRepository(db)
	catalogID := "it-" + time.Now().UTC().Format("150405.000000")
	t.Cleanup(func() { _ = repo.Save(ctx, catalogID, nil) })

	tiers, err := repo.Load(ctx, catalogID)
	require.NoError(t, err)
	assert.Empty(t, tiers)

	std := testutil.FixedTier("standard", "9.99")
	std.IsDefault = true
	ext := testutil.MarkupTier("extended", "10.00")
	require.NoError(t, repo.Save(ctx, catalogID, []domain.LicenseTier{std, ext}))

	tiers, err = repo.Load(ctx, catalogID)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "standard", tiers[0].Slug)
	assert.True(t, tiers[0].IsDefault)

	require.NoError(t, repo.Save(ctx, catalogID, []domain.LicenseTier{ext}))
	tiers, err = repo.Load(ctx, catalogID)
	require.NoError(t, err)
	require.Len(t, tiers, 1)

	dup := testutil.FixedTier("other", "1.00")
	dup.Slug = "extended"
	err = repo.Save(ctx, catalogID, []domain.LicenseTier{ext, dup})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCertificateStore_Postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewCertificateStore(db)
	orderID := time.Now().UnixNano() % 1_000_000_000

	_, err := store.Get(ctx, orderID, 1)
	assert.True(t, apperrors.IsNotFound(err))

	cert := domain.Certificate{
		Serial: "PFX-2024-" + time.Now().Format("150405.000000000"), OrderID: orderID, OrderItemID: 1,
		IssuedAt: time.Now().UTC().Truncate(time.Microsecond), FilePath: "x.html",
	}
	require.NoError(t, store.Save(ctx, cert))

	changed := cert
	changed.TierName = "changed"
	require.NoError(t, store.Save(ctx, changed))

	got, err := store.Get(ctx, orderID, 1)
	require.NoError(t, err)
	assert.Empty(t, got.TierName, "records are never mutated")
	assert.True(t, cert.IssuedAt.Equal(got.IssuedAt))
}
