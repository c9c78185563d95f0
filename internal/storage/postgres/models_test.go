package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

func TestTierModel(t *testing.T) {
	local := time.FixedZone("UTC+3", 3*3600)
	tier := testutil.MarkupTier("extended", "10.00")
	tier.Features = []string{"Unlimited streams", "Broadcast rights"}
	tier.CreatedAt = time.Date(2024, 3, 14, 13, 0, 0, 0, local)
	tier.UpdatedAt = tier.CreatedAt

	row, err := toTierModel("default", 2, tier)
	require.NoError(t, err)
	assert.Equal(t, "default", row.CatalogID)
	assert.Equal(t, 2, row.Position)
	assert.JSONEq(t, `["Unlimited streams","Broadcast rights"]`, row.Features)
	assert.Equal(t, time.UTC, row.CreatedAt.Location())

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, tier.Features, back.Features)
	assert.True(t, tier.PriceValue.Equal(back.PriceValue))
	assert.True(t, tier.CreatedAt.Equal(back.CreatedAt))
	assert.Equal(t, domain.PriceTypeMarkup, back.PriceType)
}

func TestTierModel_EmptyFeatures(t *testing.T) {
	row, err := toTierModel("default", 0, testutil.FixedTier("standard", "9.99"))
	require.NoError(t, err)
	assert.Equal(t, "[]", row.Features, "column is NOT NULL")

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.Nil(t, back.Features)

	row.Features = "{broken"
	_, err = row.toDomain()
	assert.Error(t, err)
}

func TestCertificateModel(t *testing.T) {
	cert := domain.Certificate{
		Serial: "PFX-2024-00010-00003", OrderID: 10, OrderItemID: 3,
		TierName: "Standard", IssuedAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		FilePath: "2024/03/license-PFX-2024-00010-00003.html",
	}
	assert.Equal(t, cert, toCertificateModel(cert).toDomain())
}
