package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

func TestMemoryShop_VariationOrderAndIsolation(t *testing.T) {
	s := NewMemoryShop()
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, domain.Product{Title: "x", Type: domain.ProductTypeVariable, Tags: []string{"a"}})
	require.NoError(t, err)

	var ids []string
	for _, slug := range []string{"c", "a", "b"} {
		v, err := s.CreateVariation(ctx, domain.Variation{ProductID: p.ID, AttributeValue: slug})
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	require.NoError(t, s.DeleteVariation(ctx, p.ID, ids[1]))

	vs, err := s.ListVariations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "c", vs[0].AttributeValue)
	assert.Equal(t, "b", vs[1].AttributeValue)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	again, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Tags[0])

	require.NoError(t, s.AttachCategory(ctx, p.ID, []string{"Ambient", "Ambient"}, []string{"a", "b"}))
	again, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ambient"}, again.Categories)
	assert.Equal(t, []string{"a", "b"}, again.Tags)
}

func TestMemoryShop_NotFound(t *testing.T) {
	s := NewMemoryShop()
	ctx := context.Background()

	_, err := s.GetProduct(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.ListVariations(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.CreateVariation(ctx, domain.Variation{ProductID: "missing"})
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.DeleteVariation(ctx, "p", "v")))
	_, err = s.GetOrder(ctx, 1)
	assert.True(t, apperrors.IsNotFound(err))

	s.PutOrder(testutil.CompletedOrder(10, 3, "p", "v"))
	_, err = s.GetOrderItem(ctx, 10, 4)
	assert.True(t, apperrors.IsNotFound(err))
	item, err := s.GetOrderItem(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, "v", item.VariationID)
}

func TestMemoryAssets(t *testing.T) {
	r := NewMemoryAssets(testutil.Asset("b", "1.00"), testutil.Asset("a", "1.00"))
	ctx := context.Background()

	linked, err := r.ListLinked(ctx)
	require.NoError(t, err)
	assert.Empty(t, linked)

	require.NoError(t, r.LinkProduct(ctx, "b", "p2"))
	require.NoError(t, r.LinkProduct(ctx, "a", "p1"))
	assert.True(t, apperrors.IsNotFound(r.LinkProduct(ctx, "zzz", "p")))

	linked, err = r.ListLinked(ctx)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, "a", linked[0].ID)
	assert.Equal(t, "p1", linked[0].ProductID)
}
