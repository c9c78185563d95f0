package commerce

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/pkg/contracts/domain"
)

const sampleSeed = `
tiers:
  - name: Standard
    price_type: fixed
    price_value: "9.99"
    active: true
    is_default: true
  - name: Extended
    price_type: fixed
    price_value: "24.00"
    active: true
assets:
  - id: track-1
    title: Night Drive
    creator_name: Lena Park
    base_price: "5.00"
    deliverable_ref: deliverables/track-1.wav
    categories: [Synthwave]
orders:
  - id: 10
    status: completed
    purchaser_email: jane@example.com
    purchaser_name: Jane Doe
    date_created: 2024-03-14T10:00:00Z
    items:
      - id: 3
        product_id: p-1
        name: Night Drive - Extended
  - id: 11
    purchaser_email: sam@example.com
    date_created: 2024-03-15T10:00:00Z
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSeed), 0o644))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	require.Len(t, seed.Tiers, 2)
	assert.Equal(t, "9.99", seed.Tiers[0].PriceValue.StringFixed(2))
	assert.Equal(t, domain.PriceTypeFixed, seed.Tiers[0].PriceType)
	require.Len(t, seed.Assets, 1)
	assert.Equal(t, "5.00", seed.Assets[0].BasePrice.StringFixed(2))
	assert.Equal(t, domain.OrderStatusPending, seed.Orders[1].Status)

	assets, shop := NewMemoryAssets(), NewMemoryShop()
	seed.Apply(assets, shop)

	ctx := context.Background()
	a, err := assets.Get(ctx, "track-1")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", a.Title)

	item, err := shop.GetOrderItem(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.OrderID)
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "tiers:\n  - name: x\n    colour: red\n",
		"missing asset":   "assets:\n  - title: x\n",
		"duplicate":       "assets:\n  - id: a\n  - id: a\n",
		"bad order id":    "orders:\n  - id: 0\n",
		"duplicate order": "orders:\n  - id: 1\n  - id: 1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
