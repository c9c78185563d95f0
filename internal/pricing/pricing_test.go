package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

func TestPrice_Fixed(t *testing.T) {
	tier := testutil.FixedTier("standard", "9.99")

	for _, base := range []string{"0", "14.00", "999.95", "-3"} {
		t.Run(base, func(t *testing.T) {
			got, err := Price(testutil.Dec(base), tier)
			require.NoError(t, err)
			assert.True(t, got.Equal(tier.PriceValue), "fixed price must ignore base %s, got %s", base, got)
		})
	}
}

func TestPrice_Markup(t *testing.T) {
	tests := []struct {
		base, markup, want string
	}{
		{"14.00", "10.00", "24.00"},
		{"0", "5", "5"},
		{"19.99", "0", "19.99"},
		{"0.1", "0.2", "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"+"+tt.markup, func(t *testing.T) {
			got, err := Price(testutil.Dec(tt.base), testutil.MarkupTier("extended", tt.markup))
			require.NoError(t, err)
			assert.True(t, got.Equal(testutil.Dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPrice_UnknownType(t *testing.T) {
	tier := testutil.FixedTier("odd", "1")
	tier.PriceType = domain.PriceType("percent")

	_, err := Price(decimal.NewFromInt(10), tier)
	assert.True(t, errors.Is(err, ErrUnknownPriceType))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"24.00", "24", true},
		{"9.99", "9.994", true},
		{"9.99", "9.995", false},
		{"9.99", "9.98", false},
		{"0", "-0.004", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"~"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(testutil.Dec(tt.a), testutil.Dec(tt.b)))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "24.00", Format(testutil.Dec("24")))
	assert.Equal(t, "9.99", Format(testutil.Dec("9.99")))
}
