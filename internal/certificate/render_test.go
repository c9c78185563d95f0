package certificate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLRenderer(t *testing.T) {
	doc := Document{
		Serial:          "PFX-2024-00010-00003",
		AssetTitle:      `Night <Drive> & "Co"`,
		TierName:        "Standard",
		PurchaserName:   "<script>alert(1)</script>",
		OrderDate:       time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		IssuedAt:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		VerificationURL: "https://example.com/verify/PFX-2024-00010-00003",
	}

	t.Run("escapes content and embeds qr code", func(t *testing.T) {
		r, err := NewHTMLRenderer(64)
		require.NoError(t, err)
		out, err := r.Render(context.Background(), doc)
		require.NoError(t, err)

		body := string(out)
		assert.Contains(t, body, "Night &lt;Drive&gt; &amp; &#34;Co&#34;")
		assert.NotContains(t, body, "<script>")
		assert.Contains(t, body, `src="data:image/png;base64,`)
	})

	t.Run("qr code disabled", func(t *testing.T) {
		r, err := NewHTMLRenderer(0)
		require.NoError(t, err)
		out, err := r.Render(context.Background(), doc)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "data:image/png")
	})

	t.Run("cancelled context", func(t *testing.T) {
		r, err := NewHTMLRenderer(64)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = r.Render(ctx, doc)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
