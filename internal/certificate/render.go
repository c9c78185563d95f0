package certificate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

//go:embed templates/certificate.html
var certificateTemplate string

// Document is the content rendered into a certificate
type Document struct {
	Serial          string
	Brand           string
	AssetTitle      string
	CreatorName     string
	TierName        string
	PurchaserName   string
	OrderDate       time.Time
	IssuedAt        time.Time
	VerificationURL string
	QRCode          template.URL
}

// Renderer turns a Document into artifact bytes
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// HTMLRenderer renders a self-contained HTML page with an inline QR code
type HTMLRenderer struct {
	tmpl   *template.Template
	qrSize int
}

// NewHTMLRenderer parses the embedded template. A qrSize <= 0 disables the QR code.
func NewHTMLRenderer(qrSize int) (*HTMLRenderer, error) {
	tmpl, err := template.New("certificate").Parse(certificateTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, qrSize: qrSize}, nil
}

// Render implements Renderer
func (r *HTMLRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.qrSize > 0 && doc.VerificationURL != "" && doc.QRCode == "" {
		png, err := qrcode.Encode(doc.VerificationURL, qrcode.Medium, r.qrSize)
		if err != nil {
			return nil, fmt.Errorf("failed to encode verification QR code: %w", err)
		}
		doc.QRCode = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render certificate %s: %w", doc.Serial, err)
	}
	return buf.Bytes(), nil
}
