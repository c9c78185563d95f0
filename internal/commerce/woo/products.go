package woo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "audiolicense/internal/errors"
	"audiolicense/pkg/contracts/domain"
)

const (
	metaAssetID       = "_asset_id"
	metaTierID        = "_license_tier_id"
	metaLinkedAssetID = "_linked_asset_id"
)

type wcMeta struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type wcTerm struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type wcDownload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	File string `json:"file"`
}

type wcAttribute struct {
	Name      string   `json:"name"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
	Options   []string `json:"options,omitempty"`
	Option    string   `json:"option,omitempty"`
}

type wcProduct struct {
	ID           int64         `json:"id,omitempty"`
	ParentID     int64         `json:"parent_id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Type         string        `json:"type,omitempty"`
	Status       string        `json:"status,omitempty"`
	Price        string        `json:"price,omitempty"`
	RegularPrice string        `json:"regular_price"`
	Virtual      bool          `json:"virtual"`
	Downloadable bool          `json:"downloadable"`
	Downloads    []wcDownload  `json:"downloads"`
	Attributes   []wcAttribute `json:"attributes"`
	Categories   []wcTerm      `json:"categories,omitempty"`
	Tags         []wcTerm      `json:"tags,omitempty"`
	MetaData     []wcMeta      `json:"meta_data,omitempty"`
}

func (p wcProduct) meta(key string) string {
	for _, m := range p.MetaData {
		if m.Key == key {
			switch v := m.Value.(type) {
			case string:
				return v
			case float64:
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func (p wcProduct) price() decimal.Decimal {
	raw := p.RegularPrice
	if raw == "" {
		raw = p.Price
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (p wcProduct) downloadRef() string {
	if len(p.Downloads) == 0 {
		return ""
	}
	return p.Downloads[0].File
}

func downloads(name, ref string) []wcDownload {
	if ref == "" {
		return []wcDownload{}
	}
	return []wcDownload{{Name: name, File: ref}}
}

func toWCProduct(p domain.Product) wcProduct {
	out := wcProduct{
		Name:         p.Title,
		Type:         string(p.Type),
		Status:       "publish",
		Virtual:      true,
		Downloadable: true,
		Downloads:    downloads(p.Title, p.DownloadRef),
		Attributes:   []wcAttribute{},
		MetaData: []wcMeta{
			{Key: metaAssetID, Value: p.AssetID},
			{Key: metaTierID, Value: p.LinkedTier},
		},
	}
	if p.Type == domain.ProductTypeSimple {
		out.RegularPrice = p.Price.StringFixed(2)
	}
	if p.Attribute != nil {
		out.Attributes = append(out.Attributes, wcAttribute{
			Name:      p.Attribute.Name,
			Visible:   true,
			Variation: true,
			Options:   append([]string{}, p.Attribute.Terms...),
		})
	}
	return out
}

func fromWCProduct(p wcProduct) domain.Product {
	out := domain.Product{
		ID:          formatID(p.ID),
		AssetID:     p.meta(metaAssetID),
		Title:       p.Name,
		Type:        domain.ProductType(p.Type),
		Price:       p.price(),
		DownloadRef: p.downloadRef(),
		LinkedTier:  p.meta(metaTierID),
	}
	for _, a := range p.Attributes {
		if strings.EqualFold(a.Name, domain.LicenseAttribute) {
			out.Attribute = &domain.ProductAttribute{Name: domain.LicenseAttribute, Terms: append([]string(nil), a.Options...)}
		}
	}
	for _, c := range p.Categories {
		out.Categories = append(out.Categories, c.Name)
	}
	for _, t := range p.Tags {
		out.Tags = append(out.Tags, t.Name)
	}
	return out
}

func toWCVariation(v domain.Variation) wcProduct {
	return wcProduct{
		RegularPrice: v.Price.StringFixed(2),
		Virtual:      v.Virtual,
		Downloadable: v.Downloadable,
		Downloads:    downloads(v.AttributeValue, v.DownloadRef),
		Attributes:   []wcAttribute{{Name: domain.LicenseAttribute, Option: v.AttributeValue}},
		MetaData: []wcMeta{
			{Key: metaTierID, Value: v.LinkedTier},
			{Key: metaLinkedAssetID, Value: v.LinkedAssetID},
		},
	}
}

func fromWCVariation(productID string, p wcProduct) domain.Variation {
	if p.ParentID != 0 {
		productID = formatID(p.ParentID)
	}
	out := domain.Variation{
		ID:            formatID(p.ID),
		ProductID:     productID,
		Price:         p.price(),
		DownloadRef:   p.downloadRef(),
		Virtual:       p.Virtual,
		Downloadable:  p.Downloadable,
		LinkedTier:    p.meta(metaTierID),
		LinkedAssetID: p.meta(metaLinkedAssetID),
	}
	for _, a := range p.Attributes {
		if strings.EqualFold(a.Name, domain.LicenseAttribute) {
			out.AttributeValue = a.Option
		}
	}
	return out
}

// CreateProduct implements commerce.ProductStore
func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	var out wcProduct
	if err := c.do(ctx, "POST", "/products", nil, toWCProduct(p), &out, "", ""); err != nil {
		return domain.Product{}, err
	}
	return fromWCProduct(out), nil
}

// UpdateProduct implements commerce.ProductStore
func (c *Client) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	id, err := parseID("product", p.ID)
	if err != nil {
		return domain.Product{}, err
	}
	var out wcProduct
	if err := c.do(ctx, "PUT", fmt.Sprintf("/products/%d", id), nil, toWCProduct(p), &out, "product", p.ID); err != nil {
		return domain.Product{}, err
	}
	return fromWCProduct(out), nil
}

// GetProduct implements commerce.ProductStore
func (c *Client) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	id, err := parseID("product", productID)
	if err != nil {
		return domain.Product{}, err
	}
	var out wcProduct
	if err := c.do(ctx, "GET", fmt.Sprintf("/products/%d", id), nil, nil, &out, "product", productID); err != nil {
		return domain.Product{}, err
	}
	return fromWCProduct(out), nil
}

// ListVariations implements commerce.ProductStore. Variations are returned
// in id order, which is creation order in WooCommerce.
func (c *Client) ListVariations(ctx context.Context, productID string) ([]domain.Variation, error) {
	id, err := parseID("product", productID)
	if err != nil {
		return nil, err
	}

	var out []domain.Variation
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))
		q.Set("orderby", "id")
		q.Set("order", "asc")

		var batch []wcProduct
		if err := c.do(ctx, "GET", fmt.Sprintf("/products/%d/variations", id), q, nil, &batch, "product", productID); err != nil {
			return nil, err
		}
		for _, v := range batch {
			out = append(out, fromWCVariation(productID, v))
		}
		if len(batch) < pageSize {
			return out, nil
		}
	}
}

// GetVariation implements commerce.ProductStore. WooCommerce serves
// variations from the products endpoint with their parent id.
func (c *Client) GetVariation(ctx context.Context, variationID string) (domain.Variation, error) {
	id, err := parseID("variation", variationID)
	if err != nil {
		return domain.Variation{}, err
	}
	var out wcProduct
	if err := c.do(ctx, "GET", fmt.Sprintf("/products/%d", id), nil, nil, &out, "variation", variationID); err != nil {
		return domain.Variation{}, err
	}
	if out.Type != "" && out.Type != "variation" {
		return domain.Variation{}, apperrors.NotFound("woo.GetVariation", "variation", variationID)
	}
	return fromWCVariation("", out), nil
}

// CreateVariation implements commerce.ProductStore
func (c *Client) CreateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error) {
	pid, err := parseID("product", v.ProductID)
	if err != nil {
		return domain.Variation{}, err
	}
	var out wcProduct
	if err := c.do(ctx, "POST", fmt.Sprintf("/products/%d/variations", pid), nil, toWCVariation(v), &out, "product", v.ProductID); err != nil {
		return domain.Variation{}, err
	}
	return fromWCVariation(v.ProductID, out), nil
}

// UpdateVariation implements commerce.ProductStore
func (c *Client) UpdateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error) {
	if v.ProductID == "" {
		current, err := c.GetVariation(ctx, v.ID)
		if err != nil {
			return domain.Variation{}, err
		}
		v.ProductID = current.ProductID
	}
	pid, err := parseID("product", v.ProductID)
	if err != nil {
		return domain.Variation{}, err
	}
	vid, err := parseID("variation", v.ID)
	if err != nil {
		return domain.Variation{}, err
	}
	var out wcProduct
	if err := c.do(ctx, "PUT", fmt.Sprintf("/products/%d/variations/%d", pid, vid), nil, toWCVariation(v), &out, "variation", v.ID); err != nil {
		return domain.Variation{}, err
	}
	return fromWCVariation(v.ProductID, out), nil
}

// DeleteVariation implements commerce.ProductStore
func (c *Client) DeleteVariation(ctx context.Context, productID, variationID string) error {
	pid, err := parseID("product", productID)
	if err != nil {
		return err
	}
	vid, err := parseID("variation", variationID)
	if err != nil {
		return err
	}
	q := url.Values{"force": []string{"true"}}
	return c.do(ctx, "DELETE", fmt.Sprintf("/products/%d/variations/%d", pid, vid), q, nil, nil, "variation", variationID)
}

// AttachCategory implements commerce.ProductStore. Missing terms are created.
func (c *Client) AttachCategory(ctx context.Context, productID string, categories, tags []string) error {
	id, err := parseID("product", productID)
	if err != nil {
		return err
	}

	var current wcProduct
	if err := c.do(ctx, "GET", fmt.Sprintf("/products/%d", id), nil, nil, &current, "product", productID); err != nil {
		return err
	}

	catIDs, err := c.ensureTerms(ctx, "categories", current.Categories, categories)
	if err != nil {
		return err
	}
	tagIDs, err := c.ensureTerms(ctx, "tags", current.Tags, tags)
	if err != nil {
		return err
	}

	update := map[string]any{"categories": catIDs, "tags": tagIDs}
	return c.do(ctx, "PUT", fmt.Sprintf("/products/%d", id), nil, update, nil, "product", productID)
}

// ensureTerms returns existing plus the ids of names, creating unknown terms
func (c *Client) ensureTerms(ctx context.Context, taxonomy string, existing []wcTerm, names []string) ([]wcTerm, error) {
	out := make([]wcTerm, 0, len(existing)+len(names))
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		out = append(out, wcTerm{ID: t.ID})
		have[strings.ToLower(t.Name)] = true
	}

	for _, name := range names {
		if name == "" || have[strings.ToLower(name)] {
			continue
		}
		have[strings.ToLower(name)] = true

		q := url.Values{}
		q.Set("search", name)
		q.Set("per_page", strconv.Itoa(pageSize))
		var found []wcTerm
		if err := c.do(ctx, "GET", "/products/"+taxonomy, q, nil, &found, "", ""); err != nil {
			return nil, err
		}

		var term *wcTerm
		for i := range found {
			if strings.EqualFold(found[i].Name, name) {
				term = &found[i]
				break
			}
		}
		if term == nil {
			var created wcTerm
			if err := c.do(ctx, "POST", "/products/"+taxonomy, nil, wcTerm{Name: name}, &created, "", ""); err != nil {
				return nil, err
			}
			term = &created
		}
		out = append(out, wcTerm{ID: term.ID})
	}
	return out, nil
}
