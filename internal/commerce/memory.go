package commerce

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	apperrors "audiolicense/internal/errors"
	"audiolicense/pkg/contracts/domain"
)

// MemoryAssets is an in-memory implementation of AssetRepository
type MemoryAssets struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
}

// NewMemoryAssets creates an asset repository holding assets
func NewMemoryAssets(assets ...domain.Asset) *MemoryAssets {
	r := &MemoryAssets{assets: make(map[string]domain.Asset)}
	for _, a := range assets {
		r.Put(a)
	}
	return r
}

// Put stores or replaces an asset
func (r *MemoryAssets) Put(a domain.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.ID] = cloneAsset(a)
}

// Get implements AssetRepository
func (r *MemoryAssets) Get(ctx context.Context, assetID string) (domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Asset{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[assetID]
	if !ok {
		return domain.Asset{}, apperrors.NotFound("assets.Get", "asset", assetID)
	}
	return cloneAsset(a), nil
}

// LinkProduct implements AssetRepository
func (r *MemoryAssets) LinkProduct(ctx context.Context, assetID, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[assetID]
	if !ok {
		return apperrors.NotFound("assets.LinkProduct", "asset", assetID)
	}
	a.ProductID = productID
	r.assets[assetID] = a
	return nil
}

// ListLinked implements AssetRepository. Assets are returned by id.
func (r *MemoryAssets) ListLinked(ctx context.Context) ([]domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Asset
	for _, a := range r.assets {
		if a.ProductID != "" {
			out = append(out, cloneAsset(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryShop is an in-memory product and order store. Variations keep their
// creation order, which is the store order seen by ListVariations.
type MemoryShop struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	variations map[string]domain.Variation
	order      map[string][]string // product id -> variation ids
	orders     map[int64]domain.Order
}

// NewMemoryShop creates an empty shop
func NewMemoryShop() *MemoryShop {
	return &MemoryShop{
		products:   make(map[string]domain.Product),
		variations: make(map[string]domain.Variation),
		order:      make(map[string][]string),
		orders:     make(map[int64]domain.Order),
	}
}

// CreateProduct implements ProductStore
func (s *MemoryShop) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := s.products[p.ID]; exists {
		return domain.Product{}, apperrors.Conflict("shop.CreateProduct", "product %s already exists", p.ID)
	}
	s.products[p.ID] = p.Clone()
	return p.Clone(), nil
}

// UpdateProduct implements ProductStore
func (s *MemoryShop) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; !exists {
		return domain.Product{}, apperrors.NotFound("shop.UpdateProduct", "product", p.ID)
	}
	s.products[p.ID] = p.Clone()
	return p.Clone(), nil
}

// GetProduct implements ProductStore
func (s *MemoryShop) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, apperrors.NotFound("shop.GetProduct", "product", productID)
	}
	return p.Clone(), nil
}

// ListVariations implements ProductStore
func (s *MemoryShop) ListVariations(ctx context.Context, productID string) ([]domain.Variation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, apperrors.NotFound("shop.ListVariations", "product", productID)
	}
	ids := s.order[productID]
	out := make([]domain.Variation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.variations[id])
	}
	return out, nil
}

// GetVariation implements ProductStore
func (s *MemoryShop) GetVariation(ctx context.Context, variationID string) (domain.Variation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Variation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variations[variationID]
	if !ok {
		return domain.Variation{}, apperrors.NotFound("shop.GetVariation", "variation", variationID)
	}
	return v, nil
}

// CreateVariation implements ProductStore
func (s *MemoryShop) CreateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Variation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[v.ProductID]; !ok {
		return domain.Variation{}, apperrors.NotFound("shop.CreateVariation", "product", v.ProductID)
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if _, exists := s.variations[v.ID]; exists {
		return domain.Variation{}, apperrors.Conflict("shop.CreateVariation", "variation %s already exists", v.ID)
	}
	s.variations[v.ID] = v
	s.order[v.ProductID] = append(s.order[v.ProductID], v.ID)
	return v, nil
}

// UpdateVariation implements ProductStore
func (s *MemoryShop) UpdateVariation(ctx context.Context, v domain.Variation) (domain.Variation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Variation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.variations[v.ID]
	if !ok {
		return domain.Variation{}, apperrors.NotFound("shop.UpdateVariation", "variation", v.ID)
	}
	v.ProductID = old.ProductID
	s.variations[v.ID] = v
	return v, nil
}

// DeleteVariation implements ProductStore
func (s *MemoryShop) DeleteVariation(ctx context.Context, productID, variationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variations[variationID]
	if !ok || v.ProductID != productID {
		return apperrors.NotFound("shop.DeleteVariation", "variation", variationID)
	}
	delete(s.variations, variationID)

	ids := s.order[productID]
	for i, id := range ids {
		if id == variationID {
			s.order[productID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// AttachCategory implements ProductStore. Terms already present are kept.
func (s *MemoryShop) AttachCategory(ctx context.Context, productID string, categories, tags []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return apperrors.NotFound("shop.AttachCategory", "product", productID)
	}
	p.Categories = mergeTerms(p.Categories, categories)
	p.Tags = mergeTerms(p.Tags, tags)
	s.products[productID] = p
	return nil
}

// PutOrder stores or replaces an order
func (s *MemoryShop) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o = cloneOrder(o)
	for i := range o.Items {
		if o.Items[i].OrderID == 0 {
			o.Items[i].OrderID = o.ID
		}
	}
	s.orders[o.ID] = o
}

// GetOrder implements OrderStore
func (s *MemoryShop) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, apperrors.NotFound("shop.GetOrder", "order", strconv.FormatInt(orderID, 10))
	}
	return cloneOrder(o), nil
}

// GetOrderItem implements OrderStore
func (s *MemoryShop) GetOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return domain.OrderItem{}, apperrors.NotFound("shop.GetOrderItem", "order item", strconv.FormatInt(itemID, 10))
}

func mergeTerms(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, t := range list {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func cloneAsset(a domain.Asset) domain.Asset {
	a.Categories = append([]string(nil), a.Categories...)
	a.Tags = append([]string(nil), a.Tags...)
	return a
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.DateCompleted != nil {
		t := *o.DateCompleted
		o.DateCompleted = &t
	}
	return o
}
