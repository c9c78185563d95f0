package woo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/internal/commerce"
	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/shared/testutil"
	"audiolicense/pkg/contracts/domain"
)

// fakeStore is a small in-memory WooCommerce
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	products   map[int64]wcProduct
	variations map[int64][]int64
	terms      map[string][]wcTerm
	orders     map[int64]wcOrder
	failures   int32 // remaining 503 responses
	requests   int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     100,
		products:   map[int64]wcProduct{},
		variations: map[int64][]int64{},
		terms:      map[string][]wcTerm{},
		orders:     map[int64]wcOrder{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, apiError{Code: "woocommerce_rest_invalid_id", Message: "Invalid ID."})
}

func pathID(r *http.Request, key string) int64 {
	n, _ := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return n
}

func (s *fakeStore) handler(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&s.requests, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "ck_test" || pass != "cs_test" {
				writeJSON(w, http.StatusUnauthorized, apiError{Code: "woocommerce_rest_cannot_view", Message: "Sorry, you cannot list resources."})
				return
			}
			if atomic.LoadInt32(&s.failures) > 0 {
				atomic.AddInt32(&s.failures, -1)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, map[string]any{"namespace": "wc/v3"}) })

		r.Post("/products", func(w http.ResponseWriter, r *http.Request) {
			var p wcProduct
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			p.ID = s.id()
			s.products[p.ID] = p
			writeJSON(w, http.StatusCreated, p)
		})
		r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
			p, ok := s.products[pathID(r, "id")]
			if !ok {
				notFound(w)
				return
			}
			writeJSON(w, 200, p)
		})
		r.Put("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := pathID(r, "id")
			p, ok := s.products[id]
			if !ok {
				notFound(w)
				return
			}
			var patch map[string]json.RawMessage
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			if raw, ok := patch["categories"]; ok {
				var ids []wcTerm
				assert.NoError(t, json.Unmarshal(raw, &ids))
				p.Categories = s.resolveTerms("categories", ids)
				delete(patch, "categories")
			}
			if raw, ok := patch["tags"]; ok {
				var ids []wcTerm
				assert.NoError(t, json.Unmarshal(raw, &ids))
				p.Tags = s.resolveTerms("tags", ids)
				delete(patch, "tags")
			}
			if len(patch) > 0 {
				data, _ := json.Marshal(patch)
				cats, tags := p.Categories, p.Tags
				assert.NoError(t, json.Unmarshal(data, &p))
				p.Categories, p.Tags = cats, tags
			}
			s.products[id] = p
			writeJSON(w, 200, p)
		})

		r.Get("/products/{id}/variations", func(w http.ResponseWriter, r *http.Request) {
			pid := pathID(r, "id")
			if _, ok := s.products[pid]; !ok {
				notFound(w)
				return
			}
			perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			ids := s.variations[pid]
			start, end := (page-1)*perPage, page*perPage
			if start > len(ids) {
				start = len(ids)
			}
			if end > len(ids) {
				end = len(ids)
			}
			out := []wcProduct{}
			for _, id := range ids[start:end] {
				out = append(out, s.products[id])
			}
			writeJSON(w, 200, out)
		})
		r.Post("/products/{id}/variations", func(w http.ResponseWriter, r *http.Request) {
			pid := pathID(r, "id")
			var v wcProduct
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&v))
			v.ID, v.ParentID, v.Type = s.id(), pid, "variation"
			s.products[v.ID] = v
			s.variations[pid] = append(s.variations[pid], v.ID)
			writeJSON(w, http.StatusCreated, v)
		})
		r.Put("/products/{id}/variations/{vid}", func(w http.ResponseWriter, r *http.Request) {
			vid := pathID(r, "vid")
			old, ok := s.products[vid]
			if !ok {
				notFound(w)
				return
			}
			var v wcProduct
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&v))
			v.ID, v.ParentID, v.Type = vid, old.ParentID, "variation"
			s.products[vid] = v
			writeJSON(w, 200, v)
		})
		r.Delete("/products/{id}/variations/{vid}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("force"))
			pid, vid := pathID(r, "id"), pathID(r, "vid")
			v, ok := s.products[vid]
			if !ok {
				notFound(w)
				return
			}
			delete(s.products, vid)
			ids := s.variations[pid]
			for i, id := range ids {
				if id == vid {
					s.variations[pid] = append(ids[:i:i], ids[i+1:]...)
				}
			}
			writeJSON(w, 200, v)
		})

		for _, tax := range []string{"categories", "tags"} {
			tax := tax
			r.Get("/products/"+tax, func(w http.ResponseWriter, r *http.Request) {
				q := strings.ToLower(r.URL.Query().Get("search"))
				out := []wcTerm{}
				for _, term := range s.terms[tax] {
					if strings.Contains(strings.ToLower(term.Name), q) {
						out = append(out, term)
					}
				}
				writeJSON(w, 200, out)
			})
			r.Post("/products/"+tax, func(w http.ResponseWriter, r *http.Request) {
				var term wcTerm
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&term))
				term.ID = s.id()
				s.terms[tax] = append(s.terms[tax], term)
				writeJSON(w, http.StatusCreated, term)
			})
		}

		r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
			o, ok := s.orders[pathID(r, "id")]
			if !ok {
				notFound(w)
				return
			}
			writeJSON(w, 200, o)
		})
	})
	return r
}

func (s *fakeStore) resolveTerms(tax string, ids []wcTerm) []wcTerm {
	var out []wcTerm
	for _, ref := range ids {
		for _, term := range s.terms[tax] {
			if term.ID == ref.ID {
				out = append(out, term)
			}
		}
	}
	return out
}

func newTestClient(t *testing.T, store *fakeStore) *Client {
	t.Helper()
	srv := httptest.NewServer(store.handler(t))
	t.Cleanup(srv.Close)

	logger, _ := testutil.NewTestLogger(t)
	c, err := New(Options{
		BaseURL:        srv.URL + "/",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
		Timeout:        5 * time.Second,
		RetryMax:       2,
		RetryWaitMin:   time.Millisecond,
		RetryWaitMax:   5 * time.Millisecond,
	}, logger)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestProductRoundTrip(t *testing.T) {
	c := newTestClient(t, newFakeStore())
	ctx := context.Background()

	created, err := c.CreateProduct(ctx, domain.Product{
		AssetID:     "a1",
		Title:       "Night Drive",
		Type:        domain.ProductTypeVariable,
		DownloadRef: "https://cdn.example.com/a1.wav",
		Attribute:   &domain.ProductAttribute{Name: domain.LicenseAttribute, Terms: []string{"standard", "extended"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := c.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AssetID)
	assert.Equal(t, domain.ProductTypeVariable, got.Type)
	assert.Equal(t, "https://cdn.example.com/a1.wav", got.DownloadRef)
	require.NotNil(t, got.Attribute)
	assert.Equal(t, []string{"standard", "extended"}, got.Attribute.Terms)

	got.Type = domain.ProductTypeSimple
	got.Attribute = nil
	got.Price = testutil.Dec("9.99")
	got.LinkedTier = "standard"
	updated, err := c.UpdateProduct(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "9.99", updated.Price.StringFixed(2))
	assert.Equal(t, "standard", updated.LinkedTier)
	assert.Nil(t, updated.Attribute)
}

func TestVariations(t *testing.T) {
	c := newTestClient(t, newFakeStore())
	ctx := context.Background()

	p, err := c.CreateProduct(ctx, domain.Product{AssetID: "a1", Title: "Night Drive", Type: domain.ProductTypeVariable})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < pageSize+3; i++ {
		v, err := c.CreateVariation(ctx, domain.Variation{
			ProductID:      p.ID,
			AttributeValue: fmt.Sprintf("tier-%d", i),
			Price:          testutil.Dec("9.99"),
			Virtual:        true,
			Downloadable:   true,
			LinkedTier:     fmt.Sprintf("t%d", i),
			LinkedAssetID:  "a1",
		})
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}

	list, err := c.ListVariations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, pageSize+3)
	assert.Equal(t, ids[0], list[0].ID)
	assert.Equal(t, "tier-0", list[0].AttributeValue)
	assert.Equal(t, "t0", list[0].LinkedTier)
	assert.Equal(t, "a1", list[0].LinkedAssetID)
	assert.Equal(t, p.ID, list[0].ProductID)

	v, err := c.GetVariation(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, p.ID, v.ProductID)

	v.ProductID = ""
	v.Price = testutil.Dec("12.50")
	updated, err := c.UpdateVariation(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "12.50", updated.Price.StringFixed(2))
	assert.Equal(t, p.ID, updated.ProductID)

	require.NoError(t, c.DeleteVariation(ctx, p.ID, ids[1]))
	_, err = c.GetVariation(ctx, ids[1])
	assert.True(t, apperrors.IsNotFound(err))

	_, err = c.GetVariation(ctx, p.ID)
	assert.True(t, apperrors.IsNotFound(err), "a parent product is not a variation")
}

func TestAttachCategory(t *testing.T) {
	store := newFakeStore()
	store.terms["categories"] = []wcTerm{{ID: 7, Name: "Ambient"}}
	c := newTestClient(t, store)
	ctx := context.Background()

	p, err := c.CreateProduct(ctx, domain.Product{AssetID: "a1", Title: "Night Drive", Type: domain.ProductTypeSimple})
	require.NoError(t, err)

	require.NoError(t, c.AttachCategory(ctx, p.ID, []string{"ambient", "Cinematic"}, []string{"calm"}))
	require.NoError(t, c.AttachCategory(ctx, p.ID, []string{"Cinematic"}, nil))

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ambient", "Cinematic"}, got.Categories)
	assert.Equal(t, []string{"calm"}, got.Tags)
	assert.Len(t, store.terms["categories"], 2, "existing term reused")
}

func TestOrders(t *testing.T) {
	store := newFakeStore()
	completed := "2024-03-14T11:00:00"
	store.orders[10] = wcOrder{
		ID:               10,
		Status:           "completed",
		DateCreatedGMT:   "2024-03-14T10:00:00",
		DateCompletedGMT: &completed,
		Billing:          wcBilling{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
		LineItems:        []wcLineItem{{ID: 3, ProductID: 55, VariationID: 56, Name: "Night Drive - Extended"}},
	}
	c := newTestClient(t, store)
	ctx := context.Background()

	o, err := c.GetOrder(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.Equal(t, "Jane Doe", o.PurchaserName)
	assert.Equal(t, time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC), o.DateCreated)
	require.NotNil(t, o.DateCompleted)

	item, err := c.GetOrderItem(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, "55", item.ProductID)
	assert.Equal(t, "56", item.VariationID)
	assert.Equal(t, int64(10), item.OrderID)

	_, err = c.GetOrderItem(ctx, 10, 4)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = c.GetOrder(ctx, 11)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRetriesAndErrors(t *testing.T) {
	store := newFakeStore()
	c := newTestClient(t, store)
	ctx := context.Background()

	store.failures = 2
	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(&store.requests))

	store.failures = 10
	err := c.Ping(ctx)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	store.failures = 0

	_, err = c.GetProduct(ctx, "not-a-number")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	bad, err := New(Options{BaseURL: "http://127.0.0.1:1", RetryMax: 0}, nil)
	require.NoError(t, err)
	_, err = bad.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestUnauthorizedIsUpstream(t *testing.T) {
	store := newFakeStore()
	c := newTestClient(t, store)
	c.secret = "wrong"

	_, err := c.GetProduct(context.Background(), "1")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "status 401")
}

var (
	_ commerce.ProductStore = (*Client)(nil)
	_ commerce.OrderStore   = (*Client)(nil)
)
