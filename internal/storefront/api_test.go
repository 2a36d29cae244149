package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/pipeline"
	"github.com/mmeshcher/storefront/internal/query"
	"github.com/mmeshcher/storefront/internal/session"
)

type backend struct {
	mu       sync.Mutex
	hits     map[string]int
	queries  []string
	token    atomic.Value
	bodies   map[string][]byte
	refreshN atomic.Int32
}

func (b *backend) hit(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[r.Method+" "+r.URL.Path]++
	b.queries = append(b.queries, r.URL.RawQuery)
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		b.bodies[r.Method+" "+r.URL.Path] = body
	}
}

func (b *backend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *backend) body(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

func (b *backend) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("authorization") != b.token.Load().(string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"You are not authorized!"}`))
		return false
	}
	return true
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()

	b := &backend{hits: map[string]int{}, bodies: map[string][]byte{}}
	b.token.Store("token-1")

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			if r.Header.Get("authorization") != "" {
				t.Errorf("login must be sent without a token")
			}
			http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/"})
			_, _ = w.Write([]byte(`{"success":true,"message":"User logged in successfully","data":{"accessToken":"` + b.token.Load().(string) + `"}}`))
		})
		r.Post("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
			b.refreshN.Add(1)
			if _, err := r.Cookie("refreshToken"); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"accessToken":"` + b.token.Load().(string) + `"}}`))
		})
		r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			page := r.URL.Query().Get("page")
			_, _ = w.Write([]byte(`{"success":true,"data":{"meta":{"page":` + page + `,"limit":2,"total":3,"totalPage":2},"result":[{"_id":"p` + page + `","name":"Bike ` + page + `","price":100}]}}`))
		})
		r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			if chi.URLParam(r, "id") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"success":false,"message":"Product not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"` + chi.URLParam(r, "id") + `","name":"Road bike","price":499.99,"inStock":true}}`))
		})
		r.Get("/orders/my-orders", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			if !b.authorized(w, r) {
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"_id":"o1","status":"Pending","totalPrice":10}],"meta":{"page":1,"total":1}}`))
		})
		r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			if !b.authorized(w, r) {
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"_id":"o2","status":"Pending","totalPrice":20,"checkout_url":"https://pay.example/o2"}}`))
		})
		r.Patch("/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"message":"Forbidden"}`))
		})
		r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			_, _ = w.Write([]byte(`[{"_id":"u1","email":"a@b.c","role":"admin"}]`))
		})
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return b, ts
}

func newAPI(t *testing.T, baseURL string) (*API, *query.Layer, *session.Store, *notify.Feed) {
	t.Helper()

	sessions := session.NewStore(nil, "persist:root:auth", nil)
	feed := notify.NewFeed(0, nil)
	client, err := pipeline.New(pipeline.Config{BaseURL: baseURL + "/api", Timeout: 2 * time.Second}, sessions, feed, nil)
	require.NoError(t, err)

	layer := query.NewLayer(client, nil)
	return New(layer), layer, sessions, feed
}

func TestProducts_PagesAreCachedSeparately(t *testing.T) {
	b, ts := newBackend(t)
	api, _, _, _ := newAPI(t, ts.URL)
	ctx := context.Background()

	p1, err := api.Products.Fetch(ctx, model.ProductParams{ListParams: model.ListParams{Page: 1}})
	require.NoError(t, err)
	p2, err := api.Products.Fetch(ctx, model.ProductParams{ListParams: model.ListParams{Page: 2}})
	require.NoError(t, err)
	again, err := api.Products.Fetch(ctx, model.ProductParams{ListParams: model.ListParams{Page: 1}})
	require.NoError(t, err)

	require.Len(t, p1.Data, 1)
	assert.Equal(t, "p1", p1.Data[0].ID)
	assert.Equal(t, 2, p1.Meta.TotalPage)
	assert.Equal(t, "p2", p2.Data[0].ID)
	assert.Equal(t, p1, again)
	assert.Equal(t, 2, b.count("GET /api/products"))
}

func TestProducts_FilterEncoding(t *testing.T) {
	b, ts := newBackend(t)
	api, _, _, _ := newAPI(t, ts.URL)

	_, err := api.Products.Fetch(context.Background(), model.ProductParams{
		ListParams: model.ListParams{Page: 1},
		Brand:      []string{"Trek", "Giant"},
	})
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.queries, 1)
	assert.Equal(t, "brand=Trek&brand=Giant&page=1", b.queries[0])
}

func TestProduct_NotFoundIsNotCached(t *testing.T) {
	b, ts := newBackend(t)
	api, _, _, feed := newAPI(t, ts.URL)
	ctx := context.Background()

	_, err := api.Product.Fetch(ctx, "missing")
	assert.True(t, pipeline.IsNotFound(err))
	_, err = api.Product.Fetch(ctx, "missing")
	assert.True(t, pipeline.IsNotFound(err))

	assert.Equal(t, 2, b.count("GET /api/products/missing"))
	assert.Equal(t, 2, feed.Len())

	p, err := api.Product.Fetch(ctx, "p9")
	require.NoError(t, err)
	assert.Equal(t, "Road bike", p.Name)
	assert.InDelta(t, 499.99, p.Price, 0.001)
}

func TestLoginAndExpiredTokenRecovery(t *testing.T) {
	b, ts := newBackend(t)
	api, _, sessions, feed := newAPI(t, ts.URL)
	ctx := context.Background()

	token, err := api.Login.Do(ctx, model.Credentials{Email: "a@b.c", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	require.NoError(t, sessions.SetSession(ctx, token, &model.Identity{ID: "u1", Email: "a@b.c", Role: model.RoleUser}))

	var sent model.Credentials
	require.NoError(t, json.Unmarshal(b.body("POST /api/auth/login"), &sent))
	assert.Equal(t, "a@b.c", sent.Email)

	b.token.Store("token-2")

	orders, err := api.MyOrders.Fetch(ctx, model.OrderParams{})
	require.NoError(t, err)
	require.Len(t, orders.Data, 1)
	assert.Equal(t, model.OrderStatusPending, orders.Data[0].Status)

	assert.Equal(t, int32(1), b.refreshN.Load())
	assert.Equal(t, 2, b.count("GET /api/orders/my-orders"))
	assert.Equal(t, "token-2", sessions.Token())
	assert.Equal(t, "u1", sessions.Session().Identity.ID)
	assert.Zero(t, feed.Len())
}

func TestCreateOrder_InvalidatesOrdersAndProducts(t *testing.T) {
	b, ts := newBackend(t)
	api, layer, sessions, _ := newAPI(t, ts.URL)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, "token-1", nil))

	_, err := api.MyOrders.Fetch(ctx, model.OrderParams{})
	require.NoError(t, err)
	_, err = api.Products.Fetch(ctx, model.ProductParams{ListParams: model.ListParams{Page: 1}})
	require.NoError(t, err)
	_, err = api.Users.Fetch(ctx, model.UserParams{})
	require.NoError(t, err)

	order, err := api.CreateOrder.Do(ctx, model.OrderInput{Products: []model.OrderLine{{Product: "p1", Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, "o2", order.ID)
	assert.Equal(t, "https://pay.example/o2", order.CheckoutURL)

	entry, ok := layer.Cache().Entry(api.MyOrders.Key(model.OrderParams{}))
	require.True(t, ok)
	assert.Equal(t, query.StatusStale, entry.Status)

	_, err = api.MyOrders.Fetch(ctx, model.OrderParams{})
	require.NoError(t, err)
	_, err = api.Products.Fetch(ctx, model.ProductParams{ListParams: model.ListParams{Page: 1}})
	require.NoError(t, err)
	_, err = api.Users.Fetch(ctx, model.UserParams{})
	require.NoError(t, err)

	assert.Equal(t, 2, b.count("GET /api/orders/my-orders"))
	assert.Equal(t, 2, b.count("GET /api/products"))
	assert.Equal(t, 1, b.count("GET /api/users"))
}

func TestUpdateOrderStatus_ForbiddenKeepsCache(t *testing.T) {
	b, ts := newBackend(t)
	api, _, sessions, feed := newAPI(t, ts.URL)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, "token-1", nil))

	_, err := api.MyOrders.Fetch(ctx, model.OrderParams{})
	require.NoError(t, err)

	_, err = api.UpdateOrderStatus.Do(ctx, StatusUpdate{ID: "o1", Status: model.OrderStatusShipped})
	code, ok := pipeline.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, code)
	assert.JSONEq(t, `{"status":"Shipped"}`, string(b.body("PATCH /api/orders/o1/status")))

	_, err = api.MyOrders.Fetch(ctx, model.OrderParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.count("GET /api/orders/my-orders"))

	toasts := feed.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Forbidden", toasts[0].Message)
}

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantIDs   []string
		wantTotal int
		wantErr   bool
	}{
		{
			name:      "data array with meta",
			body:      `{"data":[{"_id":"a"},{"_id":"b"}],"meta":{"total":2}}`,
			wantIDs:   []string{"a", "b"},
			wantTotal: 2,
		},
		{
			name:      "nested result",
			body:      `{"data":{"result":[{"_id":"a"}],"meta":{"total":5}}}`,
			wantIDs:   []string{"a"},
			wantTotal: 5,
		},
		{
			name:      "nested data",
			body:      `{"data":{"data":[{"_id":"c"}],"meta":{"total":1}}}`,
			wantIDs:   []string{"c"},
			wantTotal: 1,
		},
		{
			name:    "bare array",
			body:    `[{"_id":"x"}]`,
			wantIDs: []string{"x"},
		},
		{
			name:    "empty list",
			body:    `{"data":[]}`,
			wantIDs: []string{},
		},
		{
			name:    "object without list",
			body:    `{"data":{"_id":"a"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := decodePage[model.Product]([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errUnexpectedEnvelope)
				return
			}
			require.NoError(t, err)

			ids := make([]string, 0, len(page.Data))
			for _, p := range page.Data {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, page.Meta.Total)
		})
	}
}

func TestDecodeOne(t *testing.T) {
	wrapped, err := decodeOne[model.User]([]byte(`{"success":true,"data":{"_id":"u1","role":"admin"}}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", wrapped.ID)
	assert.Equal(t, model.RoleAdmin, wrapped.Role)

	bare, err := decodeOne[model.User]([]byte(`{"_id":"u2","email":"x@y.z"}`))
	require.NoError(t, err)
	assert.Equal(t, "u2", bare.ID)

	_, err = decodeOne[model.User]([]byte(`nope`))
	assert.ErrorIs(t, err, errUnexpectedEnvelope)
}

func TestDecodeToken(t *testing.T) {
	token, err := decodeToken([]byte(`{"data":{"accessToken":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = decodeToken([]byte(`{"accessToken":"def"}`))
	require.NoError(t, err)
	assert.Equal(t, "def", token)

	_, err = decodeToken([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errUnexpectedEnvelope)
}
