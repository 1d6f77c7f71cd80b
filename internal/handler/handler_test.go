package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandishop/storefront_api/internal/cache"
	"github.com/scandishop/storefront_api/internal/cart"
	"github.com/scandishop/storefront_api/internal/graphql"
	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/service"
	"github.com/scandishop/storefront_api/internal/sse"
	"github.com/scandishop/storefront_api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type mockOrders struct {
	mu    sync.Mutex
	items []service.OrderItemInput
	err   error
}

func (m *mockOrders) PlaceOrder(ctx context.Context, items []service.OrderItemInput) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	if m.err != nil {
		return nil, m.err
	}
	return &models.Order{ID: 11, Total: decimal.RequireFromString("60.00")}, nil
}

func (m *mockOrders) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	return nil, nil
}

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }
func (p pingStub) Ping(ctx context.Context) error        { return p.err }

func setupCartRouter(t *testing.T, orders *mockOrders) (*gin.Engine, *cache.CartStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	backend := cache.NewCartStore(cache.WrapClient(client), "scandishop_cart_v1", 0)

	h := NewCartHandler(backend, orders)
	r := gin.New()
	carts := r.Group("/v1/carts/:cartId")
	carts.GET("", h.GetCart)
	carts.POST("/items", h.AddItem)
	carts.PATCH("/items/:index", h.UpdateQuantity)
	carts.PUT("/items/:index/attributes", h.UpdateAttributes)
	carts.DELETE("/items/:index", h.RemoveItem)
	carts.POST("/checkout", h.Checkout)
	return r, backend
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TabIDHeader, "tab-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeSnapshot(t *testing.T, env envelope) cart.Snapshot {
	t.Helper()
	var snap cart.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

const teeBody = `{
	"product": {
		"id": "tee", "name": "Tee", "price": "20.00", "image": "https://img/tee.png",
		"attributeSets": [{"id": 1, "name": "Size", "type": "text", "items": [
			{"id": 10, "value": "S", "displayValue": "Small"},
			{"id": 11, "value": "M", "displayValue": "Medium"}
		]}]
	},
	"selections": [{"attributeSetId": 1, "itemId": %s}],
	"quantity": %s
}`

func addTee(t *testing.T, r http.Handler, itemID, qty string) envelope {
	t.Helper()
	body := fmt.Sprintf(teeBody, itemID, qty)
	w, env := doJSON(t, r, http.MethodPost, "/v1/carts/c1/items", body)
	require.Equal(t, 200, w.Code, w.Body.String())
	return env
}

func TestCartHandler_AddMergesAndTotals(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})

	addTee(t, r, "10", "1")
	env := addTee(t, r, "10", "2")

	snap := decodeSnapshot(t, env)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, "60.00", snap.Total.StringFixed(2))
	assert.Equal(t, "Small", snap.Items[0].SelectedAttributes[0].DisplayValue)

	env = addTee(t, r, "11", "1")
	assert.Len(t, decodeSnapshot(t, env).Items, 2)
}

func TestCartHandler_EchoesOrMintsTabID(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})

	w, _ := doJSON(t, r, http.MethodGet, "/v1/carts/c1", "")
	assert.Equal(t, "tab-test", w.Header().Get(TabIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/v1/carts/c1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(TabIDHeader))
}

func TestCartHandler_AddRejectsUnknownOption(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})

	body := fmt.Sprintf(teeBody, "99", "1")
	w, env := doJSON(t, r, http.MethodPost, "/v1/carts/c1/items", body)
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "INVALID_CART_INPUT", env.Error.Code)
}

func TestCartHandler_UpdateQuantity(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})
	addTee(t, r, "10", "2")

	w, env := doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/0", `{"delta": 1}`)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, 3, decodeSnapshot(t, env).Count)

	w, env = doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/0", `{"quantity": 5}`)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, 5, decodeSnapshot(t, env).Count)

	w, _ = doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/0", `{"delta": 1, "quantity": 2}`)
	assert.Equal(t, 400, w.Code)

	w, env = doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/4", `{"delta": 1}`)
	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "CART_LINE_NOT_FOUND", env.Error.Code)

	w, _ = doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/first", `{"delta": 1}`)
	assert.Equal(t, 400, w.Code)

	w, env = doJSON(t, r, http.MethodPatch, "/v1/carts/c1/items/0", `{"delta": -5}`)
	require.Equal(t, 200, w.Code)
	assert.Empty(t, decodeSnapshot(t, env).Items)
}

func TestCartHandler_UpdateAttributesAndRemove(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})
	addTee(t, r, "10", "1")
	addTee(t, r, "11", "1")

	w, env := doJSON(t, r, http.MethodPut, "/v1/carts/c1/items/1/attributes", `{"selections":[{"attributeSetId":1,"itemId":10}]}`)
	require.Equal(t, 200, w.Code, w.Body.String())
	snap := decodeSnapshot(t, env)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)

	w, _ = doJSON(t, r, http.MethodPut, "/v1/carts/c1/items/3/attributes", `{"selections":[]}`)
	assert.Equal(t, 404, w.Code)

	w, env = doJSON(t, r, http.MethodDelete, "/v1/carts/c1/items/0", "")
	require.Equal(t, 200, w.Code)
	assert.Empty(t, decodeSnapshot(t, env).Items)
}

func TestCartHandler_ConcurrentAddsFromOneTab(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})
	const adds = 50
	body := fmt.Sprintf(teeBody, "10", "1")

	var wg sync.WaitGroup
	codes := make(chan int, adds)
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/carts/c1/items", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(TabIDHeader, "tab-test")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		assert.Equal(t, 200, code)
	}

	_, env := doJSON(t, r, http.MethodGet, "/v1/carts/c1", "")
	snap := decodeSnapshot(t, env)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, adds, snap.Count)
}

func TestCartHandler_UpdateAttributesRejectsUnknownOption(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})
	addTee(t, r, "10", "1")

	w, env := doJSON(t, r, http.MethodPut, "/v1/carts/c1/items/0/attributes", `{"selections":[{"attributeSetId":1,"itemId":99}]}`)
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "INVALID_CART_INPUT", env.Error.Code)

	_, env = doJSON(t, r, http.MethodGet, "/v1/carts/c1", "")
	assert.True(t, decodeSnapshot(t, env).Items[0].IsSelected(1, 10))
}

func TestCartHandler_CheckoutClearsOnSuccess(t *testing.T) {
	orders := &mockOrders{}
	r, _ := setupCartRouter(t, orders)
	addTee(t, r, "10", "3")

	w, env := doJSON(t, r, http.MethodPost, "/v1/carts/c1/checkout", "")
	require.Equal(t, 201, w.Code, w.Body.String())
	assert.True(t, env.Success)

	require.Len(t, orders.items, 1)
	assert.Equal(t, "tee", orders.items[0].ProductID)
	assert.Equal(t, 3, *orders.items[0].Quantity)
	assert.Equal(t, "20", orders.items[0].Price.String())

	_, env = doJSON(t, r, http.MethodGet, "/v1/carts/c1", "")
	assert.Empty(t, decodeSnapshot(t, env).Items)
}

func TestCartHandler_CheckoutFailureKeepsCart(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{err: utils.ErrOrderSubmission})
	addTee(t, r, "10", "2")

	w, env := doJSON(t, r, http.MethodPost, "/v1/carts/c1/checkout", "")
	assert.Equal(t, 502, w.Code)
	assert.Equal(t, "CHECKOUT_FAILED", env.Error.Code)

	_, env = doJSON(t, r, http.MethodGet, "/v1/carts/c1", "")
	assert.Equal(t, 2, decodeSnapshot(t, env).Count)
}

func TestCartHandler_CheckoutEmptyCart(t *testing.T) {
	r, _ := setupCartRouter(t, &mockOrders{})

	w, env := doJSON(t, r, http.MethodPost, "/v1/carts/c1/checkout", "")
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "INVALID_CART_INPUT", env.Error.Code)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		db     error
		redis  error
		status string
	}{
		{"healthy", nil, nil, "healthy"},
		{"redis down", nil, errors.New("dial tcp"), "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/v1/health", NewHealthHandler(pingStub{tt.db}, pingStub{tt.redis}).GetHealth)

			w, env := doJSON(t, r, http.MethodGet, "/v1/health", "")
			require.Equal(t, 200, w.Code)
			var data struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, tt.status, data.Status)
		})
	}
}

type staticCatalog struct{}

func (staticCatalog) Categories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "all"}}, nil
}

func (staticCatalog) Currencies(ctx context.Context) ([]models.Currency, error) {
	return nil, nil
}

func (staticCatalog) Products(ctx context.Context, categoryID *int) ([]service.ProductView, error) {
	return []service.ProductView{}, nil
}

func TestGraphQLHandler(t *testing.T) {
	schema, err := graphql.NewSchema(staticCatalog{}, &mockOrders{}, false)
	require.NoError(t, err)
	r := gin.New()
	r.POST("/graphql", NewGraphQLHandler(schema).Serve)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"query":"{ categories { id name } }"}`)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"data":{"categories":[{"id":1,"name":"all"}]}}`, w.Body.String())

	w = post(`{"query":`)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), `"errors":[{"message":`)

	w = post(`{"variables":{}}`)
	assert.Equal(t, 400, w.Code)

	w = post(`{"query":"{ nope }"}`)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"errors"`)
}

func TestSSEHandler_StreamsOtherTabsChanges(t *testing.T) {
	hub := sse.NewHub()
	r := gin.New()
	r.GET("/v1/carts/:cartId/events", NewSSEHandler(hub).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/carts/c1/events?tabId=tab-b", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}

	waitFor("event:connected")
	require.Equal(t, 1, hub.ClientCount())

	hub.Broadcast(&sse.CartEvent{Event: sse.EventCartChanged, CartID: "c1", TabID: "tab-b"})
	hub.Broadcast(&sse.CartEvent{Event: sse.EventCartChanged, CartID: "c1", TabID: "tab-a", Count: 4})

	waitFor("event:cart")
	data := waitFor("data:")
	var got sse.CartEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data:")), &got))
	assert.Equal(t, "tab-a", got.TabID)
	assert.Equal(t, 4, got.Count)
}
