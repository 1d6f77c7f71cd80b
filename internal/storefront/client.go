// Package storefront is a client for the storefront GraphQL API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scandishop/storefront_api/internal/cart"
	"github.com/scandishop/storefront_api/internal/models"
)

const (
	categoriesQuery = `query { categories { id name } }`
	currenciesQuery = `query { currencies { id label symbol } }`
	productsQuery   = `query Products($categoryId: Int) {
  products(categoryId: $categoryId) {
    id name description in_stock brand category_id productKind
    gallery { id product_id image_url }
    prices { id product_id currency_id amount currency { id label symbol } }
    attributes { id name type items { id value displayValue } }
    formattedAttributes { name items { id value displayValue } }
  }
}`
	placeOrderMutation = `mutation PlaceOrder($items: [OrderItemInput!]!) {
  placeOrder(items: $items) { id total created_at }
}`
)

// Client talks to the storefront GraphQL endpoint. Catalog reads degrade to
// empty results on any failure; order placement reports failures.
type Client struct {
	httpClient *http.Client
	endpoint   string
	debug      bool
}

// NewClient constructs a client for endpoint, e.g. "http://localhost:8080/graphql".
// A zero timeout leaves requests unbounded. Requests and responses are logged
// at debug level when ENV is development.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		debug:      os.Getenv("ENV") == "development",
	}
}

// FetchCategories returns all categories, or an empty list on failure.
func (c *Client) FetchCategories(ctx context.Context) []Category {
	var resp gqlResponse[struct {
		Categories []Category `json:"categories"`
	}]
	if err := c.do(ctx, categoriesQuery, nil, &resp); err != nil {
		log.Warn().Err(err).Msg("[STOREFRONT] fetch categories failed")
		return []Category{}
	}
	if resp.Data.Categories == nil {
		return []Category{}
	}
	return resp.Data.Categories
}

// FetchCurrencies returns all currencies, or an empty list on failure.
func (c *Client) FetchCurrencies(ctx context.Context) []Currency {
	var resp gqlResponse[struct {
		Currencies []Currency `json:"currencies"`
	}]
	if err := c.do(ctx, currenciesQuery, nil, &resp); err != nil {
		log.Warn().Err(err).Msg("[STOREFRONT] fetch currencies failed")
		return []Currency{}
	}
	if resp.Data.Currencies == nil {
		return []Currency{}
	}
	return resp.Data.Currencies
}

// FetchProducts returns the products of categoryID, or an empty list on
// failure. Category 0 and the "all" category return every product.
func (c *Client) FetchProducts(ctx context.Context, categoryID int) []Product {
	vars := map[string]interface{}{}
	if categoryID != 0 && categoryID != models.CategoryAll {
		vars["categoryId"] = categoryID
	}
	var resp gqlResponse[struct {
		Products []Product `json:"products"`
	}]
	if err := c.do(ctx, productsQuery, vars, &resp); err != nil {
		log.Warn().Err(err).Int("category_id", categoryID).Msg("[STOREFRONT] fetch products failed")
		return []Product{}
	}
	if resp.Data.Products == nil {
		return []Product{}
	}
	return resp.Data.Products
}

// PlaceOrder submits checkout lines. It satisfies cart.OrderPlacer, so a
// cart.Store can check out through the API.
func (c *Client) PlaceOrder(ctx context.Context, lines []cart.OrderLine) (*models.Order, error) {
	items := make([]orderItemInput, 0, len(lines))
	for _, l := range lines {
		items = append(items, orderItemInput{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.Price.InexactFloat64(),
			Quantity:    l.Quantity,
			Attributes:  l.Attributes,
		})
	}
	var resp gqlResponse[struct {
		PlaceOrder *models.Order `json:"placeOrder"`
	}]
	if err := c.do(ctx, placeOrderMutation, map[string]interface{}{"items": items}, &resp); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.Data.PlaceOrder == nil {
		return nil, errors.New("place order: empty response")
	}
	return resp.Data.PlaceOrder, nil
}

// do posts a GraphQL request and decodes the response into result. A
// non-empty errors array is returned as an error.
func (c *Client) do(ctx context.Context, query string, vars map[string]interface{}, result interface{ firstError() error }) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.debug {
		log.Debug().Str("endpoint", c.endpoint).RawJSON("request", payload).Msg("[STOREFRONT] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().Int("status_code", resp.StatusCode).Bytes("response", body).Msg("[STOREFRONT] Incoming response")
	}

	// Malformed requests come back as 400 with an errors array; decode either way.
	if err := json.Unmarshal(body, result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := result.firstError(); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (r *gqlResponse[T]) firstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("graphql: %s", r.Errors[0].Message)
}
