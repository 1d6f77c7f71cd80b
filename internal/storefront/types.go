package storefront

import (
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/cart"
)

// Category is a catalog category as served by the API.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Currency describes a price currency.
type Currency struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Symbol string `json:"symbol"`
}

// GalleryImage is one product image.
type GalleryImage struct {
	ID        int    `json:"id"`
	ProductID string `json:"product_id"`
	ImageURL  string `json:"image_url"`
}

// Price is a product price in one currency.
type Price struct {
	ID         int             `json:"id"`
	ProductID  string          `json:"product_id"`
	CurrencyID int             `json:"currency_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   Currency        `json:"currency"`
}

// AttributeItem is one selectable option.
type AttributeItem struct {
	ID           int    `json:"id"`
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue"`
}

// AttributeSet groups the options of one attribute.
type AttributeSet struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Items []AttributeItem `json:"items"`
}

// FormattedAttribute is the display projection of an attribute set.
type FormattedAttribute struct {
	Name  string          `json:"name"`
	Items []AttributeItem `json:"items"`
}

// Product is a catalog product with its variant projection.
type Product struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	InStock             bool                 `json:"in_stock"`
	Brand               string               `json:"brand"`
	CategoryID          int                  `json:"category_id"`
	ProductKind         string               `json:"productKind"`
	Gallery             []GalleryImage       `json:"gallery"`
	Prices              []Price              `json:"prices"`
	Attributes          []AttributeSet       `json:"attributes"`
	FormattedAttributes []FormattedAttribute `json:"formattedAttributes"`
}

// CartProduct converts p into the shape a cart line snapshots. The first
// price and first gallery image are used.
func (p Product) CartProduct() cart.Product {
	out := cart.Product{
		ID:            p.ID,
		Name:          p.Name,
		AttributeSets: make([]cart.AttributeSet, 0, len(p.Attributes)),
	}
	if len(p.Prices) > 0 {
		out.Price = p.Prices[0].Amount
	}
	if len(p.Gallery) > 0 {
		out.Image = p.Gallery[0].ImageURL
	}
	for _, set := range p.Attributes {
		options := make([]cart.AttributeOption, 0, len(set.Items))
		for _, item := range set.Items {
			options = append(options, cart.AttributeOption{ID: item.ID, Value: item.Value, DisplayValue: item.DisplayValue})
		}
		out.AttributeSets = append(out.AttributeSets, cart.AttributeSet{ID: set.ID, Name: set.Name, Type: set.Type, Items: options})
	}
	return out
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse[T any] struct {
	Data   T          `json:"data"`
	Errors []gqlError `json:"errors"`
}

type orderItemInput struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Attributes  string  `json:"attributes"`
}
