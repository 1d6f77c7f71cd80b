package graphql

import (
	"context"
	"errors"
	"fmt"
	"time"

	gql "github.com/graphql-go/graphql"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/service"
	"github.com/scandishop/storefront_api/internal/utils"
)

// CatalogQueries answers the catalog fields.
type CatalogQueries interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Currencies(ctx context.Context) ([]models.Currency, error)
	Products(ctx context.Context, categoryID *int) ([]service.ProductView, error)
}

// Orders answers the order fields.
type Orders interface {
	PlaceOrder(ctx context.Context, items []service.OrderItemInput) (*models.Order, error)
	GetOrder(ctx context.Context, id int) (*models.Order, error)
}

// Request is a GraphQL request body.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Schema is the storefront's executable schema.
type Schema struct {
	schema  gql.Schema
	catalog CatalogQueries
	orders  Orders
	debug   bool
}

// NewSchema builds the schema. With debug set, resolver errors carry their
// full cause instead of a public summary.
func NewSchema(catalog CatalogQueries, orders Orders, debug bool) (*Schema, error) {
	s := &Schema{catalog: catalog, orders: orders, debug: debug}

	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"categories": &gql.Field{
				Type:    gql.NewList(categoryType),
				Resolve: s.resolveCategories,
			},
			"currencies": &gql.Field{
				Type:    gql.NewList(currencyType),
				Resolve: s.resolveCurrencies,
			},
			"products": &gql.Field{
				Type: gql.NewList(productType),
				Args: gql.FieldConfigArgument{
					"categoryId": &gql.ArgumentConfig{Type: gql.Int},
				},
				Resolve: s.resolveProducts,
			},
			"order": &gql.Field{
				Type: orderType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.Int)},
				},
				Resolve: s.resolveOrder,
			},
		},
	})

	mutation := gql.NewObject(gql.ObjectConfig{
		Name: "Mutation",
		Fields: gql.Fields{
			"placeOrder": &gql.Field{
				Type: orderType,
				Args: gql.FieldConfigArgument{
					"items": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(orderItemInputType)))},
				},
				Resolve: s.resolvePlaceOrder,
			},
		},
	})

	schema, err := gql.NewSchema(gql.SchemaConfig{Query: query, Mutation: mutation})
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}
	s.schema = schema
	return s, nil
}

// Execute runs a request against the schema.
func (s *Schema) Execute(ctx context.Context, req Request) *gql.Result {
	return gql.Do(gql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}

func (s *Schema) resolveCategories(p gql.ResolveParams) (interface{}, error) {
	cats, err := s.catalog.Categories(p.Context)
	if err != nil {
		return nil, s.publicError("categories", err)
	}
	return cats, nil
}

func (s *Schema) resolveCurrencies(p gql.ResolveParams) (interface{}, error) {
	curs, err := s.catalog.Currencies(p.Context)
	if err != nil {
		return nil, s.publicError("currencies", err)
	}
	return curs, nil
}

func (s *Schema) resolveProducts(p gql.ResolveParams) (interface{}, error) {
	products, err := s.catalog.Products(p.Context, categoryFilter(p.Args["categoryId"]))
	if err != nil {
		return nil, s.publicError("products", err)
	}
	return products, nil
}

func (s *Schema) resolveOrder(p gql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)
	order, err := s.orders.GetOrder(p.Context, id)
	if err != nil {
		return nil, s.publicError("order", err)
	}
	if order == nil {
		return nil, nil
	}
	return order, nil
}

func (s *Schema) resolvePlaceOrder(p gql.ResolveParams) (interface{}, error) {
	raw, _ := p.Args["items"].([]interface{})
	items := make([]service.OrderItemInput, 0, len(raw))
	for _, r := range raw {
		fields, _ := r.(map[string]interface{})
		items = append(items, orderItemFromArgs(fields))
	}

	order, err := s.orders.PlaceOrder(p.Context, items)
	if err != nil {
		return nil, s.publicError("placeOrder", err)
	}
	return order, nil
}

// categoryFilter treats a missing id, 0 and the "all" category as no filter.
func categoryFilter(arg interface{}) *int {
	id, ok := arg.(int)
	if !ok || id == 0 || id == models.CategoryAll {
		return nil
	}
	return &id
}

func orderItemFromArgs(fields map[string]interface{}) service.OrderItemInput {
	var in service.OrderItemInput
	in.ProductID, _ = fields["product_id"].(string)
	in.ProductName, _ = fields["product_name"].(string)
	if v, ok := fields["price"].(float64); ok {
		price := decimal.NewFromFloat(v)
		in.Price = &price
	}
	if v, ok := fields["quantity"].(int); ok {
		in.Quantity = &v
	}
	if v, ok := fields["attributes"].(string); ok {
		in.Attributes = &v
	}
	return in
}

// publicError logs err and decides how much of it reaches the client.
func (s *Schema) publicError(field string, err error) error {
	log.Error().Err(err).Str("field", field).Msg("GraphQL resolver failed")
	if s.debug {
		return err
	}
	switch {
	case errors.Is(err, utils.ErrInvalidOrder):
		return err
	case errors.Is(err, utils.ErrOrderSubmission):
		return errors.New("order could not be placed")
	case errors.Is(err, utils.ErrUnregisteredVariant):
		return errors.New("catalog contains a product of an unsupported category")
	default:
		return errors.New("internal server error")
	}
}

var categoryType = gql.NewObject(gql.ObjectConfig{
	Name: "Category",
	Fields: gql.Fields{
		"id":   &gql.Field{Type: gql.Int},
		"name": &gql.Field{Type: gql.String},
	},
})

var currencyType = gql.NewObject(gql.ObjectConfig{
	Name: "Currency",
	Fields: gql.Fields{
		"id":     &gql.Field{Type: gql.Int},
		"label":  &gql.Field{Type: gql.String},
		"symbol": &gql.Field{Type: gql.String},
	},
})

var galleryType = gql.NewObject(gql.ObjectConfig{
	Name: "GalleryImage",
	Fields: gql.Fields{
		"id":         &gql.Field{Type: gql.Int},
		"product_id": &gql.Field{Type: gql.String},
		"image_url":  &gql.Field{Type: gql.String},
	},
})

var priceType = gql.NewObject(gql.ObjectConfig{
	Name: "Price",
	Fields: gql.Fields{
		"id":          &gql.Field{Type: gql.Int},
		"product_id":  &gql.Field{Type: gql.String},
		"currency_id": &gql.Field{Type: gql.Int},
		"amount":      &gql.Field{Type: gql.Float},
		"currency":    &gql.Field{Type: currencyType},
	},
})

var attributeItemType = gql.NewObject(gql.ObjectConfig{
	Name: "AttributeItem",
	Fields: gql.Fields{
		"id":           &gql.Field{Type: gql.Int},
		"value":        &gql.Field{Type: gql.String},
		"displayValue": &gql.Field{Type: gql.String},
	},
})

var attributeSetType = gql.NewObject(gql.ObjectConfig{
	Name: "AttributeSet",
	Fields: gql.Fields{
		"id":    &gql.Field{Type: gql.Int},
		"name":  &gql.Field{Type: gql.String},
		"type":  &gql.Field{Type: gql.String},
		"items": &gql.Field{Type: gql.NewList(attributeItemType)},
	},
})

var formattedAttributeType = gql.NewObject(gql.ObjectConfig{
	Name: "FormattedAttribute",
	Fields: gql.Fields{
		"name":  &gql.Field{Type: gql.String},
		"items": &gql.Field{Type: gql.NewList(attributeItemType)},
	},
})

var productType = gql.NewObject(gql.ObjectConfig{
	Name: "Product",
	Fields: gql.Fields{
		"id":                  &gql.Field{Type: gql.String},
		"name":                &gql.Field{Type: gql.String},
		"description":         &gql.Field{Type: gql.String},
		"in_stock":            &gql.Field{Type: gql.Boolean},
		"brand":               &gql.Field{Type: gql.String},
		"category_id":         &gql.Field{Type: gql.Int},
		"productKind":         &gql.Field{Type: gql.String},
		"gallery":             &gql.Field{Type: gql.NewList(galleryType)},
		"prices":              &gql.Field{Type: gql.NewList(priceType)},
		"attributes":          &gql.Field{Type: gql.NewList(attributeSetType)},
		"formattedAttributes": &gql.Field{Type: gql.NewList(formattedAttributeType)},
	},
})

var orderItemType = gql.NewObject(gql.ObjectConfig{
	Name: "OrderItem",
	Fields: gql.Fields{
		"id":           &gql.Field{Type: gql.Int},
		"product_id":   &gql.Field{Type: gql.String},
		"product_name": &gql.Field{Type: gql.String},
		"price": &gql.Field{
			Type: gql.Float,
			Resolve: func(p gql.ResolveParams) (interface{}, error) {
				item, ok := p.Source.(models.OrderItem)
				if !ok {
					return nil, nil
				}
				f, _ := item.Price.Float64()
				return f, nil
			},
		},
		"quantity": &gql.Field{Type: gql.Int},
		"attributes": &gql.Field{
			Type: gql.String,
			Resolve: func(p gql.ResolveParams) (interface{}, error) {
				item, ok := p.Source.(models.OrderItem)
				if !ok || !item.Attributes.Valid {
					return nil, nil
				}
				return item.Attributes.String, nil
			},
		},
	},
})

var orderType = gql.NewObject(gql.ObjectConfig{
	Name: "Order",
	Fields: gql.Fields{
		"id": &gql.Field{Type: gql.NewNonNull(gql.Int)},
		"total": &gql.Field{
			Type: gql.NewNonNull(gql.Float),
			Resolve: func(p gql.ResolveParams) (interface{}, error) {
				order, ok := p.Source.(*models.Order)
				if !ok {
					return nil, nil
				}
				f, _ := order.Total.Float64()
				return f, nil
			},
		},
		"created_at": &gql.Field{
			Type: gql.String,
			Resolve: func(p gql.ResolveParams) (interface{}, error) {
				order, ok := p.Source.(*models.Order)
				if !ok || order.CreatedAt.IsZero() {
					return nil, nil
				}
				return order.CreatedAt.Format(time.RFC3339), nil
			},
		},
		"items": &gql.Field{Type: gql.NewList(orderItemType)},
	},
})

var orderItemInputType = gql.NewInputObject(gql.InputObjectConfig{
	Name: "OrderItemInput",
	Fields: gql.InputObjectConfigFieldMap{
		"product_id":   &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.String)},
		"product_name": &gql.InputObjectFieldConfig{Type: gql.String},
		"price":        &gql.InputObjectFieldConfig{Type: gql.Float},
		"quantity":     &gql.InputObjectFieldConfig{Type: gql.Int},
		"attributes":   &gql.InputObjectFieldConfig{Type: gql.String},
	},
})
