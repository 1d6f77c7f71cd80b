package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/utils"
)

// OrderStore persists orders.
type OrderStore interface {
	CreateWithItems(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int) (*models.Order, error)
}

// OrderItemInput is one submitted line as supplied by the caller. Price and
// quantity are trusted as given.
type OrderItemInput struct {
	ProductID   string
	ProductName string
	Price       *decimal.Decimal
	Quantity    *int
	Attributes  *string
}

// OrderService submits orders.
type OrderService struct {
	store OrderStore
}

// NewOrderService constructs an OrderService.
func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{store: store}
}

// PlaceOrder validates the lines, computes the total from the supplied prices
// rounded to cents and stores header and lines atomically. A missing price
// counts as zero and a missing quantity as one.
func (s *OrderService) PlaceOrder(ctx context.Context, items []OrderItemInput) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", utils.ErrInvalidOrder)
	}

	order := &models.Order{Items: make([]models.OrderItem, 0, len(items))}
	total := decimal.Zero
	for i, in := range items {
		if in.ProductID == "" {
			return nil, fmt.Errorf("%w: item %d has no product_id", utils.ErrInvalidOrder, i)
		}
		price := decimal.Zero
		if in.Price != nil {
			if in.Price.IsNegative() {
				return nil, fmt.Errorf("%w: item %d has a negative price", utils.ErrInvalidOrder, i)
			}
			// order_items.price holds cents
			price = in.Price.Round(2)
		}
		qty := 1
		if in.Quantity != nil {
			if *in.Quantity < 1 {
				return nil, fmt.Errorf("%w: item %d has quantity %d", utils.ErrInvalidOrder, i, *in.Quantity)
			}
			qty = *in.Quantity
		}

		var attrs sql.NullString
		if in.Attributes != nil {
			attrs = sql.NullString{String: *in.Attributes, Valid: true}
		}

		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   in.ProductID,
			ProductName: in.ProductName,
			Price:       price,
			Quantity:    qty,
			Attributes:  attrs,
		})
	}
	order.Total = total.Round(2)

	if err := s.store.CreateWithItems(ctx, order); err != nil {
		log.Error().Err(err).Int("lines", len(order.Items)).Str("total", order.Total.StringFixed(2)).Msg("Order submission failed")
		return nil, fmt.Errorf("%w: %v", utils.ErrOrderSubmission, err)
	}

	log.Info().Int("order_id", order.ID).Str("total", order.Total.StringFixed(2)).Int("lines", len(order.Items)).Msg("Order placed")
	return order, nil
}

// GetOrder returns a stored order with its lines, or nil when it does not exist.
func (s *OrderService) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return order, nil
}
