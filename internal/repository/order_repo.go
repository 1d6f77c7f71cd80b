package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scandishop/storefront_api/internal/models"
)

// OrderRepository handles data access for orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateWithItems inserts the order header and all of its lines in a single
// transaction. On success order.ID, order.CreatedAt and the item ids are set.
func (r *OrderRepository) CreateWithItems(ctx context.Context, order *models.Order) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertOrder = `INSERT INTO orders (total) VALUES ($1) RETURNING id, created_at`
	if err = tx.QueryRowxContext(ctx, insertOrder, order.Total).Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const insertItem = `
        INSERT INTO order_items (order_id, product_id, product_name, price, quantity, attributes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err = tx.QueryRowxContext(ctx, insertItem,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Price,
			item.Quantity,
			item.Attributes,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}

// GetByID returns an order header with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	var order models.Order
	if err := r.db.GetContext(ctx, &order, `SELECT id, total, created_at FROM orders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	const q = `
        SELECT id, order_id, product_id, product_name, price, quantity, attributes
        FROM order_items WHERE order_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &order.Items, q, id); err != nil {
		return nil, err
	}
	return &order, nil
}
