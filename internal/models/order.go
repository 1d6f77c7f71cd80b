package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a submitted order header.
type Order struct {
	ID        int             `db:"id" json:"id"`
	Total     decimal.Decimal `db:"total" json:"total"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Items     []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem snapshots one submitted line. It is decoupled from the live
// catalog: nothing here references products by foreign key.
type OrderItem struct {
	ID          int             `db:"id" json:"id"`
	OrderID     int             `db:"order_id" json:"order_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Attributes  sql.NullString  `db:"attributes" json:"-"`
}
