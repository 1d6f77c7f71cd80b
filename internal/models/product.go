package models

import "github.com/shopspring/decimal"

// CategoryAll is the reserved category id meaning "every category".
const CategoryAll = 1

// VariantKind enumerates the behavioral product variants.
type VariantKind string

const (
	VariantGeneric  VariantKind = "generic"
	VariantClothing VariantKind = "clothing"
	VariantTech     VariantKind = "tech"
)

// Valid reports whether k is a known variant kind.
func (k VariantKind) Valid() bool {
	switch k {
	case VariantGeneric, VariantClothing, VariantTech:
		return true
	}
	return false
}

// Category is a catalog category row.
type Category struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ProductRow is a raw products table row before variant resolution.
type ProductRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	InStock     bool   `db:"in_stock"`
	CategoryID  int    `db:"category_id"`
	Brand       string `db:"brand"`
}

// Product is the assembled catalog aggregate for a single request.
type Product struct {
	ID            string
	Name          string
	Description   string
	InStock       bool
	Brand         string
	CategoryID    int
	Kind          VariantKind
	AttributeSets []AttributeSet
	Gallery       []GalleryImage
	Prices        []Price
}

// GalleryImage is one image reference of a product.
type GalleryImage struct {
	ID        int    `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"product_id"`
	ImageURL  string `db:"image_url" json:"image_url"`
}

// Currency is a display currency.
type Currency struct {
	ID     int    `db:"id" json:"id"`
	Label  string `db:"label" json:"label"`
	Symbol string `db:"symbol" json:"symbol"`
}

// Price is a product price in one currency. Currency fields are joined in by
// the repository.
type Price struct {
	ID             int             `db:"id"`
	ProductID      string          `db:"product_id"`
	Amount         decimal.Decimal `db:"amount"`
	CurrencyID     int             `db:"currency_id"`
	CurrencyLabel  string          `db:"currency_label"`
	CurrencySymbol string          `db:"currency_symbol"`
}
