package models

import "database/sql"

// AttributeSet is a named group of selectable options attached to a product.
type AttributeSet struct {
	ID    int
	Name  string
	Type  string
	Items []AttributeItem
}

// AttributeItem is one selectable option within a set.
type AttributeItem struct {
	ID           int
	Value        string
	DisplayValue string
}

// AttributeSetRow is a product_attribute_sets ⋈ attribute_sets row.
type AttributeSetRow struct {
	ProductID string `db:"product_id"`
	SetID     int    `db:"set_id"`
	SetName   string `db:"set_name"`
	SetType   string `db:"set_type"`
}

// AttributeItemRow is a product_attributes ⋈ attributes row. The join may
// yield the same item more than once.
type AttributeItemRow struct {
	ProductID    string         `db:"product_id"`
	SetID        int            `db:"set_id"`
	ItemID       int            `db:"item_id"`
	Value        string         `db:"value"`
	DisplayValue sql.NullString `db:"display_value"`
}

// Item converts the row, defaulting the display value to the raw value.
func (r AttributeItemRow) Item() AttributeItem {
	display := r.Value
	if r.DisplayValue.Valid {
		display = r.DisplayValue.String
	}
	return AttributeItem{ID: r.ItemID, Value: r.Value, DisplayValue: display}
}
