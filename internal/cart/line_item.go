package cart

import (
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/models"
)

// SelectedAttribute is the option a shopper picked within one attribute set.
type SelectedAttribute struct {
	AttributeSetID   int    `json:"attributeSetId"`
	AttributeSetName string `json:"attributeSetName"`
	ItemID           *int   `json:"itemId"`
	Value            string `json:"value"`
	DisplayValue     string `json:"displayValue"`
}

// AttributeOption is one option of an attribute set snapshot.
type AttributeOption struct {
	ID           int    `json:"id"`
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue"`
}

// AttributeSet is the option list of a set as it was when the line was added.
type AttributeSet struct {
	ID    int               `json:"id"`
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Items []AttributeOption `json:"items"`
}

// Product is what the cart needs to know about a product when adding it.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	AttributeSets []AttributeSet  `json:"attributeSets"`
}

// ProductFromCatalog snapshots a catalog product: first price, first gallery
// image and every attribute set.
func ProductFromCatalog(p *models.Product) Product {
	out := Product{ID: p.ID, Name: p.Name, Price: decimal.Zero}
	if len(p.Prices) > 0 {
		out.Price = p.Prices[0].Amount
	}
	if len(p.Gallery) > 0 {
		out.Image = p.Gallery[0].ImageURL
	}
	out.AttributeSets = make([]AttributeSet, 0, len(p.AttributeSets))
	for _, set := range p.AttributeSets {
		items := make([]AttributeOption, 0, len(set.Items))
		for _, it := range set.Items {
			items = append(items, AttributeOption{ID: it.ID, Value: it.Value, DisplayValue: it.DisplayValue})
		}
		out.AttributeSets = append(out.AttributeSets, AttributeSet{ID: set.ID, Name: set.Name, Type: set.Type, Items: items})
	}
	return out
}

// Selection builds the selection of itemID within setID from the product's
// option lists. ok is false when the product has no such option.
func (p Product) Selection(setID, itemID int) (SelectedAttribute, bool) {
	for _, set := range p.AttributeSets {
		if set.ID != setID {
			continue
		}
		for _, it := range set.Items {
			if it.ID == itemID {
				id := it.ID
				return SelectedAttribute{
					AttributeSetID:   set.ID,
					AttributeSetName: set.Name,
					ItemID:           &id,
					Value:            it.Value,
					DisplayValue:     it.DisplayValue,
				}, true
			}
		}
	}
	return SelectedAttribute{}, false
}

// LineItem is one cart row. (ProductID, AttrKey) is unique within a cart.
type LineItem struct {
	ProductID          string              `json:"productId"`
	Name               string              `json:"name"`
	Price              decimal.Decimal     `json:"price"`
	Image              string              `json:"image"`
	Quantity           int                 `json:"quantity"`
	SelectedAttributes []SelectedAttribute `json:"selectedAttributes"`
	AttrKey            string              `json:"attrKey"`
	AttributeSets      []AttributeSet      `json:"attributeSets"`
}

// IsSelected reports whether the line picked itemID in setID.
func (l LineItem) IsSelected(setID, itemID int) bool {
	for _, sel := range l.SelectedAttributes {
		if sel.AttributeSetID == setID && sel.ItemID != nil && *sel.ItemID == itemID {
			return true
		}
	}
	return false
}

// Subtotal is price times quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is a consistent view of a cart.
type Snapshot struct {
	Items []LineItem      `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summarize computes the count and rounded total of items.
func Summarize(items []LineItem) Snapshot {
	if items == nil {
		items = []LineItem{}
	}
	count := 0
	total := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		total = total.Add(item.Subtotal())
	}
	return Snapshot{Items: items, Count: count, Total: total.Round(2)}
}
