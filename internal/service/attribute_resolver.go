package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/repository"
)

// AttributeSetResolver loads the attribute sets attached to a product, each
// populated with its distinct items.
type AttributeSetResolver struct {
	reader repository.CatalogReader
}

// NewAttributeSetResolver constructs an AttributeSetResolver over reader.
func NewAttributeSetResolver(reader repository.CatalogReader) *AttributeSetResolver {
	return &AttributeSetResolver{reader: reader}
}

// WithReader returns a resolver bound to a different (usually request-scoped)
// reader.
func (r *AttributeSetResolver) WithReader(reader repository.CatalogReader) *AttributeSetResolver {
	return &AttributeSetResolver{reader: reader}
}

// LoadForProduct returns the product's attribute sets in storage order, each
// with its items in ascending id order. Duplicate rows for the same item in a
// set collapse to the first row encountered. A product without attributes
// yields an empty slice.
func (r *AttributeSetResolver) LoadForProduct(ctx context.Context, productID string) ([]models.AttributeSet, error) {
	setRows, err := r.reader.ListAttributeSets(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load attribute sets for %s: %w", productID, err)
	}
	if len(setRows) == 0 {
		return []models.AttributeSet{}, nil
	}

	itemRows, err := r.reader.ListAttributeItems(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load attribute items for %s: %w", productID, err)
	}

	return groupAttributeRows(setRows, itemRows), nil
}

func groupAttributeRows(setRows []models.AttributeSetRow, itemRows []models.AttributeItemRow) []models.AttributeSet {
	sets := make([]models.AttributeSet, 0, len(setRows))
	index := make(map[int]int, len(setRows))
	for _, row := range setRows {
		if _, dup := index[row.SetID]; dup {
			continue
		}
		index[row.SetID] = len(sets)
		sets = append(sets, models.AttributeSet{
			ID:    row.SetID,
			Name:  row.SetName,
			Type:  row.SetType,
			Items: []models.AttributeItem{},
		})
	}

	// Stable: rows sharing an id keep their storage order, so "first" is well defined.
	rows := append([]models.AttributeItemRow(nil), itemRows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })

	type itemKey struct{ set, item int }
	seen := make(map[itemKey]bool, len(rows))
	for _, row := range rows {
		pos, ok := index[row.SetID]
		if !ok {
			// linked through a set the product does not carry
			continue
		}
		key := itemKey{row.SetID, row.ItemID}
		if seen[key] {
			continue
		}
		seen[key] = true
		sets[pos].Items = append(sets[pos].Items, row.Item())
	}
	return sets
}
