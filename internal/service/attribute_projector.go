package service

import (
	"strings"

	"github.com/scandishop/storefront_api/internal/models"
)

// ProjectedItem is a display-ready attribute option.
type ProjectedItem struct {
	ID           int    `json:"id"`
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue"`
}

// ProjectedAttributeSet is one entry of a product's formatted attributes.
type ProjectedAttributeSet struct {
	Name  string          `json:"name"`
	Items []ProjectedItem `json:"items"`
}

// AttributeProjector turns a product's attribute sets into a display mapping
// keyed by (possibly renamed) set name. Each variant kind carries its own
// renaming table.
type AttributeProjector struct {
	renames map[models.VariantKind]map[string]string
}

// NewAttributeProjector creates a projector with no renames registered.
func NewAttributeProjector() *AttributeProjector {
	return &AttributeProjector{renames: make(map[models.VariantKind]map[string]string)}
}

// NewDefaultAttributeProjector registers the storefront's built-in tables:
// clothing exposes its "size" set as "sizes".
func NewDefaultAttributeProjector() *AttributeProjector {
	p := NewAttributeProjector()
	p.Register(models.VariantClothing, map[string]string{"size": "sizes"})
	p.Register(models.VariantTech, nil)
	p.Register(models.VariantGeneric, nil)
	return p
}

// Register sets the renaming table for kind. Source names match
// case-insensitively.
func (p *AttributeProjector) Register(kind models.VariantKind, renames map[string]string) {
	table := make(map[string]string, len(renames))
	for from, to := range renames {
		table[strings.ToLower(from)] = to
	}
	p.renames[kind] = table
}

// Project returns the product's sets in order. When two sets map to the same
// key the later one's items overwrite the earlier entry, which keeps its
// position.
func (p *AttributeProjector) Project(product *models.Product) []ProjectedAttributeSet {
	if product == nil {
		return []ProjectedAttributeSet{}
	}
	out := make([]ProjectedAttributeSet, 0, len(product.AttributeSets))
	table := p.renames[product.Kind]
	pos := make(map[string]int, len(product.AttributeSets))

	for _, set := range product.AttributeSets {
		key := set.Name
		if renamed, ok := table[strings.ToLower(set.Name)]; ok {
			key = renamed
		}

		items := make([]ProjectedItem, 0, len(set.Items))
		for _, it := range set.Items {
			items = append(items, ProjectedItem{ID: it.ID, Value: it.Value, DisplayValue: it.DisplayValue})
		}

		if i, ok := pos[key]; ok {
			out[i].Items = items
			continue
		}
		pos[key] = len(out)
		out = append(out, ProjectedAttributeSet{Name: key, Items: items})
	}
	return out
}
