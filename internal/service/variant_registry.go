package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/repository"
	"github.com/scandishop/storefront_api/internal/utils"
)

// UnregisteredVariantError is returned when a product row belongs to a
// category with no registered variant kind.
type UnregisteredVariantError struct {
	CategoryID int
	ProductID  string
}

func (e *UnregisteredVariantError) Error() string {
	return fmt.Sprintf("no product variant registered for category %d (product %q)", e.CategoryID, e.ProductID)
}

// Is makes errors.Is(err, utils.ErrUnregisteredVariant) hold.
func (e *UnregisteredVariantError) Is(target error) bool {
	return target == utils.ErrUnregisteredVariant
}

// ProductVariantRegistry maps catalog categories to variant kinds and builds
// product aggregates from raw rows. It is populated once at startup and only
// read afterwards.
type ProductVariantRegistry struct {
	reader   repository.CatalogReader
	resolver *AttributeSetResolver
	kinds    map[int]models.VariantKind
}

// NewProductVariantRegistry creates an empty registry.
func NewProductVariantRegistry(reader repository.CatalogReader, resolver *AttributeSetResolver) *ProductVariantRegistry {
	return &ProductVariantRegistry{
		reader:   reader,
		resolver: resolver,
		kinds:    make(map[int]models.VariantKind),
	}
}

// Register associates a category with a variant kind, replacing any earlier
// registration for that category.
func (r *ProductVariantRegistry) Register(categoryID int, kind models.VariantKind) {
	r.kinds[categoryID] = kind
}

// KindOf returns the kind registered for categoryID.
func (r *ProductVariantRegistry) KindOf(categoryID int) (models.VariantKind, bool) {
	k, ok := r.kinds[categoryID]
	return k, ok
}

// Build creates a product of the registered kind from a raw row. Attribute
// sets, gallery and prices are left empty.
func (r *ProductVariantRegistry) Build(row models.ProductRow) (*models.Product, error) {
	kind, ok := r.kinds[row.CategoryID]
	if !ok {
		return nil, &UnregisteredVariantError{CategoryID: row.CategoryID, ProductID: row.ID}
	}
	return &models.Product{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		InStock:       row.InStock,
		Brand:         row.Brand,
		CategoryID:    row.CategoryID,
		Kind:          kind,
		AttributeSets: []models.AttributeSet{},
		Gallery:       []models.GalleryImage{},
		Prices:        []models.Price{},
	}, nil
}

// ListAll loads every product row (only categoryID's when non-nil), builds it
// and attaches attribute sets, gallery and prices. Any unregistered category
// fails the whole listing.
func (r *ProductVariantRegistry) ListAll(ctx context.Context, categoryID *int) ([]*models.Product, error) {
	rows, err := r.reader.ListProductRows(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list product rows: %w", err)
	}

	products := make([]*models.Product, 0, len(rows))
	for _, row := range rows {
		p, err := r.Build(row)
		if err != nil {
			log.Error().Err(err).Str("product_id", row.ID).Int("category_id", row.CategoryID).Msg("Product variant resolution failed")
			return nil, err
		}
		products = append(products, p)
	}

	reader := r.reader
	if pre, ok := r.reader.(repository.Preloader); ok && len(products) > 0 {
		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.ID
		}
		if reader, err = pre.Preload(ctx, ids); err != nil {
			return nil, fmt.Errorf("preload catalog: %w", err)
		}
	}
	resolver := r.resolver.WithReader(reader)

	for _, p := range products {
		if p.AttributeSets, err = resolver.LoadForProduct(ctx, p.ID); err != nil {
			return nil, err
		}
		if p.Gallery, err = reader.ListGallery(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("load gallery for %s: %w", p.ID, err)
		}
		if p.Prices, err = reader.ListPrices(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("load prices for %s: %w", p.ID, err)
		}
	}
	return products, nil
}
