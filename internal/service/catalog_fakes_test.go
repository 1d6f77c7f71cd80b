package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/repository"
)

// fakeCatalog is an in-memory CatalogReader.
type fakeCatalog struct {
	mu         sync.Mutex
	categories []models.Category
	currencies []models.Currency
	products   []models.ProductRow
	sets       map[string][]models.AttributeSetRow
	items      map[string][]models.AttributeItemRow
	gallery    map[string][]models.GalleryImage
	prices     map[string][]models.Price
	calls      map[string]int
	err        error
}

func (f *fakeCatalog) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeCatalog) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	f.record("ListCategories")
	return f.categories, f.err
}

func (f *fakeCatalog) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	f.record("ListCurrencies")
	return f.currencies, f.err
}

func (f *fakeCatalog) ListProductRows(ctx context.Context, categoryID *int) ([]models.ProductRow, error) {
	f.record("ListProductRows")
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ProductRow
	for _, p := range f.products {
		if categoryID == nil || p.CategoryID == *categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListAttributeSets(ctx context.Context, productID string) ([]models.AttributeSetRow, error) {
	f.record("ListAttributeSets")
	return f.sets[productID], nil
}

func (f *fakeCatalog) ListAttributeItems(ctx context.Context, productID string) ([]models.AttributeItemRow, error) {
	f.record("ListAttributeItems")
	return f.items[productID], nil
}

func (f *fakeCatalog) ListGallery(ctx context.Context, productID string) ([]models.GalleryImage, error) {
	f.record("ListGallery")
	return f.gallery[productID], nil
}

func (f *fakeCatalog) ListPrices(ctx context.Context, productID string) ([]models.Price, error) {
	f.record("ListPrices")
	return f.prices[productID], nil
}

// preloadingCatalog wraps fakeCatalog with a Preloader that hands back the
// same data through a separate reader.
type preloadingCatalog struct {
	*fakeCatalog
	preloaded []string
}

func (p *preloadingCatalog) Preload(ctx context.Context, ids []string) (repository.CatalogReader, error) {
	p.preloaded = append([]string(nil), ids...)
	return p.fakeCatalog, nil
}

func display(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

// storefrontCatalog seeds a small clothes/tech catalog.
func storefrontCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: []models.Category{{ID: 1, Name: "all"}, {ID: 2, Name: "clothes"}, {ID: 3, Name: "tech"}},
		currencies: []models.Currency{{ID: 1, Label: "USD", Symbol: "$"}},
		products: []models.ProductRow{
			{ID: "tee", Name: "Tee", InStock: true, CategoryID: 2, Brand: "Acme"},
			{ID: "ps5", Name: "PlayStation 5", InStock: true, CategoryID: 3, Brand: "Sony"},
			{ID: "jacket", Name: "Jacket", InStock: false, CategoryID: 2, Brand: "Canada Goose"},
		},
		sets: map[string][]models.AttributeSetRow{
			"tee": {
				{ProductID: "tee", SetID: 1, SetName: "Size", SetType: "text"},
				{ProductID: "tee", SetID: 2, SetName: "Color", SetType: "swatch"},
			},
			"ps5": {
				{ProductID: "ps5", SetID: 4, SetName: "Capacity", SetType: "text"},
			},
		},
		items: map[string][]models.AttributeItemRow{
			"tee": {
				{ProductID: "tee", SetID: 1, ItemID: 11, Value: "M", DisplayValue: display("Medium")},
				{ProductID: "tee", SetID: 1, ItemID: 10, Value: "S", DisplayValue: display("Small")},
				{ProductID: "tee", SetID: 1, ItemID: 10, Value: "S", DisplayValue: display("Small (dup)")},
				{ProductID: "tee", SetID: 2, ItemID: 20, Value: "#000000"},
			},
			"ps5": {
				{ProductID: "ps5", SetID: 4, ItemID: 40, Value: "512G", DisplayValue: display("512G")},
				{ProductID: "ps5", SetID: 4, ItemID: 41, Value: "1T", DisplayValue: display("1T")},
			},
		},
		gallery: map[string][]models.GalleryImage{
			"tee": {{ID: 1, ProductID: "tee", ImageURL: "https://img/tee.png"}},
		},
		prices: map[string][]models.Price{
			"tee": {{ID: 1, ProductID: "tee", Amount: decimal.RequireFromString("20.00"), CurrencyID: 1, CurrencyLabel: "USD", CurrencySymbol: "$"}},
			"ps5": {{ID: 2, ProductID: "ps5", Amount: decimal.RequireFromString("844.02"), CurrencyID: 1, CurrencyLabel: "USD", CurrencySymbol: "$"}},
		},
	}
}

func newStorefrontRegistry(reader repository.CatalogReader) *ProductVariantRegistry {
	reg := NewProductVariantRegistry(reader, NewAttributeSetResolver(reader))
	reg.Register(2, models.VariantClothing)
	reg.Register(3, models.VariantTech)
	return reg
}
