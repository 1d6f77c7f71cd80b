package service

import (
	"context"
	"fmt"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/repository"
)

// CatalogService answers the read-only catalog queries.
type CatalogService struct {
	reader    repository.CatalogReader
	registry  *ProductVariantRegistry
	projector *AttributeProjector
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(reader repository.CatalogReader, registry *ProductVariantRegistry, projector *AttributeProjector) *CatalogService {
	return &CatalogService{reader: reader, registry: registry, projector: projector}
}

// ProductView is the outward-facing product payload.
type ProductView struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Description         string                  `json:"description"`
	InStock             bool                    `json:"in_stock"`
	Brand               string                  `json:"brand"`
	CategoryID          int                     `json:"category_id"`
	ProductKind         string                  `json:"productKind"`
	Gallery             []models.GalleryImage   `json:"gallery"`
	Prices              []PriceView             `json:"prices"`
	Attributes          []AttributeSetView      `json:"attributes"`
	FormattedAttributes []ProjectedAttributeSet `json:"formattedAttributes"`
}

// PriceView is a price with its currency nested.
type PriceView struct {
	ID         int             `json:"id"`
	ProductID  string          `json:"product_id"`
	CurrencyID int             `json:"currency_id"`
	Amount     float64         `json:"amount"`
	Currency   models.Currency `json:"currency"`
}

// AttributeSetView is a raw attribute set with its items.
type AttributeSetView struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Items []ProjectedItem `json:"items"`
}

// Categories returns every category.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.reader.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Currencies returns every currency.
func (s *CatalogService) Currencies(ctx context.Context) ([]models.Currency, error) {
	curs, err := s.reader.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return curs, nil
}

// Products returns all products when categoryID is nil, otherwise only that
// category's. Callers normalize the "all" category to nil.
func (s *CatalogService) Products(ctx context.Context, categoryID *int) ([]ProductView, error) {
	products, err := s.registry.ListAll(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, s.toView(p))
	}
	return views, nil
}

func (s *CatalogService) toView(p *models.Product) ProductView {
	prices := make([]PriceView, 0, len(p.Prices))
	for _, pr := range p.Prices {
		amount, _ := pr.Amount.Float64()
		prices = append(prices, PriceView{
			ID:         pr.ID,
			ProductID:  pr.ProductID,
			CurrencyID: pr.CurrencyID,
			Amount:     amount,
			Currency:   models.Currency{ID: pr.CurrencyID, Label: pr.CurrencyLabel, Symbol: pr.CurrencySymbol},
		})
	}

	sets := make([]AttributeSetView, 0, len(p.AttributeSets))
	for _, set := range p.AttributeSets {
		items := make([]ProjectedItem, 0, len(set.Items))
		for _, it := range set.Items {
			items = append(items, ProjectedItem{ID: it.ID, Value: it.Value, DisplayValue: it.DisplayValue})
		}
		sets = append(sets, AttributeSetView{ID: set.ID, Name: set.Name, Type: set.Type, Items: items})
	}

	gallery := p.Gallery
	if gallery == nil {
		gallery = []models.GalleryImage{}
	}

	return ProductView{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		InStock:             p.InStock,
		Brand:               p.Brand,
		CategoryID:          p.CategoryID,
		ProductKind:         productKindLabel(p.Kind),
		Gallery:             gallery,
		Prices:              prices,
		Attributes:          sets,
		FormattedAttributes: s.projector.Project(p),
	}
}

// productKindLabel is the public name of a variant kind.
func productKindLabel(kind models.VariantKind) string {
	switch kind {
	case models.VariantClothing:
		return "clothes"
	case models.VariantTech:
		return "tech"
	default:
		return "product"
	}
}
