package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandishop/storefront_api/internal/models"
)

func newStorefrontCatalogService(catalog *fakeCatalog) *CatalogService {
	return NewCatalogService(catalog, newStorefrontRegistry(catalog), NewDefaultAttributeProjector())
}

func TestAttributeProjector_ClothingRenamesSize(t *testing.T) {
	projector := NewDefaultAttributeProjector()
	product := &models.Product{
		Kind: models.VariantClothing,
		AttributeSets: []models.AttributeSet{
			{ID: 1, Name: "SIZE", Items: []models.AttributeItem{{ID: 10, Value: "S", DisplayValue: "Small"}}},
			{ID: 2, Name: "Color", Items: []models.AttributeItem{}},
		},
	}

	out := projector.Project(product)
	require.Len(t, out, 2)
	assert.Equal(t, "sizes", out[0].Name)
	assert.Equal(t, "Small", out[0].Items[0].DisplayValue)
	assert.Equal(t, "Color", out[1].Name)
	assert.NotNil(t, out[1].Items, "empty sets are kept with an empty list")
	assert.Empty(t, out[1].Items)
}

func TestAttributeProjector_TechKeepsNames(t *testing.T) {
	projector := NewDefaultAttributeProjector()
	out := projector.Project(&models.Product{
		Kind:          models.VariantTech,
		AttributeSets: []models.AttributeSet{{Name: "Size", Items: []models.AttributeItem{}}},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Size", out[0].Name)
}

func TestAttributeProjector_CollisionLaterWinsInPlace(t *testing.T) {
	projector := NewDefaultAttributeProjector()
	out := projector.Project(&models.Product{
		Kind: models.VariantClothing,
		AttributeSets: []models.AttributeSet{
			{ID: 1, Name: "size", Items: []models.AttributeItem{{ID: 1, Value: "S"}}},
			{ID: 2, Name: "Color", Items: []models.AttributeItem{{ID: 5, Value: "red"}}},
			{ID: 3, Name: "sizes", Items: []models.AttributeItem{{ID: 9, Value: "XL"}}},
		},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "sizes", out[0].Name)
	require.Len(t, out[0].Items, 1)
	assert.Equal(t, "XL", out[0].Items[0].Value)
	assert.Equal(t, "Color", out[1].Name)
}

func TestAttributeProjector_Nil(t *testing.T) {
	assert.Empty(t, NewDefaultAttributeProjector().Project(nil))
}

func TestCatalogService_ProductsShapesViews(t *testing.T) {
	svc := newStorefrontCatalogService(storefrontCatalog())

	products, err := svc.Products(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, products, 3)

	tee := products[0]
	assert.Equal(t, "clothes", tee.ProductKind)
	assert.Equal(t, 20.0, tee.Prices[0].Amount)
	assert.Equal(t, "$", tee.Prices[0].Currency.Symbol)
	require.Len(t, tee.Attributes, 2)
	assert.Equal(t, "Size", tee.Attributes[0].Name)
	assert.Equal(t, "sizes", tee.FormattedAttributes[0].Name)

	ps5 := products[1]
	assert.Equal(t, "tech", ps5.ProductKind)
	assert.Equal(t, "Capacity", ps5.FormattedAttributes[0].Name)

	jacket := products[2]
	assert.NotNil(t, jacket.Gallery)
	assert.NotNil(t, jacket.Prices)
	assert.Empty(t, jacket.FormattedAttributes)
}

func TestCatalogService_AllIsUnionOfCategories(t *testing.T) {
	svc := newStorefrontCatalogService(storefrontCatalog())
	ctx := context.Background()

	all, err := svc.Products(ctx, nil)
	require.NoError(t, err)

	var union []string
	for _, cat := range []int{2, 3} {
		cat := cat
		part, err := svc.Products(ctx, &cat)
		require.NoError(t, err)
		for _, p := range part {
			assert.Equal(t, cat, p.CategoryID)
			union = append(union, p.ID)
		}
	}

	var ids []string
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	sort.Strings(union)
	assert.Equal(t, ids, union)
}

func TestCatalogService_GenericKindLabel(t *testing.T) {
	catalog := storefrontCatalog()
	catalog.products = []models.ProductRow{{ID: "gift", CategoryID: 5}}
	reg := newStorefrontRegistry(catalog)
	reg.Register(5, models.VariantGeneric)
	svc := NewCatalogService(catalog, reg, NewDefaultAttributeProjector())

	products, err := svc.Products(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "product", products[0].ProductKind)
}

func TestCatalogService_CategoriesAndCurrencies(t *testing.T) {
	svc := newStorefrontCatalogService(storefrontCatalog())

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 3)

	curs, err := svc.Currencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", curs[0].Label)
}

func TestCatalogService_StorageError(t *testing.T) {
	catalog := storefrontCatalog()
	catalog.err = errors.New("connection refused")
	svc := newStorefrontCatalogService(catalog)

	_, err := svc.Categories(context.Background())
	assert.ErrorContains(t, err, "list categories")

	_, err = svc.Products(context.Background(), nil)
	assert.ErrorContains(t, err, "connection refused")
}
