package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/scandishop/storefront_api/internal/models"
)

// CatalogReader is the storage collaborator used by catalog resolution.
// Per-product methods return rows in ascending id order.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	ListProductRows(ctx context.Context, categoryID *int) ([]models.ProductRow, error)
	ListAttributeSets(ctx context.Context, productID string) ([]models.AttributeSetRow, error)
	ListAttributeItems(ctx context.Context, productID string) ([]models.AttributeItemRow, error)
	ListGallery(ctx context.Context, productID string) ([]models.GalleryImage, error)
	ListPrices(ctx context.Context, productID string) ([]models.Price, error)
}

// Preloader is implemented by readers that can batch the per-product queries
// of a listing into a handful of set-based queries. The returned reader is
// request-scoped.
type Preloader interface {
	Preload(ctx context.Context, productIDs []string) (CatalogReader, error)
}

// CatalogRepository handles data access for the catalog tables.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const (
	attributeSetColumns = `
        SELECT pas.product_id, aset.id AS set_id, aset.name AS set_name, aset.type AS set_type
        FROM product_attribute_sets pas
        JOIN attribute_sets aset ON pas.attribute_set_id = aset.id`
	attributeSetGroup = `
        GROUP BY pas.product_id, aset.id, aset.name, aset.type
        ORDER BY aset.id`

	// No DISTINCT: duplicates are collapsed by the resolver, first row wins.
	attributeItemColumns = `
        SELECT pa.product_id, a.attribute_set_id AS set_id, a.id AS item_id, a.value, a.display_value
        FROM product_attributes pa
        JOIN attributes a ON a.id = pa.attribute_id`

	galleryColumns = `SELECT id, product_id, image_url FROM product_gallery`

	priceColumns = `
        SELECT p.id, p.product_id, p.amount, p.currency_id,
               COALESCE(c.label, '') AS currency_label,
               COALESCE(c.symbol, '') AS currency_symbol
        FROM prices p
        LEFT JOIN currencies c ON c.id = p.currency_id`
)

// ListCategories returns all categories.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := r.db.SelectContext(ctx, &categories, `SELECT id, name FROM categories ORDER BY id`); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListCurrencies returns all currencies.
func (r *CatalogRepository) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	currencies := []models.Currency{}
	if err := r.db.SelectContext(ctx, &currencies, `SELECT id, label, symbol FROM currencies ORDER BY id`); err != nil {
		return nil, err
	}
	return currencies, nil
}

// ListProductRows returns product rows, filtered by category when categoryID
// is non-nil.
func (r *CatalogRepository) ListProductRows(ctx context.Context, categoryID *int) ([]models.ProductRow, error) {
	const q = `
        SELECT id, name, description, in_stock, category_id, brand
        FROM products
        WHERE ($1::int IS NULL OR category_id = $1)
        ORDER BY id`

	var filter sql.NullInt64
	if categoryID != nil {
		filter = sql.NullInt64{Int64: int64(*categoryID), Valid: true}
	}

	rows := []models.ProductRow{}
	if err := r.db.SelectContext(ctx, &rows, q, filter); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAttributeSets returns the distinct attribute sets linked to a product.
func (r *CatalogRepository) ListAttributeSets(ctx context.Context, productID string) ([]models.AttributeSetRow, error) {
	sets := []models.AttributeSetRow{}
	q := attributeSetColumns + ` WHERE pas.product_id = $1` + attributeSetGroup
	if err := r.db.SelectContext(ctx, &sets, q, productID); err != nil {
		return nil, err
	}
	return sets, nil
}

// ListAttributeItems returns the (set, item) pairs linked to a product ordered
// by item id. The same item may appear more than once.
func (r *CatalogRepository) ListAttributeItems(ctx context.Context, productID string) ([]models.AttributeItemRow, error) {
	items := []models.AttributeItemRow{}
	q := attributeItemColumns + ` WHERE pa.product_id = $1 ORDER BY a.id`
	if err := r.db.SelectContext(ctx, &items, q, productID); err != nil {
		return nil, err
	}
	return items, nil
}

// ListGallery returns a product's images.
func (r *CatalogRepository) ListGallery(ctx context.Context, productID string) ([]models.GalleryImage, error) {
	images := []models.GalleryImage{}
	if err := r.db.SelectContext(ctx, &images, galleryColumns+` WHERE product_id = $1 ORDER BY id`, productID); err != nil {
		return nil, err
	}
	return images, nil
}

// ListPrices returns a product's prices with their currency joined in.
func (r *CatalogRepository) ListPrices(ctx context.Context, productID string) ([]models.Price, error) {
	prices := []models.Price{}
	if err := r.db.SelectContext(ctx, &prices, priceColumns+` WHERE p.product_id = $1 ORDER BY p.id`, productID); err != nil {
		return nil, err
	}
	return prices, nil
}

// Preload loads attribute sets, attribute rows, gallery and prices for all
// productIDs with one query each, run concurrently.
func (r *CatalogRepository) Preload(ctx context.Context, productIDs []string) (CatalogReader, error) {
	p := &preloadedCatalog{
		CatalogRepository: r,
		loaded:            make(map[string]bool, len(productIDs)),
		sets:              make(map[string][]models.AttributeSetRow),
		items:             make(map[string][]models.AttributeItemRow),
		gallery:           make(map[string][]models.GalleryImage),
		prices:            make(map[string][]models.Price),
	}
	if len(productIDs) == 0 {
		return p, nil
	}
	ids := pq.Array(productIDs)

	var (
		sets    []models.AttributeSetRow
		items   []models.AttributeItemRow
		gallery []models.GalleryImage
		prices  []models.Price
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.SelectContext(gctx, &sets, attributeSetColumns+` WHERE pas.product_id = ANY($1)`+attributeSetGroup, ids)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &items, attributeItemColumns+` WHERE pa.product_id = ANY($1) ORDER BY a.id`, ids)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &gallery, galleryColumns+` WHERE product_id = ANY($1) ORDER BY id`, ids)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &prices, priceColumns+` WHERE p.product_id = ANY($1) ORDER BY p.id`, ids)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, id := range productIDs {
		p.loaded[id] = true
	}
	for _, s := range sets {
		p.sets[s.ProductID] = append(p.sets[s.ProductID], s)
	}
	for _, it := range items {
		p.items[it.ProductID] = append(p.items[it.ProductID], it)
	}
	for _, img := range gallery {
		p.gallery[img.ProductID] = append(p.gallery[img.ProductID], img)
	}
	for _, pr := range prices {
		p.prices[pr.ProductID] = append(p.prices[pr.ProductID], pr)
	}
	return p, nil
}

// preloadedCatalog answers per-product reads from memory for preloaded ids
// and falls through to the repository for anything else.
type preloadedCatalog struct {
	*CatalogRepository
	loaded  map[string]bool
	sets    map[string][]models.AttributeSetRow
	items   map[string][]models.AttributeItemRow
	gallery map[string][]models.GalleryImage
	prices  map[string][]models.Price
}

func (p *preloadedCatalog) ListAttributeSets(ctx context.Context, productID string) ([]models.AttributeSetRow, error) {
	if !p.loaded[productID] {
		return p.CatalogRepository.ListAttributeSets(ctx, productID)
	}
	return append([]models.AttributeSetRow{}, p.sets[productID]...), nil
}

func (p *preloadedCatalog) ListAttributeItems(ctx context.Context, productID string) ([]models.AttributeItemRow, error) {
	if !p.loaded[productID] {
		return p.CatalogRepository.ListAttributeItems(ctx, productID)
	}
	return append([]models.AttributeItemRow{}, p.items[productID]...), nil
}

func (p *preloadedCatalog) ListGallery(ctx context.Context, productID string) ([]models.GalleryImage, error) {
	if !p.loaded[productID] {
		return p.CatalogRepository.ListGallery(ctx, productID)
	}
	return append([]models.GalleryImage{}, p.gallery[productID]...), nil
}

func (p *preloadedCatalog) ListPrices(ctx context.Context, productID string) ([]models.Price, error) {
	if !p.loaded[productID] {
		return p.CatalogRepository.ListPrices(ctx, productID)
	}
	return append([]models.Price{}, p.prices[productID]...), nil
}
