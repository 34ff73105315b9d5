package catalogrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/logger"
)

// CatalogRepository implementa a interface catalogservice.CatalogRepository.
// É estritamente read-only: a escrita do catálogo pertence ao tooling de
// admin/vendedor, fora deste serviço. Cada consulta lê um snapshot publicado
// atomicamente (linhas completas), então os engines nunca observam um produto
// meio escrito.
type CatalogRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	Logger    logger.Logger
}

// NewCatalogRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewCatalogRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *CatalogRepository {
	return &CatalogRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		Logger:    log,
	}
}

// Chaves de cache (estratégia Cache-Aside nas leituras quentes).
const (
	productSlugCacheKey = "catalog:product:%s"
	categoriesCacheKey  = "catalog:categories"
)

// --- Categorias ---

// GetCategoryBySlug busca uma categoria pelo slug.
func (r *CatalogRepository) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
		SELECT id, name, slug, image, created_at, updated_at
		FROM categories
		WHERE slug = $1`

	var c domain.Category
	err := r.DB.QueryRowContext(ctxGo, query, slug).Scan(
		&c.ID, &c.Name, &c.Slug, &c.Image, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Category{}, apperror.NewNotFoundError(fmt.Sprintf("Categoria com slug '%s' não existe.", slug))
	}
	if err != nil {
		return domain.Category{}, apperror.NewDBError("Falha ao buscar categoria", err)
	}
	return c, nil
}

// ListCategories lista todas as categorias, usando Cache-Aside:
// a lista muda raramente e é lida em toda navegação.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	// 1. Tentar o cache primeiro.
	if cached, err := r.Cache.Get(ctxGo, categoriesCacheKey); err == nil {
		var categories []domain.Category
		if json.Unmarshal([]byte(cached), &categories) == nil {
			return categories, nil
		}
	} else if err != cache.ErrCacheMiss {
		r.Logger.Warn("Falha ao ler categorias do cache; seguindo para o DB.", map[string]interface{}{"error": err.Error()})
	}

	// 2. Buscar no banco.
	const query = `
		SELECT id, name, slug, image, created_at, updated_at
		FROM categories
		ORDER BY name`

	rows, err := r.DB.QueryContext(ctxGo, query)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao listar categorias", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Image, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperror.NewDBError("Falha ao mapear categoria", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar categorias", err)
	}

	// 3. Popular o cache para as próximas requisições.
	if data, err := json.Marshal(categories); err == nil {
		r.Cache.Set(ctxGo, categoriesCacheKey, data, r.CacheTTL)
	}

	return categories, nil
}

// --- Subcategorias ---

const subcategoryColumns = `id, category_id, name, slug, attribute_templates, variant_matrix, created_at, updated_at`

func scanSubcategory(row interface{ Scan(...interface{}) error }) (domain.Subcategory, error) {
	var s domain.Subcategory
	var templatesJSON, matrixJSON []byte
	err := row.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Slug, &templatesJSON, &matrixJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Subcategory{}, err
	}
	if len(templatesJSON) > 0 {
		if err := json.Unmarshal(templatesJSON, &s.AttributeTemplates); err != nil {
			return domain.Subcategory{}, apperror.NewInconsistentDataError(fmt.Sprintf("attribute_templates malformado na subcategoria '%s'.", s.Slug))
		}
	}
	if len(matrixJSON) > 0 {
		if err := json.Unmarshal(matrixJSON, &s.VariantMatrix); err != nil {
			return domain.Subcategory{}, apperror.NewInconsistentDataError(fmt.Sprintf("variant_matrix malformada na subcategoria '%s'.", s.Slug))
		}
	}
	return s, nil
}

// ListSubcategories lista as subcategorias de uma categoria.
func (r *CatalogRepository) ListSubcategories(ctx context.Context, categoryID string) ([]domain.Subcategory, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM subcategories WHERE category_id = $1 ORDER BY name`, subcategoryColumns)

	rows, err := r.DB.QueryContext(ctxGo, query, categoryID)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao listar subcategorias", err)
	}
	defer rows.Close()

	var subcategories []domain.Subcategory
	for rows.Next() {
		s, err := scanSubcategory(rows)
		if err != nil {
			return nil, wrapScanError("subcategoria", err)
		}
		subcategories = append(subcategories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar subcategorias", err)
	}
	return subcategories, nil
}

// GetSubcategoryBySlug busca uma subcategoria pelo slug dentro de uma categoria.
func (r *CatalogRepository) GetSubcategoryBySlug(ctx context.Context, categoryID, slug string) (domain.Subcategory, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM subcategories WHERE category_id = $1 AND slug = $2`, subcategoryColumns)

	s, err := scanSubcategory(r.DB.QueryRowContext(ctxGo, query, categoryID, slug))
	if err == sql.ErrNoRows {
		return domain.Subcategory{}, apperror.NewNotFoundError(fmt.Sprintf("Subcategoria com slug '%s' não existe nesta categoria.", slug))
	}
	if err != nil {
		return domain.Subcategory{}, wrapScanError("subcategoria", err)
	}
	return s, nil
}

// GetSubcategoryByID busca uma subcategoria pelo ID.
func (r *CatalogRepository) GetSubcategoryByID(ctx context.Context, id string) (domain.Subcategory, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM subcategories WHERE id = $1`, subcategoryColumns)

	s, err := scanSubcategory(r.DB.QueryRowContext(ctxGo, query, id))
	if err == sql.ErrNoRows {
		return domain.Subcategory{}, apperror.NewNotFoundError(fmt.Sprintf("Subcategoria com ID %s não existe.", id))
	}
	if err != nil {
		return domain.Subcategory{}, wrapScanError("subcategoria", err)
	}
	return s, nil
}

// --- Produtos ---

const productColumns = `id, vendor_id, category_id, subcategory_id, name, slug, description,
	default_image, attributes, has_variants, base_price, base_stock, base_sku,
	flash_sale, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (domain.Product, error) {
	var p domain.Product
	var attributesJSON, flashSaleJSON []byte
	err := row.Scan(
		&p.ID, &p.VendorID, &p.CategoryID, &p.SubcategoryID, &p.Name, &p.Slug, &p.Description,
		&p.DefaultImage, &attributesJSON, &p.HasVariants, &p.BasePrice, &p.BaseStock, &p.BaseSKU,
		&flashSaleJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	if len(attributesJSON) > 0 {
		if err := json.Unmarshal(attributesJSON, &p.Attributes); err != nil {
			return domain.Product{}, apperror.NewInconsistentDataError(fmt.Sprintf("attributes malformado no produto '%s'.", p.Slug))
		}
	}
	if len(flashSaleJSON) > 0 {
		var sale domain.FlashSale
		if err := json.Unmarshal(flashSaleJSON, &sale); err != nil {
			return domain.Product{}, apperror.NewInconsistentDataError(fmt.Sprintf("flash_sale malformada no produto '%s'.", p.Slug))
		}
		p.FlashSale = &sale
	}
	return p, nil
}

// loadVariants carrega as variantes de um conjunto de produtos em uma única
// query e as anexa aos produtos. Os agregados (min/max/totalStock/inStock) são
// DERIVADOS aqui, nunca lidos de colunas: a fonte da verdade são as variantes.
func (r *CatalogRepository) loadVariants(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, 0, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids = append(ids, p.ID)
		index[p.ID] = i
	}

	const query = `
		SELECT product_id, combo, sku, price, stock, images
		FROM variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, sku`

	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, apperror.NewDBError("Falha ao carregar variantes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var comboJSON, imagesJSON []byte
		var v domain.Variant
		if err := rows.Scan(&productID, &comboJSON, &v.SKU, &v.Price, &v.Stock, &imagesJSON); err != nil {
			return nil, apperror.NewDBError("Falha ao mapear variante", err)
		}
		if err := json.Unmarshal(comboJSON, &v.Combo); err != nil {
			return nil, apperror.NewInconsistentDataError(fmt.Sprintf("combo malformado na variante '%s'.", v.SKU))
		}
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &v.Images); err != nil {
				return nil, apperror.NewInconsistentDataError(fmt.Sprintf("images malformado na variante '%s'.", v.SKU))
			}
		}
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar variantes", err)
	}

	for i := range products {
		products[i].DeriveAggregates()
	}
	return products, nil
}

// findProducts executa uma query de produtos e anexa variantes + agregados.
func (r *CatalogRepository) findProducts(ctx context.Context, where string, args ...interface{}) ([]domain.Product, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY created_at DESC, id`, productColumns, where)

	rows, err := r.DB.QueryContext(ctxGo, query, args...)
	if err != nil {
		return nil, apperror.NewDBError("Falha ao buscar produtos", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapScanError("produto", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("Falha ao iterar produtos", err)
	}

	return r.loadVariants(ctxGo, products)
}

// FindProductsByCategory carrega o snapshot de produtos de uma categoria.
func (r *CatalogRepository) FindProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return r.findProducts(ctx, "WHERE category_id = $1", categoryID)
}

// FindAllProducts carrega o snapshot completo de produtos (busca global).
func (r *CatalogRepository) FindAllProducts(ctx context.Context) ([]domain.Product, error) {
	return r.findProducts(ctx, "")
}

// FindProductsByVendor carrega os produtos de um vendedor (painel do vendedor).
func (r *CatalogRepository) FindProductsByVendor(ctx context.Context, vendorID string) ([]domain.Product, error) {
	return r.findProducts(ctx, "WHERE vendor_id = $1", vendorID)
}

// GetProductBySlug busca um produto pelo slug, utilizando a estratégia
// Cache-Aside (a página de detalhe é a leitura mais quente do catálogo).
func (r *CatalogRepository) GetProductBySlug(ctx context.Context, slug string) (domain.Product, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productSlugCacheKey, slug)

	// 1. Tentar o cache primeiro.
	if cached, err := r.Cache.Get(ctxGo, key); err == nil {
		var product domain.Product
		if json.Unmarshal([]byte(cached), &product) == nil {
			return product, nil
		}
	} else if err != cache.ErrCacheMiss {
		r.Logger.Warn("Falha ao ler produto do cache; seguindo para o DB.", map[string]interface{}{"error": err.Error()})
	}

	// 2. Buscar no banco.
	query := fmt.Sprintf(`SELECT %s FROM products WHERE slug = $1`, productColumns)

	p, err := scanProduct(r.DB.QueryRowContext(ctxGo, query, slug))
	if err == sql.ErrNoRows {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com slug '%s' não existe na base de dados.", slug))
	}
	if err != nil {
		return domain.Product{}, wrapScanError("produto", err)
	}

	loaded, err := r.loadVariants(ctxGo, []domain.Product{p})
	if err != nil {
		return domain.Product{}, err
	}
	p = loaded[0]

	// 3. Popular o cache para as próximas requisições.
	if data, marshalErr := json.Marshal(p); marshalErr == nil {
		r.Cache.Set(ctxGo, key, data, r.CacheTTL)
	}

	return p, nil
}

// --- Vendedores ---

// GetVendorByID busca um vendedor pelo ID.
func (r *CatalogRepository) GetVendorByID(ctx context.Context, id string) (domain.Vendor, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
		SELECT id, name, slug, email, verified, created_at, updated_at
		FROM vendors
		WHERE id = $1`

	var v domain.Vendor
	err := r.DB.QueryRowContext(ctxGo, query, id).Scan(
		&v.ID, &v.Name, &v.Slug, &v.Email, &v.Verified, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Vendor{}, apperror.NewNotFoundError(fmt.Sprintf("Vendedor com ID %s não existe.", id))
	}
	if err != nil {
		return domain.Vendor{}, apperror.NewDBError("Falha ao buscar vendedor", err)
	}
	return v, nil
}

// wrapScanError preserva erros já tipados (AppError) e encapsula o restante
// como falha de DB.
func wrapScanError(entity string, err error) error {
	if _, ok := err.(apperror.AppError); ok {
		return err
	}
	return apperror.NewDBError(fmt.Sprintf("Falha ao mapear %s", entity), err)
}
