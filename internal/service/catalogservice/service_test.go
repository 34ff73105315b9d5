package catalogservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/catalogservice"
	"gocatalog/internal/service/pricingservice"
)

// MockCatalogRepository é uma implementação mock da interface CatalogRepository.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *MockCatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *MockCatalogRepository) ListSubcategories(ctx context.Context, categoryID string) ([]domain.Subcategory, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).([]domain.Subcategory), args.Error(1)
}

func (m *MockCatalogRepository) GetSubcategoryBySlug(ctx context.Context, categoryID, slug string) (domain.Subcategory, error) {
	args := m.Called(ctx, categoryID, slug)
	return args.Get(0).(domain.Subcategory), args.Error(1)
}

func (m *MockCatalogRepository) GetSubcategoryByID(ctx context.Context, id string) (domain.Subcategory, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Subcategory), args.Error(1)
}

func (m *MockCatalogRepository) FindProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockCatalogRepository) FindAllProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetProductBySlug(ctx context.Context, slug string) (domain.Product, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetVendorByID(ctx context.Context, id string) (domain.Vendor, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Vendor), args.Error(1)
}

func (m *MockCatalogRepository) FindProductsByVendor(ctx context.Context, vendorID string) ([]domain.Product, error) {
	args := m.Called(ctx, vendorID)
	return args.Get(0).([]domain.Product), args.Error(1)
}

// --- Fixtures ---

var (
	testNow      = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testVendorID = uuid.New().String()
	testCatID    = uuid.New().String()
	testSubID    = uuid.New().String()
)

func testCategory() domain.Category {
	return domain.Category{ID: testCatID, Name: "Roupas", Slug: "clothing"}
}

func testSubcategory() domain.Subcategory {
	return domain.Subcategory{
		ID:         testSubID,
		CategoryID: testCatID,
		Name:       "Camisetas",
		Slug:       "t-shirts",
		VariantMatrix: domain.VariantMatrix{
			Axes: []domain.VariantAxis{
				{Key: "size", Label: "Tamanho", Values: []string{"S", "M", "L"}},
				{Key: "color", Label: "Cor", Values: []string{"Red", "Blue"}},
			},
		},
	}
}

func testVendor() domain.Vendor {
	return domain.Vendor{ID: testVendorID, Name: "Loja Aurora", Slug: "loja-aurora"}
}

// variantProduct monta um produto com variantes e agregados derivados.
func variantProduct(slug string, createdAt time.Time, variants ...domain.Variant) domain.Product {
	p := domain.Product{
		ID:            uuid.New().String(),
		VendorID:      testVendorID,
		CategoryID:    testCatID,
		SubcategoryID: testSubID,
		Name:          slug,
		Slug:          slug,
		HasVariants:   true,
		Variants:      variants,
		CreatedAt:     createdAt,
	}
	p.DeriveAggregates()
	return p
}

func v(size, color string, price float64, stock int) domain.Variant {
	return domain.Variant{
		Combo: domain.VariantCombo{"size": size, "color": color},
		SKU:   "TS-" + size + "-" + color,
		Price: price,
		Stock: stock,
	}
}

// newService monta o serviço com relógio congelado em testNow.
func newService(repo *MockCatalogRepository) *catalogservice.Service {
	log := logger.NewLogger("error")
	pricing := pricingservice.NewServiceWithClock(log, func() time.Time { return testNow })
	return catalogservice.NewService(repo, pricing, log)
}

func findFacet(facets []domain.Facet, key string) (domain.Facet, bool) {
	for _, f := range facets {
		if f.Key == key {
			return f, true
		}
	}
	return domain.Facet{}, false
}

// --- Testes: consulta facetada ---

// TestQueryCatalog_AttributeFilter_TotalAndFacets testa o cenário central de
// filtragem: num catálogo de 10 produtos, filtrar por color=[Red] retém apenas
// os 4 que possuem variante Red EM ESTOQUE, e os facets enumeram somente os
// valores observados entre os sobreviventes, contando pares (produto, variante).
func TestQueryCatalog_AttributeFilter_TotalAndFacets(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	simple := domain.Product{
		ID: uuid.New().String(), VendorID: testVendorID, CategoryID: testCatID,
		SubcategoryID: testSubID, Name: "caneca", Slug: "caneca",
		HasVariants: false, BasePrice: 9.90, BaseStock: 100, CreatedAt: base,
	}
	simple.DeriveAggregates()

	products := []domain.Product{
		variantProduct("a", base, v("S", "Red", 20, 5), v("M", "Blue", 22, 3)), // sobrevive
		variantProduct("b", base, v("M", "Red", 25, 2)),                        // sobrevive
		variantProduct("c", base, v("S", "Red", 18, 1), v("S", "Blue", 18, 0)), // sobrevive
		variantProduct("d", base, v("M", "Red", 30, 9)),                        // sobrevive
		variantProduct("e", base, v("S", "Red", 15, 0)),                        // Red sem estoque
		variantProduct("f", base, v("S", "Blue", 19, 4)),                       // sem Red
		variantProduct("g", base, v("M", "Blue", 21, 1)),                       // sem Red
		simple,                                                                 // produto simples: cai com qualquer filtro de atributo
		variantProduct("i", base, v("M", "Blue", 23, 0)),                       // sem Red
		variantProduct("j", base, v("S", "Blue", 17, 2), v("M", "Blue", 17, 1)),
	}

	mockRepo.On("GetCategoryBySlug", mock.Anything, "clothing").Return(testCategory(), nil)
	mockRepo.On("FindProductsByCategory", mock.Anything, testCatID).Return(products, nil)
	mockRepo.On("ListSubcategories", mock.Anything, testCatID).Return([]domain.Subcategory{testSubcategory()}, nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	result, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing",
		Filters:      map[string][]string{"color": {"Red"}},
		SortBy:       domain.SortNewest,
		Page:         1,
		Limit:        12,
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Len(t, result.Products, 4)

	// Facet de tamanho: apenas S e M aparecem entre os 4 sobreviventes (nunca L),
	// contando pares (produto, variante): S => a(1) + c(2) = 3; M => a+b+d = 3.
	sizeFacet, ok := findFacet(result.Facets, "size")
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"S", "M"}, sizeFacet.Values)
	assert.Equal(t, 3, sizeFacet.Counts["S"])
	assert.Equal(t, 3, sizeFacet.Counts["M"])

	// Facet de cor: contagens ignoram o estoque da variante (a variante Blue de
	// 'c' com estoque zero ainda conta).
	colorFacet, ok := findFacet(result.Facets, "color")
	assert.True(t, ok)
	assert.Equal(t, 4, colorFacet.Counts["Red"])
	assert.Equal(t, 2, colorFacet.Counts["Blue"])

	// Invariante de soma: para cada chave, a soma das contagens é o número de
	// pares (produto, variante) que carregam a chave — 6 pares nos 4 sobreviventes.
	for _, facet := range result.Facets {
		sum := 0
		for _, count := range facet.Counts {
			sum += count
		}
		assert.Equal(t, 6, sum, "facet %s", facet.Key)
	}

	mockRepo.AssertExpectations(t)
}

// TestQueryCatalog_PaginationInvariant testa que a concatenação de todas as
// páginas reproduz a lista ordenada completa exatamente uma vez, e que uma
// página fora do alcance produz fatia vazia com o Total correto.
func TestQueryCatalog_PaginationInvariant(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []domain.Product{
		variantProduct("p30", base, v("S", "Red", 30, 1)),
		variantProduct("p10", base, v("S", "Red", 10, 1)),
		variantProduct("p50", base, v("S", "Red", 50, 1)),
		variantProduct("p20", base, v("S", "Red", 20, 1)),
		variantProduct("p40", base, v("S", "Red", 40, 1)),
	}

	mockRepo.On("GetCategoryBySlug", mock.Anything, "clothing").Return(testCategory(), nil)
	mockRepo.On("FindProductsByCategory", mock.Anything, testCatID).Return(products, nil)
	mockRepo.On("ListSubcategories", mock.Anything, testCatID).Return([]domain.Subcategory{testSubcategory()}, nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	var slugs []string
	for page := 1; page <= 3; page++ {
		result, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
			CategorySlug: "clothing",
			SortBy:       domain.SortPriceAsc,
			Page:         page,
			Limit:        2,
		})
		assert.NoError(t, err)
		assert.Equal(t, 5, result.Total)
		for _, card := range result.Products {
			slugs = append(slugs, card.Slug)
		}
	}
	assert.Equal(t, []string{"p10", "p20", "p30", "p40", "p50"}, slugs)

	// Página fora do alcance: fatia vazia, Total correto, sem erro.
	result, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing",
		SortBy:       domain.SortPriceAsc,
		Page:         4,
		Limit:        2,
	})
	assert.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Empty(t, result.Products)
}

// TestQueryCatalog_TextFilterWithinCategory testa o filtro textual combinado
// com o escopo de categoria (nome, descrição ou SKU de variante).
func TestQueryCatalog_TextFilterWithinCategory(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	byName := variantProduct("galaxy-tee", base, v("S", "Red", 20, 1))
	byName.Name = "Camiseta Galaxy"
	byDescription := variantProduct("tee-2", base, v("M", "Red", 22, 1))
	byDescription.Description = "Estampa de galáxia (galaxy print)."
	bySKU := variantProduct("tee-3", base, domain.Variant{
		Combo: domain.VariantCombo{"size": "L", "color": "Blue"}, SKU: "GALAXY-L-BLUE", Price: 24, Stock: 2,
	})
	unrelated := variantProduct("tee-4", base, v("S", "Blue", 18, 3))

	mockRepo.On("GetCategoryBySlug", mock.Anything, "clothing").Return(testCategory(), nil)
	mockRepo.On("FindProductsByCategory", mock.Anything, testCatID).
		Return([]domain.Product{byName, byDescription, bySKU, unrelated}, nil)
	mockRepo.On("ListSubcategories", mock.Anything, testCatID).Return([]domain.Subcategory{testSubcategory()}, nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	result, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing",
		SearchQuery:  "Galaxy",
		SortBy:       domain.SortNewest,
		Page:         1,
		Limit:        12,
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

// TestQueryCatalog_FlashSaleEffectivePrice testa a projeção do preço efetivo
// por linha: MinPrice 100 com percentage 20% ativo => 80.
func TestQueryCatalog_FlashSaleEffectivePrice(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	onSale := variantProduct("on-sale", base, v("S", "Red", 100, 5))
	onSale.FlashSale = &domain.FlashSale{
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 20,
		StartDate:     testNow.Add(-time.Hour),
		EndDate:       testNow.Add(time.Hour),
	}

	mockRepo.On("GetCategoryBySlug", mock.Anything, "clothing").Return(testCategory(), nil)
	mockRepo.On("FindProductsByCategory", mock.Anything, testCatID).Return([]domain.Product{onSale}, nil)
	mockRepo.On("ListSubcategories", mock.Anything, testCatID).Return([]domain.Subcategory{testSubcategory()}, nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	result, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing",
		SortBy:       domain.SortNewest,
		Page:         1,
		Limit:        12,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Products, 1)
	card := result.Products[0]
	assert.Equal(t, "Loja Aurora", card.VendorName)
	assert.NotNil(t, card.EffectivePrice)
	assert.InDelta(t, 80.0, *card.EffectivePrice, 0.0001)
	assert.NotNil(t, card.FlashSale)
}

// TestQueryCatalog_InvalidPagination testa a rejeição antes de qualquer cômputo.
func TestQueryCatalog_InvalidPagination(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	_, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing", SortBy: domain.SortNewest, Page: 0, Limit: 12,
	})
	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)

	_, err = svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing", SortBy: domain.SortNewest, Page: 1, Limit: 0,
	})
	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)

	// O repositório não deve ser consultado com entrada inválida.
	mockRepo.AssertNotCalled(t, "GetCategoryBySlug", mock.Anything, mock.Anything)
}

// TestQueryCatalog_UnknownSortKey testa a rejeição de chave de ordenação desconhecida.
func TestQueryCatalog_UnknownSortKey(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	_, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing", SortBy: "rating-desc", Page: 1, Limit: 12,
	})

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestQueryCatalog_FilterWithoutAxis testa a rejeição de filtro que não
// referencia nenhum eixo das subcategorias do escopo.
func TestQueryCatalog_FilterWithoutAxis(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	mockRepo.On("GetCategoryBySlug", mock.Anything, "clothing").Return(testCategory(), nil)
	mockRepo.On("FindProductsByCategory", mock.Anything, testCatID).Return([]domain.Product{}, nil)
	mockRepo.On("ListSubcategories", mock.Anything, testCatID).Return([]domain.Subcategory{testSubcategory()}, nil)

	_, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "clothing",
		Filters:      map[string][]string{"material": {"Algodão"}},
		SortBy:       domain.SortNewest,
		Page:         1,
		Limit:        12,
	})

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestQueryCatalog_CategoryNotFound testa a propagação do NotFoundError do repositório.
func TestQueryCatalog_CategoryNotFound(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	mockRepo.On("GetCategoryBySlug", mock.Anything, "missing").
		Return(domain.Category{}, apperror.NewNotFoundError("Categoria com slug 'missing' não existe."))

	_, err := svc.QueryCatalog(context.Background(), domain.CatalogQuery{
		CategorySlug: "missing", SortBy: domain.SortNewest, Page: 1, Limit: 12,
	})

	assert.Error(t, err)
	assert.IsType(t, &apperror.NotFoundError{}, err)
}

// --- Testes: busca textual global ---

// TestSearch_MatchesNameDescriptionAndSKU testa a busca global case-insensitive.
func TestSearch_MatchesNameDescriptionAndSKU(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	byName := variantProduct("galaxy-phone", base, v("S", "Red", 999, 3))
	byName.Name = "Galaxy Phone"
	bySKU := variantProduct("case-x", base, domain.Variant{
		Combo: domain.VariantCombo{"size": "M", "color": "Blue"}, SKU: "galaxy-case-128", Price: 49, Stock: 7,
	})
	unrelated := variantProduct("plain-tee", base, v("M", "Blue", 20, 1))

	mockRepo.On("FindAllProducts", mock.Anything).Return([]domain.Product{byName, bySKU, unrelated}, nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	result, err := svc.Search(context.Background(), "GALAXY", 1, 12)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Products, 2)
}

// TestSearch_EmptyQuery testa a rejeição de termo de busca vazio.
func TestSearch_EmptyQuery(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	_, err := svc.Search(context.Background(), "   ", 1, 12)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
}

// --- Testes: detalhe do produto ---

// TestGetProductBySlug_Detail testa a projeção completa (vendedor + matriz + variantes).
func TestGetProductBySlug_Detail(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	product := variantProduct("camiseta-basica", base, v("S", "Red", 20, 5), v("M", "Blue", 22, 3))

	mockRepo.On("GetProductBySlug", mock.Anything, "camiseta-basica").Return(product, nil)
	mockRepo.On("GetSubcategoryByID", mock.Anything, testSubID).Return(testSubcategory(), nil)
	mockRepo.On("GetVendorByID", mock.Anything, testVendorID).Return(testVendor(), nil)

	detail, err := svc.GetProductBySlug(context.Background(), "camiseta-basica")

	assert.NoError(t, err)
	assert.Equal(t, "Loja Aurora", detail.VendorName)
	assert.Len(t, detail.VariantMatrix.Axes, 2)
	assert.Len(t, detail.Variants, 2)
	assert.True(t, detail.InStock)
	assert.Nil(t, detail.EffectivePrice)
	mockRepo.AssertExpectations(t)
}

// TestGetProductBySlug_InconsistentSnapshot testa a detecção de variante com
// combo incompleto em relação à matriz da subcategoria.
func TestGetProductBySlug_InconsistentSnapshot(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	broken := variantProduct("quebrado", base, domain.Variant{
		Combo: domain.VariantCombo{"size": "S"}, SKU: "BROKEN", Price: 10, Stock: 1,
	})

	mockRepo.On("GetProductBySlug", mock.Anything, "quebrado").Return(broken, nil)
	mockRepo.On("GetSubcategoryByID", mock.Anything, testSubID).Return(testSubcategory(), nil)

	_, err := svc.GetProductBySlug(context.Background(), "quebrado")

	assert.Error(t, err)
	assert.IsType(t, &apperror.InconsistentDataError{}, err)
}

// --- Testes: painel do vendedor ---

// TestListVendorProducts_InvalidID testa a validação de formato do ID.
func TestListVendorProducts_InvalidID(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	_, err := svc.ListVendorProducts(context.Background(), "não-é-uuid", 1, 10)

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "FindProductsByVendor", mock.Anything, mock.Anything)
}

// TestListVendorProducts_Pagination testa a listagem paginada do painel.
func TestListVendorProducts_Pagination(t *testing.T) {
	mockRepo := new(MockCatalogRepository)
	svc := newService(mockRepo)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []domain.Product{
		variantProduct("v1", base, v("S", "Red", 10, 1)),
		variantProduct("v2", base, v("M", "Red", 20, 1)),
		variantProduct("v3", base, v("L", "Red", 30, 1)),
	}

	mockRepo.On("FindProductsByVendor", mock.Anything, testVendorID).Return(products, nil)

	page, err := svc.ListVendorProducts(context.Background(), testVendorID, 2, 2)

	assert.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Products, 1)
	assert.Equal(t, "v3", page.Products[0].Slug)
}
