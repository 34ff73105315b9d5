package catalogservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/pricingservice"
)

// CatalogRepository define o contrato que o Serviço de Catálogo espera da
// camada de Persistência. Apenas leitura: os engines nunca mutam o snapshot,
// então múltiplas consultas podem executar em paralelo sem locking.
type CatalogRepository interface {
	GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListSubcategories(ctx context.Context, categoryID string) ([]domain.Subcategory, error)
	GetSubcategoryBySlug(ctx context.Context, categoryID, slug string) (domain.Subcategory, error)
	GetSubcategoryByID(ctx context.Context, id string) (domain.Subcategory, error)
	FindProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error)
	FindAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (domain.Product, error)
	GetVendorByID(ctx context.Context, id string) (domain.Vendor, error)
	FindProductsByVendor(ctx context.Context, vendorID string) ([]domain.Product, error)
}

// Service é a estrutura que implementa a consulta facetada e os acessores de
// catálogo expostos à camada de apresentação.
type Service struct {
	repo    CatalogRepository
	pricing *pricingservice.Service
	logger  logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Catálogo.
func NewService(repo CatalogRepository, pricing *pricingservice.Service, log logger.Logger) *Service {
	return &Service{repo: repo, pricing: pricing, logger: log}
}

// --- Implementação: QueryCatalog (consulta facetada) ---

// QueryCatalog executa a consulta facetada sobre uma categoria, na ordem:
// escopo -> texto -> filtros de atributo -> facets -> ordenação -> paginação
// -> projeção. Total e facets refletem o conjunto APÓS os filtros e ANTES da
// paginação.
func (s *Service) QueryCatalog(ctx domain.Context, q domain.CatalogQuery) (domain.FacetedSearchResult, error) {
	s.logger.Debug("Iniciando consulta facetada no serviço.", map[string]interface{}{
		"category": q.CategorySlug, "subcategory": q.SubcategorySlug,
		"search": q.SearchQuery, "sort": q.SortBy, "page": q.Page, "limit": q.Limit,
	})

	// 1. Validação da entrada ANTES de qualquer cômputo.
	if err := validatePagination(q.Page, q.Limit); err != nil {
		return domain.FacetedSearchResult{}, err
	}
	if err := validateSortBy(q.SortBy); err != nil {
		return domain.FacetedSearchResult{}, err
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para QueryCatalog", nil)
	}

	// 2. Escopo: categoria (obrigatória) e subcategoria (opcional).
	category, err := s.repo.GetCategoryBySlug(ctxGo, q.CategorySlug)
	if err != nil {
		return domain.FacetedSearchResult{}, err // NotFoundError ou DBError do repositório
	}

	products, err := s.repo.FindProductsByCategory(ctxGo, category.ID)
	if err != nil {
		s.logger.Error("Falha ao carregar produtos da categoria no repositório.", err)
		return domain.FacetedSearchResult{}, apperror.NewInternalError("Falha interna ao carregar o catálogo.", err)
	}

	subcategories, err := s.repo.ListSubcategories(ctxGo, category.ID)
	if err != nil {
		s.logger.Error("Falha ao carregar subcategorias no repositório.", err)
		return domain.FacetedSearchResult{}, apperror.NewInternalError("Falha interna ao carregar o catálogo.", err)
	}

	if q.SubcategorySlug != "" {
		subcategory, err := s.repo.GetSubcategoryBySlug(ctxGo, category.ID, q.SubcategorySlug)
		if err != nil {
			return domain.FacetedSearchResult{}, err
		}
		products = filterBySubcategory(products, subcategory.ID)
	}

	// 3. Filtros de atributo só fazem sentido sobre eixos que existem no
	// escopo; chave desconhecida é entrada inválida, rejeitada antes de filtrar.
	if err := validateFilterKeys(q.Filters, subcategories); err != nil {
		return domain.FacetedSearchResult{}, err
	}

	// 4. Filtro textual (modo busca, combinável com o escopo).
	if q.SearchQuery != "" {
		products = filterByText(products, q.SearchQuery)
	}

	// 5. Filtros de atributo: AND entre chaves, OR entre valores de uma chave,
	// exigindo variante em estoque. Produtos simples (sem variantes) caem
	// assim que qualquer filtro de atributo é aplicado.
	products = applyAttributeFilters(products, q.Filters)

	// 6. Facets sobre o conjunto PÓS-filtro, contando pares (produto, variante)
	// independentemente do estoque da variante.
	facets := buildFacets(products)

	// 7. Ordenação estável (empates mantêm a ordem original da coleção).
	sortProducts(products, q.SortBy)

	// 8. Paginação: página fora do alcance produz fatia vazia com Total correto.
	total := len(products)
	paged := paginate(products, q.Page, q.Limit)

	// 9. Projeção dos resumos (nome do vendedor + preço efetivo por linha).
	cards, err := s.projectCards(ctxGo, paged)
	if err != nil {
		return domain.FacetedSearchResult{}, err
	}

	s.logger.Info("Consulta facetada concluída.", map[string]interface{}{
		"category": q.CategorySlug, "total": total, "page_size": len(cards),
	})
	return domain.FacetedSearchResult{Facets: facets, Products: cards, Total: total}, nil
}

// --- Implementação: Search (busca textual global) ---

// Search executa a busca textual global (nome, descrição ou SKU de variante,
// case-insensitive) com facets e paginação, sem escopo de categoria.
func (s *Service) Search(ctx domain.Context, query string, page, limit int) (domain.FacetedSearchResult, error) {
	s.logger.Debug("Iniciando busca textual no serviço.", map[string]interface{}{
		"query": query, "page": page, "limit": limit,
	})

	if err := validatePagination(page, limit); err != nil {
		return domain.FacetedSearchResult{}, err
	}
	if strings.TrimSpace(query) == "" {
		return domain.FacetedSearchResult{}, apperror.NewValidationError("O termo de busca não pode ser vazio.")
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para Search", nil)
	}

	products, err := s.repo.FindAllProducts(ctxGo)
	if err != nil {
		s.logger.Error("Falha ao carregar produtos no repositório.", err)
		return domain.FacetedSearchResult{}, apperror.NewInternalError("Falha interna ao carregar o catálogo.", err)
	}

	filtered := filterByText(products, query)
	facets := buildFacets(filtered)

	total := len(filtered)
	paged := paginate(filtered, page, limit)

	cards, err := s.projectCards(ctxGo, paged)
	if err != nil {
		return domain.FacetedSearchResult{}, err
	}

	return domain.FacetedSearchResult{Facets: facets, Products: cards, Total: total}, nil
}

// --- Implementação: GetProductBySlug (página de detalhe) ---

// GetProductBySlug monta a projeção completa de um produto: card, descrição,
// atributos, matriz da subcategoria e variantes. A integridade do produto em
// relação à matriz é verificada aqui, na fronteira da leitura.
func (s *Service) GetProductBySlug(ctx domain.Context, slug string) (domain.ProductDetailDTO, error) {
	if strings.TrimSpace(slug) == "" {
		return domain.ProductDetailDTO{}, apperror.NewValidationError("O slug do produto é obrigatório.")
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para GetProductBySlug", nil)
	}

	product, err := s.repo.GetProductBySlug(ctxGo, slug)
	if err != nil {
		return domain.ProductDetailDTO{}, err // NotFoundError ou DBError
	}

	subcategory, err := s.repo.GetSubcategoryByID(ctxGo, product.SubcategoryID)
	if err != nil {
		// Produto existente apontando para subcategoria inexistente é defeito
		// do snapshot, não um 404 do usuário.
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.ProductDetailDTO{}, apperror.NewInconsistentDataError(
				fmt.Sprintf("produto '%s' referencia subcategoria inexistente (%s).", slug, product.SubcategoryID))
		}
		return domain.ProductDetailDTO{}, err
	}

	if err := product.ValidateAgainstMatrix(subcategory.VariantMatrix); err != nil {
		s.logger.Error("Snapshot de catálogo inconsistente detectado.", err)
		return domain.ProductDetailDTO{}, err
	}

	card, err := s.projectCard(ctxGo, product)
	if err != nil {
		return domain.ProductDetailDTO{}, err
	}

	return domain.ProductDetailDTO{
		ProductCardDTO: card,
		Description:    product.Description,
		Attributes:     product.Attributes,
		VariantMatrix:  subcategory.VariantMatrix,
		Variants:       product.Variants,
		BaseStock:      product.BaseStock,
		BaseSKU:        product.BaseSKU,
	}, nil
}

// --- Implementação: Acessores de navegação ---

// ListCategories retorna todas as categorias do catálogo.
func (s *Service) ListCategories(ctx domain.Context) ([]domain.Category, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}
	categories, err := s.repo.ListCategories(ctxGo)
	if err != nil {
		s.logger.Error("Falha ao listar categorias no repositório.", err)
		return nil, apperror.NewInternalError("Falha interna ao listar categorias.", err)
	}
	return categories, nil
}

// ListSubcategories retorna as subcategorias de uma categoria (por slug).
func (s *Service) ListSubcategories(ctx domain.Context, categorySlug string) ([]domain.Subcategory, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}
	category, err := s.repo.GetCategoryBySlug(ctxGo, categorySlug)
	if err != nil {
		return nil, err
	}
	subcategories, err := s.repo.ListSubcategories(ctxGo, category.ID)
	if err != nil {
		s.logger.Error("Falha ao listar subcategorias no repositório.", err)
		return nil, apperror.NewInternalError("Falha interna ao listar subcategorias.", err)
	}
	return subcategories, nil
}

// ListVendorProducts retorna a listagem paginada de produtos de um vendedor
// (painel do vendedor).
func (s *Service) ListVendorProducts(ctx domain.Context, vendorID string, page, limit int) (domain.VendorProductsPage, error) {
	if _, err := uuid.Parse(vendorID); err != nil {
		return domain.VendorProductsPage{}, apperror.NewValidationError("O ID do vendedor deve ser um UUID válido.")
	}
	if err := validatePagination(page, limit); err != nil {
		return domain.VendorProductsPage{}, err
	}

	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	products, err := s.repo.FindProductsByVendor(ctxGo, vendorID)
	if err != nil {
		s.logger.Error("Falha ao listar produtos do vendedor no repositório.", err)
		return domain.VendorProductsPage{}, apperror.NewInternalError("Falha interna ao listar produtos do vendedor.", err)
	}

	total := len(products)
	paged := paginate(products, page, limit)
	return domain.VendorProductsPage{Products: paged, Total: total}, nil
}

// --- Projeção de resumos ---

// projectCards mapeia os produtos paginados para os DTOs de resumo,
// resolvendo o nome do vendedor e o preço efetivo por linha.
func (s *Service) projectCards(ctx context.Context, products []domain.Product) ([]domain.ProductCardDTO, error) {
	cards := make([]domain.ProductCardDTO, 0, len(products))
	for _, p := range products {
		card, err := s.projectCard(ctx, p)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (s *Service) projectCard(ctx context.Context, p domain.Product) (domain.ProductCardDTO, error) {
	vendorName := "Unknown"
	if vendor, err := s.repo.GetVendorByID(ctx, p.VendorID); err == nil {
		vendorName = vendor.Name
	} else {
		s.logger.Warn("Vendedor não encontrado para o produto.", map[string]interface{}{
			"product": p.Slug, "vendor_id": p.VendorID,
		})
	}

	card := domain.ProductCardDTO{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		VendorName:   vendorName,
		MinPrice:     p.MinPrice,
		MaxPrice:     p.MaxPrice,
		DefaultImage: p.DefaultImage,
		InStock:      p.InStock,
		HasVariants:  p.HasVariants,
		FlashSale:    p.FlashSale,
	}

	// Preço efetivo sobre o MinPrice, apenas para exibição na listagem.
	// O preço de uma variante específica é resolvido sob demanda pelo chamador.
	price, active, err := s.pricing.EffectivePrice(p.MinPrice, p.FlashSale)
	if err != nil {
		return domain.ProductCardDTO{}, err // InconsistentDataError do snapshot
	}
	if active {
		card.EffectivePrice = &price
	}
	return card, nil
}

// --- Passos puros da consulta (sem I/O) ---

func validatePagination(page, limit int) error {
	if page < 1 {
		return apperror.NewValidationError("O número da página deve ser maior ou igual a 1.")
	}
	if limit <= 0 {
		return apperror.NewValidationError("O tamanho da página deve ser maior que zero.")
	}
	return nil
}

func validateSortBy(sortBy string) error {
	switch sortBy {
	case domain.SortPriceAsc, domain.SortPriceDesc, domain.SortNewest:
		return nil
	}
	return apperror.NewValidationError(fmt.Sprintf("Chave de ordenação desconhecida: '%s'.", sortBy))
}

// validateFilterKeys rejeita filtros que não referenciam nenhum eixo de
// nenhuma subcategoria do escopo.
func validateFilterKeys(filters map[string][]string, subcategories []domain.Subcategory) error {
	for key, values := range filters {
		if len(values) == 0 {
			continue
		}
		known := false
		for _, sub := range subcategories {
			if _, ok := sub.VariantMatrix.AxisByKey(key); ok {
				known = true
				break
			}
		}
		if !known {
			return apperror.NewValidationError(fmt.Sprintf("O filtro '%s' não corresponde a nenhum eixo de variante.", key))
		}
	}
	return nil
}

func filterBySubcategory(products []domain.Product, subcategoryID string) []domain.Product {
	out := products[:0:0]
	for _, p := range products {
		if p.SubcategoryID == subcategoryID {
			out = append(out, p)
		}
	}
	return out
}

func filterByText(products []domain.Product, query string) []domain.Product {
	lower := strings.ToLower(query)
	out := products[:0:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), lower) ||
			strings.Contains(strings.ToLower(p.Description), lower) {
			out = append(out, p)
			continue
		}
		for _, v := range p.Variants {
			if strings.Contains(strings.ToLower(v.SKU), lower) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func applyAttributeFilters(products []domain.Product, filters map[string][]string) []domain.Product {
	for key, values := range filters {
		if len(values) == 0 {
			continue
		}
		allowed := make(map[string]bool, len(values))
		for _, v := range values {
			allowed[v] = true
		}

		out := products[:0:0]
		for _, p := range products {
			for _, variant := range p.Variants {
				if variant.Stock > 0 && allowed[variant.Combo[key]] {
					out = append(out, p)
					break
				}
			}
		}
		products = out
	}
	return products
}

// buildFacets conta ocorrências de cada par (chave, valor) sobre TODAS as
// variantes dos produtos sobreviventes, independentemente do estoque da
// variante. Chaves e valores saem na ordem de primeira ocorrência, para que a
// resposta seja determinística dado o mesmo snapshot.
func buildFacets(products []domain.Product) []domain.Facet {
	counts := map[string]map[string]int{}
	var keyOrder []string
	valueOrder := map[string][]string{}

	for _, p := range products {
		for _, v := range p.Variants {
			for _, axis := range comboKeysInOrder(v.Combo) {
				value := v.Combo[axis]
				if counts[axis] == nil {
					counts[axis] = map[string]int{}
					keyOrder = append(keyOrder, axis)
				}
				if counts[axis][value] == 0 {
					valueOrder[axis] = append(valueOrder[axis], value)
				}
				counts[axis][value]++
			}
		}
	}

	facets := make([]domain.Facet, 0, len(keyOrder))
	for _, key := range keyOrder {
		facets = append(facets, domain.Facet{
			Key:    key,
			Values: valueOrder[key],
			Counts: counts[key],
		})
	}
	return facets
}

// comboKeysInOrder devolve as chaves do combo em ordem estável (alfabética);
// a iteração de map em Go é aleatória e tornaria a resposta não determinística.
func comboKeysInOrder(combo domain.VariantCombo) []string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortProducts(products []domain.Product, sortBy string) {
	switch sortBy {
	case domain.SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].MinPrice < products[j].MinPrice
		})
	case domain.SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].MinPrice > products[j].MinPrice
		})
	case domain.SortNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}

func paginate(products []domain.Product, page, limit int) []domain.Product {
	start := (page - 1) * limit
	if start >= len(products) {
		return []domain.Product{}
	}
	end := start + limit
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}
