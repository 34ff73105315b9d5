package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// CatalogService define o contrato que o Handler espera da camada de Serviço.
// Usamos a assinatura com o tipo abstrato domain.Context para manter a pureza do domínio.
type CatalogService interface {
	QueryCatalog(ctx domain.Context, q domain.CatalogQuery) (domain.FacetedSearchResult, error)
	Search(ctx domain.Context, query string, page, limit int) (domain.FacetedSearchResult, error)
	GetProductBySlug(ctx domain.Context, slug string) (domain.ProductDetailDTO, error)
	ListCategories(ctx domain.Context) ([]domain.Category, error)
	ListSubcategories(ctx domain.Context, categorySlug string) ([]domain.Subcategory, error)
	ListVendorProducts(ctx domain.Context, vendorID string, page, limit int) (domain.VendorProductsPage, error)
}

// VariantService define o contrato do resolvedor de compatibilidade de variantes.
type VariantService interface {
	Resolve(matrix domain.VariantMatrix, variants []domain.Variant, selection map[string]string) (domain.Resolution, error)
}

// PricingService define o contrato do resolvedor de preço efetivo.
type PricingService interface {
	EffectivePrice(basePrice float64, sale *domain.FlashSale) (float64, bool, error)
}

// Handler agrupa todos os métodos de Handler do catálogo.
type Handler struct {
	Service  CatalogService
	Variants VariantService
	Pricing  PricingService
	Logger   logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando os Services e o Logger.
func NewHandler(svc CatalogService, variants VariantService, pricing PricingService, log logger.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Variants: variants,
		Pricing:  pricing,
		Logger:   log,
	}
}

// --- Funções Auxiliares ---

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		// Sucesso
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
				http.Error(w, "Erro ao codificar resposta", http.StatusInternalServerError)
			}
		}
		return
	}

	// TRATAMENTO DE ERROS
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// Parâmetros de query reservados; qualquer outro parâmetro na rota de listagem
// é interpretado como filtro de atributo (chave de eixo -> valores permitidos).
var reservedParams = map[string]bool{
	"sub":   true,
	"q":     true,
	"sort":  true,
	"page":  true,
	"limit": true,
}

// parsePagination lê page/limit com os defaults da listagem (1, 12).
// A validação de faixa (page >= 1, limit > 0) é do serviço, não daqui.
func parsePagination(r *http.Request) (int, int, error) {
	page, limit := 1, 12
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperror.NewValidationError("O parâmetro 'page' deve ser um número inteiro.")
		}
		page = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperror.NewValidationError("O parâmetro 'limit' deve ser um número inteiro.")
		}
		limit = parsed
	}
	return page, limit, nil
}

// parseAttributeFilters monta o mapa de filtros a partir dos parâmetros não
// reservados. Valores repetidos e separados por vírgula são aceitos:
// ?color=Red&color=Blue e ?color=Red,Blue são equivalentes.
func parseAttributeFilters(r *http.Request) map[string][]string {
	filters := map[string][]string{}
	for key, values := range r.URL.Query() {
		if reservedParams[key] {
			continue
		}
		for _, raw := range values {
			for _, value := range strings.Split(raw, ",") {
				if value != "" {
					filters[key] = append(filters[key], value)
				}
			}
		}
	}
	return filters
}

// --- Handlers do Catálogo ---

// ListCategoriesHandler lida com a requisição GET /v1/categories.
func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.Service.ListCategories(r.Context())
	h.handleServiceResponse(w, r, categories, err, http.StatusOK)
}

// CatalogHandler lida com as rotas GET /v1/catalog/{categorySlug}/products e
// GET /v1/catalog/{categorySlug}/subcategories.
func (h *Handler) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	// Extrair segmentos: ["v1", "catalog", "{categorySlug}", "products"|"subcategories"]
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) != 4 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou slug de categoria ausente."), http.StatusOK)
		return
	}
	categorySlug := segments[2]

	switch segments[3] {
	case "subcategories":
		subcategories, err := h.Service.ListSubcategories(r.Context(), categorySlug)
		h.handleServiceResponse(w, r, subcategories, err, http.StatusOK)

	case "products":
		page, limit, err := parsePagination(r)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}

		sortBy := r.URL.Query().Get("sort")
		if sortBy == "" {
			sortBy = domain.SortNewest
		}

		query := domain.CatalogQuery{
			CategorySlug:    categorySlug,
			SubcategorySlug: r.URL.Query().Get("sub"),
			Filters:         parseAttributeFilters(r),
			SearchQuery:     r.URL.Query().Get("q"),
			SortBy:          sortBy,
			Page:            page,
			Limit:           limit,
		}

		result, err := h.Service.QueryCatalog(r.Context(), query)
		h.handleServiceResponse(w, r, result, err, http.StatusOK)

	default:
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Recurso de catálogo desconhecido."), http.StatusOK)
	}
}

// SearchHandler lida com a requisição GET /v1/search.
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	result, err := h.Service.Search(r.Context(), r.URL.Query().Get("q"), page, limit)
	h.handleServiceResponse(w, r, result, err, http.StatusOK)
}

// ProductHandler lida com as rotas sob /v1/products/{slug}:
//   - GET  /v1/products/{slug}          (detalhe do produto)
//   - POST /v1/products/{slug}/resolve  (resolvedor de variantes)
//   - GET  /v1/products/{slug}/price    (preço efetivo)
func (h *Handler) ProductHandler(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou slug de produto ausente."), http.StatusOK)
		return
	}
	slug := segments[2]

	switch {
	case len(segments) == 3 && r.Method == http.MethodGet:
		product, err := h.Service.GetProductBySlug(r.Context(), slug)
		h.handleServiceResponse(w, r, product, err, http.StatusOK)

	case len(segments) == 4 && segments[3] == "resolve" && r.Method == http.MethodPost:
		h.resolveVariant(w, r, slug)

	case len(segments) == 4 && segments[3] == "price" && r.Method == http.MethodGet:
		h.effectivePrice(w, r, slug)

	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// resolveVariant aplica o resolvedor de compatibilidade à seleção parcial enviada.
func (h *Handler) resolveVariant(w http.ResponseWriter, r *http.Request, slug string) {
	var payload struct {
		Selection map[string]string `json:"selection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
		return
	}

	product, err := h.Service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	resolution, err := h.Variants.Resolve(product.VariantMatrix, product.Variants, payload.Selection)
	h.handleServiceResponse(w, r, resolution, err, http.StatusOK)
}

// effectivePrice resolve o preço atualmente efetivo de um produto.
// Com ?sku=, o preço base é o da variante indicada; sem, o MinPrice do produto
// (apenas para exibição — nunca para checkout).
func (h *Handler) effectivePrice(w http.ResponseWriter, r *http.Request, slug string) {
	product, err := h.Service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	basePrice := product.MinPrice
	if sku := r.URL.Query().Get("sku"); sku != "" {
		found := false
		for _, v := range product.Variants {
			if v.SKU == sku {
				basePrice = v.Price
				found = true
				break
			}
		}
		if !found {
			h.handleServiceResponse(w, r, nil, apperror.NewNotFoundError(fmt.Sprintf("Variante com SKU '%s' não existe no produto '%s'.", sku, slug)), http.StatusOK)
			return
		}
	}

	price, active, err := h.Pricing.EffectivePrice(basePrice, product.FlashSale)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	response := struct {
		BasePrice      float64  `json:"base_price"`
		EffectivePrice *float64 `json:"effective_price"`
	}{BasePrice: basePrice}
	if active {
		response.EffectivePrice = &price
	}

	h.handleServiceResponse(w, r, response, nil, http.StatusOK)
}

// VendorProductsHandler lida com a requisição GET /v1/vendors/{id}/products.
func (h *Handler) VendorProductsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	// Extrair segmentos: ["v1", "vendors", "{id}", "products"]
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) != 4 || segments[3] != "products" || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID de vendedor ausente."), http.StatusOK)
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	result, err := h.Service.ListVendorProducts(r.Context(), segments[2], page, limit)
	h.handleServiceResponse(w, r, result, err, http.StatusOK)
}
