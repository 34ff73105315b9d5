package router

import (
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"gocatalog/internal/api/catalog"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/middleware"
)

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(catalogHandler *catalog.Handler, cacheClient cache.Client, rateLimit int, ratePeriod time.Duration) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	// --- 1. Rotas de Health Check ---
	mux.HandleFunc("/ping", PingHandler)

	// --- 2. Rotas do Catálogo (v1) ---

	// GET /v1/categories (listar categorias)
	mux.HandleFunc("/v1/categories", catalogHandler.ListCategoriesHandler)

	// GET /v1/catalog/{categorySlug}/products (consulta facetada)
	// GET /v1/catalog/{categorySlug}/subcategories
	mux.HandleFunc("/v1/catalog/", catalogHandler.CatalogHandler)

	// GET /v1/search (busca textual global)
	mux.HandleFunc("/v1/search", catalogHandler.SearchHandler)

	// GET  /v1/products/{slug} (detalhe)
	// POST /v1/products/{slug}/resolve (resolvedor de variantes)
	// GET  /v1/products/{slug}/price (preço efetivo)
	mux.HandleFunc("/v1/products/", catalogHandler.ProductHandler)

	// GET /v1/vendors/{id}/products (painel do vendedor)
	mux.HandleFunc("/v1/vendors/", catalogHandler.VendorProductsHandler)

	// --- 3. Documentação da API ---
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// --- 4. Middlewares Globais ---
	// O catálogo é público e read-heavy; o rate limiter protege o DB.
	return middleware.RateLimiter(cacheClient, rateLimit, ratePeriod)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
