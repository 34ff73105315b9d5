package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"gocatalog/config"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"

	// Camadas do Catálogo para Injeção de Dependências
	"gocatalog/internal/api/catalog" // Handlers
	"gocatalog/internal/api/router"  // Roteador central
	"gocatalog/internal/repository/catalogrepo"
	"gocatalog/internal/service/catalogservice"
	"gocatalog/internal/service/pricingservice"
	"gocatalog/internal/service/variantservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço GoCatalog...")

	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	if err := godotenv.Load(); err != nil {
		// Se o arquivo .env não for encontrado, avisamos, mas continuamos,
		// pois as variáveis essenciais podem estar no ambiente do sistema (ex: Docker).
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)
	appLog.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	appLog.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	appLog.Info("Conexão Redis estabelecida.", nil)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Services -> Handler

	// A. Repositório (Camada de Acesso a Dados)
	catalogRepo := catalogrepo.NewCatalogRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, appLog)
	appLog.Debug("Repositório de Catálogo inicializado.", nil)

	// B. Serviços (Camada de Lógica de Negócio)
	// Os três engines são funções puras sobre o snapshot; o serviço de catálogo
	// compõe o resolvedor de preços por linha de resultado.
	pricingSvc := pricingservice.NewService(appLog)
	variantSvc := variantservice.NewService(appLog)
	catalogSvc := catalogservice.NewService(catalogRepo, pricingSvc, appLog)
	appLog.Debug("Serviços de Catálogo inicializados.", nil)

	// C. Handler (Camada de Apresentação)
	catalogHandler := catalog.NewHandler(catalogSvc, variantSvc, pricingSvc, appLog)
	appLog.Debug("Handler de Catálogo inicializado.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	r := router.NewRouter(catalogHandler, cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Início do Servidor com Graceful Shutdown
	go func() {
		appLog.Info("Servidor HTTP iniciado.", map[string]interface{}{"port": cfg.Port, "env": cfg.Environment})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Falha ao iniciar o servidor HTTP.", err)
		}
	}()

	// Aguardar sinal de interrupção (SIGINT/SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Sinal de término recebido. Encerrando servidor...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Falha no encerramento gracioso do servidor.", err)
	}

	appLog.Info("Servidor encerrado.", nil)
}
