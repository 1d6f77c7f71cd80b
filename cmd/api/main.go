package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scandishop/storefront_api/internal/cache"
	"github.com/scandishop/storefront_api/internal/config"
	"github.com/scandishop/storefront_api/internal/database"
	"github.com/scandishop/storefront_api/internal/graphql"
	"github.com/scandishop/storefront_api/internal/handler"
	"github.com/scandishop/storefront_api/internal/middleware"
	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/repository"
	"github.com/scandishop/storefront_api/internal/service"
	"github.com/scandishop/storefront_api/internal/sse"
	"github.com/scandishop/storefront_api/internal/worker"
)

// main is the application entrypoint for the storefront API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting storefront api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.Migrate(db.DB, cfg.DB.MigrationsPath); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 3c. Durable cart store
	cartStore := cache.NewCartStore(redisClient, cfg.Cart.KeyPrefix, cfg.Cart.TTL)

	// 4. Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// 5. Build the variant registry
	registry := service.NewProductVariantRegistry(catalogRepo, service.NewAttributeSetResolver(catalogRepo))
	for categoryID, kind := range cfg.Catalog.Variants {
		k := models.VariantKind(kind)
		if !k.Valid() {
			log.Fatal().Int("category_id", categoryID).Str("kind", kind).Msg("unknown product variant kind in CATALOG_VARIANTS")
		}
		registry.Register(categoryID, k)
		log.Info().Int("category_id", categoryID).Str("kind", kind).Msg("variant registered")
	}

	// 6. Initialize services
	catalogSvc := service.NewCatalogService(catalogRepo, registry, service.NewDefaultAttributeProjector())
	orderSvc := service.NewOrderService(orderRepo)

	schema, err := graphql.NewSchema(catalogSvc, orderSvc, cfg.HTTP.GraphQLDebug)
	if err != nil {
		log.Fatal().Err(err).Msg("graphql schema build failed")
	}

	// 6a. SSE hub for cross-tab cart sync
	hub := sse.NewHub()
	notifier := sse.NewHubNotifier(hub)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(db, redisClient),
		GraphQL: handler.NewGraphQLHandler(schema),
		Cart:    handler.NewCartHandler(cartStore, orderSvc),
		SSE:     handler.NewSSEHandler(hub),
	}

	// 8. Initialize middleware
	checkoutLimiter := middleware.NewRateLimiter(cfg.HTTP.CheckoutRateLimit, time.Minute)

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.HTTP.AllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, checkoutLimiter)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go worker.NewCartSyncWorker(cartStore, notifier, 5*time.Second).Start(ctx)
	go checkoutLimiter.StartCleanup(ctx, 5*time.Minute)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	GraphQL *handler.GraphQLHandler
	Cart    *handler.CartHandler
	SSE     *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, checkoutLimiter *middleware.RateLimiter) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Catalog queries and order placement
	router.POST("/graphql", handlers.GraphQL.Serve)

	// Cart routes, scoped to one browser profile's cart
	carts := router.Group("/v1/carts/:cartId")
	{
		carts.GET("", handlers.Cart.GetCart)
		carts.POST("/items", handlers.Cart.AddItem)
		carts.PATCH("/items/:index", handlers.Cart.UpdateQuantity)
		carts.PUT("/items/:index/attributes", handlers.Cart.UpdateAttributes)
		carts.DELETE("/items/:index", handlers.Cart.RemoveItem)
		carts.POST("/checkout", checkoutLimiter.Handle(), handlers.Cart.Checkout)
		carts.GET("/events", handlers.SSE.Stream)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
