package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/chompfood/search-api/internal/cache"
	"github.com/chompfood/search-api/internal/config"
	"github.com/chompfood/search-api/internal/database"
	"github.com/chompfood/search-api/internal/handler"
	middlewarepkg "github.com/chompfood/search-api/internal/middleware"
	"github.com/chompfood/search-api/internal/places"
	"github.com/chompfood/search-api/internal/repository"
	"github.com/chompfood/search-api/internal/router"
	"github.com/chompfood/search-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer pool.Close()

	store, err := cache.New(cfg, pool)
	if err != nil {
		log.Fatalf("failed to initialize cache backend: %v", err)
	}
	defer store.Close()
	log.Printf("cache backend: %s", cfg.CacheBackend)

	// Startup sweep so a restart does not carry a backlog of expired rows.
	if deleted, err := store.Sweep(ctx); err != nil {
		log.Printf("startup cache sweep failed: %v", err)
	} else if deleted > 0 {
		log.Printf("cleaned up %d expired cache entries", deleted)
	}

	restaurantsRepo := repository.NewPGXRestaurantsRepository(pool)

	providerLimiter := rate.NewLimiter(
		rate.Every(cfg.ProviderRateLimit.Interval/time.Duration(cfg.ProviderRateLimit.Requests)),
		cfg.ProviderRateLimit.Requests,
	)
	providerClient := places.NewClient(nil, cfg.PlacesBaseURL, cfg.PlacesAPIKey, providerLimiter)

	searchService := service.NewSearchService(restaurantsRepo, store, providerClient, service.SearchOptions{
		DefaultRadius:     cfg.DefaultRadius,
		MaxRadius:         cfg.MaxRadius,
		DefaultMaxResults: cfg.DefaultMaxResults,
		MaxProviderCalls:  cfg.MaxProviderCalls,
		PageDepth:         cfg.PageDepth,
		CacheTTL:          cfg.NearbyCacheTTL,
		StaleAfter:        cfg.DetailsRefresh,
	})

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(func(ctx context.Context) bool {
			return database.Healthy(ctx, pool)
		}),
		Nearby:     handler.NewNearbyHandler(searchService),
		Restaurant: handler.NewRestaurantHandler(restaurantsRepo),
		Admin:      handler.NewAdminHandler(store),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())

	router.Register(e, cfg, handlers)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.CacheSweepSchedule, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer sweepCancel()
		if deleted, err := store.Sweep(sweepCtx); err != nil {
			log.Printf("scheduled cache sweep failed: %v", err)
		} else if deleted > 0 {
			log.Printf("scheduled sweep removed %d expired cache entries", deleted)
		}
	}); err != nil {
		log.Fatalf("invalid CACHE_SWEEP_SCHEDULE: %v", err)
	}
	sweeper.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()
	log.Printf("search api listening on :%s (provider budget %d calls/search)", cfg.Port, cfg.MaxProviderCalls)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	sweepStop := sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	select {
	case <-sweepStop.Done():
	case <-shutdownCtx.Done():
	}
}
