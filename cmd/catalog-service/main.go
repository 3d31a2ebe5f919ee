// Package main provides the catalog service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/api/handlers"
	"github.com/medisync/go-pharma/internal/api/middleware"
	"github.com/medisync/go-pharma/internal/domain/catalog"
	"github.com/medisync/go-pharma/internal/infrastructure/mongostore"
	"github.com/medisync/go-pharma/internal/infrastructure/rediscache"
	"github.com/medisync/go-pharma/internal/ingestion"
	"github.com/medisync/go-pharma/internal/observability/metrics"
	"github.com/medisync/go-pharma/internal/observability/tracing"
)

// Config holds application configuration
type Config struct {
	Port         string
	MongoURI     string
	RedisAddr    string
	RedisDB      int
	PriceListURL string
}

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg := loadConfig()

	ctx := context.Background()

	// Initialize tracing
	tp, err := tracing.Init(ctx, tracing.DefaultConfig("catalog-service"))
	if err != nil {
		logger.Warn("tracing init failed, continuing without", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(shutdownCtx)
		}()
	}

	// Connect to MongoDB
	mongoClient, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	logger.Info("connected to mongodb")

	storeCfg := mongostore.DefaultConfig()
	storeCfg.URI = cfg.MongoURI
	store, err := mongostore.New(ctx, mongoClient, storeCfg, logger)
	if err != nil {
		logger.Fatal("failed to create snapshot store", zap.Error(err))
	}

	// Connect to Redis
	cacheCfg := rediscache.DefaultConfig()
	cacheCfg.Addr = cfg.RedisAddr
	cacheCfg.DB = cfg.RedisDB
	cache, err := rediscache.New(ctx, cacheCfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer cache.Close()
	logger.Info("connected to redis")

	// Initialize service
	service := catalog.NewService(store, cache, logger)

	// Price list fetcher
	fetcherCfg := ingestion.DefaultConfig()
	fetcherCfg.IndexURL = cfg.PriceListURL
	fetcher := ingestion.NewFetcher(fetcherCfg, logger)

	// Initialize metrics and handlers
	m := metrics.New()
	catalogHandler := handlers.NewCatalogHandler(service, fetcher, m, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Duration(m.RequestDuration))
	r.Use(middleware.Tracing("catalog-service"))

	// Health checks
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := cache.HealthCheck(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/", catalogHandler.Routes())

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting catalog service", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	priceListURL := os.Getenv("PRICE_LIST_URL")
	if priceListURL == "" {
		priceListURL = "http://localhost:9000/price-lists"
	}

	return Config{
		Port:         port,
		MongoURI:     mongoURI,
		RedisAddr:    redisAddr,
		RedisDB:      envInt("REDIS_DB", 0),
		PriceListURL: priceListURL,
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"catalog-service","version":"1.0.0"}`)
}
