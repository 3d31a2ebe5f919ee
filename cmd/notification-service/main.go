// Package main provides the notification service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/api/handlers"
	"github.com/medisync/go-pharma/internal/api/middleware"
	"github.com/medisync/go-pharma/internal/domain/notification"
	"github.com/medisync/go-pharma/internal/infrastructure/redpanda"
	"github.com/medisync/go-pharma/internal/observability/metrics"
	"github.com/medisync/go-pharma/internal/observability/tracing"
)

// Config holds application configuration
type Config struct {
	Port         string
	Brokers      []string
	GroupID      string
	ReportHour   int
	ReportMinute int
}

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg := loadConfig()

	ctx := context.Background()

	// Initialize tracing
	tp, err := tracing.Init(ctx, tracing.DefaultConfig("notification-service"))
	if err != nil {
		logger.Warn("tracing init failed, continuing without", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(shutdownCtx)
		}()
	}

	// Ensure bus topics exist
	admin, err := redpanda.NewAdmin(cfg.Brokers, logger)
	if err != nil {
		logger.Fatal("failed to create bus admin", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx); err != nil {
		admin.Close()
		logger.Fatal("topic setup failed", zap.Error(err))
	}
	admin.Close()

	// Dead letter producer
	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.Brokers
	deadLetter, err := redpanda.NewProducer(producerCfg, redpanda.TopicDeadLetter, logger)
	if err != nil {
		logger.Fatal("failed to create dead letter producer", zap.Error(err))
	}
	defer deadLetter.Close()

	// Registry and event handler
	m := metrics.New()
	registry := notification.NewRegistry()
	dlq := &countingDeadLetterer{producer: deadLetter, counter: m.EventsDeadLettered}
	eventHandler := notification.NewHandler(registry, dlq, logger)

	// Consumer
	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.Brokers
	consumerCfg.GroupID = cfg.GroupID
	consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		err := eventHandler.Handle(ctx, msg.Key, msg.Value)
		if err == nil {
			m.EventsConsumed.Inc()
			m.IncompleteRegistrySize.Set(float64(registry.Len()))
		}
		return err
	}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	consumer.Start()

	// Daily report
	reporterCtx, stopReporter := context.WithCancel(ctx)
	reporter := notification.NewReporter(registry, cfg.ReportHour, cfg.ReportMinute, time.Local, logger)
	go reporter.Run(reporterCtx)

	// Handlers
	notificationHandler := handlers.NewNotificationHandler(registry, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Duration(m.RequestDuration))
	r.Use(middleware.Tracing("notification-service"))

	// Health checks
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := redpanda.HealthCheck(r.Context(), cfg.Brokers); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/", notificationHandler.Routes())

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		stopReporter()
		if err := consumer.Stop(); err != nil {
			logger.Error("consumer stop error", zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting notification service", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	groupID := os.Getenv("CONSUMER_GROUP")
	if groupID == "" {
		groupID = "notification-service"
	}

	reportHour := envInt("REPORT_HOUR", 1)
	reportMinute := envInt("REPORT_MINUTE", 0)

	return Config{
		Port:         port,
		Brokers:      strings.Split(brokers, ","),
		GroupID:      groupID,
		ReportHour:   reportHour,
		ReportMinute: reportMinute,
	}
}

// countingDeadLetterer counts events routed to the dead letter topic.
type countingDeadLetterer struct {
	producer *redpanda.Producer
	counter  prometheus.Counter
}

func (d *countingDeadLetterer) Publish(ctx context.Context, key string, value []byte) error {
	if err := d.producer.Publish(ctx, key, value); err != nil {
		return err
	}
	d.counter.Inc()
	return nil
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
	fmt.Fprintf(w, `{"status":"healthy","service":"notification-service","version":"1.0.0"}`)
}
