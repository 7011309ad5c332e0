package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicita/medicita-platform/cmd/mainconfig"
	"github.com/medicita/medicita-platform/internal/audit"
	appconfig "github.com/medicita/medicita-platform/internal/config"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/httpapi"
	"github.com/medicita/medicita-platform/internal/queue"
	"github.com/medicita/medicita-platform/internal/worker"
	"github.com/medicita/medicita-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medicita API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	var q queue.Client
	if cfg.UseMemoryQueue {
		logger.Warn("using in-memory queue; jobs are lost on restart")
		q = queue.NewMemoryQueue(256)
	} else {
		if cfg.InboundQueueURL == "" {
			logger.Error("INBOUND_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
			os.Exit(1)
		}
		awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		q = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	}
	publisher := worker.NewPublisher(q)

	var db *sql.DB
	var admin *httpapi.AdminHandler
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		admin = httpapi.NewAdminHandler(conversation.NewStore(db), audit.NewService(db), logger)
	} else {
		logger.Warn("DATABASE_URL not set; admin endpoints disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := httpapi.New(&httpapi.Config{
		Logger:         logger,
		Webhook:        httpapi.NewWebhookHandler(publisher, logger),
		Admin:          admin,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DB:             db,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
