package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medicita/medicita-platform/cmd/mainconfig"
	"github.com/medicita/medicita-platform/internal/audit"
	"github.com/medicita/medicita-platform/internal/booking"
	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/channel/whatsapp"
	appconfig "github.com/medicita/medicita-platform/internal/config"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/nlu"
	"github.com/medicita/medicita-platform/internal/notify"
	"github.com/medicita/medicita-platform/internal/observability"
	"github.com/medicita/medicita-platform/internal/pipeline"
	"github.com/medicita/medicita-platform/internal/queue"
	"github.com/medicita/medicita-platform/internal/schedule"
	"github.com/medicita/medicita-platform/internal/worker"
	"github.com/medicita/medicita-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medicita channel worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("channel worker requires DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var q queue.Client
	if cfg.UseMemoryQueue {
		logger.Warn("using in-memory queue; jobs are lost on restart")
		q = queue.NewMemoryQueue(256)
	} else {
		if cfg.InboundQueueURL == "" {
			logger.Error("INBOUND_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
			os.Exit(1)
		}
		q = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	}

	var cache *conversation.ContextCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = conversation.NewContextCache(redis.NewClient(opts))
		logger.Info("context cache enabled", "addr", cfg.RedisAddr)
	}

	var classifier nlu.IntentClassifier
	var extractor nlu.EntityExtractor
	if cfg.BedrockModelID != "" {
		bedrock := nlu.NewBedrockNLU(bedrockruntime.NewFromConfig(awsCfg))
		classifier, extractor = bedrock, bedrock
		logger.Info("using bedrock NLU", "model", cfg.BedrockModelID)
	} else {
		keyword := nlu.NewKeywordNLU()
		classifier, extractor = keyword, keyword
		logger.Warn("BEDROCK_MODEL_ID not set; using keyword NLU")
	}

	if cfg.AppointmentServiceURL == "" {
		logger.Error("channel worker requires APPOINTMENT_SERVICE_URL")
		os.Exit(1)
	}
	bookingSvc := booking.NewHTTPService(cfg.AppointmentServiceURL, cfg.AppointmentServiceToken)
	bridge := booking.NewBridge(bookingSvc, logger, booking.WithTimeout(cfg.BookingTimeout))
	composer := pipeline.NewComposer(bridge, logger)

	if cfg.WhatsAppAPIBaseURL == "" {
		logger.Error("channel worker requires WHATSAPP_API_BASE_URL")
		os.Exit(1)
	}
	adapter := whatsapp.NewAdapter(whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIKey), logger)

	registry := prometheus.NewRegistry()
	metrics := observability.NewPipelineMetrics(registry)

	store := conversation.NewStore(db)
	auditSvc := audit.NewService(db)

	pipe := pipeline.New(store, classifier, extractor, composer, adapter, auditSvc, logger,
		pipeline.WithCache(cache),
		pipeline.WithMetrics(metrics),
	)

	configs := &fallbackConfigSource{
		store:    channel.NewConfigStore(db),
		defaults: defaultInstanceConfig(cfg, logger),
		logger:   logger,
	}

	opts := []worker.ConsumerOption{
		worker.WithWorkerCount(cfg.WorkerCount),
		worker.WithReceiveWaitSeconds(cfg.ReceiveWaitSeconds),
		worker.WithReceiveBatchSize(cfg.ReceiveBatchSize),
		worker.WithEventDeduper(conversation.NewProcessedStore(pool)),
	}
	if cfg.EscalationToEmail != "" && cfg.EscalationFromEmail != "" {
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg),
			notify.SESConfig{FromEmail: cfg.EscalationFromEmail}, logger)
		opts = append(opts, worker.WithEscalationNotifier(
			notify.NewEscalationService(sender, cfg.EscalationToEmail, logger)))
		logger.Info("escalation notifications enabled", "to", cfg.EscalationToEmail)
	}

	consumer := worker.NewConsumer(q, []channel.Adapter{adapter}, pipe, configs, logger, opts...)

	// Metrics and liveness endpoint for the worker process.
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: metricsMux(registry),
	}
	go func() {
		logger.Info("metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	consumer.Start(ctx)
	logger.Info("consumer started")

	<-ctx.Done()
	logger.Info("shutting down worker...")
	consumer.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("worker stopped")
}

func metricsMux(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// fallbackConfigSource serves instance configuration from the database and
// falls back to environment defaults for instances that were never
// provisioned, so a fresh install can answer before any admin setup.
type fallbackConfigSource struct {
	store    *channel.ConfigStore
	defaults channel.InstanceConfig
	logger   *logging.Logger
}

func (f *fallbackConfigSource) Get(ctx context.Context, channelType channel.Type, instanceID string) (channel.InstanceConfig, error) {
	cfg, err := f.store.Get(ctx, channelType, instanceID)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, channel.ErrNotConfigured) {
		f.logger.Warn("instance not provisioned, using defaults",
			"channel", channelType, "instance_id", instanceID)
		def := f.defaults
		def.InstanceID = instanceID
		def.Channel = channelType
		return def, nil
	}
	return channel.InstanceConfig{}, err
}

func defaultInstanceConfig(cfg *appconfig.Config, logger *logging.Logger) channel.InstanceConfig {
	def := channel.InstanceConfig{
		OrgID:            "default",
		AutoReplyEnabled: cfg.AutoReplyEnabled,
		ReplyToUnknown:   cfg.ReplyToUnknown,
		AI: channel.AIParams{
			Model:       cfg.BedrockModelID,
			Temperature: cfg.NLUTemperature,
			MaxTokens:   cfg.NLUMaxTokens,
			Timeout:     cfg.NLUTimeout,
		},
	}
	if cfg.BusinessHoursStart != "" && cfg.BusinessHoursEnd != "" {
		hours, err := schedule.ParseDaily(cfg.BusinessHoursStart, cfg.BusinessHoursEnd, cfg.BusinessHoursTZ)
		if err != nil {
			logger.Warn("invalid business hours in environment, treating as always open", "error", err)
		} else {
			def.BusinessHours = hours
		}
	}
	return def
}
