package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medicita/medicita-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *WebhookHandler
	Admin          *AdminHandler
	MetricsHandler http.Handler

	// DB enables the readiness probe; when nil /health reports ok
	// without checking connectivity.
	DB *sql.DB
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck(cfg.DB))
		if cfg.Webhook != nil {
			public.Post("/webhooks/{channel}", cfg.Webhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(requireOrgID)
			admin.Get("/conversations/{conversationID}/messages", cfg.Admin.ListMessages)
			admin.Get("/audit", cfg.Admin.QueryAudit)
		})
	}

	return r
}

func healthCheck(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
