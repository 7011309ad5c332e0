// Package httpapi exposes the platform's HTTP surface: provider webhook
// ingestion, health checks, metrics, and read-only admin queries.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/worker"
	"github.com/medicita/medicita-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("medicita.internal.httpapi.webhook")

const maxWebhookBody = 1 << 20 // 1 MiB

type jobPublisher interface {
	Publish(ctx context.Context, job worker.Job) (string, error)
}

// WebhookHandler accepts raw provider callbacks and enqueues them for the
// channel worker. It answers quickly; all processing happens off the
// request path, and the worker deduplicates redeliveries by event ID.
type WebhookHandler struct {
	publisher jobPublisher
	logger    *logging.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(publisher jobPublisher, logger *logging.Logger) *WebhookHandler {
	if publisher == nil {
		panic("httpapi: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{publisher: publisher, logger: logger}
}

// providerEnvelope captures the fields common to gateway callbacks that
// webhook ingestion needs for routing; the full payload travels opaque.
type providerEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	} `json:"data"`
}

// Handle handles POST /webhooks/{channel} requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "httpapi.webhook")
	defer span.End()

	channelType, ok := channel.ParseType(chi.URLParam(r, "channel"))
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.String("medicita.channel", string(channelType)))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err, "channel", channelType)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	var env providerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn("webhook body is not json", "error", err, "channel", channelType)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	eventID := env.Data.Key.ID
	if eventID == "" {
		// A provider that sends no message id cannot be deduplicated;
		// fall back to a synthetic id so the job is still traceable.
		eventID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("medicita.instance_id", env.Instance),
		attribute.String("medicita.event_id", eventID),
	)

	job := worker.Job{
		ChannelType: channelType,
		InstanceID:  env.Instance,
		EventID:     eventID,
		Payload:     json.RawMessage(body),
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	jobID, err := h.publisher.Publish(publishCtx, job)
	if err != nil {
		h.logger.Error("failed to enqueue webhook job", "error", err,
			"channel", channelType, "instance_id", env.Instance, "event_id", eventID)
		http.Error(w, "Failed to schedule processing", http.StatusInternalServerError)
		span.RecordError(err)
		return
	}

	h.logger.Info("webhook accepted",
		"channel", channelType, "instance_id", env.Instance,
		"event_id", eventID, "job_id", jobID, "event", env.Event)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "queued",
		"job_id": jobID,
	})
}
