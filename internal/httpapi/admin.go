package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medicita/medicita-platform/internal/audit"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/tenancy"
	"github.com/medicita/medicita-platform/pkg/logging"
)

const defaultPageSize = 50

type messageLister interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.MessageRecord, error)
}

type auditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// AdminHandler serves read-only operational queries: conversation
// transcripts and the audit trail.
type AdminHandler struct {
	messages messageLister
	audits   auditQuerier
	logger   *logging.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(messages messageLister, audits auditQuerier, logger *logging.Logger) *AdminHandler {
	if messages == nil {
		panic("httpapi: message lister cannot be nil")
	}
	if audits == nil {
		panic("httpapi: audit querier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{messages: messages, audits: audits, logger: logger}
}

// ListMessages handles GET /admin/conversations/{conversationID}/messages.
func (h *AdminHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", defaultPageSize)

	records, err := h.messages.ListMessages(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err, "conversation_id", conversationID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID.String(),
		"messages":        records,
	})
}

// QueryAudit handles GET /admin/audit requests. The tenant comes from the
// X-Org-Id header; query parameters narrow the result.
func (h *AdminHandler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "org id is required", http.StatusBadRequest)
		return
	}
	filter := audit.Filter{
		OrgID:          orgID,
		ConversationID: r.URL.Query().Get("conversation_id"),
		Action:         r.URL.Query().Get("action"),
		Limit:          queryInt(r, "limit", defaultPageSize),
		Offset:         queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		filter.StartTime = t
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		filter.EndTime = t
	}

	entries, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit trail", "error", err, "org_id", orgID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
