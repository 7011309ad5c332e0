// Package pipeline orchestrates inbound channel messages: validation,
// conversation resolution, intent classification, entity extraction, stage
// computation, auto-reply gating, response composition, persistence and
// audit.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medicita/medicita-platform/internal/audit"
	"github.com/medicita/medicita-platform/internal/booking"
	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/conversation"
	"github.com/medicita/medicita-platform/internal/nlu"
	"github.com/medicita/medicita-platform/internal/observability"
	"github.com/medicita/medicita-platform/pkg/logging"
)

// ConversationStore is the slice of the conversation package the pipeline
// mutates. Postgres implements it in production; tests use fakes.
type ConversationStore interface {
	EnsureActive(ctx context.Context, orgID string, channelType channel.Type, instanceID string, contact conversation.Contact) (*conversation.Conversation, bool, error)
	UpdateAIContext(ctx context.Context, conversationID uuid.UUID, aiCtx conversation.AIContext) error
	HasProviderMessage(ctx context.Context, providerMessageID string) (bool, error)
	AppendMessage(ctx context.Context, msg conversation.MessageRecord) (bool, error)
}

// Dispatcher is the outbound half of a channel adapter.
type Dispatcher interface {
	FormatResponse(conversationID, text string, metadata map[string]string) channel.OutgoingMessage
	Send(ctx context.Context, msg channel.OutgoingMessage) error
}

// Pipeline processes inbound messages for every channel instance. It holds
// no per-instance state; the instance config travels with each call.
type Pipeline struct {
	store      ConversationStore
	classifier nlu.IntentClassifier
	extractor  nlu.EntityExtractor
	composer   *Composer
	dispatcher Dispatcher
	auditor    audit.Logger
	cache      *conversation.ContextCache
	metrics    *observability.PipelineMetrics
	logger     *logging.Logger
	locks      *keyedMutex
	now        func() time.Time
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithCache attaches the Redis context cache.
func WithCache(cache *conversation.ContextCache) Option {
	return func(p *Pipeline) { p.cache = cache }
}

// WithMetrics attaches Prometheus pipeline metrics.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides the time source. Tests use it to pin business-hours
// evaluation.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. All positional collaborators are required.
func New(store ConversationStore, classifier nlu.IntentClassifier, extractor nlu.EntityExtractor, composer *Composer, dispatcher Dispatcher, auditor audit.Logger, logger *logging.Logger, opts ...Option) *Pipeline {
	if store == nil {
		panic("pipeline: store cannot be nil")
	}
	if classifier == nil {
		panic("pipeline: classifier cannot be nil")
	}
	if extractor == nil {
		panic("pipeline: extractor cannot be nil")
	}
	if composer == nil {
		panic("pipeline: composer cannot be nil")
	}
	if dispatcher == nil {
		panic("pipeline: dispatcher cannot be nil")
	}
	if auditor == nil {
		panic("pipeline: auditor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	p := &Pipeline{
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		composer:   composer,
		dispatcher: dispatcher,
		auditor:    auditor,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one inbound message through the full pipeline and returns
// the outcome. It never panics and never returns before the incoming
// message and its audit trail are persisted, even when the request context
// is cancelled mid-flight; only the outbound send is best-effort.
func (p *Pipeline) Process(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage) ProcessingResult {
	started := p.now()

	if errs := channel.Validate(msg); len(errs) > 0 {
		p.logger.Warn("message rejected",
			"channel", msg.ChannelType,
			"instance_id", msg.InstanceID,
			"errors", errs,
		)
		p.auditBestEffort(context.WithoutCancel(ctx), cfg, msg, "", audit.ActionMessageRejected, audit.ActorPatient, map[string]any{
			"errors": errs,
		})
		p.metrics.ObserveMessage(string(msg.ChannelType), string(nlu.IntentUnknown), "rejected", p.now().Sub(started))
		return validationFailure()
	}

	// Serialize per conversation identity so concurrent messages from the
	// same contact never interleave context updates.
	unlock := p.locks.Lock(msg.InstanceID + "|" + msg.Sender.ID)
	defer unlock()

	result := p.processLocked(ctx, cfg, msg)

	outcome := "success"
	switch {
	case result.Duplicate:
		outcome = "duplicate"
	case !result.Success:
		outcome = "failure"
	}
	p.metrics.ObserveMessage(string(msg.ChannelType), string(result.Intent), outcome, p.now().Sub(started))

	return result
}

func (p *Pipeline) processLocked(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage) (res ProcessingResult) {
	// Persistence and audit must survive request cancellation.
	persistCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic recovered",
				"channel", msg.ChannelType,
				"instance_id", msg.InstanceID,
				"panic", r,
			)
			res = ProcessingResult{
				Success:     false,
				Intent:      nlu.IntentUnknown,
				Response:    apologyResponse,
				NextActions: []string{ActionEscalateToHuman},
				Err:         fmt.Errorf("pipeline: panic: %v", r),
			}
			p.auditBestEffort(persistCtx, cfg, msg, "", audit.ActionProcessingFailed, audit.ActorSystem, map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	duplicate, err := p.store.HasProviderMessage(ctx, msg.ID)
	if err != nil {
		// The message-level ON CONFLICT guard below still protects us, so a
		// failed read is not fatal.
		p.logger.Error("duplicate check failed", "message_id", msg.ID, "error", err)
	}
	if duplicate {
		p.auditBestEffort(persistCtx, cfg, msg, "", audit.ActionMessageDuplicate, audit.ActorSystem, map[string]any{
			"provider_message_id": msg.ID,
		})
		return ProcessingResult{Success: true, Duplicate: true, Intent: nlu.IntentUnknown}
	}

	conv, created, err := p.store.EnsureActive(ctx, cfg.OrgID, msg.ChannelType, msg.InstanceID, conversation.Contact{
		ExternalID: msg.Sender.ID,
		Name:       msg.Sender.Name,
		Phone:      msg.Sender.Phone,
	})
	if err != nil {
		p.logger.Error("conversation resolution failed",
			"instance_id", msg.InstanceID,
			"sender_id", msg.Sender.ID,
			"error", err,
		)
		p.auditBestEffort(persistCtx, cfg, msg, "", audit.ActionProcessingFailed, audit.ActorSystem, map[string]any{
			"step":  "resolve_conversation",
			"error": err.Error(),
		})
		return ProcessingResult{
			Success:     false,
			Intent:      nlu.IntentUnknown,
			Response:    apologyResponse,
			NextActions: []string{ActionEscalateToHuman},
			Err:         err,
		}
	}
	if created {
		p.logger.Info("conversation opened",
			"conversation_id", conv.ID.String(),
			"channel", msg.ChannelType,
			"instance_id", msg.InstanceID,
		)
	}

	prior := conv.AIContext
	nluReq := nlu.Request{
		Text:        msg.Content.Text,
		PriorIntent: nlu.ParseIntent(prior.CurrentIntent),
		PriorStage:  prior.Stage,
		Params:      cfg.AI,
	}

	intent, err := p.classifier.Classify(ctx, nluReq)
	if err != nil {
		p.logger.Warn("classification failed, falling back to unknown",
			"conversation_id", conv.ID.String(),
			"error", err,
		)
		p.metrics.ObserveNLUFallback(string(msg.ChannelType), "classify")
		intent = nlu.IntentUnknown
	}

	entities, err := p.extractor.Extract(ctx, nluReq, intent)
	if err != nil {
		p.logger.Warn("extraction failed, falling back to empty entities",
			"conversation_id", conv.ID.String(),
			"error", err,
		)
		p.metrics.ObserveNLUFallback(string(msg.ChannelType), "extract")
		entities = nlu.Entities{}
	}

	stage := ComputeStage(intent, entities)
	// An escalated conversation stays escalated until a human resets it.
	if Stage(prior.Stage) == StageEmergencyEscalated {
		stage = StageEmergencyEscalated
	}

	confidence := ComputeConfidence(intent, entities)
	actions := NextActions(intent, entities)

	response := ""
	var bookingResult *booking.Result
	allowed, suppressReason := ShouldAutoReply(cfg, intent, entities, p.now())
	if allowed {
		response, bookingResult = p.composer.Compose(ctx, conv, msg, intent, entities, stage)
	} else {
		p.metrics.ObserveSuppressed(string(msg.ChannelType), suppressReason)
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionReplySuppressed, audit.ActorSystem, map[string]any{
			"intent": string(intent),
			"reason": suppressReason,
		})
	}

	if bookingResult != nil {
		p.recordBookingOutcome(persistCtx, cfg, msg, conv.ID.String(), bookingResult)
		if !bookingResult.Success && !contains(actions, ActionEscalateToHuman) {
			actions = append(actions, ActionEscalateToHuman)
		}
	}

	inserted, err := p.store.AppendMessage(persistCtx, conversation.MessageRecord{
		ProviderMessageID: msg.ID,
		ConversationID:    conv.ID,
		ChannelType:       msg.ChannelType,
		Direction:         conversation.DirectionIncoming,
		Content:           msg.Content,
		Sender:            &msg.Sender,
		Metadata:          msg.Metadata,
		CreatedAt:         msg.Timestamp,
	})
	if err != nil {
		p.logger.Error("incoming message persistence failed",
			"conversation_id", conv.ID.String(),
			"error", err,
		)
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionProcessingFailed, audit.ActorSystem, map[string]any{
			"step":  "persist_incoming",
			"error": err.Error(),
		})
		return ProcessingResult{
			Success:     false,
			Intent:      intent,
			Entities:    entities,
			Stage:       stage,
			NextActions: actions,
			Confidence:  confidence,
			Err:         err,
		}
	}
	if !inserted {
		// A concurrent delivery of the same provider message won the insert.
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionMessageDuplicate, audit.ActorSystem, map[string]any{
			"provider_message_id": msg.ID,
		})
		return ProcessingResult{Success: true, Duplicate: true, Intent: intent}
	}

	p.appendTranscript(persistCtx, conv.ID.String(), conversation.DirectionIncoming, msg.Content.Text)

	replySent := false
	if response != "" {
		out := p.dispatcher.FormatResponse(conv.ID.String(), response, map[string]string{
			"recipient":   msg.Sender.ID,
			"instance_id": msg.InstanceID,
		})

		if _, err := p.store.AppendMessage(persistCtx, conversation.MessageRecord{
			ConversationID: conv.ID,
			ChannelType:    msg.ChannelType,
			Direction:      conversation.DirectionOutgoing,
			Content:        out.Content,
			Metadata:       out.Metadata,
			CreatedAt:      p.now().UTC(),
		}); err != nil {
			p.logger.Error("outgoing message persistence failed",
				"conversation_id", conv.ID.String(),
				"error", err,
			)
		}

		if err := p.dispatcher.Send(ctx, out); err != nil {
			p.logger.Error("dispatch failed",
				"conversation_id", conv.ID.String(),
				"channel", msg.ChannelType,
				"error", err,
			)
		} else {
			replySent = true
			p.appendTranscript(persistCtx, conv.ID.String(), conversation.DirectionOutgoing, response)
		}
	}

	newContext := conversation.AIContext{
		CurrentIntent:  string(intent),
		LastEntities:   entities,
		Stage:          string(stage),
		PendingActions: actions,
		Confidence:     confidence,
	}
	if err := p.store.UpdateAIContext(persistCtx, conv.ID, newContext); err != nil {
		p.logger.Error("ai context persistence failed",
			"conversation_id", conv.ID.String(),
			"error", err,
		)
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionProcessingFailed, audit.ActorSystem, map[string]any{
			"step":  "update_ai_context",
			"error": err.Error(),
		})
		return ProcessingResult{
			Success:     false,
			Intent:      intent,
			Entities:    entities,
			Stage:       stage,
			Response:    response,
			ReplySent:   replySent,
			NextActions: actions,
			Confidence:  confidence,
			Err:         err,
		}
	}
	p.putCachedContext(persistCtx, conv.ID.String(), newContext)

	if Stage(prior.Stage) != stage {
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionStageChanged, audit.ActorAI, map[string]any{
			"from": prior.Stage,
			"to":   string(stage),
		})
	}
	if intent == nlu.IntentEmergency && Stage(prior.Stage) != StageEmergencyEscalated {
		p.auditBestEffort(persistCtx, cfg, msg, conv.ID.String(), audit.ActionEscalatedToHuman, audit.ActorAI, map[string]any{
			"urgency": string(entities.Urgency),
		})
	}

	if err := p.audit(persistCtx, cfg, msg, conv.ID.String(), audit.ActionMessageProcessed, audit.ActorAI, map[string]any{
		"intent":     string(intent),
		"stage":      string(stage),
		"confidence": confidence,
		"reply_sent": replySent,
	}); err != nil {
		p.logger.Error("audit write failed",
			"conversation_id", conv.ID.String(),
			"error", err,
		)
		return ProcessingResult{
			Success:     false,
			Intent:      intent,
			Entities:    entities,
			Stage:       stage,
			Response:    response,
			ReplySent:   replySent,
			NextActions: actions,
			Confidence:  confidence,
			Err:         err,
		}
	}

	return ProcessingResult{
		Success:     true,
		Intent:      intent,
		Entities:    entities,
		Stage:       stage,
		Response:    response,
		ReplySent:   replySent,
		NextActions: actions,
		Confidence:  confidence,
	}
}

func (p *Pipeline) recordBookingOutcome(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage, conversationID string, result *booking.Result) {
	action := audit.ActionBookingRequested
	outcome := "success"
	details := map[string]any{
		"slots_offered": len(result.AvailableSlots),
		"next_step":     result.NextStep,
	}
	switch {
	case !result.Success:
		action = audit.ActionBookingFailed
		outcome = "failure"
		if result.Err != nil {
			details["error"] = result.Err.Error()
		}
	case result.AppointmentID != "":
		action = audit.ActionAppointmentBooked
		details["appointment_id"] = result.AppointmentID
	}
	p.metrics.ObserveBooking(string(msg.ChannelType), outcome)
	p.auditBestEffort(ctx, cfg, msg, conversationID, action, audit.ActorAI, details)
}

func (p *Pipeline) audit(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage, conversationID, action string, actor audit.ActorType, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("pipeline: marshal audit details: %w", err)
	}
	return p.auditor.Log(ctx, audit.Entry{
		OrgID:          cfg.OrgID,
		ChannelType:    string(msg.ChannelType),
		InstanceID:     msg.InstanceID,
		ConversationID: conversationID,
		Action:         action,
		ActorID:        msg.Sender.ID,
		ActorType:      actor,
		Details:        payload,
	})
}

func (p *Pipeline) auditBestEffort(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage, conversationID, action string, actor audit.ActorType, details map[string]any) {
	if err := p.audit(ctx, cfg, msg, conversationID, action, actor, details); err != nil {
		p.logger.Error("audit write failed", "action", action, "error", err)
	}
}

func (p *Pipeline) appendTranscript(ctx context.Context, conversationID string, direction conversation.Direction, text string) {
	if p.cache == nil || text == "" {
		return
	}
	err := p.cache.AppendTranscript(ctx, conversationID, conversation.TranscriptEntry{
		Direction: direction,
		Text:      text,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		p.logger.Debug("transcript cache write failed", "conversation_id", conversationID, "error", err)
	}
}

func (p *Pipeline) putCachedContext(ctx context.Context, conversationID string, aiCtx conversation.AIContext) {
	if p.cache == nil {
		return
	}
	if err := p.cache.PutContext(ctx, conversationID, aiCtx); err != nil {
		p.logger.Debug("context cache write failed", "conversation_id", conversationID, "error", err)
	}
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
