package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/notify"
	"github.com/medicita/medicita-platform/internal/pipeline"
	"github.com/medicita/medicita-platform/internal/queue"
	"github.com/medicita/medicita-platform/internal/tenancy"
	"github.com/medicita/medicita-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5

	fallbackReply = "Lo siento, tuvimos un inconveniente procesando tu mensaje. Un miembro de nuestro equipo te contactará en breve."
)

// MessageProcessor runs one canonical message through the pipeline.
type MessageProcessor interface {
	Process(ctx context.Context, cfg channel.InstanceConfig, msg channel.IncomingMessage) pipeline.ProcessingResult
}

// ConfigSource resolves the per-instance configuration for a channel.
type ConfigSource interface {
	Get(ctx context.Context, channelType channel.Type, instanceID string) (channel.InstanceConfig, error)
}

// EventDeduper is the webhook-level idempotency store: each provider event
// id is claimed at most once per channel.
type EventDeduper interface {
	AlreadyProcessed(ctx context.Context, channelType, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, channelType, eventID string) (bool, error)
}

// EscalationNotifier alerts clinic staff when a conversation needs a human.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, esc notify.Escalation) error
}

// Consumer pulls inbound jobs from the queue, parses them with the matching
// channel adapter, and invokes the pipeline.
type Consumer struct {
	queue     queue.Client
	adapters  map[channel.Type]channel.Adapter
	processor MessageProcessor
	configs   ConfigSource
	deduper   EventDeduper
	notifier  EscalationNotifier
	logger    *logging.Logger

	cfg consumerConfig
	wg  sync.WaitGroup
}

type consumerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	deduper          EventDeduper
	notifier         EscalationNotifier
}

// ConsumerOption customizes consumer behavior.
type ConsumerOption func(*consumerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithEventDeduper wires the processed-events idempotency store.
func WithEventDeduper(deduper EventDeduper) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.deduper = deduper
	}
}

// WithEscalationNotifier wires staff notifications for escalated
// conversations.
func WithEscalationNotifier(notifier EscalationNotifier) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.notifier = notifier
	}
}

// NewConsumer constructs a queue consumer around the pipeline.
func NewConsumer(q queue.Client, adapters []channel.Adapter, processor MessageProcessor, configs ConfigSource, logger *logging.Logger, opts ...ConsumerOption) *Consumer {
	if q == nil {
		panic("worker: queue cannot be nil")
	}
	if len(adapters) == 0 {
		panic("worker: at least one adapter is required")
	}
	if processor == nil {
		panic("worker: processor cannot be nil")
	}
	if configs == nil {
		panic("worker: config source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := consumerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	byType := make(map[channel.Type]channel.Adapter, len(adapters))
	for _, a := range adapters {
		byType[a.Type()] = a
	}

	return &Consumer{
		queue:     q,
		adapters:  byType,
		processor: processor,
		configs:   configs,
		deduper:   cfg.deduper,
		notifier:  cfg.notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.cfg.workers; i++ {
		c.wg.Add(1)
		go c.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context, workerID int) {
	defer c.wg.Done()
	c.logger.Debug("channel worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("channel worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := c.queue.Receive(ctx, c.cfg.receiveBatchSize, c.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to receive channel jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg queue.Message) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		c.logger.Error("failed to decode channel job", "error", err)
		c.deleteMessage(msg.ReceiptHandle)
		return
	}

	adapter, ok := c.adapters[job.ChannelType]
	if !ok {
		c.logger.Error("no adapter for channel", "channel", job.ChannelType, "job_id", job.ID)
		c.deleteMessage(msg.ReceiptHandle)
		return
	}

	if c.deduper != nil && job.EventID != "" {
		seen, err := c.deduper.AlreadyProcessed(ctx, string(job.ChannelType), job.EventID)
		if err != nil {
			c.logger.Warn("event dedup lookup failed", "error", err, "event_id", job.EventID)
		} else if seen {
			c.logger.Info("skipping duplicate event", "event_id", job.EventID, "job_id", job.ID)
			c.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	incoming, err := adapter.ParseIncoming(job.Payload)
	if err != nil {
		// A payload the adapter cannot parse never will be; retrying is
		// pointless.
		c.logger.Error("failed to parse provider payload",
			"error", err,
			"channel", job.ChannelType,
			"job_id", job.ID,
		)
		c.deleteMessage(msg.ReceiptHandle)
		return
	}

	cfg, err := c.configs.Get(ctx, job.ChannelType, job.InstanceID)
	if err != nil {
		// Config lookups are transient; hand the message back for
		// redelivery instead of dropping it.
		c.logger.Error("failed to load instance config",
			"error", err,
			"channel", job.ChannelType,
			"instance_id", job.InstanceID,
		)
		if err := c.queue.Requeue(ctx, msg); err != nil {
			c.logger.Error("failed to requeue channel job", "error", err, "job_id", job.ID)
		}
		return
	}

	ctx = tenancy.WithOrgID(ctx, cfg.OrgID)
	result := c.processor.Process(ctx, cfg, incoming)
	if !result.Duplicate && containsAction(result.NextActions, pipeline.ActionEscalateToHuman) {
		c.notifyEscalation(ctx, cfg, incoming, result)
	}
	if !result.Success && result.Err != nil {
		c.logger.Error("pipeline processing failed",
			"job_id", job.ID,
			"intent", result.Intent,
			"error", result.Err,
		)
		c.sendFallback(ctx, adapter, incoming)
	}

	if c.deduper != nil && job.EventID != "" && (result.Success || result.Duplicate) {
		if _, err := c.deduper.MarkProcessed(ctx, string(job.ChannelType), job.EventID); err != nil {
			c.logger.Warn("failed to mark event processed", "error", err, "event_id", job.EventID)
		}
	}

	c.deleteMessage(msg.ReceiptHandle)
}

func (c *Consumer) notifyEscalation(ctx context.Context, cfg channel.InstanceConfig, incoming channel.IncomingMessage, result pipeline.ProcessingResult) {
	if c.notifier == nil {
		return
	}
	err := c.notifier.NotifyEscalation(ctx, notify.Escalation{
		OrgID:          cfg.OrgID,
		ChannelType:    string(incoming.ChannelType),
		InstanceID:     incoming.InstanceID,
		ConversationID: incoming.ConversationID,
		PatientName:    incoming.Sender.Name,
		PatientPhone:   incoming.Sender.Phone,
		Intent:         string(result.Intent),
		Urgency:        string(result.Entities.Urgency),
		MessageText:    incoming.Content.Text,
		OccurredAt:     incoming.Timestamp,
	})
	if err != nil {
		c.logger.Warn("escalation notification failed", "error", err)
	}
}

func containsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func (c *Consumer) sendFallback(ctx context.Context, adapter channel.Adapter, incoming channel.IncomingMessage) {
	// The adapter routes sends off the same metadata keys the pipeline
	// sets; without them the apology never leaves the process.
	out := adapter.FormatResponse(incoming.ConversationID, fallbackReply, map[string]string{
		"recipient":   incoming.Sender.ID,
		"instance_id": incoming.InstanceID,
		"fallback":    "true",
	})
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := adapter.Send(sendCtx, out); err != nil {
		c.logger.Warn("failed to send fallback reply", "error", err)
	}
}

func (c *Consumer) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := c.queue.Delete(ctx, receiptHandle); err != nil {
		c.logger.Error("failed to delete channel job", "error", err)
	}
}
