// Package worker consumes inbound channel events from the queue and drives
// them through the conversation pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medicita/medicita-platform/internal/channel"
	"github.com/medicita/medicita-platform/internal/queue"
)

// Job is one inbound provider event queued for processing. Payload is the
// raw provider webhook body; the worker hands it to the channel's adapter.
type Job struct {
	ID          string          `json:"id"`
	ChannelType channel.Type    `json:"channel_type"`
	InstanceID  string          `json:"instance_id"`
	EventID     string          `json:"event_id"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// Publisher enqueues inbound events for the workers.
type Publisher struct {
	queue queue.Client
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(q queue.Client) *Publisher {
	if q == nil {
		panic("worker: queue cannot be nil")
	}
	return &Publisher{queue: q}
}

// Publish encodes and enqueues one job, assigning an id when absent.
func (p *Publisher) Publish(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("worker: encode job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return "", err
	}
	return job.ID, nil
}
