// Package queue abstracts the inbound event queue between webhook ingestion
// and the channel workers. SQS backs it in production; an in-memory queue
// serves local development and tests.
package queue

import "context"

// Message is one queued item as seen by a consumer.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Client is the transport contract shared by the SQS and memory queues.
type Client interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error

	// Requeue makes a received but unprocessed message deliverable again.
	// SQS resets the visibility timeout; the memory queue pushes the
	// message back, since receiving already consumed it.
	Requeue(ctx context.Context, msg Message) error
}
