package channel

import "context"

// Adapter is implemented once per channel type. It translates between the
// provider wire format and the canonical message shapes; the pipeline
// depends only on this interface.
type Adapter interface {
	// Type returns the channel this adapter serves.
	Type() Type

	// ParseIncoming converts a raw provider webhook payload into a canonical
	// IncomingMessage. It must be deterministic for the same payload and
	// must not perform I/O.
	ParseIncoming(raw []byte) (IncomingMessage, error)

	// FormatResponse builds a canonical outgoing message for a conversation.
	FormatResponse(conversationID, text string, metadata map[string]string) OutgoingMessage

	// Send transmits an outgoing message to the provider. Failures are
	// non-fatal to the pipeline's persistence and audit steps.
	Send(ctx context.Context, msg OutgoingMessage) error
}
