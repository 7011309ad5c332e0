package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	contextKeyPrefix    = "ai_context:"
	transcriptKeyPrefix = "transcript:"
	cacheTTL            = 72 * time.Hour
)

// TranscriptEntry is one message in the hot transcript tail kept in Redis
// for staff views and NLU context windows.
type TranscriptEntry struct {
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextCache keeps the hot AI context and a bounded transcript tail in
// Redis. Postgres remains the source of truth; cache failures are
// recoverable and callers treat them as misses.
type ContextCache struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewContextCache wraps a Redis client. A nil client yields a nil cache,
// which no-ops on every call.
func NewContextCache(redisClient *redis.Client) *ContextCache {
	if redisClient == nil {
		return nil
	}
	return &ContextCache{
		redis:       redisClient,
		tracer:      otel.Tracer("medicita.internal.conversation.cache"),
		maxMessages: 100,
	}
}

// PutContext stores the conversation's AI context.
func (c *ContextCache) PutContext(ctx context.Context, conversationID string, aiCtx AIContext) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("conversation: cache conversationID required")
	}

	data, err := json.Marshal(aiCtx)
	if err != nil {
		return fmt.Errorf("conversation: marshal cached context: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "conversation.cache.put_context")
	defer span.End()

	if err := c.redis.Set(ctx, contextKeyPrefix+conversationID, data, cacheTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: cache context: %w", err)
	}
	return nil
}

// GetContext returns the cached AI context, or nil on a miss.
func (c *ContextCache) GetContext(ctx context.Context, conversationID string) (*AIContext, error) {
	if c == nil || c.redis == nil {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "conversation.cache.get_context")
	defer span.End()

	raw, err := c.redis.Get(ctx, contextKeyPrefix+conversationID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: read cached context: %w", err)
	}

	var aiCtx AIContext
	if err := json.Unmarshal(raw, &aiCtx); err != nil {
		return nil, fmt.Errorf("conversation: decode cached context: %w", err)
	}
	return &aiCtx, nil
}

// AppendTranscript adds one message to the transcript tail, trimming to
// the configured maximum.
func (c *ContextCache) AppendTranscript(ctx context.Context, conversationID string, entry TranscriptEntry) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("conversation: cache conversationID required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript entry: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "conversation.cache.append_transcript")
	defer span.End()

	key := transcriptKeyPrefix + conversationID
	pipe := c.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, cacheTTL)
	if c.maxMessages > 0 {
		pipe.LTrim(ctx, key, -c.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append transcript: %w", err)
	}
	return nil
}

// Transcript returns up to limit most recent transcript entries in order.
func (c *ContextCache) Transcript(ctx context.Context, conversationID string, limit int64) ([]TranscriptEntry, error) {
	if c == nil || c.redis == nil {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "conversation.cache.transcript")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := c.redis.LRange(ctx, transcriptKeyPrefix+conversationID, start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: read transcript: %w", err)
	}

	entries := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
