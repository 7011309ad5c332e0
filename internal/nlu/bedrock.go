package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/medicita/medicita-platform/internal/channel"
)

const defaultNLUTimeout = 10 * time.Second

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockNLU implements IntentClassifier and EntityExtractor on top of the
// Bedrock Converse API. Every call is bounded by the instance's configured
// timeout; a timeout surfaces as an error the pipeline absorbs.
type BedrockNLU struct {
	api bedrockConverseAPI
}

// NewBedrockNLU wraps a Bedrock runtime client.
func NewBedrockNLU(api bedrockConverseAPI) *BedrockNLU {
	if api == nil {
		panic("nlu: bedrock converse client cannot be nil")
	}
	return &BedrockNLU{api: api}
}

const classifyPrompt = `You are the intent classifier for a medical appointment assistant.
Classify the patient message into exactly ONE intent. Respond with JSON only: {"intent": "<label>"}.

Intents:
- greeting: salutations with no request
- appointment_booking: wants to book a new appointment
- appointment_inquiry: asks about existing or upcoming appointments
- rescheduling: wants to move an existing appointment
- cancellation: wants to cancel an existing appointment
- emergency: describes a medical emergency or severe acute symptoms
- unknown: anything else

Prior intent: %s
Current stage: %s
Patient message: %s`

const extractPrompt = `You are the entity extractor for a medical appointment assistant.
Extract structured fields from the patient message. Respond with JSON only, omitting absent fields:
{"specialty": "...", "preferred_date": "YYYY-MM-DD", "preferred_time": "HH:MM", "urgency": "low|medium|high|emergency", "symptoms": ["..."], "patient_name": "...", "phone": "..."}

Detected intent: %s
Patient message: %s`

// Classify asks the model for an intent label and maps it onto the closed set.
func (b *BedrockNLU) Classify(ctx context.Context, req Request) (Intent, error) {
	prompt := fmt.Sprintf(classifyPrompt, string(priorOrUnknown(req.PriorIntent)), stageOrInitial(req.PriorStage), req.Text)
	text, err := b.converse(ctx, req.Params, prompt)
	if err != nil {
		return IntentUnknown, err
	}

	var payload struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &payload); err != nil {
		return IntentUnknown, fmt.Errorf("nlu: decode classifier output: %w", err)
	}
	return ParseIntent(payload.Intent), nil
}

// Extract asks the model for the structured entity bag.
func (b *BedrockNLU) Extract(ctx context.Context, req Request, intent Intent) (Entities, error) {
	prompt := fmt.Sprintf(extractPrompt, string(intent), req.Text)
	text, err := b.converse(ctx, req.Params, prompt)
	if err != nil {
		return Entities{}, err
	}

	var entities Entities
	if err := json.Unmarshal([]byte(extractJSON(text)), &entities); err != nil {
		return Entities{}, fmt.Errorf("nlu: decode extractor output: %w", err)
	}
	return entities, nil
}

func (b *BedrockNLU) converse(ctx context.Context, params channel.AIParams, prompt string) (string, error) {
	if strings.TrimSpace(params.Model) == "" {
		return "", errors.New("nlu: bedrock model id is required")
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultNLUTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inference := &brtypes.InferenceConfiguration{
		Temperature: aws.Float32(float32(params.Temperature)),
	}
	if params.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(params.MaxTokens))
	}

	var system []brtypes.SystemContentBlock
	if strings.TrimSpace(params.CustomPrompt) != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: params.CustomPrompt})
	}

	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(params.Model),
		System:  system,
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: inference,
	})
	if err != nil {
		return "", fmt.Errorf("nlu: bedrock converse: %w", err)
	}

	return bedrockOutputText(out)
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", errors.New("nlu: empty bedrock response")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("nlu: unexpected bedrock output type %T", out.Output)
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", errors.New("nlu: bedrock response contained no text")
	}
	return result, nil
}

// extractJSON trims prose or code fences around the model's JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func priorOrUnknown(i Intent) Intent {
	if i == "" {
		return IntentUnknown
	}
	return i
}

func stageOrInitial(s string) string {
	if strings.TrimSpace(s) == "" {
		return "initial"
	}
	return s
}
