package engine

import "context"

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Finish reasons reported by providers, normalized.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// LLMResponse is a normalized result of one chat call.
type LLMResponse struct {
	Assistant    ChatMessage
	Usage        Usage
	FinishReason string // "stop" | "length" | "content_filter"
}

// LLMClient abstracts the chosen SDK (OpenAI-compatible servers, Anthropic).
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error)
	// Stream emits text deltas, then at most one usage and one finish event.
	// The error channel receives nil (or an error) exactly once and is then closed.
	Stream(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (<-chan StreamEvent, <-chan error)
}

// ChatOptions keeps knobs forwarded to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// Stream event types.
const (
	EventTextDelta = "text_delta"
	EventUsage     = "usage"
	EventFinish    = "finish"
)

// StreamEvent represents a streaming event from the LLM.
type StreamEvent struct {
	Type         string // "text_delta" | "usage" | "finish"
	Text         string // for text_delta
	Usage        Usage  // for usage
	FinishReason string // for finish
}
