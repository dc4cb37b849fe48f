package providers

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/vimlm/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient implements engine.LLMClient with the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey, baseURL string) (*AnthropicClient, error) {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}, nil
}

func buildAnthropicRequest(modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) anthropic.MessagesRequest {
	var system []anthropic.MessageSystemPart
	var msgs []anthropic.Message
	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			system = append(system, anthropic.MessageSystemPart{Type: "text", Text: msg.Content})
		case engine.RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		default:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	maxTokens := 4096
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}
	temperature := float32(0.1)
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(modelName),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if len(system) > 0 {
		req.MultiSystem = system
	}
	return req
}

func anthropicFinishReason(reason string) string {
	if reason == "max_tokens" {
		return engine.FinishLength
	}
	return engine.FinishStop
}

func anthropicUsage(input, output int) engine.Usage {
	return engine.Usage{Prompt: input, Completion: output, Total: input + output}
}

// Chat implements engine.LLMClient.Chat.
func (c *AnthropicClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	resp, err := c.client.CreateMessages(ctx, buildAnthropicRequest(modelName, messages, opts))
	if err != nil {
		status, retryAfter := engine.StatusFromError(err)
		return engine.LLMResponse{}, engine.WrapLLMError(err, status, retryAfter)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	return engine.LLMResponse{
		Assistant:    engine.ChatMessage{Role: engine.RoleAssistant, Content: text},
		Usage:        anthropicUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		FinishReason: anthropicFinishReason(string(resp.StopReason)),
	}, nil
}

// Stream implements engine.LLMClient.Stream. The SDK streams through
// callbacks, which are adapted to channels here.
func (c *AnthropicClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(eventCh)

		emit := func(ev engine.StreamEvent) bool {
			select {
			case eventCh <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var streamErr error
		req := anthropic.MessagesStreamRequest{MessagesRequest: buildAnthropicRequest(modelName, messages, opts)}
		req.OnError = func(errResp anthropic.ErrorResponse) {
			if streamErr == nil {
				streamErr = fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message)
			}
		}
		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				emit(engine.StreamEvent{Type: engine.EventTextDelta, Text: *delta.Delta.Text})
			}
		}

		resp, err := c.client.CreateMessagesStream(ctx, req)
		if err == nil {
			err = streamErr
		}
		if err != nil {
			status, retryAfter := engine.StatusFromError(err)
			errCh <- engine.WrapLLMError(err, status, retryAfter)
			return
		}
		if ctx.Err() != nil {
			errCh <- ctx.Err()
			return
		}

		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			emit(engine.StreamEvent{Type: engine.EventUsage, Usage: anthropicUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens)})
		}
		if !emit(engine.StreamEvent{Type: engine.EventFinish, FinishReason: anthropicFinishReason(string(resp.StopReason))}) {
			errCh <- ctx.Err()
			return
		}
		errCh <- nil
	}()

	return eventCh, errCh
}
