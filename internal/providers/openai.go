package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ChamsBouzaiene/vimlm/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements engine.LLMClient against any OpenAI-compatible
// endpoint. Ollama and LM Studio both expose one, so local models go through
// here too.
type OpenAIClient struct {
	client  *openai.Client
	baseURL string
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		baseURL: baseURL,
	}, nil
}

func (c *OpenAIClient) buildRequest(modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case engine.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case engine.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: msgs,
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	return req
}

func openAIFinishReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return engine.FinishLength
	case openai.FinishReasonContentFilter:
		return engine.FinishContentFilter
	default:
		return engine.FinishStop
	}
}

// Chat implements engine.LLMClient.Chat.
func (c *OpenAIClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(modelName, messages, opts))
	if err != nil {
		status, retryAfter := engine.StatusFromError(err)
		return engine.LLMResponse{}, engine.WrapLLMError(err, status, retryAfter)
	}
	if len(resp.Choices) == 0 {
		return engine.LLMResponse{}, fmt.Errorf("empty response from %s", c.endpoint())
	}

	choice := resp.Choices[0]
	return engine.LLMResponse{
		Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: choice.Message.Content},
		Usage: engine.Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
		FinishReason: openAIFinishReason(choice.FinishReason),
	}, nil
}

// Stream implements engine.LLMClient.Stream.
func (c *OpenAIClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(eventCh)

		req := c.buildRequest(modelName, messages, opts)
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			status, retryAfter := engine.StatusFromError(err)
			errCh <- engine.WrapLLMError(err, status, retryAfter)
			return
		}
		defer stream.Close()

		emit := func(ev engine.StreamEvent) bool {
			select {
			case eventCh <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finish := engine.FinishStop
		var usage engine.Usage
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				status, retryAfter := engine.StatusFromError(err)
				errCh <- engine.WrapLLMError(err, status, retryAfter)
				return
			}

			// The usage chunk arrives last and carries no choices.
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				usage = engine.Usage{
					Prompt:     response.Usage.PromptTokens,
					Completion: response.Usage.CompletionTokens,
					Total:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			if choice.Delta.Content != "" {
				if !emit(engine.StreamEvent{Type: engine.EventTextDelta, Text: choice.Delta.Content}) {
					errCh <- ctx.Err()
					return
				}
			}
			if choice.FinishReason != "" {
				finish = openAIFinishReason(choice.FinishReason)
			}
		}

		if usage.Total > 0 && !emit(engine.StreamEvent{Type: engine.EventUsage, Usage: usage}) {
			errCh <- ctx.Err()
			return
		}
		if !emit(engine.StreamEvent{Type: engine.EventFinish, FinishReason: finish}) {
			errCh <- ctx.Err()
			return
		}
		errCh <- nil
	}()

	return eventCh, errCh
}

func (c *OpenAIClient) endpoint() string {
	if c.baseURL == "" {
		return "OpenAI"
	}
	return c.baseURL
}
