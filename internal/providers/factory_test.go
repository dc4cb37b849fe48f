package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  string
		wantType any
	}{
		{name: "default is local ollama", settings: Settings{}, wantType: &OpenAIClient{}},
		{name: "lmstudio", settings: Settings{Provider: "LMStudio"}, wantType: &OpenAIClient{}},
		{name: "openai needs key", settings: Settings{Provider: "openai"}, wantErr: "api key not set"},
		{name: "openai with key", settings: Settings{Provider: "openai", APIKey: "sk-test"}, wantType: &OpenAIClient{}},
		{name: "anthropic with key", settings: Settings{Provider: "anthropic", APIKey: "k"}, wantType: &AnthropicClient{}},
		{name: "unknown", settings: Settings{Provider: "mystery"}, wantErr: "unknown provider: mystery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLLMClient(tt.settings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}
}

func TestNewLLMClientDefaultBaseURL(t *testing.T) {
	client, err := NewLLMClient(Settings{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", client.(*OpenAIClient).baseURL)

	client, err = NewLLMClient(Settings{Provider: "ollama", BaseURL: "http://gpu-box:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434/v1", client.(*OpenAIClient).baseURL)
}

func TestSupportedProviders(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "lmstudio", "ollama", "openai"}, SupportedProviders())
}
