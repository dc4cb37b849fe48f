package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/vimlm/internal/engine"
)

// Settings selects and configures a provider. Empty fields fall back to the
// provider's defaults.
type Settings struct {
	Provider string
	BaseURL  string
	APIKey   string
}

type providerDefaults struct {
	baseURL     string
	apiKey      string // placeholder for local servers that ignore the key
	needsAPIKey bool
	anthropic   bool
}

var knownProviders = map[string]providerDefaults{
	"ollama":    {baseURL: "http://localhost:11434/v1", apiKey: "ollama"},
	"lmstudio":  {baseURL: "http://localhost:1234/v1", apiKey: "lm-studio"},
	"openai":    {needsAPIKey: true},
	"anthropic": {needsAPIKey: true, anthropic: true},
}

// DefaultProvider is used when Settings.Provider is empty.
const DefaultProvider = "ollama"

// NewLLMClient creates an engine.LLMClient for the configured provider.
func NewLLMClient(s Settings) (engine.LLMClient, error) {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	if name == "" {
		name = DefaultProvider
	}

	defaults, ok := knownProviders[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}

	apiKey := s.APIKey
	if apiKey == "" {
		if defaults.needsAPIKey {
			return nil, fmt.Errorf("api key not set for provider %s", name)
		}
		apiKey = defaults.apiKey
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaults.baseURL
	}

	if defaults.anthropic {
		client, err := NewAnthropicClient(apiKey, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, nil
	}

	client, err := NewOpenAIClient(apiKey, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return client, nil
}

// SupportedProviders lists provider names accepted by NewLLMClient.
func SupportedProviders() []string {
	names := make([]string, 0, len(knownProviders))
	for name := range knownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
