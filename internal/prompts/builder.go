package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder composes a prompt from a registered template and variables.
type PromptBuilder struct {
	basePrompt *Prompt
	fragments  []string
	variables  map[string]string
}

// NewPromptBuilder creates a builder from the latest version of prompt id.
func NewPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	basePrompt, err := registry.GetLatest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}

	return &PromptBuilder{
		basePrompt: basePrompt,
		fragments:  []string{basePrompt.Content},
		variables:  make(map[string]string),
	}, nil
}

// AddFragment appends a fragment, separated from the previous one by a blank line.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	b.fragments = append(b.fragments, text)
	return b
}

// SetVariable sets a variable for {{key}} substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build constructs the final prompt string. Substitution is a single pass, so
// values that themselves contain {{...}} are left untouched.
func (b *PromptBuilder) Build() string {
	result := strings.Join(b.fragments, "\n\n")
	if len(b.variables) == 0 {
		return result
	}

	pairs := make([]string, 0, 2*len(b.variables))
	for key, value := range b.variables {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(result)
}

// Render is shorthand for building prompt id from the default registry.
func Render(id string, vars map[string]string) (string, error) {
	b, err := NewPromptBuilder(DefaultRegistry(), id)
	if err != nil {
		return "", err
	}
	for k, v := range vars {
		b.SetVariable(k, v)
	}
	return b.Build(), nil
}

// MustRender is Render for the built-in templates, which are always present.
func MustRender(id string, vars map[string]string) string {
	s, err := Render(id, vars)
	if err != nil {
		panic(err)
	}
	return s
}
