package deploy

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/vimlm/internal/model"
	"github.com/ChamsBouzaiene/vimlm/internal/prompts"
)

// Completer is the part of the model capability Reformat needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxNew int) (model.Result, error)
}

// Reformat asks m to rewrite text into the labeled-fence layout that
// ExtractAndWrite understands. The exchange stays out of the running
// conversation.
func Reformat(ctx context.Context, m Completer, text string, maxNew int) (string, error) {
	prompt, err := prompts.Render(prompts.ReformatID, map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to render reformat prompt: %w", err)
	}

	res, err := m.Complete(ctx, prompt, maxNew)
	if err != nil {
		return "", fmt.Errorf("failed to reformat response: %w", err)
	}
	return res.Text, nil
}
