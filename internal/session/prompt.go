package session

import (
	"strings"

	"github.com/ChamsBouzaiene/vimlm/internal/mailbox"
)

// assemblePrompt lays out a fresh request: the current file's name, its
// context, the selection and finally the typed prompt. Followups send the
// typed prompt alone. include is prepended in both cases.
func assemblePrompt(b mailbox.RequestBatch, t mailbox.Target, userPrompt, include string) string {
	var sb strings.Builder
	sb.WriteString(include)

	if b.Followup {
		sb.WriteString(userPrompt)
		return sb.String()
	}

	if t.File != "" {
		sb.WriteString("**" + t.File + "**\n")
	}
	if b.Context != "" {
		sb.WriteString("```" + t.Ext + "\n" + b.Context + "\n```\n\n")
	}
	if b.Yank != "" {
		if strings.Contains(b.Yank, "\n") {
			sb.WriteString("```" + t.Ext + "\n" + b.Yank + "\n```\n\n")
		} else {
			sb.WriteString("`" + b.Yank + "` ")
		}
	}
	sb.WriteString(userPrompt)
	return sb.String()
}
