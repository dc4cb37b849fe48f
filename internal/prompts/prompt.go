// Package prompts holds every template vimlm sends to the model, keyed by ID
// and version, plus a small builder for {{var}} substitution.
package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

// PromptV1 is the first version of prompts.
const PromptV1 PromptVersion = "1.0.0"

// Prompt IDs registered by this package.
const (
	IngestID             = "ingest"
	IngestVolatileID     = "ingest_volatile"
	IngestHeaderID       = "ingest_header"
	DeployInstructionsID = "deploy_instructions"
	ReformatID           = "reformat"
	ContinueID           = "continue"
)

// Prompt represents a versioned prompt with metadata.
type Prompt struct {
	ID          string
	Version     PromptVersion
	Content     string
	Description string
	Deprecated  bool
}
