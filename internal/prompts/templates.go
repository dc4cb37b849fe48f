package prompts

func registerBuiltins(registry *PromptRegistry) {
	registry.Register(&Prompt{
		ID:          IngestID,
		Version:     PromptV1,
		Content:     "{{volat}}{{incoming}}\n\n---\n\nPlease provide a succint bullet point summary for above:",
		Description: "Summarize one chunk (or the folded accumulator) of a document",
	})

	registry.Register(&Prompt{
		ID:      IngestVolatileID,
		Version: PromptV1,
		Content: "Here is a summary of part {{part}} of **{{name}}**:\n\n---\n\n{{summary}}\n\n---\n\n" +
			"Here is the next part:\n\n---\n\n",
		Description: "Frames the next chunk with the summary of the previous one",
	})

	registry.Register(&Prompt{
		ID:          IngestHeaderID,
		Version:     PromptV1,
		Content:     "**{{name}}**:\n",
		Description: "Labels the first chunk and the final fold of a document",
	})

	registry.Register(&Prompt{
		ID:      DeployInstructionsID,
		Version: PromptV1,
		Content: "Write every file you create or change as its filename in bold on a line by itself " +
			"(for example **main.py**), immediately followed by a fenced code block holding the complete file.",
		Description: "Appended to a prompt when the reply will be deployed to disk",
	})

	registry.Register(&Prompt{
		ID:      ReformatID,
		Version: PromptV1,
		Content: "Rewrite the text below so that each file appears as its filename in bold on a line by itself " +
			"(for example **main.py**), immediately followed by a fenced code block holding the complete file. " +
			"Output only the files.\n\n---\n\n{{text}}",
		Description: "Turns an arbitrary reply into the deployable filename + fence layout",
	})

	registry.Register(&Prompt{
		ID:          ContinueID,
		Version:     PromptV1,
		Content:     "Continue exactly where you stopped. Do not repeat anything you already wrote.",
		Description: "Sent after a truncated reply to resume generation",
	})
}
