package tasks

import (
	"fmt"

	"lumenarchive/internal/modelhandler"
)

// SummaryPrompt builds the per-chunk summarisation prompt §4.4 specifies:
// a system message fixing the reply to language, ≤30 words, forbidding
// meta-commentary, and a user message carrying the previous chunk as
// context (or the literal "None").
func SummaryPrompt(language, prevChunkText, currentChunkText string) modelhandler.LLMPrompt {
	if language == "" {
		language = "en"
	}
	prev := prevChunkText
	if prev == "" {
		prev = "None"
	}
	return modelhandler.LLMPrompt{
		System: fmt.Sprintf(
			"Respond only in %s. Summarise the current transcript chunk in one sentence, "+
				"no more than 30 words. Do not add meta-commentary, preambles, or explanations "+
				"about the summary itself.",
			language,
		),
		User: fmt.Sprintf("Previous content:\n%s\n\nCurrent transcript:\n%s", prev, currentChunkText),
	}
}
