package translate

import (
	"fmt"
	"strings"

	"event-translator/internal/export"
)

// PromptBuilder constructs system and user prompts for dialogue
// translation.
type PromptBuilder struct {
	sourceLang string
	targetLang string
}

// NewPromptBuilder creates a prompt builder for the given language pair.
func NewPromptBuilder(sourceLang, targetLang string) *PromptBuilder {
	return &PromptBuilder{sourceLang: sourceLang, targetLang: targetLang}
}

const systemPromptTemplate = `You are a professional game localizer translating %s RPG dialogue to %s.

Rules:
1. Preserve ALL placeholders like {{var_1}}, {{var_2}}, etc. Copy them exactly as-is into your translation.
2. Preserve line-break structure: a translation for multi-line text should read naturally when wrapped across the same number of message lines.
3. Output ONLY the translation, nothing else. No explanations, notes, or extra text.
4. Keep each speaker's tone and register consistent across their lines.
5. Choice options must stay short enough for a menu.
6. Do not translate proper nouns inconsistently; pick one rendering and keep it.`

// SystemPrompt returns the system prompt for translation requests.
func (pb *PromptBuilder) SystemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, pb.sourceLang, pb.targetLang)
}

// Item is one text in a batch prompt, with the metadata the model uses
// for tone.
type Item struct {
	Text  string
	Entry export.Entry
}

// BuildBatchPrompt constructs a user prompt translating several texts in
// one call. Speaker and kind annotations give the model dialogue
// context; responses come back separated by the batch separator.
func (pb *PromptBuilder) BuildBatchPrompt(items []Item) string {
	var sb strings.Builder
	sb.WriteString("Translate each text below. Return ONLY the translations, separated by the ")
	sb.WriteString(BatchSeparator)
	sb.WriteString(" delimiter, in the same order.\n\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "[%d] (%s", i+1, item.Entry.OriginalMarker)
		if item.Entry.SpeakerID != "" {
			fmt.Fprintf(&sb, ", speaker: %s", item.Entry.SpeakerID)
		}
		sb.WriteString(")\n")
		sb.WriteString(item.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// BuildSinglePrompt constructs a user prompt for one text, used as the
// fallback when a batch response comes back short.
func (pb *PromptBuilder) BuildSinglePrompt(item Item) string {
	var sb strings.Builder
	if item.Entry.SpeakerID != "" {
		fmt.Fprintf(&sb, "Speaker: %s\n", item.Entry.SpeakerID)
	}
	fmt.Fprintf(&sb, "Text to translate:\n%s", item.Text)
	return sb.String()
}
