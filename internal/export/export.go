// Package export serializes extracted dialogue into the translation
// hand-off document and reads the translated document back.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"event-translator/internal/extract"
	"event-translator/internal/textutil"
)

// Entry is one exported leaf: the text to hand to the translator plus
// the metadata the prompt pipeline keys on.
type Entry struct {
	TextToTranslate string `json:"text_to_translate"`
	OriginalMarker  string `json:"original_marker"`
	SpeakerID       string `json:"speaker_id"`
}

type scriptEntries = orderedmap.OrderedMap[string, Entry]

// Builder accumulates entries from every script into one document.
// Script names and original texts keep first-encountered order; a
// duplicate original within a script keeps its position and takes the
// most recent entry.
type Builder struct {
	scripts *orderedmap.OrderedMap[string, *scriptEntries]
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{scripts: orderedmap.New[string, *scriptEntries]()}
}

// Add merges one page's entries under the given script name. Carriage
// returns are dropped from every value so the document has uniform LF
// line endings.
func (b *Builder) Add(script string, entries *extract.Entries) {
	if entries == nil || entries.Len() == 0 {
		return
	}
	dst, ok := b.scripts.Get(script)
	if !ok {
		dst = orderedmap.New[string, Entry]()
		b.scripts.Set(script, dst)
	}
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(textutil.NormalizeNewlines(pair.Key), Entry{
			TextToTranslate: textutil.NormalizeNewlines(pair.Value.Text),
			OriginalMarker:  pair.Value.Marker,
			SpeakerID:       pair.Value.SpeakerID,
		})
	}
}

// Len returns the total number of entries across all scripts.
func (b *Builder) Len() int {
	n := 0
	for pair := b.scripts.Oldest(); pair != nil; pair = pair.Next() {
		n += pair.Value.Len()
	}
	return n
}

// Scripts returns the number of scripts holding at least one entry.
func (b *Builder) Scripts() int {
	return b.scripts.Len()
}

// MarshalJSON emits the two-level document in insertion order.
func (b *Builder) MarshalJSON() ([]byte, error) {
	return b.scripts.MarshalJSON()
}

// Encode writes the indented document to w.
func (b *Builder) Encode(w io.Writer) error {
	data, err := json.MarshalIndent(b, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal export document: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export document: %w", err)
	}
	return nil
}

// TranslatedEntry is one leaf of the translation input document.
type TranslatedEntry struct {
	Text string `json:"text"`
}

// Translations is the parsed translation input document: script name →
// original text → translated entry. A missing original means "no
// translation / intentionally removed".
type Translations map[string]map[string]TranslatedEntry

// ParseTranslations decodes a translation input document.
func ParseTranslations(r io.Reader) (Translations, error) {
	var t Translations
	dec := json.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse translation document: %w", err)
	}
	return t, nil
}

// Lookup flattens one script's section into the original → translated
// mapping the reinsertion engine consumes. Values are normalized to LF
// line endings; entries whose translation is empty are omitted, which
// the engine treats the same as an absent key.
func (t Translations) Lookup(script string) map[string]string {
	section := t[script]
	if len(section) == 0 {
		return nil
	}
	out := make(map[string]string, len(section))
	for original, entry := range section {
		translated := textutil.NormalizeNewlines(entry.Text)
		if translated == "" {
			continue
		}
		out[textutil.NormalizeNewlines(original)] = translated
	}
	return out
}
