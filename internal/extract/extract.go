// Package extract walks a page's commands and collects every
// translatable dialogue entry, attributing each to the speaker in effect
// when it appeared.
package extract

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"event-translator/internal/command"
	"event-translator/internal/marker"
	"event-translator/internal/textutil"
)

// Marker kinds carried on exported entries.
const (
	MarkerMessage = "Message"
	MarkerChoice  = "Choice"
)

// Speaker sentinels. The engine only ever assigns Narration; System is
// reserved for callers that classify non-dialogue text before export.
const (
	SpeakerNarration = "NARRATION"
	SpeakerSystem    = "SYSTEM"
)

// Entry is one translatable unit found on a page.
type Entry struct {
	// Text is the string handed to the translator. It matches the map
	// key except for halfwidth katakana, which is widened here while the
	// key stays byte-identical to the script.
	Text      string
	Marker    string
	SpeakerID string
}

// Entries maps original text to its entry, in first-encountered order.
// Duplicate originals keep their position and take the latest entry.
type Entries = orderedmap.OrderedMap[string, Entry]

// NewEntries returns an empty entry map.
func NewEntries() *Entries {
	return orderedmap.New[string, Entry]()
}

// Options control extraction behavior.
type Options struct {
	// RecoverOriginals makes the scan honor annotation markers left by a
	// previous import: the marker's decoded text is exported instead of
	// the translated lines that follow it. Without it every annotation is
	// just another buffer flush.
	RecoverOriginals bool
}

// scanState is the mutable state of one forward pass: the speaker in
// effect and the text lines accumulated since the last flush.
type scanState struct {
	speakerID string
	buffer    []string
}

// flush merges the buffered lines into one message entry attributed to
// the current speaker, then clears the buffer.
func (s *scanState) flush(out *Entries) {
	if len(s.buffer) == 0 {
		return
	}
	text := strings.Join(s.buffer, "\n")
	s.buffer = s.buffer[:0]
	if text == "" {
		return
	}
	out.Set(text, Entry{
		Text:      textutil.WidenKana(text),
		Marker:    MarkerMessage,
		SpeakerID: s.speakerID,
	})
}

// Page scans one page forward and returns its entries. The page is
// never mutated. A command whose parameters violate its code's shape
// aborts the page with a command.MalformedError.
func Page(p command.Page, opts Options) (*Entries, error) {
	out := NewEntries()
	st := scanState{speakerID: SpeakerNarration}

	var pendingOriginal *string
	skippingTranslated := false

	for i, cmd := range p.Commands {
		op := cmd.Opcode()

		if skippingTranslated && op != command.OpTextLine {
			skippingTranslated = false
		}

		switch op {
		case command.OpAnnotation:
			if opts.RecoverOriginals {
				payload, err := cmd.Text()
				if err != nil {
					return nil, fmt.Errorf("command %d: %w", i, err)
				}
				if decoded, derr := marker.Decode(payload); derr == nil {
					pendingOriginal = &decoded
					continue
				}
			}
			st.flush(out)

		case command.OpSpeakerSet:
			st.flush(out)
			name, index, err := cmd.Speaker()
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			st.speakerID = SpeakerID(name, index)

		case command.OpTextLine:
			if skippingTranslated {
				continue
			}
			if pendingOriginal != nil {
				emitMessage(out, &st, *pendingOriginal)
				pendingOriginal = nil
				skippingTranslated = true
				continue
			}
			text, err := cmd.Text()
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			st.buffer = append(st.buffer, textutil.NormalizeNewlines(text))

		case command.OpChoiceSet:
			st.flush(out)
			options, err := cmd.Choices()
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			for _, opt := range options {
				opt = textutil.NormalizeNewlines(opt)
				if opt == "" {
					continue
				}
				out.Set(opt, Entry{
					Text:      textutil.WidenKana(opt),
					Marker:    MarkerChoice,
					SpeakerID: st.speakerID,
				})
			}

		default:
			st.flush(out)
		}
	}

	st.flush(out)
	if pendingOriginal != nil && !skippingTranslated {
		emitMessage(out, &st, *pendingOriginal)
	}
	return out, nil
}

func emitMessage(out *Entries, st *scanState, text string) {
	text = textutil.NormalizeNewlines(text)
	if text == "" {
		return
	}
	out.Set(text, Entry{
		Text:      textutil.WidenKana(text),
		Marker:    MarkerMessage,
		SpeakerID: st.speakerID,
	})
}

// SpeakerID derives the exported speaker identifier from a SPEAKER_SET
// command's parameters. An empty name means no speaker: narration.
func SpeakerID(name string, index int) string {
	name = strings.TrimSpace(textutil.NormalizeNewlines(name))
	if name == "" {
		return SpeakerNarration
	}
	return fmt.Sprintf("%s_%d", name, index)
}
