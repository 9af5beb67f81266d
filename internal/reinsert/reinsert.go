// Package reinsert splices translated text back into a page's command
// sequence. Every applied block is preceded by an annotation carrying
// the encoded original text, so the pass can run any number of times and
// be rolled back by removing a translation from the lookup.
package reinsert

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"event-translator/internal/command"
	"event-translator/internal/marker"
	"event-translator/internal/textutil"
)

// Options control how the engine reacts to damaged markers.
type Options struct {
	// SkipOnBadMarker leaves a block untouched when its annotation looks
	// like a marker but fails to decode. The default instead falls back
	// to reconstructing the anchor from the current text lines, which
	// matches historical behavior but can treat already-translated text
	// as the original when a marker is corrupted.
	SkipOnBadMarker bool
}

// Engine performs the backward reinsertion pass.
type Engine struct {
	opts Options
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// UpdatePage walks p backward, replacing dialogue blocks whose anchor
// text has a translation in lookup and rolling back marked blocks whose
// translation was removed. It reports whether the page was modified.
//
// Choice options are substituted in place with no marker and therefore
// no rollback: re-running against an already-translated choice finds no
// lookup match and leaves it as-is, so translation documents must always
// be generated from an unmodified source corpus.
func (e *Engine) UpdatePage(p *command.Page, lookup map[string]string) (bool, error) {
	changed := false
	i := len(p.Commands) - 1
	for i >= 0 {
		switch p.Commands[i].Opcode() {
		case command.OpTextLine:
			next, blockChanged, err := e.updateBlock(p, i, lookup)
			if err != nil {
				return changed, err
			}
			changed = changed || blockChanged
			i = next

		case command.OpChoiceSet:
			choiceChanged, err := updateChoices(&p.Commands[i], lookup)
			if err != nil {
				return changed, fmt.Errorf("command %d: %w", i, err)
			}
			changed = changed || choiceChanged
			i--

		default:
			i--
		}
	}
	return changed, nil
}

// updateBlock handles one dialogue block ending at textEnd. It returns
// the index the backward scan should continue from.
func (e *Engine) updateBlock(p *command.Page, textEnd int, lookup map[string]string) (int, bool, error) {
	cmds := p.Commands

	// Block extent: contiguous text lines, then an optional speaker
	// command, then an optional marker annotation.
	textStart := textEnd
	for textStart > 0 && cmds[textStart-1].Opcode() == command.OpTextLine {
		textStart--
	}

	blockStart := textStart
	hasSpeaker := false
	if textStart > 0 && cmds[textStart-1].Opcode() == command.OpSpeakerSet {
		blockStart = textStart - 1
		hasSpeaker = true
	}

	markerStart := blockStart - 1
	hasMarker := false
	var anchor string
	if markerStart >= 0 && cmds[markerStart].Opcode() == command.OpAnnotation {
		payload, err := cmds[markerStart].Text()
		if err != nil {
			return 0, false, fmt.Errorf("command %d: %w", markerStart, err)
		}
		decoded, derr := marker.Decode(payload)
		switch {
		case derr == nil:
			hasMarker = true
			anchor = textutil.NormalizeNewlines(decoded)
		case marker.IsMarker(payload):
			// Framed like a marker but undecodable. Recoverable: warn
			// and either skip the block or fall through to
			// reconstruction.
			log.Warn().
				Int("command", markerStart).
				Str("payload", textutil.Truncate(payload, 40)).
				Err(derr).
				Msg("Undecodable marker annotation")
			if e.opts.SkipOnBadMarker {
				return blockStart - 1, false, nil
			}
		}
	}

	if !hasMarker {
		lines := make([]string, 0, textEnd-textStart+1)
		for k := textStart; k <= textEnd; k++ {
			text, err := cmds[k].Text()
			if err != nil {
				return 0, false, fmt.Errorf("command %d: %w", k, err)
			}
			lines = append(lines, textutil.NormalizeNewlines(text))
		}
		anchor = strings.Join(lines, "\n")
	}

	indent := cmds[textEnd].Indent
	translated, found := lookup[anchor]
	translated = textutil.NormalizeNewlines(translated)

	// A translation identical to the original counts as absent: a marked
	// block rolls back to the pristine lines, an unmarked one stays as it
	// is instead of gaining a marker for a no-op.
	if translated == anchor {
		found = false
		translated = ""
	}

	// Translation present: rebuild the block as marker + speaker +
	// translated lines. An existing marker command is kept in place;
	// a new one is inserted only when the block had none.
	if found && translated != "" {
		var repl []command.Command
		if !hasMarker {
			repl = append(repl, command.NewAnnotation(indent, marker.Encode(anchor)))
		}
		if hasSpeaker {
			repl = append(repl, cmds[textStart-1])
		}
		for _, line := range strings.Split(translated, "\n") {
			repl = append(repl, command.NewTextLine(indent, line))
		}
		p.Splice(blockStart, textEnd, repl)
		if hasMarker {
			return markerStart - 1, true, nil
		}
		return blockStart - 1, true, nil
	}

	// Marker present but translation removed: restore the original
	// lines and drop the marker.
	if hasMarker {
		var repl []command.Command
		if hasSpeaker {
			repl = append(repl, cmds[textStart-1])
		}
		for _, line := range strings.Split(anchor, "\n") {
			repl = append(repl, command.NewTextLine(indent, line))
		}
		p.Splice(markerStart, textEnd, repl)
		return markerStart - 1, true, nil
	}

	// No translation, no marker: leave the block untouched.
	return blockStart - 1, false, nil
}

// updateChoices substitutes translated options in place.
func updateChoices(cmd *command.Command, lookup map[string]string) (bool, error) {
	options, err := cmd.Choices()
	if err != nil {
		return false, err
	}
	changed := false
	out := make([]string, len(options))
	for i, opt := range options {
		key := textutil.NormalizeNewlines(opt)
		if translated, ok := lookup[key]; ok && translated != "" && translated != key {
			out[i] = textutil.NormalizeNewlines(translated)
			changed = true
		} else {
			out[i] = opt
		}
	}
	if changed {
		cmd.SetChoices(out)
	}
	return changed, nil
}
