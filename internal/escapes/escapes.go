// Package escapes shields game-script control sequences from the
// translation model. Codes like \C[2], \N[1], \! or \. must survive
// translation byte-for-byte, so they are swapped for neutral {{var_N}}
// placeholders before the API call and restored afterwards.
package escapes

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mapping stores one protected code and its placeholder.
type Mapping struct {
	Original    string
	Placeholder string
	Index       int
}

type codeMatch struct {
	start, end int
	value      string
}

// patterns match the control sequences used by the script engine's
// message windows.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\\[A-Za-z]{1,2}\[[^\]\n]*\]`), // \C[2], \N[1], \V[12]
	regexp.MustCompile(`\\[A-Za-z$]`),                 // \G, \$
	regexp.MustCompile(`\\[!.|^<>{}]`),                // pacing and window codes
	regexp.MustCompile(`\\\\`),                        // escaped backslash literal
}

// Protect replaces every control sequence with a {{var_N}} placeholder.
// Returns the safe string and the mappings needed to restore it.
func Protect(text string) (string, []Mapping) {
	var matches []codeMatch
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			matches = append(matches, codeMatch{start: loc[0], end: loc[1], value: text[loc[0]:loc[1]]})
		}
	}
	if len(matches) == 0 {
		return text, nil
	}

	// Position order, longest first on ties, then drop overlaps.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end-matches[i].start > matches[j].end-matches[j].start
	})
	filtered := matches[:0]
	lastEnd := -1
	for _, m := range matches {
		if m.start >= lastEnd {
			filtered = append(filtered, m)
			lastEnd = m.end
		}
	}

	mappings := make([]Mapping, len(filtered))
	var sb strings.Builder
	sb.Grow(len(text))
	prev := 0
	for i, m := range filtered {
		placeholder := fmt.Sprintf("{{var_%d}}", i+1)
		mappings[i] = Mapping{Original: m.value, Placeholder: placeholder, Index: i + 1}
		sb.WriteString(text[prev:m.start])
		sb.WriteString(placeholder)
		prev = m.end
	}
	sb.WriteString(text[prev:])
	return sb.String(), mappings
}

// Restore puts the original control sequences back in place of their
// placeholders.
func Restore(translated string, mappings []Mapping) string {
	result := translated
	for _, m := range mappings {
		result = strings.Replace(result, m.Placeholder, m.Original, 1)
	}
	return result
}

// Intact reports whether every placeholder survived translation.
func Intact(translated string, mappings []Mapping) bool {
	for _, m := range mappings {
		if !strings.Contains(translated, m.Placeholder) {
			return false
		}
	}
	return true
}
