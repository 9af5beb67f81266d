package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/width"
)

// NormalizeNewlines removes carriage returns so every line ending is a
// bare LF. CRLF collapses to LF; a stray CR disappears.
func NormalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return strings.ReplaceAll(s, "\r", "")
}

// WidenKana converts halfwidth katakana (U+FF61..U+FF9F) to the
// fullwidth forms, leaving ASCII and everything else untouched. Game
// scripts mix the two freely and translation models handle the
// fullwidth forms far better.
func WidenKana(s string) string {
	if !containsHalfwidthKana(s) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if isHalfwidthKana(r) {
			sb.WriteString(width.Widen.String(string(r)))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func containsHalfwidthKana(s string) bool {
	for _, r := range s {
		if isHalfwidthKana(r) {
			return true
		}
	}
	return false
}

func isHalfwidthKana(r rune) bool {
	return r >= 0xFF61 && r <= 0xFF9F
}

// Hash computes a SHA-256 hex hash of a string for deduplication.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Truncate shortens a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
