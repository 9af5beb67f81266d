// Package marker encodes original text into single-line annotation
// payloads. The importer plants these next to translated dialogue blocks
// so later runs can recover the original text, making reinsertion
// idempotent and reversible.
package marker

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefix and Suffix frame the payload so it cannot be mistaken for an
// ordinary comment.
const (
	Prefix = "<ORIGINAL_TEXT:"
	Suffix = ">"
)

// DecodeError reports a payload that is not a validly formed marker.
// Callers resolving a dialogue block treat it as "no marker present".
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode marker: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode marker: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode wraps text into a marker payload. The output is a single line
// for any input: base64 carries embedded newlines safely.
func Encode(text string) string {
	return Prefix + base64.StdEncoding.EncodeToString([]byte(text)) + Suffix
}

// Decode recovers the original text from a marker payload produced by
// Encode. It returns a *DecodeError when the payload is not framed by
// Prefix/Suffix, is not valid base64, or does not decode to UTF-8 text.
func Decode(payload string) (string, error) {
	if !strings.HasPrefix(payload, Prefix) || !strings.HasSuffix(payload, Suffix) {
		return "", &DecodeError{Reason: "missing marker frame"}
	}
	encoded := payload[len(Prefix) : len(payload)-len(Suffix)]
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecodeError{Reason: "invalid base64 segment", Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &DecodeError{Reason: "payload is not valid UTF-8"}
	}
	return string(raw), nil
}

// IsMarker reports whether payload carries the marker frame, without
// validating the encoded segment.
func IsMarker(payload string) bool {
	return strings.HasPrefix(payload, Prefix) && strings.HasSuffix(payload, Suffix)
}
