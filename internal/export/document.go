package export

import (
	"encoding/json"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ScriptEntries is one script's section of an export document, in
// document order.
type ScriptEntries = orderedmap.OrderedMap[string, Entry]

// Document is a parsed export document preserving its on-disk order.
type Document = orderedmap.OrderedMap[string, *ScriptEntries]

// ParseDocument reads an export document produced by Builder.Encode,
// keeping script and entry order.
func ParseDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export document: %w", err)
	}
	doc := orderedmap.New[string, *ScriptEntries]()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse export document: %w", err)
	}
	return doc, nil
}

// TranslatedScript is one script's section of a translation input
// document.
type TranslatedScript = orderedmap.OrderedMap[string, TranslatedEntry]

// TranslatedDocument mirrors Document with translated leaves; the
// translate step emits it in the same order as its input.
type TranslatedDocument = orderedmap.OrderedMap[string, *TranslatedScript]

// NewTranslatedScript returns an empty per-script section.
func NewTranslatedScript() *TranslatedScript {
	return orderedmap.New[string, TranslatedEntry]()
}

// NewTranslatedDocument returns an empty translated document.
func NewTranslatedDocument() *TranslatedDocument {
	return orderedmap.New[string, *TranslatedScript]()
}

// EncodeTranslated writes the indented translation input document to w.
func EncodeTranslated(w io.Writer, doc *TranslatedDocument) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal translated document: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write translated document: %w", err)
	}
	return nil
}
