package export

import (
	"bytes"
	"strings"
	"testing"

	"event-translator/internal/extract"
)

func entriesOf(t *testing.T, pairs ...[2]string) *extract.Entries {
	t.Helper()
	out := extract.NewEntries()
	for _, p := range pairs {
		out.Set(p[0], extract.Entry{
			Text:      p[0],
			Marker:    extract.MarkerMessage,
			SpeakerID: p[1],
		})
	}
	return out
}

func TestBuilderOrdering(t *testing.T) {
	b := NewBuilder()
	b.Add("Map002", entriesOf(t, [2]string{"zeta", "A_0"}, [2]string{"alpha", "B_0"}))
	b.Add("Map001", entriesOf(t, [2]string{"middle", "C_0"}))

	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	// Scripts and entries appear in insertion order, not sorted.
	iMap2 := strings.Index(out, `"Map002"`)
	iMap1 := strings.Index(out, `"Map001"`)
	if iMap2 < 0 || iMap1 < 0 || iMap2 > iMap1 {
		t.Errorf("script order wrong in output:\n%s", out)
	}
	iZeta := strings.Index(out, `"zeta"`)
	iAlpha := strings.Index(out, `"alpha"`)
	if iZeta < 0 || iAlpha < 0 || iZeta > iAlpha {
		t.Errorf("entry order wrong in output:\n%s", out)
	}

	if b.Len() != 3 || b.Scripts() != 2 {
		t.Errorf("Len = %d, Scripts = %d", b.Len(), b.Scripts())
	}
}

func TestBuilderMergesAcrossPages(t *testing.T) {
	b := NewBuilder()
	b.Add("Map001", entriesOf(t, [2]string{"shared", "A_0"}))
	b.Add("Map001", entriesOf(t, [2]string{"shared", "B_0"}, [2]string{"new", "B_0"}))

	if b.Len() != 2 {
		t.Fatalf("Len = %d, want duplicate collapsed to 2", b.Len())
	}
	section, ok := b.scripts.Get("Map001")
	if !ok {
		t.Fatal("script section missing")
	}
	entry, ok := section.Get("shared")
	if !ok || entry.SpeakerID != "B_0" {
		t.Errorf("duplicate entry = %+v, want the latest speaker", entry)
	}
	if first := section.Oldest(); first.Key != "shared" {
		t.Errorf("duplicate lost its position: first key = %q", first.Key)
	}
}

func TestBuilderNormalizesNewlines(t *testing.T) {
	b := NewBuilder()
	entries := extract.NewEntries()
	entries.Set("line one\r\nline two", extract.Entry{
		Text:      "line one\r\nline two",
		Marker:    extract.MarkerMessage,
		SpeakerID: "A_0",
	})
	b.Add("Map001", entries)

	section, _ := b.scripts.Get("Map001")
	entry, ok := section.Get("line one\nline two")
	if !ok {
		t.Fatal("key was not normalized to LF")
	}
	if entry.TextToTranslate != "line one\nline two" {
		t.Errorf("TextToTranslate = %q", entry.TextToTranslate)
	}
}

func TestBuilderSkipsEmpty(t *testing.T) {
	b := NewBuilder()
	b.Add("Map001", extract.NewEntries())
	b.Add("Map002", nil)
	if b.Scripts() != 0 {
		t.Errorf("empty sections were added: Scripts = %d", b.Scripts())
	}
}

func TestEncodeDocumentShape(t *testing.T) {
	b := NewBuilder()
	b.Add("Map001", entriesOf(t, [2]string{"こんにちは", "Alice_0"}))

	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"text_to_translate"`, `"original_marker"`, `"speaker_id"`, `"Alice_0"`, `"Message"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("output missing trailing newline")
	}
}

func TestParseTranslationsLookup(t *testing.T) {
	doc := `{
        "Map001": {
            "こんにちは": {"text": "Hello"},
            "さようなら": {"text": ""},
            "crlf\r\ntext": {"text": "one\r\ntwo"}
        },
        "Map002": {}
    }`
	translations, err := ParseTranslations(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}

	lookup := translations.Lookup("Map001")
	if got := lookup["こんにちは"]; got != "Hello" {
		t.Errorf("lookup = %q, want Hello", got)
	}
	// Empty translations are omitted entirely.
	if _, ok := lookup["さようなら"]; ok {
		t.Error("empty translation survived into the lookup")
	}
	// Keys and values are normalized to LF.
	if got := lookup["crlf\ntext"]; got != "one\ntwo" {
		t.Errorf("normalized lookup = %q", got)
	}

	if got := translations.Lookup("Map002"); got != nil {
		t.Errorf("empty section lookup = %v, want nil", got)
	}
	if got := translations.Lookup("absent"); got != nil {
		t.Errorf("absent section lookup = %v, want nil", got)
	}
}

func TestParseDocumentRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add("Map010", entriesOf(t, [2]string{"b-text", "A_0"}, [2]string{"a-text", "A_0"}))
	b.Add("Map002", entriesOf(t, [2]string{"c-text", "B_0"}))

	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	doc, err := ParseDocument(&buf)
	if err != nil {
		t.Fatal(err)
	}

	var scripts []string
	var texts []string
	for s := doc.Oldest(); s != nil; s = s.Next() {
		scripts = append(scripts, s.Key)
		for e := s.Value.Oldest(); e != nil; e = e.Next() {
			texts = append(texts, e.Value.TextToTranslate)
		}
	}
	if len(scripts) != 2 || scripts[0] != "Map010" || scripts[1] != "Map002" {
		t.Errorf("script order after parse = %v", scripts)
	}
	if len(texts) != 3 || texts[0] != "b-text" || texts[1] != "a-text" {
		t.Errorf("entry order after parse = %v", texts)
	}
}

func TestEncodeTranslated(t *testing.T) {
	doc := NewTranslatedDocument()
	section := NewTranslatedScript()
	section.Set("original", TranslatedEntry{Text: "translated"})
	doc.Set("Map001", section)

	var buf bytes.Buffer
	if err := EncodeTranslated(&buf, doc); err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseTranslations(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("translated output does not parse back: %v", err)
	}
	if got := parsed.Lookup("Map001")["original"]; got != "translated" {
		t.Errorf("round trip = %q", got)
	}
}
