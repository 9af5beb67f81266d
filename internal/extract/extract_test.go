package extract

import (
	"errors"
	"testing"

	"event-translator/internal/command"
	"event-translator/internal/marker"
)

// entryList flattens an entry map for assertions.
func entryList(entries *Entries) []struct {
	Key   string
	Entry Entry
} {
	var out []struct {
		Key   string
		Entry Entry
	}
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, struct {
			Key   string
			Entry Entry
		}{pair.Key, pair.Value})
	}
	return out
}

func TestPageSpeakerAttribution(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewTextLine(0, "narrated opening"),
		command.NewSpeakerSet(0, "Alice", 0),
		command.NewTextLine(0, "アリスのセリフ"),
		command.NewSpeakerSet(0, "Bob", 1),
		command.NewTextLine(0, "ボブのセリフ"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Entry.SpeakerID != SpeakerNarration {
		t.Errorf("entry 0 speaker = %q, want %q", got[0].Entry.SpeakerID, SpeakerNarration)
	}
	if got[1].Key != "アリスのセリフ" || got[1].Entry.SpeakerID != "Alice_0" {
		t.Errorf("entry 1 = %q / %q", got[1].Key, got[1].Entry.SpeakerID)
	}
	if got[2].Entry.SpeakerID != "Bob_1" {
		t.Errorf("entry 2 speaker = %q, want Bob_1", got[2].Entry.SpeakerID)
	}
	for _, e := range got {
		if e.Entry.Marker != MarkerMessage {
			t.Errorf("entry %q marker = %q, want %q", e.Key, e.Entry.Marker, MarkerMessage)
		}
	}
}

func TestPageMergesContiguousLines(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewSpeakerSet(0, "Alice", 0),
		command.NewTextLine(0, "一行目"),
		command.NewTextLine(0, "二行目"),
		command.NewTextLine(0, "三行目"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1 merged message", len(got))
	}
	if got[0].Key != "一行目\n二行目\n三行目" {
		t.Errorf("merged key = %q", got[0].Key)
	}
}

func TestPageFlushOnInterveningCommand(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewTextLine(0, "first message"),
		{Code: 355, Indent: 0, Params: []any{"wait(10)"}}, // unrelated command
		command.NewTextLine(0, "second message"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 separate messages", len(got))
	}
	if got[0].Key != "first message" || got[1].Key != "second message" {
		t.Errorf("entries = %q, %q", got[0].Key, got[1].Key)
	}
}

func TestPageEmptySpeakerIsNarration(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewSpeakerSet(0, "Alice", 0),
		command.NewTextLine(0, "spoken"),
		command.NewSpeakerSet(0, "", 0),
		command.NewTextLine(0, "narrated again"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[1].Entry.SpeakerID != SpeakerNarration {
		t.Errorf("after speaker erase, speaker = %q, want %q", got[1].Entry.SpeakerID, SpeakerNarration)
	}
}

func TestPageChoices(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewSpeakerSet(0, "Guide", 0),
		command.NewTextLine(0, "どうする？"),
		command.NewChoiceSet(0, []string{"はい", "", "いいえ"}),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want message + 2 options", len(got))
	}
	// Buffered text flushes before the options.
	if got[0].Key != "どうする？" || got[0].Entry.Marker != MarkerMessage {
		t.Errorf("entry 0 = %q / %q", got[0].Key, got[0].Entry.Marker)
	}
	for _, e := range got[1:] {
		if e.Entry.Marker != MarkerChoice {
			t.Errorf("option %q marker = %q, want %q", e.Key, e.Entry.Marker, MarkerChoice)
		}
		if e.Entry.SpeakerID != "Guide_0" {
			t.Errorf("option %q speaker = %q, want Guide_0", e.Key, e.Entry.SpeakerID)
		}
	}
}

func TestPageDuplicateKeepsPositionTakesLatest(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewSpeakerSet(0, "Alice", 0),
		command.NewTextLine(0, "……"),
		command.NewSpeakerSet(0, "Bob", 0),
		command.NewTextLine(0, "ボブ"),
		command.NewSpeakerSet(0, "Carol", 0),
		command.NewTextLine(0, "……"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (duplicate collapsed)", len(got))
	}
	if got[0].Key != "……" {
		t.Errorf("duplicate did not keep its original position: first key = %q", got[0].Key)
	}
	if got[0].Entry.SpeakerID != "Carol_0" {
		t.Errorf("duplicate speaker = %q, want the latest (Carol_0)", got[0].Entry.SpeakerID)
	}
}

func TestPageWidensKanaInTextOnly(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewTextLine(0, "ﾊﾛｰ"),
	}}
	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 1 {
		t.Fatalf("got %d entries", len(got))
	}
	// The key stays byte-identical to the script; Text carries the
	// widened form.
	if got[0].Key != "ﾊﾛｰ" {
		t.Errorf("key = %q, want the raw script text", got[0].Key)
	}
	if got[0].Entry.Text != "ハロー" {
		t.Errorf("Text = %q, want widened %q", got[0].Entry.Text, "ハロー")
	}
}

func TestPageAnnotationFlushesByDefault(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewTextLine(0, "before"),
		command.NewAnnotation(0, marker.Encode("original")),
		command.NewTextLine(0, "after"),
	}}

	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Key != "before" || got[1].Key != "after" {
		t.Errorf("entries = %q, %q; marker must not be honored without RecoverOriginals", got[0].Key, got[1].Key)
	}
}

func TestPageRecoverOriginals(t *testing.T) {
	// Shape of a block a previous import produced: marker, speaker,
	// translated lines.
	p := command.Page{Commands: []command.Command{
		command.NewAnnotation(0, marker.Encode("元のテキスト\n二行目")),
		command.NewSpeakerSet(0, "Alice", 0),
		command.NewTextLine(0, "Translated text"),
		command.NewTextLine(0, "second line"),
		command.NewTextLine(0, "third line"),
		{Code: 355, Indent: 0},
		command.NewTextLine(0, "untranslated message"),
	}}

	entries, err := Page(p, Options{RecoverOriginals: true})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Key != "元のテキスト\n二行目" {
		t.Errorf("recovered key = %q, want the decoded original", got[0].Key)
	}
	if got[0].Entry.SpeakerID != "Alice_0" {
		t.Errorf("recovered speaker = %q, want Alice_0", got[0].Entry.SpeakerID)
	}
	if got[1].Key != "untranslated message" {
		t.Errorf("entry 1 = %q, want the plain message", got[1].Key)
	}
}

func TestPageRecoverOriginalsAtEnd(t *testing.T) {
	// A marker as the last command still exports its original.
	p := command.Page{Commands: []command.Command{
		command.NewAnnotation(0, marker.Encode("tail original")),
	}}
	entries, err := Page(p, Options{RecoverOriginals: true})
	if err != nil {
		t.Fatal(err)
	}
	got := entryList(entries)
	if len(got) != 1 || got[0].Key != "tail original" {
		t.Fatalf("entries = %+v, want the pending original emitted", got)
	}
}

func TestPageMalformedCommand(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		{Code: command.CodeTextLine, Indent: 0, Params: []any{42}},
	}}
	_, err := Page(p, Options{})
	if err == nil {
		t.Fatal("Page accepted a malformed text command")
	}
	var me *command.MalformedError
	if !errors.As(err, &me) {
		t.Errorf("error is %T, want *command.MalformedError", err)
	}
}

func TestPageEmptyLinesDropped(t *testing.T) {
	p := command.Page{Commands: []command.Command{
		command.NewTextLine(0, ""),
		{Code: 355, Indent: 0},
		command.NewChoiceSet(0, []string{"", ""}),
	}}
	entries, err := Page(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if entries.Len() != 0 {
		t.Errorf("got %d entries, want none for whitespace-free empty text", entries.Len())
	}
}

func TestSpeakerID(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{name: "Alice", index: 0, want: "Alice_0"},
		{name: "Alice", index: 3, want: "Alice_3"},
		{name: "", index: 0, want: SpeakerNarration},
		{name: "   ", index: 1, want: SpeakerNarration},
		{name: " Bob ", index: 2, want: "Bob_2"},
	}
	for _, tt := range tests {
		if got := SpeakerID(tt.name, tt.index); got != tt.want {
			t.Errorf("SpeakerID(%q, %d) = %q, want %q", tt.name, tt.index, got, tt.want)
		}
	}
}
