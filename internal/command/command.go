package command

import (
	"encoding/json"
	"fmt"
)

// Numeric wire codes, as stored in script files. They match the event
// command codes used by the RPG Maker family, which is where the script
// store's data ultimately comes from.
const (
	CodeSpeakerSet = 101 // face graphic / speaker setup
	CodeChoiceSet  = 102 // show choices
	CodeAnnotation = 108 // comment carrying an encoded marker
	CodeTextLine   = 401 // one line of message text
)

// Opcode is the semantic class of a command. Codes the engines do not
// interpret all collapse to OpOther.
type Opcode int

const (
	OpOther Opcode = iota
	OpSpeakerSet
	OpTextLine
	OpChoiceSet
	OpAnnotation
)

func (o Opcode) String() string {
	switch o {
	case OpSpeakerSet:
		return "SPEAKER_SET"
	case OpTextLine:
		return "TEXT_LINE"
	case OpChoiceSet:
		return "CHOICE_SET"
	case OpAnnotation:
		return "ANNOTATION"
	default:
		return "OTHER"
	}
}

// Command is one instruction in a Page. Code and Indent are preserved
// verbatim on any rewritten command; Params is an ordered list of opaque
// values whose count and meaning depend on the code.
type Command struct {
	Code   int
	Indent int
	Params []any
}

// Opcode returns the semantic class of the command's code.
func (c Command) Opcode() Opcode {
	switch c.Code {
	case CodeSpeakerSet:
		return OpSpeakerSet
	case CodeTextLine:
		return OpTextLine
	case CodeChoiceSet:
		return OpChoiceSet
	case CodeAnnotation:
		return OpAnnotation
	default:
		return OpOther
	}
}

// MalformedError reports a command whose parameters do not match the
// shape its code requires. It is fatal for the Page being processed.
type MalformedError struct {
	Code   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed command (code %d): %s", e.Code, e.Reason)
}

func malformed(code int, format string, args ...any) error {
	return &MalformedError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// NewSpeakerSet builds a SPEAKER_SET command. An empty name means the
// speaker is being erased.
func NewSpeakerSet(indent int, name string, index int) Command {
	return Command{Code: CodeSpeakerSet, Indent: indent, Params: []any{name, index}}
}

// NewTextLine builds a TEXT_LINE command holding one line of text.
func NewTextLine(indent int, text string) Command {
	return Command{Code: CodeTextLine, Indent: indent, Params: []any{text}}
}

// NewChoiceSet builds a CHOICE_SET command from its option strings.
func NewChoiceSet(indent int, options []string) Command {
	return Command{Code: CodeChoiceSet, Indent: indent, Params: []any{options}}
}

// NewAnnotation builds an ANNOTATION command holding one payload line.
func NewAnnotation(indent int, payload string) Command {
	return Command{Code: CodeAnnotation, Indent: indent, Params: []any{payload}}
}

// Text returns the text parameter of a TEXT_LINE or ANNOTATION command.
// A missing parameter reads as the empty string; a non-string parameter
// is a MalformedError.
func (c Command) Text() (string, error) {
	if len(c.Params) == 0 {
		return "", nil
	}
	s, ok := c.Params[0].(string)
	if !ok {
		return "", malformed(c.Code, "parameter 0 is %T, want string", c.Params[0])
	}
	return s, nil
}

// Speaker returns the name and index parameters of a SPEAKER_SET
// command. The name parameter is required; the index defaults to 0 when
// absent.
func (c Command) Speaker() (string, int, error) {
	if len(c.Params) == 0 {
		return "", 0, malformed(c.Code, "speaker command has no parameters")
	}
	name, ok := c.Params[0].(string)
	if !ok {
		return "", 0, malformed(c.Code, "speaker name is %T, want string", c.Params[0])
	}
	if len(c.Params) < 2 {
		return name, 0, nil
	}
	idx, err := asInt(c.Params[1])
	if err != nil {
		return "", 0, malformed(c.Code, "speaker index: %v", err)
	}
	return name, idx, nil
}

// Choices returns the option list of a CHOICE_SET command.
func (c Command) Choices() ([]string, error) {
	if len(c.Params) == 0 {
		return nil, malformed(c.Code, "choice command has no parameters")
	}
	switch v := c.Params[0].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, malformed(c.Code, "choice option %d is %T, want string", i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, malformed(c.Code, "parameter 0 is %T, want string list", c.Params[0])
	}
}

// SetChoices replaces the option list of a CHOICE_SET command in place.
func (c *Command) SetChoices(options []string) {
	if len(c.Params) == 0 {
		c.Params = []any{options}
		return
	}
	c.Params[0] = options
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("value is %T, want integer", v)
	}
}
