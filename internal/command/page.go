package command

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Page is the ordered command sequence of one event variant. Commands
// are never reordered; the reinsertion engine only replaces contiguous
// ranges.
type Page struct {
	Commands []Command `json:"commands"`
}

// Splice replaces the inclusive index range [start, end] with repl.
func (p *Page) Splice(start, end int, repl []Command) {
	out := make([]Command, 0, len(p.Commands)-(end-start+1)+len(repl))
	out = append(out, p.Commands[:start]...)
	out = append(out, repl...)
	out = append(out, p.Commands[end+1:]...)
	p.Commands = out
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	cmds := make([]Command, len(p.Commands))
	for i, c := range p.Commands {
		cmds[i] = Command{Code: c.Code, Indent: c.Indent, Params: cloneParams(c.Params)}
	}
	return Page{Commands: cmds}
}

func cloneParams(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, v := range params {
		switch t := v.(type) {
		case []string:
			out[i] = append([]string(nil), t...)
		case []any:
			out[i] = cloneParams(t)
		default:
			out[i] = v
		}
	}
	return out
}

// Equal reports structural equality: codes, indents and parameters.
func (p Page) Equal(other Page) bool {
	if len(p.Commands) != len(other.Commands) {
		return false
	}
	for i := range p.Commands {
		a, b := p.Commands[i], other.Commands[i]
		if a.Code != b.Code || a.Indent != b.Indent {
			return false
		}
		if !reflect.DeepEqual(a.Params, b.Params) {
			return false
		}
	}
	return true
}

// commandJSON is the on-disk shape of a command.
type commandJSON struct {
	Code       int   `json:"code"`
	Indent     int   `json:"indent"`
	Parameters []any `json:"parameters,omitempty"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandJSON{Code: c.Code, Indent: c.Indent, Parameters: c.Params})
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var raw commandJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	c.Code = raw.Code
	c.Indent = raw.Indent
	c.Params = normalizeParams(raw.Parameters)
	return nil
}

// normalizeParams rewrites the loosely typed values encoding/json
// produces into the forms the accessors and Equal expect: integral
// floats become ints, homogeneous string lists become []string.
func normalizeParams(params []any) []any {
	for i, v := range params {
		switch t := v.(type) {
		case float64:
			if t == float64(int(t)) {
				params[i] = int(t)
			}
		case []any:
			if ss, ok := allStrings(t); ok {
				params[i] = ss
			} else {
				params[i] = normalizeParams(t)
			}
		}
	}
	return params
}

func allStrings(vals []any) ([]string, bool) {
	out := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}
