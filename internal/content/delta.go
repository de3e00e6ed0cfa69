package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// EmbedKind tags a non-text insert.
type EmbedKind string

const (
	EmbedFormula EmbedKind = "formula"
	EmbedGraph   EmbedKind = "graph"
	EmbedImage   EmbedKind = "image"
	EmbedVideo   EmbedKind = "video"
)

// Known reports whether the kind is one the editor can render.
func (k EmbedKind) Known() bool {
	switch k {
	case EmbedFormula, EmbedGraph, EmbedImage, EmbedVideo:
		return true
	}
	return false
}

// Embed is the payload of an embed insert. Raw holds the original JSON object
// when the payload is not a single kind/string pair.
type Embed struct {
	Kind  EmbedKind
	Value string
	Raw   json.RawMessage
}

// Op is one delta operation. A document delta holds only inserts; retain and
// delete are kept so that a stored change delta survives a round trip.
// Attribute values are JSON-native: numbers are float64, as Decode produces
// them. TextOp converts other Go numeric types.
type Op struct {
	Insert     string
	Embed      *Embed
	Retain     int
	Delete     int
	Attributes map[string]any
}

// Delta is an ordered sequence of operations.
type Delta struct {
	Ops []Op `json:"ops"`
}

func TextOp(text string, attributes map[string]any) Op {
	return Op{Insert: text, Attributes: normalizeAttributes(attributes)}
}

func normalizeAttributes(attributes map[string]any) map[string]any {
	if attributes == nil {
		return nil
	}
	out := make(map[string]any, len(attributes))
	for key, value := range attributes {
		switch v := value.(type) {
		case int:
			out[key] = float64(v)
		case int8:
			out[key] = float64(v)
		case int16:
			out[key] = float64(v)
		case int32:
			out[key] = float64(v)
		case int64:
			out[key] = float64(v)
		case uint:
			out[key] = float64(v)
		case uint8:
			out[key] = float64(v)
		case uint16:
			out[key] = float64(v)
		case uint32:
			out[key] = float64(v)
		case uint64:
			out[key] = float64(v)
		case float32:
			out[key] = float64(v)
		default:
			out[key] = value
		}
	}
	return out
}

func EmbedOp(kind EmbedKind, value string) Op {
	return Op{Embed: &Embed{Kind: kind, Value: value}}
}

// IsText reports whether the op is a text insert.
func (o Op) IsText() bool {
	return o.Embed == nil && o.Retain == 0 && o.Delete == 0
}

// IsEmbed reports whether the op is an embed insert.
func (o Op) IsEmbed() bool {
	return o.Embed != nil
}

// Len is the op's length in document positions: runes for text, one for an embed.
func (o Op) Len() int {
	switch {
	case o.Embed != nil:
		return 1
	case o.Retain > 0 || o.Delete > 0:
		return 0
	default:
		return utf8.RuneCountInString(o.Insert)
	}
}

func (o Op) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	switch {
	case o.Embed != nil:
		if len(o.Embed.Raw) > 0 {
			out["insert"] = o.Embed.Raw
		} else {
			out["insert"] = map[string]string{string(o.Embed.Kind): o.Embed.Value}
		}
	case o.Retain > 0:
		out["retain"] = o.Retain
	case o.Delete > 0:
		out["delete"] = o.Delete
	default:
		out["insert"] = o.Insert
	}
	if len(o.Attributes) > 0 {
		out["attributes"] = o.Attributes
	}
	return marshal(out)
}

// marshal encodes without HTML escaping so the persisted form keeps markup
// in content snapshots readable.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (o *Op) UnmarshalJSON(data []byte) error {
	var fields struct {
		Insert     json.RawMessage `json:"insert"`
		Retain     *int            `json:"retain"`
		Delete     *int            `json:"delete"`
		Attributes map[string]any  `json:"attributes"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	op := Op{Attributes: fields.Attributes}
	switch {
	case len(fields.Insert) > 0:
		if err := op.decodeInsert(fields.Insert); err != nil {
			return err
		}
	case fields.Retain != nil:
		if *fields.Retain <= 0 {
			return fmt.Errorf("retain must be positive, got %d", *fields.Retain)
		}
		op.Retain = *fields.Retain
	case fields.Delete != nil:
		if *fields.Delete <= 0 {
			return fmt.Errorf("delete must be positive, got %d", *fields.Delete)
		}
		op.Delete = *fields.Delete
	default:
		return fmt.Errorf("operation has no insert, retain or delete")
	}
	*o = op
	return nil
}

func (o *Op) decodeInsert(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty insert")
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &o.Insert)
	case '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return err
		}
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return err
		}
		if len(payload) == 1 {
			for key, value := range payload {
				var text string
				if err := json.Unmarshal(value, &text); err == nil {
					o.Embed = &Embed{Kind: EmbedKind(key), Value: text}
					return nil
				}
				o.Embed = &Embed{Kind: EmbedKind(key), Raw: json.RawMessage(compact.Bytes())}
				return nil
			}
		}
		if len(payload) == 0 {
			return fmt.Errorf("embed insert has no kind")
		}
		o.Embed = &Embed{Raw: json.RawMessage(compact.Bytes())}
		return nil
	default:
		return fmt.Errorf("insert must be a string or an object")
	}
}

// Length is the number of document positions the delta spans.
func (d Delta) Length() int {
	total := 0
	for _, op := range d.Ops {
		total += op.Len()
	}
	return total
}

// PlainText joins the text inserts. Embeds contribute nothing.
func (d Delta) PlainText() string {
	var b strings.Builder
	for _, op := range d.Ops {
		if op.IsText() {
			b.WriteString(op.Insert)
		}
	}
	return b.String()
}

// Embeds returns the embed inserts in document order.
func (d Delta) Embeds() []Embed {
	items := make([]Embed, 0)
	for _, op := range d.Ops {
		if op.Embed != nil {
			items = append(items, *op.Embed)
		}
	}
	return items
}

// InsertAt returns a copy of the delta with op inserted at the given document
// position. Text inserts are split when the position falls inside one. The
// index is clamped to [0, Length()].
func (d Delta) InsertAt(index int, op Op) Delta {
	if index < 0 {
		index = 0
	}
	ops := make([]Op, 0, len(d.Ops)+2)
	inserted := false
	pos := 0
	for _, current := range d.Ops {
		if inserted {
			ops = append(ops, current)
			continue
		}
		length := current.Len()
		switch {
		case index <= pos:
			ops = append(ops, op, current)
			inserted = true
		case index < pos+length && current.IsText():
			runes := []rune(current.Insert)
			cut := index - pos
			before := current
			before.Insert = string(runes[:cut])
			after := current
			after.Insert = string(runes[cut:])
			ops = append(ops, before, op, after)
			inserted = true
		default:
			ops = append(ops, current)
		}
		pos += length
	}
	if !inserted {
		ops = append(ops, op)
	}
	return Delta{Ops: ops}
}
