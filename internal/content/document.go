// Package content converts between the persisted document string and the
// in-memory pair of a content snapshot and a structured delta.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDocument is matched by every MalformedDocumentError.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDocumentError is returned by Decode for non-blank input that does not
// parse as a persisted document.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	if e == nil || e.Err == nil {
		return ErrMalformedDocument.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedDocument, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Document is the persisted unit: the editable snapshot and the canonical delta.
type Document struct {
	Content string `json:"content"`
	Delta   Delta  `json:"delta"`
}

// Empty returns the canonical empty document.
func Empty() Document {
	return Document{Content: "", Delta: Delta{Ops: []Op{}}}
}

// IsEmpty reports whether the document has no content and no operations.
func (d Document) IsEmpty() bool {
	return d.Content == "" && len(d.Delta.Ops) == 0
}

// Decode parses a persisted document. Blank input yields the canonical empty
// document; anything else must be a JSON object.
func Decode(raw string) (Document, error) {
	if strings.TrimSpace(raw) == "" {
		return Empty(), nil
	}

	trimmed := bytes.TrimSpace([]byte(raw))
	if trimmed[0] != '{' {
		return Document{}, &MalformedDocumentError{Err: fmt.Errorf("expected a JSON object")}
	}

	var wire struct {
		Content *string         `json:"content"`
		Delta   json.RawMessage `json:"delta"`
	}
	// Unmarshal rejects anything after the object, stray brackets included.
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Document{}, &MalformedDocumentError{Err: err}
	}

	doc := Empty()
	if wire.Content != nil {
		doc.Content = *wire.Content
	}
	if len(wire.Delta) > 0 && !bytes.Equal(wire.Delta, []byte("null")) {
		var delta Delta
		if err := json.Unmarshal(wire.Delta, &delta); err != nil {
			return Document{}, &MalformedDocumentError{Err: fmt.Errorf("delta: %w", err)}
		}
		if delta.Ops != nil {
			doc.Delta = delta
		}
	}
	return doc, nil
}

// DecodePtr treats a nil value like blank input.
func DecodePtr(raw *string) (Document, error) {
	if raw == nil {
		return Empty(), nil
	}
	return Decode(*raw)
}

// Encode produces the canonical persisted form of a document.
func Encode(content string, delta Delta) (string, error) {
	if delta.Ops == nil {
		delta.Ops = []Op{}
	}
	payload, err := marshal(Document{Content: content, Delta: delta})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(payload), nil
}

// Value is what an editor surface is seeded with: the delta for read-only
// consumers, the content snapshot for editable ones.
type Value interface {
	isValue()
}

// Text is the editable projection of a document.
type Text string

func (Text) isValue()  {}
func (Delta) isValue() {}

// SelectValueForMode projects a document for the given mode. Read-only views
// need the finished delta so embeds render; an editable surface only needs
// the snapshot and grows its own delta from user edits.
func SelectValueForMode(doc Document, readOnly bool) Value {
	if readOnly {
		return doc.Delta
	}
	return Text(doc.Content)
}
