package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		Content: "<h1>Limits</h1><p>Consider <span class=\"ql-formula\">x^2</span></p>",
		Delta: Delta{Ops: []Op{
			TextOp("Limits", nil),
			TextOp("\n", map[string]any{"header": float64(1)}),
			TextOp("Consider ", map[string]any{"bold": true}),
			EmbedOp(EmbedFormula, "x^2"),
			TextOp(" and ", nil),
			EmbedOp(EmbedGraph, "sin(x)"),
			EmbedOp(EmbedImage, "/files/abc.png"),
			TextOp("\n", nil),
		}},
	}
}

func TestDecodeBlankYieldsEmptyDocument(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		doc, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, Empty(), doc)
		assert.NotNil(t, doc.Delta.Ops)
	}

	doc, err := DecodePtr(nil)
	require.NoError(t, err)
	assert.Equal(t, Document{Content: "", Delta: Delta{Ops: []Op{}}}, doc)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "broken json", raw: "{not json"},
		{name: "bare string", raw: `"hello"`},
		{name: "null literal", raw: "null"},
		{name: "array", raw: "[]"},
		{name: "ops not a list", raw: `{"content":"","delta":{"ops":"x"}}`},
		{name: "op without insert", raw: `{"content":"","delta":{"ops":[{"attributes":{"bold":true}}]}}`},
		{name: "numeric insert", raw: `{"content":"","delta":{"ops":[{"insert":3}]}}`},
		{name: "trailing data", raw: `{"content":""} {}`},
		{name: "trailing brace", raw: `{"content":""}}`},
		{name: "trailing bracket", raw: `{"content":""}]`},
		{name: "trailing braces after space", raw: `{"content":"a"}  }}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedDocument), "expected ErrMalformedDocument, got %v", err)
			var malformed *MalformedDocumentError
			assert.True(t, errors.As(err, &malformed))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	docs := []Document{
		Empty(),
		{Content: "plain", Delta: Delta{Ops: []Op{TextOp("plain\n", nil)}}},
		sampleDocument(),
	}

	for _, doc := range docs {
		raw, err := Encode(doc.Content, doc.Delta)
		require.NoError(t, err)

		decoded, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, doc, decoded)
	}
}

func TestRoundTripWithGoNumericAttributes(t *testing.T) {
	doc := Document{
		Content: "<h2>Title</h2>",
		Delta: Delta{Ops: []Op{
			TextOp("Title", nil),
			TextOp("\n", map[string]any{"header": 2, "indent": int64(1), "size": float32(1.5)}),
		}},
	}
	assert.Equal(t, float64(2), doc.Delta.Ops[1].Attributes["header"])

	raw, err := Encode(doc.Content, doc.Delta)
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestEncodeKeepsMarkupUnescaped(t *testing.T) {
	raw, err := Encode("<p>a & b</p>", Delta{})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"<p>a & b</p>","delta":{"ops":[]}}`, raw)
}

func TestDecodePreservesUnknownOperations(t *testing.T) {
	raw := `{"content":"x","delta":{"ops":[
		{"insert":{"video":"https://example.com/v"}},
		{"insert":{"mention":{"id":7,"name":"Ann"}}},
		{"retain":3,"attributes":{"bold":null}},
		{"delete":2}
	]}}`

	doc, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, doc.Delta.Ops, 4)

	assert.Equal(t, EmbedVideo, doc.Delta.Ops[0].Embed.Kind)
	assert.Equal(t, EmbedKind("mention"), doc.Delta.Ops[1].Embed.Kind)
	assert.JSONEq(t, `{"mention":{"id":7,"name":"Ann"}}`, string(doc.Delta.Ops[1].Embed.Raw))
	assert.Equal(t, 3, doc.Delta.Ops[2].Retain)
	assert.Equal(t, 2, doc.Delta.Ops[3].Delete)

	encoded, err := Encode(doc.Content, doc.Delta)
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestDecodeMissingDelta(t *testing.T) {
	doc, err := Decode(`{"content":"only text"}`)
	require.NoError(t, err)
	assert.Equal(t, "only text", doc.Content)
	assert.Equal(t, []Op{}, doc.Delta.Ops)
}

func TestSelectValueForMode(t *testing.T) {
	doc := sampleDocument()

	assert.Equal(t, doc.Delta, SelectValueForMode(doc, true))
	assert.Equal(t, Text(doc.Content), SelectValueForMode(doc, false))
}
