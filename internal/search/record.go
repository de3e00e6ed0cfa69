package search

import (
	"sort"
	"strings"

	"docpad/api/internal/content"
)

// RecordFromValue builds an index record from a persisted document value.
// A malformed value indexes the title only.
func RecordFromValue(id, title, value string) DocumentRecord {
	rec := DocumentRecord{ID: id, Title: title, Formulas: []string{}, EmbedKinds: []string{}}
	doc, err := content.Decode(value)
	if err != nil {
		return rec
	}
	rec.Text = strings.TrimSpace(doc.Delta.PlainText())

	kinds := make(map[string]struct{})
	for _, e := range doc.Delta.Embeds() {
		kinds[string(e.Kind)] = struct{}{}
		if e.Kind == content.EmbedFormula || e.Kind == content.EmbedGraph {
			rec.Formulas = append(rec.Formulas, e.Value)
		}
	}
	for k := range kinds {
		rec.EmbedKinds = append(rec.EmbedKinds, k)
	}
	sort.Strings(rec.EmbedKinds)
	return rec
}
