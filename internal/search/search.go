package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a search request. EmbedKind narrows hits to documents
// containing at least one embed of that kind.
type Query struct {
	Text      string
	EmbedKind string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push documents into a search index.
type Indexer interface {
	IndexDocument(doc DocumentRecord) error
	DeleteDocument(id string) error
}

// DocumentRecord is the data we index for a document. Text is the plain text
// of the delta; Formulas holds formula and graph expressions so they are
// searchable even though they never appear in the text.
type DocumentRecord struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Formulas   []string `json:"formulas"`
	EmbedKinds []string `json:"embedKinds"`
}
