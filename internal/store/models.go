package store

import "time"

// Document is a stored rich document. Value is the persisted string
// ({"content", "delta"} JSON or blank); PlainText and ContentHash are derived
// from it on every save.
type Document struct {
	ID          string
	Title       string
	Value       string
	PlainText   string
	ContentHash string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileAsset records an upload made through the API.
type FileAsset struct {
	Name         string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	DocumentID   *string
	UploadedBy   string
	UploadedAt   time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Added     int
	Removed   int
}
