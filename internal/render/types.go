// Package render turns documents into HTML, measures read-only renderings and
// exports them as HTML, PDF or DOCX.
package render

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Valid reports whether f is a supported export format
func (f Format) Valid() bool {
	switch f {
	case FormatHTML, FormatPDF, FormatDOCX:
		return true
	}
	return false
}

// Request contains parameters for an export operation
type Request struct {
	DocumentID string
	Version    string // "latest" or commit hash
	Format     Format
}

// DocumentInfo holds basic document metadata
type DocumentInfo struct {
	ID        string
	Title     string
	UpdatedBy string
	UpdatedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates document content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
