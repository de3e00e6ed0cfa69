package render

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"docpad/api/internal/content"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetDocumentInfo(ctx context.Context, id string) (DocumentInfo, error)
	GetDocumentValue(ctx context.Context, documentID, version string) (string, error)
}

// Service renders and exports documents
type Service struct {
	store DataStore
	math  MathRenderer
}

// NewService creates a new render service. A nil math renderer shows
// expressions as code.
func NewService(store DataStore, math MathRenderer) *Service {
	if math == nil {
		math = PlainMath
	}
	return &Service{store: store, math: math}
}

// ContentHTML renders a delta to sanitized HTML.
func (s *Service) ContentHTML(delta content.Delta) string {
	return Sanitize(DeltaToHTML(delta, s.math))
}

// Preview renders a read-only view page for a delta.
func (s *Service) Preview(delta content.Delta, data PreviewData) (string, error) {
	data.ContentHTML = template.HTML(s.ContentHTML(delta))
	return RenderPreviewHTML(data)
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if !req.Format.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	info, err := s.store.GetDocumentInfo(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	raw, err := s.store.GetDocumentValue(ctx, req.DocumentID, req.Version)
	if err != nil {
		return nil, errors.Join(ErrContentUnavailable, err)
	}
	doc, err := content.Decode(raw)
	if err != nil {
		return nil, errors.Join(ErrContentUnavailable, err)
	}

	html, err := RenderDocumentHTML(TemplateData{
		Title:       info.Title,
		ContentHTML: template.HTML(s.ContentHTML(doc.Delta)),
		Author:      info.UpdatedBy,
		UpdatedAt:   info.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, info.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, info.Title)
	default:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(info.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	}
}
