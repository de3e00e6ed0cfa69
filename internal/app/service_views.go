package app

import (
	"context"
	"time"

	"docpad/api/internal/editor"
	"docpad/api/internal/preview"
	"docpad/api/internal/render"
	"docpad/api/internal/store"
	"docpad/api/internal/truncate"
	"docpad/api/internal/util"
)

func (s *Service) viewTTL() time.Duration {
	if s.cfg.ViewTTL > 0 {
		return s.cfg.ViewTTL
	}
	return defaultViewTTL
}

func (s *Service) readOnlySurface(doc store.Document, showAll bool) (*editor.Surface, error) {
	surface, err := editor.Initialize(editor.Config{
		Label:     editorLabel,
		ReadOnly:  true,
		Value:     doc.Value,
		IsShowAll: showAll,
	}, editor.WithEngine(s.engine))
	if err != nil {
		s.metrics.DecodeFailuresTotal.Inc()
		return nil, malformedError(err)
	}
	return surface, nil
}

// CreateView opens a read-only view of a document and measures it once.
// Measurements are cached per content hash, so unchanged documents are not
// laid out again.
func (s *Service) CreateView(ctx context.Context, documentID string, showAll bool) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	surface, err := s.readOnlySurface(doc, showAll)
	if err != nil {
		return nil, err
	}

	hash := preview.ContentHash(doc.Value)
	lines, cached, err := s.views.CachedMeasurement(ctx, hash)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("read cached measurement")
		cached = false
	}
	if cached {
		surface.Restore(truncate.State{MeasuredLines: lines})
	} else {
		height, err := s.measure(ctx, doc, surface)
		if err != nil {
			return nil, err
		}
		surface.OnMountMeasurement(height)
		if err := s.views.SaveMeasurement(ctx, hash, surface.State().MeasuredLines, s.viewTTL()); err != nil {
			s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("cache measurement")
		}
	}

	view := preview.View{
		ID:            util.NewID("view"),
		DocumentID:    doc.ID,
		ContentHash:   hash,
		MeasuredLines: surface.State().MeasuredLines,
		ShowAll:       showAll,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.views.SaveView(ctx, view, s.viewTTL()); err != nil {
		return nil, err
	}
	s.metrics.ObservePreview(string(surface.VisualClass()))
	return s.viewPayload(doc, view, surface), nil
}

func (s *Service) measure(ctx context.Context, doc store.Document, surface *editor.Surface) (float64, error) {
	delta := surface.Document().Delta
	page, err := s.render.Preview(delta, render.PreviewData{
		Title: doc.Title,
		Label: surface.Label(),
		Class: truncate.ClassShowAll,
	})
	if err != nil {
		return 0, err
	}
	return s.measurer.Measure(ctx, page, delta)
}

func (s *Service) GetView(ctx context.Context, viewID string) (map[string]any, error) {
	view, doc, surface, err := s.loadView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return s.viewPayload(doc, view, surface), nil
}

// ToggleView flips a view between clipped and expanded. Views that never
// overflowed keep showing everything.
func (s *Service) ToggleView(ctx context.Context, viewID string) (map[string]any, error) {
	view, doc, surface, err := s.loadView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	surface.Toggle()
	view.Expanded = surface.State().Expanded
	if err := s.views.SaveView(ctx, view, s.viewTTL()); err != nil {
		return nil, err
	}
	return s.viewPayload(doc, view, surface), nil
}

func (s *Service) DeleteView(ctx context.Context, viewID string) error {
	return s.views.DeleteView(ctx, viewID)
}

// ViewPage renders a view as a standalone HTML page.
func (s *Service) ViewPage(ctx context.Context, viewID string) (string, error) {
	_, doc, surface, err := s.loadView(ctx, viewID)
	if err != nil {
		return "", err
	}
	return s.render.Preview(surface.Document().Delta, render.PreviewData{
		Title:       doc.Title,
		Label:       surface.Label(),
		Class:       surface.VisualClass(),
		ShowToggle:  surface.ShowToggle(),
		ToggleLabel: surface.ToggleLabel(),
	})
}

func (s *Service) loadView(ctx context.Context, viewID string) (preview.View, store.Document, *editor.Surface, error) {
	view, err := s.views.LookupView(ctx, viewID)
	if err != nil {
		return preview.View{}, store.Document{}, nil, err
	}
	doc, err := s.store.GetDocument(ctx, view.DocumentID)
	if err != nil {
		return preview.View{}, store.Document{}, nil, err
	}
	surface, err := s.readOnlySurface(doc, view.ShowAll)
	if err != nil {
		return preview.View{}, store.Document{}, nil, err
	}
	surface.Restore(view.State())
	return view, doc, surface, nil
}

func (s *Service) viewPayload(doc store.Document, view preview.View, surface *editor.Surface) map[string]any {
	display := surface.View()
	return map[string]any{
		"view": map[string]any{
			"id":            view.ID,
			"documentId":    view.DocumentID,
			"class":         display.Class,
			"showToggle":    display.ShowToggle,
			"toggleLabel":   display.ToggleLabel,
			"expanded":      view.Expanded,
			"showAll":       view.ShowAll,
			"measuredLines": view.MeasuredLines,
			"stale":         view.ContentHash != preview.ContentHash(doc.Value),
			"createdAt":     view.CreatedAt.Format(time.RFC3339),
		},
		"document": documentPayload(doc),
		"label":    surface.Label(),
		"value":    surface.Value(),
		"html":     s.render.ContentHTML(surface.Document().Delta),
	}
}
