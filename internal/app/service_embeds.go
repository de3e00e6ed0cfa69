package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"docpad/api/internal/content"
	"docpad/api/internal/editor"
	"docpad/api/internal/embed"
	"docpad/api/internal/store"
	"docpad/api/internal/upload"
)

// EmbedInput asks for an embed. For formula and graph, Value stands in for
// what the user typed at the prompt. For image it names a file uploaded
// earlier. A blank value cancels.
type EmbedInput struct {
	Kind    content.EmbedKind `json:"kind"`
	Index   int               `json:"index"`
	Value   string            `json:"value"`
	Current string            `json:"current"`
}

var errUploadsDisabled = domainError(http.StatusServiceUnavailable, "UPLOADS_DISABLED", "File uploads are not configured", nil)

func (s *Service) InsertEmbed(ctx context.Context, documentID string, input EmbedInput, userName string) (map[string]any, error) {
	prompter := embed.Answer(input.Value)
	registry := embed.NewRegistry(embed.NewFormulaEmbed(prompter), embed.NewGraphEmbed(prompter))
	if input.Kind == content.EmbedImage {
		if s.files == nil {
			return nil, errUploadsDisabled
		}
		registry = embed.NewRegistry(storedImage{files: s.files, name: strings.TrimSpace(input.Value)})
	}
	return s.runEmbed(ctx, documentID, registry, input.Kind, input.Index, input.Current, userName)
}

// InsertImage uploads file through the configured gateway and inserts the
// resulting URL as an image embed.
func (s *Service) InsertImage(ctx context.Context, documentID string, index int, file upload.File, userName string) (map[string]any, error) {
	if s.files == nil {
		return nil, errUploadsDisabled
	}
	gateway := &recordingGateway{Gateway: s.files}
	registry := embed.NewRegistry(embed.NewImageEmbed(embed.SelectedFile{File: &file}, gateway))

	payload, err := s.runEmbed(ctx, documentID, registry, content.EmbedImage, index, "", userName)
	if attempted, uploadErr := gateway.outcome(); attempted {
		s.metrics.ObserveUpload(uploadErr)
	}
	if name := gateway.storedName(); name != "" {
		docID := documentID
		s.recordAsset(ctx, store.FileAsset{
			Name:         name,
			OriginalName: file.Name,
			ContentType:  file.ContentType,
			SizeBytes:    file.Size,
			DocumentID:   &docID,
			UploadedBy:   userName,
		})
	}
	return payload, err
}

func (s *Service) runEmbed(ctx context.Context, documentID string, registry *embed.Registry, kind content.EmbedKind, index int, current, userName string) (map[string]any, error) {
	var payload map[string]any
	err := s.serializer.Do(ctx, documentID, func(ctx context.Context) error {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		surface, err := editor.Initialize(editor.Config{
			Label:       editorLabel,
			Placeholder: editorHint,
			Value:       doc.Value,
		},
			editor.WithRegistry(registry),
			editor.WithEngine(s.engine),
			editor.WithSnapshot(s.render.ContentHTML),
		)
		if err != nil {
			s.metrics.DecodeFailuresTotal.Inc()
			return malformedError(err)
		}

		result, err := surface.InsertEmbed(ctx, kind, index, current)
		if err != nil {
			s.metrics.ObserveEmbed(string(kind), "failed")
			return err
		}
		if !result.Inserted {
			s.metrics.ObserveEmbed(string(kind), "cancelled")
			payload = map[string]any{"inserted": false, "kind": kind}
			return nil
		}
		s.metrics.ObserveEmbed(string(kind), "inserted")

		saved, err := s.persist(ctx, doc, doc.Title, result.Serialized, userName, "Insert "+string(kind))
		if err != nil {
			return err
		}
		saved["inserted"] = true
		saved["kind"] = kind
		saved["embedValue"] = result.Value
		payload = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// UploadFile stores an image outside of any embed, e.g. for a client that
// inserts the URL itself.
func (s *Service) UploadFile(ctx context.Context, file upload.File, documentID, userName string) (upload.Response, error) {
	if s.files == nil {
		return upload.Response{}, errUploadsDisabled
	}
	if !embed.IsAcceptedImageType(file.ContentType) {
		return upload.Response{}, embed.ErrUnsupportedImageType
	}
	res, err := s.files.Upload(ctx, file)
	s.metrics.ObserveUpload(err)
	if err != nil {
		return upload.Response{}, &embed.UploadFailureError{Err: err}
	}
	name, err := res.FirstName()
	if err != nil {
		return upload.Response{}, &embed.UploadFailureError{Err: err}
	}

	asset := store.FileAsset{
		Name:         name,
		OriginalName: file.Name,
		ContentType:  file.ContentType,
		SizeBytes:    file.Size,
		UploadedBy:   userName,
	}
	if documentID != "" {
		asset.DocumentID = &documentID
	}
	s.recordAsset(ctx, asset)
	return res, nil
}

func (s *Service) OpenFile(ctx context.Context, name string) (io.ReadCloser, upload.Info, error) {
	if s.files == nil {
		return nil, upload.Info{}, errUploadsDisabled
	}
	if !upload.ValidName(name) {
		return nil, upload.Info{}, upload.ErrNotFound
	}
	return s.files.Open(ctx, name)
}

func (s *Service) ListFiles(ctx context.Context, documentID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	assets, err := s.store.ListFileAssets(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		url := ""
		if s.files != nil {
			url = s.files.URL(asset.Name)
		}
		items = append(items, map[string]any{
			"name":         asset.Name,
			"originalName": asset.OriginalName,
			"contentType":  asset.ContentType,
			"size":         asset.SizeBytes,
			"url":          url,
			"uploadedBy":   asset.UploadedBy,
			"uploadedAt":   asset.UploadedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"documentId": documentID, "files": items}, nil
}

// recordAsset keeps the upload ledger. The file is already stored, so a
// failed insert is logged rather than failing the request.
func (s *Service) recordAsset(ctx context.Context, asset store.FileAsset) {
	if err := s.store.InsertFileAsset(ctx, asset); err != nil {
		s.log.Warn().Err(err).Str("file", asset.Name).Msg("record file asset")
	}
}

// recordingGateway remembers what the wrapped gateway stored.
type recordingGateway struct {
	upload.Gateway

	mu        sync.Mutex
	attempted bool
	err       error
	name      string
}

func (g *recordingGateway) Upload(ctx context.Context, file upload.File) (upload.Response, error) {
	res, err := g.Gateway.Upload(ctx, file)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempted = true
	g.err = err
	if err == nil {
		g.name, _ = res.FirstName()
	}
	return res, err
}

func (g *recordingGateway) outcome() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempted, g.err
}

func (g *recordingGateway) storedName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.name
}

// storedImage resolves an image embed to a file that is already stored.
type storedImage struct {
	files upload.Store
	name  string
}

func (h storedImage) Kind() content.EmbedKind { return content.EmbedImage }

func (h storedImage) Handle(ctx context.Context, _ string) (string, error) {
	if h.name == "" {
		return "", embed.ErrCancelled
	}
	if !upload.ValidName(h.name) {
		return "", upload.ErrNotFound
	}
	body, _, err := h.files.Open(ctx, h.name)
	if err != nil {
		return "", err
	}
	closeQuietly(body)
	return h.files.URL(h.name), nil
}
