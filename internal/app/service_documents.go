package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docpad/api/internal/content"
	"docpad/api/internal/editor"
	"docpad/api/internal/gitrepo"
	"docpad/api/internal/preview"
	"docpad/api/internal/render"
	"docpad/api/internal/store"
	"docpad/api/internal/util"
)

// SaveInput is a document update. Value replaces the persisted string as is;
// Content and Delta form a change event that is encoded first. The two forms
// are exclusive.
type SaveInput struct {
	Title   *string        `json:"title"`
	Value   *string        `json:"value"`
	Content *string        `json:"content"`
	Delta   *content.Delta `json:"delta"`
}

func (in SaveInput) isChangeEvent() bool {
	return in.Content != nil || in.Delta != nil
}

func documentPayload(doc store.Document) map[string]any {
	return map[string]any{
		"id":          doc.ID,
		"title":       doc.Title,
		"excerpt":     excerpt(doc.PlainText),
		"contentHash": doc.ContentHash,
		"updatedBy":   doc.UpdatedBy,
		"createdAt":   doc.CreatedAt.Format(time.RFC3339),
		"updatedAt":   doc.UpdatedAt.Format(time.RFC3339),
	}
}

func commitPayload(item store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      item.Hash,
		"message":   item.Message,
		"author":    item.Author,
		"createdAt": item.CreatedAt.Format(time.RFC3339),
		"meta":      fmt.Sprintf("%s · %s · +%d -%d lines", item.Author, relative(item.CreatedAt), item.Added, item.Removed),
	}
}

func (s *Service) ListDocuments(ctx context.Context) ([]map[string]any, error) {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		items = append(items, documentPayload(doc))
	}
	return items, nil
}

func (s *Service) CreateDocument(ctx context.Context, title, value, userName string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	parsed, err := content.Decode(value)
	if err != nil {
		s.metrics.DecodeFailuresTotal.Inc()
		return nil, malformedError(err)
	}

	doc := store.Document{
		ID:          util.NewID("doc"),
		Title:       title,
		Value:       value,
		PlainText:   parsed.Delta.PlainText(),
		ContentHash: preview.ContentHash(value),
		UpdatedBy:   userName,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.git.EnsureDocumentRepo(doc.ID, gitrepo.Content{Title: doc.Title, Value: doc.Value}, userName); err != nil {
		return nil, err
	}
	s.indexDocument(doc.ID, doc.Title, doc.Value)

	created, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": documentPayload(created)}, nil
}

// GetDocument opens a document in a surface and returns the projection the
// surface shows: the delta when read-only, the HTML content when editing.
func (s *Service) GetDocument(ctx context.Context, documentID string, readOnly bool) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	surface, err := editor.Initialize(editor.Config{
		Label:       editorLabel,
		Placeholder: editorHint,
		ReadOnly:    readOnly,
		Value:       doc.Value,
	}, editor.WithEngine(s.engine))
	if err != nil {
		s.metrics.DecodeFailuresTotal.Inc()
		return nil, malformedError(err)
	}

	mode := "edit"
	if readOnly {
		mode = "read"
	}
	payload := map[string]any{
		"document":    documentPayload(doc),
		"mode":        mode,
		"label":       surface.Label(),
		"placeholder": surface.Placeholder(),
		"value":       surface.Value(),
	}
	if readOnly {
		payload["html"] = s.render.ContentHTML(surface.Document().Delta)
	} else {
		payload["toolbar"] = editor.Toolbar
		payload["formats"] = editor.Formats
		payload["embeds"] = editor.EmbedActions
	}
	return payload, nil
}

// SaveDocument applies an update and persists it. Writes to one document are
// serialized with its embed interactions.
func (s *Service) SaveDocument(ctx context.Context, documentID string, input SaveInput, userName string) (map[string]any, error) {
	if input.Value != nil && input.isChangeEvent() {
		return nil, validationError("send either value or content and delta")
	}
	var payload map[string]any
	err := s.serializer.Do(ctx, documentID, func(ctx context.Context) error {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}

		title := doc.Title
		if input.Title != nil {
			title = strings.TrimSpace(*input.Title)
			if title == "" {
				return validationError("title is required")
			}
		}

		value := doc.Value
		switch {
		case input.Value != nil:
			if _, err := content.Decode(*input.Value); err != nil {
				s.metrics.DecodeFailuresTotal.Inc()
				return malformedError(err)
			}
			value = *input.Value
		case input.isChangeEvent():
			value, err = applyChange(input)
			if err != nil {
				return err
			}
		}

		payload, err = s.persist(ctx, doc, title, value, userName, "Update document")
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// applyChange runs a change event through an editable surface, the same path
// a keystroke takes in the editor.
func applyChange(input SaveInput) (string, error) {
	var serialized string
	surface, err := editor.Initialize(editor.Config{
		OnChange: func(value string) { serialized = value },
	})
	if err != nil {
		return "", err
	}
	text := ""
	if input.Content != nil {
		text = *input.Content
	}
	delta := content.Delta{Ops: []content.Op{}}
	if input.Delta != nil {
		delta = *input.Delta
	}
	if _, err := surface.HandleChange(text, delta); err != nil {
		return "", err
	}
	return serialized, nil
}

// persist stores a new value, commits it when anything changed, reindexes
// and tells live subscribers.
func (s *Service) persist(ctx context.Context, doc store.Document, title, value, userName, message string) (map[string]any, error) {
	plain := plainText(value)
	hash := preview.ContentHash(value)

	if title != doc.Title {
		ok, err := s.store.UpdateDocumentTitle(ctx, doc.ID, title, userName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, sql.ErrNoRows
		}
	}
	ok, err := s.store.UpdateDocumentValue(ctx, doc.ID, value, plain, hash, userName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrNoRows
	}

	next := gitrepo.Content{Title: title, Value: value}
	head, commit, err := s.git.GetHeadContent(doc.ID)
	if err != nil {
		if err := s.git.EnsureDocumentRepo(doc.ID, next, userName); err != nil {
			return nil, err
		}
		_, commit, err = s.git.GetHeadContent(doc.ID)
		if err != nil {
			return nil, err
		}
	} else if gitrepo.HasChanges(head, next) {
		commit, err = s.git.CommitContent(doc.ID, next, userName, message)
		if err != nil {
			return nil, err
		}
	}
	s.indexDocument(doc.ID, title, value)

	doc.Title = title
	doc.Value = value
	doc.PlainText = plain
	doc.ContentHash = hash
	doc.UpdatedBy = userName
	doc.UpdatedAt = time.Now().UTC()

	s.live.broadcast(doc.ID, liveMessage{
		Type:       liveSaved,
		DocumentID: doc.ID,
		Value:      value,
		UpdatedBy:  userName,
		Commit:     commit.Hash,
	})

	return map[string]any{
		"document": documentPayload(doc),
		"value":    value,
		"commit":   commitPayload(commit),
	}, nil
}

// DeleteDocument waits for in-flight writes to the document before removing
// it, so a save or embed never lands on a deleted row.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	return s.serializer.Do(ctx, documentID, func(ctx context.Context) error {
		ok, err := s.store.DeleteDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if !ok {
			return sql.ErrNoRows
		}
		if err := s.git.RemoveDocumentRepo(documentID); err != nil {
			s.log.Warn().Err(err).Str("document_id", documentID).Msg("remove document history")
		}
		if s.search != nil {
			s.search.DeleteDocument(documentID)
		}
		s.live.broadcast(documentID, liveMessage{Type: liveDeleted, DocumentID: documentID})
		return nil
	})
}

func (s *Service) History(ctx context.Context, documentID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	commits, err := s.git.History(documentID, historyLimit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, item := range commits {
		entry := commitPayload(item)
		entry["added"] = item.Added
		entry["removed"] = item.Removed
		items = append(items, entry)
	}
	return map[string]any{
		"documentId": documentID,
		"commits":    items,
	}, nil
}

// Version returns the document as it was at a commit.
func (s *Service) Version(ctx context.Context, documentID, hash string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	snapshot, err := s.git.GetContentByHash(documentID, hash)
	if err != nil {
		return nil, versionNotFound(err)
	}
	commit, err := s.git.GetCommitByHash(documentID, hash)
	if err != nil {
		return nil, versionNotFound(err)
	}
	doc, err := content.Decode(snapshot.Value)
	if err != nil {
		s.metrics.DecodeFailuresTotal.Inc()
		return nil, malformedError(err)
	}
	return map[string]any{
		"documentId": documentID,
		"commit":     commitPayload(commit),
		"title":      snapshot.Title,
		"value":      snapshot.Value,
		"delta":      doc.Delta,
		"html":       s.render.ContentHTML(doc.Delta),
	}, nil
}

func (s *Service) Compare(ctx context.Context, documentID, fromHash, toHash string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	if fromHash == "" || toHash == "" {
		return nil, validationError("from and to are required")
	}
	from, err := s.git.GetContentByHash(documentID, fromHash)
	if err != nil {
		return nil, versionNotFound(err)
	}
	to, err := s.git.GetContentByHash(documentID, toHash)
	if err != nil {
		return nil, versionNotFound(err)
	}
	return map[string]any{
		"from":          fromHash,
		"to":            toHash,
		"changedFields": gitrepo.DiffFields(from, to),
		"fromText":      plainText(from.Value),
		"toText":        plainText(to.Value),
	}, nil
}

// NameVersion tags a commit so it can be found again from history.
func (s *Service) NameVersion(ctx context.Context, documentID, hash, name string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if hash == "" {
		_, head, err := s.git.GetHeadContent(documentID)
		if err != nil {
			return nil, err
		}
		hash = head.Hash
	}
	if err := s.git.CreateTag(documentID, hash, name); err != nil {
		return nil, err
	}
	return map[string]any{"documentId": documentID, "hash": hash, "name": name}, nil
}

func (s *Service) Export(ctx context.Context, documentID, format, version string) (*render.Result, error) {
	if version == "" {
		version = "latest"
	}
	result, err := s.render.Export(ctx, render.Request{
		DocumentID: documentID,
		Version:    version,
		Format:     render.Format(strings.ToLower(format)),
	})
	if err != nil {
		if errors.Is(err, content.ErrMalformedDocument) {
			s.metrics.DecodeFailuresTotal.Inc()
		}
		return nil, err
	}
	return result, nil
}

func versionNotFound(err error) error {
	return domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"reason": err.Error()})
}

// plainText is the text of a persisted value; blank for malformed ones.
func plainText(value string) string {
	doc, err := content.Decode(value)
	if err != nil {
		return ""
	}
	return doc.Delta.PlainText()
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= 140 {
		return text
	}
	return string(runes[:140]) + "…"
}

func relative(value time.Time) string {
	minutes := int(time.Since(value).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%dd ago", days)
}
