// Package embed acquires values for non-text content (formulas, graphs, images)
// from the user or the environment. Handlers never touch a delta; the editing
// surface inserts whatever they resolve.
package embed

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"docpad/api/internal/content"
	"docpad/api/internal/upload"
)

var (
	// ErrCancelled is returned when the user abandons an interaction. It is
	// normal flow, not a failure.
	ErrCancelled = errors.New("embed: cancelled")
	// ErrUnsupportedImageType is returned when a picked file is not one of
	// AcceptedImageTypes.
	ErrUnsupportedImageType = errors.New("embed: unsupported image type")
	ErrUnknownKind          = errors.New("embed: unknown kind")
)

// AcceptedImageTypes restricts the image file selection.
var AcceptedImageTypes = []string{
	"image/png",
	"image/gif",
	"image/jpeg",
	"image/bmp",
	"image/x-icon",
}

// UploadFailureError wraps a rejection from the upload gateway.
type UploadFailureError struct {
	Err error
}

func (e *UploadFailureError) Error() string {
	return fmt.Sprintf("embed: upload failed: %v", e.Err)
}

func (e *UploadFailureError) Unwrap() error {
	return e.Err
}

// Handler acquires a new value for an embed given the existing one (empty when
// inserting fresh).
type Handler interface {
	Kind() content.EmbedKind
	Handle(ctx context.Context, current string) (string, error)
}

// Prompter asks the user for a line of text. A dismissed prompt may return
// ErrCancelled or an empty answer; both cancel.
type Prompter interface {
	Prompt(ctx context.Context, message, seed string) (string, error)
}

// FilePicker asks the user for a file restricted to the accept list. A nil
// file with a nil error means the dialog was dismissed.
type FilePicker interface {
	PickFile(ctx context.Context, accept []string) (*upload.File, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, message, seed string) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, message, seed string) (string, error) {
	return f(ctx, message, seed)
}

// FilePickerFunc adapts a function to FilePicker.
type FilePickerFunc func(ctx context.Context, accept []string) (*upload.File, error)

func (f FilePickerFunc) PickFile(ctx context.Context, accept []string) (*upload.File, error) {
	return f(ctx, accept)
}

// IsAcceptedImageType reports whether a content type (parameters ignored) is
// in AcceptedImageTypes.
func IsAcceptedImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	mediaType = strings.ToLower(mediaType)
	for _, accepted := range AcceptedImageTypes {
		if mediaType == accepted {
			return true
		}
	}
	return false
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return ErrCancelled
}
