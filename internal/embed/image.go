package embed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"docpad/api/internal/content"
	"docpad/api/internal/upload"
)

// ImageEmbed picks an image file, uploads it and resolves with its URL.
// Images are replaced, never edited in place, so the seed is ignored.
type ImageEmbed struct {
	picker  FilePicker
	gateway upload.Gateway
}

func NewImageEmbed(picker FilePicker, gateway upload.Gateway) *ImageEmbed {
	return &ImageEmbed{picker: picker, gateway: gateway}
}

func (e *ImageEmbed) Kind() content.EmbedKind { return content.EmbedImage }

func (e *ImageEmbed) Handle(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelled(ctx)
	}
	accept := append([]string(nil), AcceptedImageTypes...)
	file, err := e.picker.PickFile(ctx, accept)
	if err != nil {
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", fmt.Errorf("pick image: %w", err)
	}
	if file == nil || file.Body == nil {
		return "", ErrCancelled
	}
	if closer, ok := file.Body.(io.Closer); ok {
		defer closer.Close()
	}
	if !IsAcceptedImageType(file.ContentType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, file.ContentType)
	}

	res, err := e.gateway.Upload(ctx, *file)
	if err != nil {
		return "", &UploadFailureError{Err: err}
	}
	name, err := res.FirstName()
	if err != nil {
		return "", &UploadFailureError{Err: err}
	}
	return e.gateway.URL(name), nil
}
