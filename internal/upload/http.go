package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// HTTPGateway posts files as multipart form data to a remote upload endpoint
// and expects the standard Response back.
type HTTPGateway struct {
	uploadURL string
	filesURL  string
	client    *http.Client
}

// NewHTTPGateway targets uploadURL for uploads and builds retrievable URLs
// under filesURL.
func NewHTTPGateway(uploadURL, filesURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPGateway{uploadURL: uploadURL, filesURL: filesURL, client: client}
}

func (g *HTTPGateway) Upload(ctx context.Context, file File) (Response, error) {
	if file.Body == nil {
		return Response{}, fmt.Errorf("upload %q: empty body", file.Name)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
		header.Set("Content-Type", contentTypeFor(file.Name, file.ContentType))
		part, err := form.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL, pr)
	if err != nil {
		_ = pr.Close()
		return Response{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Response{}, fmt.Errorf("upload rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

func (g *HTTPGateway) URL(name string) string {
	return joinURL(g.filesURL, name)
}

// Open fetches a stored file back from the remote service.
func (g *HTTPGateway) Open(ctx context.Context, name string) (io.ReadCloser, Info, error) {
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(name), nil)
	if err != nil {
		return nil, Info{}, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, Info{}, fmt.Errorf("fetch %s: %w", name, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, Info{}, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_ = resp.Body.Close()
		return nil, Info{}, fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
	}
	return resp.Body, Info{
		Name:        name,
		ContentType: contentTypeFor(name, resp.Header.Get("Content-Type")),
		Size:        resp.ContentLength,
	}, nil
}
