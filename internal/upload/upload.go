// Package upload accepts binary content and hands back a retrievable name and
// URL. Backends: MinIO object storage, a local directory, and an HTTP client
// for a remote file service speaking the same response shape.
package upload

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

var (
	// ErrNotFound indicates the named file does not exist in the backend.
	ErrNotFound = errors.New("upload: file not found")
	// ErrEmptyResponse indicates a gateway answered without a file entry.
	ErrEmptyResponse = errors.New("upload: response lists no file")
)

// File is a selected file ready to be uploaded.
type File struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// Info describes a stored file.
type Info struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FileEntry is one uploaded file in a Response.
type FileEntry struct {
	Name string `json:"name"`
}

// Response is the upload service answer:
// {"result":{"files":{"file":[{"name":"..."}]}}}.
type Response struct {
	Result struct {
		Files struct {
			File []FileEntry `json:"file"`
		} `json:"files"`
	} `json:"result"`
}

// NewResponse builds a response naming the stored files.
func NewResponse(names ...string) Response {
	var res Response
	res.Result.Files.File = make([]FileEntry, 0, len(names))
	for _, name := range names {
		res.Result.Files.File = append(res.Result.Files.File, FileEntry{Name: name})
	}
	return res
}

// FirstName returns the name of the first stored file.
func (r Response) FirstName() (string, error) {
	if len(r.Result.Files.File) == 0 || strings.TrimSpace(r.Result.Files.File[0].Name) == "" {
		return "", ErrEmptyResponse
	}
	return r.Result.Files.File[0].Name, nil
}

// Gateway is what an image embed needs from the upload service.
type Gateway interface {
	Upload(ctx context.Context, file File) (Response, error)
	URL(name string) string
}

// Store is a Gateway that can also serve what it stored.
type Store interface {
	Gateway
	Open(ctx context.Context, name string) (io.ReadCloser, Info, error)
}

// objectName derives a unique stored name that keeps the file extension.
func objectName(file File) string {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if ext == "" && file.ContentType != "" {
		if exts, err := mime.ExtensionsByType(file.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return uuid.Must(uuid.NewV4()).String() + ext
}

// ValidName rejects names that could escape a storage root.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

func contentTypeFor(name, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
