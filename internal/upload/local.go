package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalGateway stores uploads in a directory. Used in development and tests.
type LocalGateway struct {
	rootDir string
	baseURL string
}

func NewLocalGateway(rootDir, baseURL string) (*LocalGateway, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalGateway{rootDir: rootDir, baseURL: baseURL}, nil
}

func (g *LocalGateway) Upload(ctx context.Context, file File) (Response, error) {
	if file.Body == nil {
		return Response{}, fmt.Errorf("upload %q: empty body", file.Name)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	name := objectName(file)
	f, err := os.Create(filepath.Join(g.rootDir, name))
	if err != nil {
		return Response{}, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, file.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return Response{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return Response{}, fmt.Errorf("close %s: %w", name, err)
	}
	return NewResponse(name), nil
}

func (g *LocalGateway) URL(name string) string {
	return joinURL(g.baseURL, name)
}

func (g *LocalGateway) Open(_ context.Context, name string) (io.ReadCloser, Info, error) {
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}
	path := filepath.Join(g.rootDir, name)
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Info{}, ErrNotFound
	}
	if err != nil {
		return nil, Info{}, fmt.Errorf("stat %s: %w", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("open %s: %w", name, err)
	}
	return f, Info{
		Name:        name,
		ContentType: contentTypeFor(name, ""),
		Size:        stat.Size(),
		CreatedAt:   stat.ModTime(),
	}, nil
}
