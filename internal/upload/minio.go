package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioGateway stores uploads as objects in a MinIO/S3 bucket.
type MinioGateway struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	// BaseURL prefixes stored names when building retrievable URLs.
	BaseURL string
}

// NewMinioGateway connects to the endpoint and creates the bucket when missing.
func NewMinioGateway(ctx context.Context, cfg MinioConfig) (*MinioGateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}

	return &MinioGateway{client: client, bucketName: cfg.BucketName, baseURL: cfg.BaseURL}, nil
}

func (g *MinioGateway) Upload(ctx context.Context, file File) (Response, error) {
	if file.Body == nil {
		return Response{}, fmt.Errorf("upload %q: empty body", file.Name)
	}
	name := objectName(file)
	size := file.Size
	if size == 0 {
		size = -1
	}

	putOptions := minio.PutObjectOptions{
		ContentType:  contentTypeFor(file.Name, file.ContentType),
		UserMetadata: map[string]string{"original-name": file.Name},
	}
	if _, err := g.client.PutObject(ctx, g.bucketName, name, file.Body, size, putOptions); err != nil {
		resp := minio.ToErrorResponse(err)
		return Response{}, fmt.Errorf("put object %s (code %s): %w", name, resp.Code, err)
	}
	return NewResponse(name), nil
}

func (g *MinioGateway) URL(name string) string {
	return joinURL(g.baseURL, name)
}

func (g *MinioGateway) Open(ctx context.Context, name string) (io.ReadCloser, Info, error) {
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}
	stat, err := g.client.StatObject(ctx, g.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, fmt.Errorf("stat object %s: %w", name, err)
	}

	obj, err := g.client.GetObject(ctx, g.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("get object %s: %w", name, err)
	}
	return obj, Info{
		Name:        name,
		ContentType: stat.ContentType,
		Size:        stat.Size,
		CreatedAt:   stat.LastModified,
	}, nil
}
