// internal/upload/client.go
package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is the subset of the MinIO client the mirror uses.
type ObjectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Client mirrors generated thumbnails into an S3-compatible bucket so they can
// be served from object storage.
type Client struct {
	store  ObjectStore
	bucket string
}

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewClient connects to the S3 endpoint and ensures the bucket exists.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return NewWithStore(mc, opts.Bucket), nil
}

// NewWithStore wraps an existing object store.
func NewWithStore(store ObjectStore, bucket string) *Client {
	return &Client{store: store, bucket: bucket}
}

// ObjectKey is the bucket key for a thumbnail of a collection.
func ObjectKey(collectionID, thumbName string) string {
	return path.Join(collectionID, "thumbnails", thumbName)
}

// Mirror uploads the thumbnail at thumbPath and deletes the objects of the
// stale thumbnails it replaced.
func (c *Client) Mirror(ctx context.Context, collectionID, thumbPath string, stale []string) error {
	mimeType, err := detectMime(thumbPath)
	if err != nil {
		return err
	}

	key := ObjectKey(collectionID, filepath.Base(thumbPath))
	if _, err := c.store.FPutObject(ctx, c.bucket, key, thumbPath, minio.PutObjectOptions{
		ContentType:  mimeType,
		CacheControl: "public, max-age=31536000, immutable",
	}); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	for _, name := range stale {
		staleKey := ObjectKey(collectionID, name)
		if err := c.store.RemoveObject(ctx, c.bucket, staleKey, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", staleKey, err)
		}
	}
	return nil
}

func detectMime(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for mime detect: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read for mime detect: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}
