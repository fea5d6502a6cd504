// Package clients implements the external collaborators of spec §4.4: a
// Git-hosting REST client, an object-store client, and a test-execution-backend
// client, so activities depend on these narrow types instead of vendor SDK
// types directly.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// ObjectInfo is the metadata an object-store list/get call returns (spec
// §4.4: size, etag, content-type, user metadata).
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	UserMetadata map[string]string
}

// StorageClient provides S3-compatible object storage access, covering the
// example-content read path (ExampleVersion.storage_path) and deployment
// bookkeeping writes.
type StorageClient struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewStorageClient creates a new MinIO/S3 storage client bound to a default
// bucket (spec §4.4: "Default bucket configurable").
func NewStorageClient(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *slog.Logger) (*StorageClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &StorageClient{client: client, bucket: bucket, logger: logger}, nil
}

// ListObjectsByPrefix returns every object whose key has the given prefix.
// No workflow or activity in this module calls it; the Student-Template
// Workflow reads example content from the assignments Git repository.
func (c *StorageClient) ListObjectsByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, apperrors.Upstream("listing objects with prefix "+prefix, obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, ContentType: obj.ContentType})
	}
	return out, nil
}

// GetObject downloads one object's bytes.
func (c *StorageClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.Upstream("getting object "+key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperrors.Upstream("reading object "+key, err)
	}
	return data, nil
}

// PutObject uploads data under key with the given content type.
func (c *StorageClient) PutObject(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error) {
	info, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return ObjectInfo{}, apperrors.Upstream("putting object "+key, err)
	}
	return ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, ContentType: contentType}, nil
}

// PresignedGetURL returns a time-limited URL for downloading key directly.
func (c *StorageClient) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, nil)
	if err != nil {
		return "", apperrors.Upstream("presigning get for "+key, err)
	}
	return u.String(), nil
}

// PresignedPutURL returns a time-limited URL for uploading key directly.
func (c *StorageClient) PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := c.client.PresignedPutObject(ctx, c.bucket, key, expiry)
	if err != nil {
		return "", apperrors.Upstream("presigning put for "+key, err)
	}
	return u.String(), nil
}

// CopyObject server-side copies srcKey to dstKey within the default bucket.
func (c *StorageClient) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: c.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: c.bucket, Object: srcKey},
	)
	if err != nil {
		return apperrors.Upstream(fmt.Sprintf("copying object %s -> %s", srcKey, dstKey), err)
	}
	return nil
}

// StatObject returns metadata for one object without downloading its body.
func (c *StorageClient) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, apperrors.Upstream("statting object "+key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		UserMetadata: info.UserMetadata,
	}, nil
}

// EnsureBucket creates the default bucket if it doesn't already exist.
func (c *StorageClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return apperrors.Upstream("checking bucket existence", err)
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return apperrors.Upstream("creating bucket", err)
		}
		c.logger.Info("created storage bucket", slog.String("bucket", c.bucket))
	}
	return nil
}

// DeleteBucket removes the default bucket. Nothing in this module calls it.
func (c *StorageClient) DeleteBucket(ctx context.Context) error {
	if err := c.client.RemoveBucket(ctx, c.bucket); err != nil {
		return apperrors.Upstream("removing bucket", err)
	}
	return nil
}

// Close is a no-op: the MinIO client holds no persistent connection.
func (c *StorageClient) Close() error {
	return nil
}
