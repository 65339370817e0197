// Package minio implements filestore.Store against a MinIO (or any
// S3-compatible) server.
package minio

import (
	"context"
	"io"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/filestore"
)

// Driver is the MinIO-backed filestore.Store. It is safe for concurrent
// use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
}

// New connects to the configured server and validates the connection
// before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create storage client", err)
	}

	d := &Driver{client: client}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping verifies the server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "failed to check bucket")
	}
	if exists {
		return nil
	}
	if err := d.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// Put stores the reader's content under key.
func (d *Driver) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	info, err := d.client.PutObject(ctx, bucket, key, r, size,
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, mapError(err, "failed to store object")
	}
	return &filestore.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Get opens a streaming handle to the object at key. The caller must Close
// it after reading.
func (d *Driver) Get(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
		},
	}, nil
}

// Stat returns an object's metadata without downloading its content.
func (d *Driver) Stat(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// List returns the objects under the given key prefix.
func (d *Driver) List(ctx context.Context, bucket, prefix string) ([]filestore.ObjectInfo, error) {
	opts := miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true}

	var results []filestore.ObjectInfo
	for obj := range d.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		results = append(results, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return results, nil
}

// PresignDownload returns a time-limited public download URL for the object.
func (d *Driver) PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate download URL")
	}
	return u.String(), nil
}

// object wraps a GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
