// Package filestore is the object-storage contract used by the export
// layer. Exported resultsets are written as objects and handed back to
// callers as time-limited download URLs; callers depend on this interface
// only, never on a provider package.
package filestore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the full object path within the bucket.
	Key string

	// Size is the byte size of the object, -1 when unknown.
	Size int64

	// ContentType is the MIME type the object was stored with.
	ContentType string

	// ETag is the backend's entity tag for the stored content.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time
}

// Object is a streaming handle to an object's content. Callers must Close
// it after reading.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// Store is the storage surface the export layer writes through.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// Put stores the reader's content under key and returns the stored
	// object's metadata. size may be -1 when the length is not known up
	// front.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// Get opens a streaming handle to the object at key.
	Get(ctx context.Context, bucket, key string) (Object, error)

	// Stat returns an object's metadata without downloading its content.
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// List returns the objects under the given key prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// PresignDownload returns a time-limited URL that downloads the object
	// without credentials.
	PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
