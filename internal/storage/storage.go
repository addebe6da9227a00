// Package storage publishes card documents to an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions describe an upload. Size is the exact byte count, or -1
// when unknown. CacheControl matters for keys that are overwritten in place.
type PutObjectOptions struct {
	Size               int64
	ContentType        string
	ContentDisposition string
	CacheControl       string
	Metadata           map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store card documents live in. Implementations stream
// content and never touch local disk.
type Storage interface {
	// Put uploads an object under key, replacing any existing one.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object for reading. A missing key yields ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// PresignGet returns a credential-free download link valid for expiry.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PublicURL returns the permanent link of an object in a publicly readable bucket.
	PublicURL(key string) (string, error)
}
