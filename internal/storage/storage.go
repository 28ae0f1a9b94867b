// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectExists is returned by PutNew when the key is already taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned by Get for keys with no object behind them.
	ErrObjectNotFound = errors.New("object not found")
)

// Object describes one stored object as seen in a listing or stat.
type Object struct {
	// Key is the full object key, e.g. "aB3xY_z/report.pdf".
	Key string
	// Name is the key's last path segment, e.g. "report.pdf".
	Name string
	// Size in bytes.
	Size int64
	// ContentType as recorded by the backend; may be empty in listings.
	ContentType string
}

// Storage is the interface for writing, listing, reading, and signing objects.
type Storage interface {
	// Put streams data to the store under the given key, overwriting any
	// existing object. Used for metadata records, which may legitimately
	// be re-sent.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// PutNew is Put with a non-overwrite policy: it fails with
	// ErrObjectExists when the key is already taken. Used for primary
	// file objects so a slug collision surfaces as an error.
	PutNew(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// List returns all objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Get opens the object at key for reading. The caller must close the
	// returned reader. Fails with ErrObjectNotFound for missing keys.
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	// PresignGet returns a time-limited URL granting read access to key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PresignPut returns a time-limited URL granting a direct upload
	// (HTTP PUT) to key without further authorization.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
}
