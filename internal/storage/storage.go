// Package storage is the object store gateway: it turns logical (disk, key)
// pairs into physical object storage operations. Backends implement Storage;
// the MinIO implementation works with any S3-compatible provider, and the
// local implementation keeps objects on the filesystem for development.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Disk names a configured storage backend.
type Disk string

const (
	// DiskS3 is the remote S3-compatible disk that issues time-limited URLs.
	DiskS3 Disk = "s3"
	// DiskLocal is the filesystem disk served by the HTTP server.
	DiskLocal Disk = "local"
)

// ErrUnknownDisk is returned when a disk has no registered backend.
var ErrUnknownDisk = errors.New("unknown storage disk")

// Storage is the interface for uploading, addressing and removing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key. A missing object is not an
	// error.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes all keys in as few round trips as the backend allows.
	DeleteMany(ctx context.Context, keys []string) error
	// URL returns a browser-accessible URL for key. Backends with private
	// objects sign the URL for expiry; public backends ignore expiry.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// File is an upload payload handed to the gateway.
type File struct {
	Name        string // original client filename
	ContentType string
	Size        int64
	Body        io.Reader
}
