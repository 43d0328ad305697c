// Package storage is the durable blob store for customer attachments.
//
// Two drivers are available:
//   - "local"  local filesystem (default)
//   - "s3"     S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// The writer calls Stat before overwriting so repeated writes of the same
// attachment can be skipped.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotExist is returned (wrapped) by Stat and Get for absent paths.
var ErrNotExist = errors.New("storage: file does not exist")

// FileInfo is the metadata the attachment writer needs about a stored blob.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, replacing any existing file.
	Put(ctx context.Context, path string, content []byte) error
	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Stat returns metadata for path, or an error wrapping ErrNotExist.
	Stat(ctx context.Context, path string) (FileInfo, error)
	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error
	// List returns the paths below prefix, recursively.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns the public URL for path.
	URL(path string) string
	// Name identifies the driver for logs and metrics.
	Name() string
}
