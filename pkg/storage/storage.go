// Package storage provides object storage abstractions for run artifacts.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStore abstracts object storage operations for run artifacts.
// Implementations include S3 and local filesystem for testing.
type ObjectStore interface {
	// Put writes bytes to an object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get reads an object fully into memory.
	// Returns ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Upload copies a local file to object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies an object to a local file.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// ListPrefixes returns the immediate child "directories" under the
	// given prefix, each with a trailing slash. Used to discover
	// partition directories such as run_id= segments.
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
}
