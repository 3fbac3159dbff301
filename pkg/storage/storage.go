// Package storage archives the files processed by the importers.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown file ID.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the kind directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage keeps uploaded files grouped by kind ("tenants", "policies",
// "fill", "reference").
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, kind, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, kind string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, kind string, fileID uuid.UUID) error

	// List returns the files of a kind, oldest first
	List(ctx context.Context, kind string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without opening it
	GetInfo(ctx context.Context, kind string, fileID uuid.UUID) (*FileInfo, error)
}
