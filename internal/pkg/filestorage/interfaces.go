package filestorage

import (
	"context"
	"errors"
	"io"
)

// ErrForeignURL is returned when a URL does not belong to the store asked to delete it
var ErrForeignURL = errors.New("url does not belong to this storage backend")

// BlobStore stores binary objects and returns durable URLs for them
type BlobStore interface {
	// Put stores size bytes from r under key and returns the public URL
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Delete removes the object behind url. Deleting a missing object is not an error.
	Delete(ctx context.Context, url string) error
}
