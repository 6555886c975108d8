// Package storage keeps uploaded file bytes. The metadata lives in the
// database; a BlobStore only knows opaque object names.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrBlobNotFound is returned by Open when no object has the given name.
var ErrBlobNotFound = errors.New("storage: blob not found")

// BlobStore is implemented by LocalStore and MinIOStore.
type BlobStore interface {
	// Put stores size bytes from r under name, replacing any existing object.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// Open returns a reader for the object or ErrBlobNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
}

// checkName rejects names that could escape the store's root.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("storage: invalid object name %q", name)
	}
	return nil
}
