// Package blob stores raw image bytes under opaque keys.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a key has no blob.
var ErrNotFound = errors.New("blob not found")

// Store is the interface for blob storage providers.
type Store interface {
	// Put writes data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns a URL a client can fetch the blob from.
	URL(ctx context.Context, key string) (string, error)
}

// ImageKey returns the key an image with the given id and extension is
// stored under.
func ImageKey(id, ext string) string {
	return "images/" + id + ext
}

// CleanKey validates a key and returns its canonical slash separated form.
func CleanKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty blob key")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || strings.HasPrefix(key, "/") || cleaned != strings.TrimSuffix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return cleaned, nil
}
