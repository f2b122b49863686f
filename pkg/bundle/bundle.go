package bundle

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no bundle exists for a locator.
var ErrNotFound = errors.New("bundle: not found")

// Bundle is one activation bundle's content and metadata.
type Bundle struct {
	Locator     string
	ContentType string
	Size        int64

	// Content is the bundle body. The caller closes it.
	Content io.ReadCloser
}

// Store is a backend holding activation bundles by locator.
type Store interface {
	// Put stores or replaces a bundle.
	Put(ctx context.Context, locator, contentType string, r io.Reader) error

	// Open returns a bundle for reading.
	Open(ctx context.Context, locator string) (*Bundle, error)

	// URL returns an address a client can fetch the bundle from
	// directly.
	URL(ctx context.Context, locator string) (string, error)
}
