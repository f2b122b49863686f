package session

import (
	"context"
	"time"
)

// Store is a session persistence backend. Implementations must be safe
// for concurrent use.
type Store interface {
	// Save persists the session values, overwriting any existing
	// session with the same ID.
	Save(ctx context.Context, id string, values map[string]string, expiresAt time.Time) error

	// Load retrieves a session by ID. It returns (nil, nil) when the
	// session does not exist or has expired.
	Load(ctx context.Context, id string) (map[string]string, error)

	// Delete removes a session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// NotFoundError is returned by backends that need an explicit error
// for a missing session. Load itself reports absence as (nil, nil).
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return "session not found: " + e.ID
}
