// Package blob stores product images outside the database.
package blob

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by constructors missing required settings.
var ErrNotConfigured = errors.New("platform/blob: store not configured")

// Store persists opaque objects under a reference chosen by the caller.
// Delete of a missing reference succeeds.
type Store interface {
	Put(ctx context.Context, ref string, data []byte, contentType string) error
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}
