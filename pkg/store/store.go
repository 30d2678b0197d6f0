// Package store holds finished conversion images so the image side
// channel can serve them after the conversion response returns.
//
// Two backends exist:
//   - memory: in-process storage for development and single-instance runs
//   - redis: shared storage for multi-instance deployments
//
// Entries are keyed by conversion ID and expire after a TTL; the store
// is a handoff buffer, not an archive.
package store

import (
	"context"
	"time"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// ErrNotFound is returned when a conversion or image does not exist,
// including after TTL expiry.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "image not found")

// Image is one rendered layer held for retrieval.
type Image struct {
	Name     string    `json:"name"`
	PNG      []byte    `json:"png"`
	WidthMM  float64   `json:"width_mm"`
	HeightMM float64   `json:"height_mm"`
	Created  time.Time `json:"created"`
}

// Store is the interface for conversion image storage backends.
type Store interface {
	// Put stores a conversion's images under its ID with a TTL.
	// Zero TTL means no expiration.
	Put(ctx context.Context, conversionID string, images []Image, ttl time.Duration) error

	// Get retrieves one image by conversion ID and layer name.
	// Returns ErrNotFound if the conversion or image is missing.
	Get(ctx context.Context, conversionID, name string) (*Image, error)

	// List returns the image names of a conversion in stored order.
	// Returns ErrNotFound if the conversion is missing.
	List(ctx context.Context, conversionID string) ([]string, error)

	// Delete removes a conversion's images. Deleting a missing
	// conversion is not an error.
	Delete(ctx context.Context, conversionID string) error

	// Close releases backend resources.
	Close() error
}

// DefaultTTL is how long images stay retrievable after a conversion.
const DefaultTTL = time.Hour
