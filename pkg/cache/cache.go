// Package cache provides the render cache used to skip re-rasterizing
// layer bytes the engine has already seen.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented cache with TTL support.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value with a TTL. Zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the cache.
	Close() error
}

// RenderKeyOpts captures every rendering knob that changes output
// pixels. Two renders with equal content hash and equal opts are
// byte-identical, which is what makes the cache safe.
type RenderKeyOpts struct {
	DPMM     float64
	MarginMM float64
}

// Keyer generates cache keys. Separated from Cache so key layout can
// be scoped (for example per-tenant) without touching the backends.
type Keyer interface {
	// RenderKey keys a rendered PNG by its source content hash and
	// render options.
	RenderKey(contentHash string, opts RenderKeyOpts) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// RenderKey generates a key for render output caching.
func (k *DefaultKeyer) RenderKey(contentHash string, opts RenderKeyOpts) string {
	return hashKey("render", contentHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix so deployments sharing one
// backend keep separate namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. The prefix is
// prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RenderKey generates a prefixed key for render output caching.
func (k *ScopedKeyer) RenderKey(contentHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(contentHash, opts)
}
