// Package observability provides hooks for metrics and tracing.
//
// The conversion engine emits events through these hooks without a
// hard dependency on any observability backend. Consumers register
// implementations at startup; libraries only ever call the accessors:
//
//	func main() {
//	    observability.SetConversionHooks(&myHooks{})
//	    // ... run application
//	}
//
// Unregistered hooks are no-ops, so instrumentation costs nothing
// when disabled.
package observability

import (
	"context"
	"sync"
	"time"
)

// ConversionHooks receives events from the conversion pipeline.
type ConversionHooks interface {
	// OnConvertStart records the beginning of an archive conversion.
	OnConvertStart(ctx context.Context, members int)

	// OnLayerComplete records one layer's outcome.
	OnLayerComplete(ctx context.Context, name string, duration time.Duration, err error)

	// OnConvertComplete records the whole batch's outcome.
	OnConvertComplete(ctx context.Context, rendered, failed int, duration time.Duration, err error)
}

// CacheHooks receives events from render cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopConversionHooks is a no-op implementation of ConversionHooks.
type NoopConversionHooks struct{}

func (NoopConversionHooks) OnConvertStart(context.Context, int)                           {}
func (NoopConversionHooks) OnLayerComplete(context.Context, string, time.Duration, error) {}
func (NoopConversionHooks) OnConvertComplete(context.Context, int, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	conversionHooks ConversionHooks = NoopConversionHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	hooksMu         sync.RWMutex
)

// SetConversionHooks registers custom conversion hooks.
// Call once at application startup before any conversions.
func SetConversionHooks(h ConversionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		conversionHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// Call once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Conversion returns the registered conversion hooks.
func Conversion() ConversionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return conversionHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	conversionHooks = NoopConversionHooks{}
	cacheHooks = NoopCacheHooks{}
}
