package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	c := NoopConversionHooks{}
	c.OnConvertStart(ctx, 4)
	c.OnLayerComplete(ctx, "top.gbr", time.Second, nil)
	c.OnConvertComplete(ctx, 3, 1, time.Second, nil)

	h := NoopCacheHooks{}
	h.OnCacheHit(ctx, "render")
	h.OnCacheMiss(ctx, "render")
	h.OnCacheSet(ctx, "render", 1024)
}

type countingHooks struct {
	starts, layers, completes int
}

func (h *countingHooks) OnConvertStart(context.Context, int) { h.starts++ }
func (h *countingHooks) OnLayerComplete(context.Context, string, time.Duration, error) {
	h.layers++
}
func (h *countingHooks) OnConvertComplete(context.Context, int, int, time.Duration, error) {
	h.completes++
}

func TestSetAndResetHooks(t *testing.T) {
	defer Reset()

	h := &countingHooks{}
	SetConversionHooks(h)
	Conversion().OnConvertStart(context.Background(), 1)
	if h.starts != 1 {
		t.Errorf("starts = %d, want 1", h.starts)
	}

	// Nil registrations are ignored.
	SetConversionHooks(nil)
	Conversion().OnLayerComplete(context.Background(), "x", 0, nil)
	if h.layers != 1 {
		t.Errorf("layers = %d, want 1", h.layers)
	}

	Reset()
	Conversion().OnConvertStart(context.Background(), 1)
	if h.starts != 1 {
		t.Errorf("starts after Reset = %d, want unchanged 1", h.starts)
	}
}
