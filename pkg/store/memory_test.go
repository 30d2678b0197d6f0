package store

import (
	"context"
	"testing"
	"time"
)

func testImages() []Image {
	return []Image{
		{Name: "top.gtl.png", PNG: []byte("png-top"), WidthMM: 10, HeightMM: 5},
		{Name: "bottom.gbl.png", PNG: []byte("png-bottom"), WidthMM: 10, HeightMM: 5},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if err := s.Put(ctx, "conv-1", testImages(), 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	img, err := s.Get(ctx, "conv-1", "top.gtl.png")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(img.PNG) != "png-top" || img.WidthMM != 10 {
		t.Errorf("Get = %+v, want stored image", img)
	}

	names, err := s.List(ctx, "conv-1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	// Order must match enumeration order, not map order.
	if len(names) != 2 || names[0] != "top.gtl.png" || names[1] != "bottom.gbl.png" {
		t.Errorf("List = %v, want stored order", names)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing", "x.png"); err != ErrNotFound {
		t.Errorf("Get missing conversion = %v, want ErrNotFound", err)
	}
	if _, err := s.List(ctx, "missing"); err != ErrNotFound {
		t.Errorf("List missing conversion = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, "conv-1", testImages(), 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, err := s.Get(ctx, "conv-1", "missing.png"); err != ErrNotFound {
		t.Errorf("Get missing image = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Put(ctx, "conv-1", testImages(), -time.Second); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, err := s.Get(ctx, "conv-1", "top.gtl.png"); err != ErrNotFound {
		t.Errorf("Get expired conversion = %v, want ErrNotFound", err)
	}

	// Cleanup drops the expired entry entirely.
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	s.mu.RLock()
	n := len(s.convs)
	s.mu.RUnlock()
	if n != 0 {
		t.Errorf("Cleanup left %d entries, want 0", n)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Put(ctx, "conv-1", testImages(), 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.List(ctx, "conv-1"); err != ErrNotFound {
		t.Errorf("List after delete = %v, want ErrNotFound", err)
	}
	// Deleting again is fine.
	if err := s.Delete(ctx, "conv-1"); err != nil {
		t.Errorf("second Delete error: %v", err)
	}
}
