package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process store for development and testing.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*memoryEntry
}

type memoryEntry struct {
	names     []string
	images    map[string]Image
	expiresAt time.Time
}

func (e *memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Put(ctx context.Context, conversionID string, images []Image, ttl time.Duration) error {
	entry := &memoryEntry{images: make(map[string]Image, len(images))}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	for _, img := range images {
		entry.names = append(entry.names, img.Name)
		entry.images[img.Name] = img
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conversionID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, conversionID, name string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.convs[conversionID]
	if !ok || entry.expired() {
		return nil, ErrNotFound
	}
	img, ok := entry.images[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (s *MemoryStore) List(ctx context.Context, conversionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.convs[conversionID]
	if !ok || entry.expired() {
		return nil, ErrNotFound
	}
	names := make([]string, len(entry.names))
	copy(names, entry.names)
	return names, nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, conversionID)
	return nil
}

// Cleanup removes expired conversions. Callers run this periodically;
// expired entries are otherwise only filtered on read.
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.convs {
		if entry.expired() {
			delete(s.convs, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
