package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore keeps snapshots in process memory. Used as the fallback when
// the sqlite store cannot be opened, and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*memoryItem
	logger *zap.Logger
}

type memoryItem struct {
	blob      []byte
	updatedAt time.Time
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]*memoryItem),
		logger: logger,
	}
}

func (s *MemoryStore) Save(ctx context.Context, storeName string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(blob))
	copy(buf, blob)
	s.items[storeName] = &memoryItem{blob: buf, updatedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, storeName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[storeName]
	if !exists {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(item.blob))
	copy(buf, item.blob)
	return buf, nil
}

func (s *MemoryStore) Delete(ctx context.Context, storeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, storeName)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &StoreStats{
		Connected: true,
		Keys:      len(s.items),
		Info:      fmt.Sprintf("memory store, %d snapshots", len(s.items)),
	}, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*memoryItem)
	return nil
}
