package persist

import (
	"context"
	"errors"
)

// Store is a key-value blob store keyed by a store name (for example
// "video-analysis-store"). Stores write their durable subset through after
// each mutation and read once on load. Writes are best-effort snapshots;
// there is no transactional guarantee across keys.
type Store interface {
	Save(ctx context.Context, storeName string, blob []byte) error

	Load(ctx context.Context, storeName string) ([]byte, error)

	Delete(ctx context.Context, storeName string) error

	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

type StoreStats struct {
	Connected bool   `json:"connected"`
	Keys      int    `json:"keys"`
	Info      string `json:"info"`
}

var ErrNotFound = errors.New("snapshot not found")
