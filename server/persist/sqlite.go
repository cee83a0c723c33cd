package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists snapshots in a single-table sqlite database so the
// durable subset survives process restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(baseDir string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "formcoach.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			store_name TEXT PRIMARY KEY,
			blob       BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}

	logger.Info("sqlite persistence ready", zap.String("path", dbPath))

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, storeName string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (store_name, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(store_name) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at`,
		storeName, blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", storeName, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, storeName string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM snapshots WHERE store_name = ?`, storeName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", storeName, err)
	}
	return blob, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, storeName string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE store_name = ?`, storeName); err != nil {
		return fmt.Errorf("failed to delete snapshot %q: %w", storeName, err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	var keys int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots`).Scan(&keys); err != nil {
		return &StoreStats{Connected: false, Info: err.Error()}, nil
	}
	return &StoreStats{
		Connected: true,
		Keys:      keys,
		Info:      fmt.Sprintf("sqlite store, %d snapshots", keys),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
