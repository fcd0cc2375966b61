package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/storage"
)

// Store implements storage.Store on the kv_store table
type Store struct {
	db *DB
}

// NewStore wraps an open pool
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Open satisfies storage.Factory
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Postgres.AutoMigrate {
		if err := RunMigrations(cfg.Postgres.DSN()); err != nil {
			return nil, err
		}
	}

	db, err := NewDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT store_value FROM kv_store WHERE store_key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (store_key, store_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (store_key) DO UPDATE
		SET store_value = EXCLUDED.store_value, updated_at = NOW()
	`
	if _, err := s.db.Pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM kv_store WHERE store_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT store_key FROM kv_store WHERE starts_with(store_key, $1) ORDER BY store_key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
