// Package sqlstore keeps key/value documents in a single SQL table. It backs
// both the sqlite and mysql storage backends.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/storage"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type dialect struct {
	name   string
	driver string
	schema string
	upsert string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS kv_store (
		store_key   TEXT PRIMARY KEY,
		store_value BLOB NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	upsert: `INSERT INTO kv_store (store_key, store_value, updated_at)
		VALUES (:store_key, :store_value, :updated_at)
		ON CONFLICT(store_key) DO UPDATE SET
			store_value = excluded.store_value,
			updated_at = excluded.updated_at`,
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	schema: `CREATE TABLE IF NOT EXISTS kv_store (
		store_key   VARCHAR(255) NOT NULL PRIMARY KEY,
		store_value LONGBLOB NOT NULL,
		updated_at  DATETIME(6) NOT NULL
	) CHARACTER SET utf8mb4`,
	upsert: `INSERT INTO kv_store (store_key, store_value, updated_at)
		VALUES (:store_key, :store_value, :updated_at)
		ON DUPLICATE KEY UPDATE
			store_value = VALUES(store_value),
			updated_at = VALUES(updated_at)`,
}

type record struct {
	Key       string    `db:"store_key"`
	Value     []byte    `db:"store_value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store implements storage.Store on top of sqlx
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// OpenSQLite satisfies storage.Factory for the sqlite backend
func OpenSQLite(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	return NewSQLite(ctx, cfg.SQLite.Path)
}

// OpenMySQL satisfies storage.Factory for the mysql backend
func OpenMySQL(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	return NewMySQL(ctx, cfg.MySQL.DSN())
}

// NewSQLite opens (creating if needed) a sqlite database file. Path ":memory:"
// yields a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sqlx.ConnectContext(ctx, sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection: in-memory databases are per connection and sqlite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	return newStore(ctx, db, sqliteDialect)
}

// NewMySQL connects to MySQL with the given DSN
func NewMySQL(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, mysqlDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newStore(ctx, db, mysqlDialect)
}

func newStore(ctx context.Context, db *sqlx.DB, d dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Name() string {
	return s.dialect.name
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT store_value FROM kv_store WHERE store_key = ?`), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	rec := record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, s.dialect.upsert, rec); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM kv_store WHERE store_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	query := s.db.Rebind(`SELECT store_key FROM kv_store WHERE store_key LIKE ? ORDER BY store_key`)
	if err := s.db.SelectContext(ctx, &keys, query, prefix+"%"); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
