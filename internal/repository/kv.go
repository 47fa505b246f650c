package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/pkg/cache"
	applogger "RiskWatch/pkg/logger"
	pkgsqlite "RiskWatch/pkg/sqlite"
)

// CacheKV adapts a cache.Store (memory or redis) to the KVStore port. Values never expire.
type CacheKV struct {
	store cache.Store
}

func NewCacheKV(store cache.Store) *CacheKV { return &CacheKV{store: store} }

func (k *CacheKV) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := k.store.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, domrepo.ErrNotFound
	}
	return b, err
}

func (k *CacheKV) Save(ctx context.Context, key string, value []byte) error {
	return k.store.Set(ctx, key, value, 0)
}

var kvSchema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// SQLiteKV stores each key as one row of the kv table.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV ensures the kv table exists.
func NewSQLiteKV(ctx context.Context, c *pkgsqlite.Client) (*SQLiteKV, error) {
	if err := c.InitSchema(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("sqlite kv: %w", err)
	}
	return &SQLiteKV{db: c.DB()}, nil
}

func (k *SQLiteKV) Load(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite kv load %s: %w", key, err)
	}
	return b, nil
}

func (k *SQLiteKV) Save(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite kv save %s: %w", key, err)
	}
	return nil
}

var (
	_ domrepo.KVStore = (*CacheKV)(nil)
	_ domrepo.KVStore = (*SQLiteKV)(nil)
)

// jsonDoc persists one JSON value under a KV key. Read and write failures are logged, never returned.
type jsonDoc[T any] struct {
	kv  domrepo.KVStore
	key string
	l   *applogger.Logger
}

// load reports ok=false only on I/O failure, so callers can retry later.
// A missing or corrupt document loads as the zero value.
func (d jsonDoc[T]) load(ctx context.Context) (T, bool) {
	var v T
	b, err := d.kv.Load(ctx, d.key)
	if errors.Is(err, domrepo.ErrNotFound) {
		return v, true
	}
	if err != nil {
		d.l.Warn("kv load failed", applogger.String("key", d.key), applogger.Error(err))
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		d.l.Error("kv document corrupt, starting empty", applogger.String("key", d.key), applogger.Error(err))
		var zero T
		return zero, true
	}
	return v, true
}

func (d jsonDoc[T]) save(ctx context.Context, v T) {
	b, err := json.Marshal(v)
	if err != nil {
		d.l.Error("kv encode failed", applogger.String("key", d.key), applogger.Error(err))
		return
	}
	if err := d.kv.Save(ctx, d.key, b); err != nil {
		d.l.Error("kv save failed, keeping in-memory state", applogger.String("key", d.key), applogger.Error(err))
	}
}
