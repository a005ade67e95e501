// internal/database/kv.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/clique/internal/cache"
)

// KV is a cache.Store backed by a Postgres table, for clients that run next to a database
// (bots, shared kiosks) rather than on a device.
type KV struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewKV returns a store scoped to namespace. Call Migrate once before use.
func NewKV(pool *pgxpool.Pool, namespace string) *KV {
	return &KV{pool: pool, namespace: namespace}
}

// Migrate creates the backing table if it does not exist.
func (s *KV) Migrate(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS client_cache (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)
	`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create client_cache table: %w", err)
	}
	return nil
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	q := `SELECT value FROM client_cache WHERE namespace = $1 AND key = $2`
	var value []byte
	err := s.pool.QueryRow(ctx, q, s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	q := `
		INSERT INTO client_cache (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, s.namespace, key, value)
		return err
	})
}

// Delete removes every given key in one transaction.
func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q := `DELETE FROM client_cache WHERE namespace = $1 AND key = ANY($2)`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, s.namespace, keys)
		return err
	})
}

var _ cache.Store = (*KV)(nil)
