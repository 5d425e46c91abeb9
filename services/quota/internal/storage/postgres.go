package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS quota_windows (
	record_key    TEXT        NOT NULL,
	request_class TEXT        NOT NULL,
	hits          TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (record_key, request_class)
)`

// PostgresStore keeps one row per record. Each statement locks its row, so prune and
// append are atomic per key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the quota_windows table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadAndPrune(ctx context.Context, key, class string, now time.Time, lookback time.Duration) ([]time.Time, error) {
	if lookback <= 0 {
		return nil, ErrInvalidWindow
	}
	cutoff := now.Add(-lookback)

	row := s.pool.QueryRow(ctx, `
		UPDATE quota_windows
		SET hits = ARRAY(SELECT h FROM unnest(hits) AS h WHERE h > $3),
		    updated_at = $4
		WHERE record_key = $1 AND request_class = $2
		RETURNING hits
	`, key, class, cutoff, now)

	var hits []time.Time
	if err := row.Scan(&hits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("prune window: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) Append(ctx context.Context, key, class string, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quota_windows (record_key, request_class, hits, updated_at)
		VALUES ($1, $2, ARRAY[$3::timestamptz], $3)
		ON CONFLICT (record_key, request_class)
		DO UPDATE SET hits = array_append(quota_windows.hits, $3::timestamptz),
		              updated_at = EXCLUDED.updated_at
	`, key, class, ts)
	if err != nil {
		return fmt.Errorf("append hit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get returns the raw record without pruning.
func (s *PostgresStore) Get(ctx context.Context, key, class string) (*Window, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record_key, request_class, hits, updated_at
		FROM quota_windows
		WHERE record_key = $1 AND request_class = $2
	`, key, class)

	var w Window
	if err := row.Scan(&w.Key, &w.Class, &w.Hits, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}
