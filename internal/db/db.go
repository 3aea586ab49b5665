// Package db provides PostgreSQL storage for session result sets.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/address-lookup/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS session_results (
	session_id  TEXT PRIMARY KEY,
	records     JSONB NOT NULL,
	normalized  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_session_results_updated_at ON session_results (updated_at);
`

// EnsureSchema creates the session_results table if it does not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResultSet stores rs for sessionID, replacing any earlier result
func (db *DB) SaveResultSet(ctx context.Context, sessionID string, rs *types.ResultSet) error {
	records := rs.Records
	if records == nil {
		records = []types.AddressRecord{}
	}
	jsonBytes, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	createdAt := rs.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO session_results (session_id, records, normalized, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE
		 SET records = $2, normalized = $3, created_at = $4, updated_at = NOW()`,
		sessionID, jsonBytes, rs.Normalized, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save result set: %w", err)
	}
	return nil
}

// GetResultSet returns the result set for sessionID, or nil if none was stored
// after notBefore. A zero notBefore disables the age check.
func (db *DB) GetResultSet(ctx context.Context, sessionID string, notBefore time.Time) (*types.ResultSet, error) {
	var (
		raw []byte
		rs  types.ResultSet
	)
	err := db.pool.QueryRow(ctx,
		`SELECT records, normalized, created_at FROM session_results
		 WHERE session_id = $1 AND updated_at >= $2`,
		sessionID, notBefore,
	).Scan(&raw, &rs.Normalized, &rs.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result set: %w", err)
	}

	if err := json.Unmarshal(raw, &rs.Records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	return &rs, nil
}

// DeleteResultSet removes the result set for sessionID. Deleting a missing row is not an error.
func (db *DB) DeleteResultSet(ctx context.Context, sessionID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM session_results WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete result set: %w", err)
	}
	return nil
}

// PurgeStale deletes result sets last written before cutoff and returns how many were removed
func (db *DB) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM session_results WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge result sets: %w", err)
	}
	return tag.RowsAffected(), nil
}
