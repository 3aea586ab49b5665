package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/db"
	"github.com/jonathan/address-lookup/internal/types"
)

const postgresBackend = "postgres"

// resultSetDB is the subset of *db.DB the postgres store uses.
type resultSetDB interface {
	SaveResultSet(ctx context.Context, sessionID string, rs *types.ResultSet) error
	GetResultSet(ctx context.Context, sessionID string, notBefore time.Time) (*types.ResultSet, error)
	DeleteResultSet(ctx context.Context, sessionID string) error
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ resultSetDB = (*db.DB)(nil)

// PostgresStore keeps result sets in the session_results table.
// Rows older than maxAge are treated as absent.
type PostgresStore struct {
	db     resultSetDB
	maxAge time.Duration
	now    func() time.Time
}

// NewPostgresStore wraps database. A zero maxAge keeps rows forever.
func NewPostgresStore(database resultSetDB, maxAge time.Duration) *PostgresStore {
	return &PostgresStore{db: database, maxAge: maxAge, now: time.Now}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*types.ResultSet, error) {
	var notBefore time.Time
	if s.maxAge > 0 {
		notBefore = s.now().Add(-s.maxAge)
	}
	rs, err := s.db.GetResultSet(ctx, sessionID, notBefore)
	if err != nil {
		return nil, &StoreError{Backend: postgresBackend, Op: "get", Cause: err}
	}
	return rs, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, sessionID string, rs *types.ResultSet) error {
	if err := s.db.SaveResultSet(ctx, sessionID, rs); err != nil {
		return &StoreError{Backend: postgresBackend, Op: "put", Cause: err}
	}
	return nil
}

// Remove implements Store.
func (s *PostgresStore) Remove(ctx context.Context, sessionID string) error {
	if err := s.db.DeleteResultSet(ctx, sessionID); err != nil {
		return &StoreError{Backend: postgresBackend, Op: "remove", Cause: err}
	}
	return nil
}

// Purge deletes rows older than maxAge. With a zero maxAge nothing expires.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	n, err := s.db.PurgeStale(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		return 0, &StoreError{Backend: postgresBackend, Op: "purge", Cause: err}
	}
	return n, nil
}

// RunPurge purges once, then again every interval until ctx is done.
func (s *PostgresStore) RunPurge(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if s.maxAge <= 0 || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Purge(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("failed to purge stale sessions", zap.Error(err))
		case n > 0:
			logger.Info("purged stale sessions", zap.Int64("rows", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
