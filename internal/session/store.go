// Package session holds the per-session result hand-off between a lookup and its download.
package session

import (
	"context"
	"fmt"

	"github.com/jonathan/address-lookup/internal/types"
)

// Store maps a session ID to the session's latest ResultSet.
// Get returns (nil, nil) when the session has no stored result.
type Store interface {
	Get(ctx context.Context, sessionID string) (*types.ResultSet, error)
	Put(ctx context.Context, sessionID string, rs *types.ResultSet) error
	Remove(ctx context.Context, sessionID string) error
}

// StoreError wraps a backend failure
type StoreError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s session store %s failed: %v", e.Backend, e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// clone copies a ResultSet so stored values never alias caller memory.
func clone(rs *types.ResultSet) *types.ResultSet {
	if rs == nil {
		return nil
	}
	out := *rs
	out.Records = append([]types.AddressRecord(nil), rs.Records...)
	return &out
}
