// Package store defines the external assignment record store and its
// implementations. The store is an unordered bag of records; it guarantees
// nothing about uniqueness per (date, role). That invariant is enforced
// upstream by the claim coordinator.
package store

import (
	"context"
	"errors"

	"liturgyd/internal/model"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnavailable is returned when the store cannot be reached or
	// answers with a server-side failure. Writes seeing this error are
	// retryable; reads degrade to the generated scaffold.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the record-store contract. Every call is a blocking I/O boundary
// and must honor the context.
type Store interface {
	// List returns all assignment records, in no particular order.
	List(ctx context.Context) ([]model.Assignment, error)
	// Create persists a new record and returns it with the store-assigned
	// record id.
	Create(ctx context.Context, a model.Assignment) (model.Assignment, error)
	// Find returns the record with the given id, or ErrNotFound.
	Find(ctx context.Context, recordID string) (model.Assignment, error)
	// Delete removes the record with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, recordID string) error
}
