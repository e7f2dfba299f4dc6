// Package store is the key-value abstraction the core reads and writes
// derived records through.
package store

import (
	"context"
	"errors"
	"fmt"

	"PerpIndexer/internal/entity"
)

var (
	// ErrNotFound means no record exists for (kind, id). It is distinct
	// from a record whose numeric fields are zero.
	ErrNotFound = errors.New("entity not found")
)

// Store provides point lookups, writes and deletes of records. Each call
// is atomic on its own; the core never needs multi-record transactions
// because it processes one event at a time.
type Store interface {
	// Load returns the record or ErrNotFound.
	Load(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error)

	// Save inserts or overwrites the record identified by (e.Kind(), e.EntityID()).
	Save(ctx context.Context, e entity.Entity) error

	// Remove deletes the record. Removing a missing record is not an error.
	Remove(ctx context.Context, kind entity.Kind, id string) error

	// List returns up to limit records of kind with id > afterID, ordered by id.
	// A limit <= 0 returns every remaining record.
	List(ctx context.Context, kind entity.Kind, afterID string, limit int) ([]entity.Entity, error)
}

// LoadAs loads a record and asserts its concrete type.
func LoadAs[T entity.Entity](ctx context.Context, s Store, kind entity.Kind, id string) (T, error) {
	var zero T
	e, err := s.Load(ctx, kind, id)
	if err != nil {
		return zero, err
	}
	typed, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("load %s %s: unexpected type %T", kind, id, e)
	}
	return typed, nil
}

// Exists reports whether a record is present.
func Exists(ctx context.Context, s Store, kind entity.Kind, id string) (bool, error) {
	_, err := s.Load(ctx, kind, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
