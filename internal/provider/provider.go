// Package provider defines the storage backend interface for the loader.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// Store is the capacity table backend. Implementations must be safe for
// concurrent Exists calls from multiple workers.
type Store interface {
	// Exists reports whether any row for key is already persisted.
	Exists(ctx context.Context, key types.DedupKey) (bool, error)
	// AppendBatch writes every record in one transaction or none of them.
	// It returns the number of rows written.
	AppendBatch(ctx context.Context, records []types.CapacityRecord) (int, error)
	// HealthCheck verifies connectivity and that the target table exists.
	HealthCheck(ctx context.Context) error
}

// ErrorKind classifies a store failure.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindConstraint ErrorKind = "constraint"
	KindSchema     ErrorKind = "schema"
)

// StoreError is returned by Store implementations for every failure.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("store %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsKind reports whether err wraps a StoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}
