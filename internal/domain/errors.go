package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned on a read miss. Callers treat it as empty/default.
	ErrNotFound = errors.New("not found")
	// ErrCapacity matches every *CapacityError.
	ErrCapacity = errors.New("store capacity exceeded")
	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("unsupported schema version")
	// ErrNotEnoughData signals an unmet statistics precondition. It is a normal
	// empty result, not a failure state.
	ErrNotEnoughData = errors.New("not enough data")
	// ErrValidation is returned when input is rejected before reaching storage.
	ErrValidation = errors.New("validation failed")
)

// CapacityError is returned by capacity-bounded stores when a write would
// exceed the configured byte limit. The write is rejected as a whole.
type CapacityError struct {
	Limit int
	Used  int
	Need  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("store capacity exceeded: %d bytes used of %d, write needs %d more", e.Used, e.Limit, e.Need)
}

// Is reports ErrCapacity equivalence.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// SchemaError reports a record that cannot be migrated to the current shape.
type SchemaError struct {
	Collection string
	ID         string
	Version    int
	Err        error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("%s/%s: schema version %d", e.Collection, e.ID, e.Version)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": no migration path"
}

// Is reports ErrSchema equivalence.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Invalid wraps a validation message so it matches ErrValidation.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
