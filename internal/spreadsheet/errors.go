package spreadsheet

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a sheet, snapshot, cell or format does not
	// exist or the sheet was removed.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller's owner id or secret does not
	// match the stored owner. It is never retried.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failure of an export backend. Callers may retry it.
type ProviderError struct {
	Provider   string
	SnapshotID uuid.UUID
	// Timeout is set when the provider call ran out of time.
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("export to %s for snapshot %s timed out: %v", e.Provider, e.SnapshotID, e.Err)
	}
	return fmt.Sprintf("export to %s for snapshot %s failed: %v", e.Provider, e.SnapshotID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}
