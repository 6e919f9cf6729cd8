package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError means the referenced entity does not exist in the store.
// Terminal to the operation; callers should not retry.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// InvalidStateError means the entity exists but its current state does not
// permit the requested transition. Current carries the observed status for
// caller diagnostics.
type InvalidStateError struct {
	Entity  string
	ID      uuid.UUID
	Current string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	if e.Current == "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s (current status %s)", e.Entity, e.ID, e.Reason, e.Current)
}

func IsInvalidState(err error) bool {
	var t *InvalidStateError
	return errors.As(err, &t)
}

// ValidationError rejects malformed input before any row is touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}
