package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrReference   = errors.New("dangling category reference")
	ErrPersistence = errors.New("persistence failure")

	ErrEmptyName         = errors.New("empty name")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid type")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrFrequencyMismatch = errors.New("recurring frequency must be set if and only if the transaction is recurring")
	ErrTypeMismatch      = errors.New("transaction type does not match category type")
	ErrMissingCategory   = errors.New("missing category")
	ErrDuplicateCategory = errors.New("category name already used for this type")
	ErrDuplicateBudget   = errors.New("category already has an active budget")
	ErrMissingField      = errors.New("missing required field")
)

// ValidationError reports a malformed or inconsistent entity.
type ValidationError struct {
	Entity Kind
	Field  string
	Err    error
}

func invalid(entity Kind, field string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Err: err}
}

// NewValidationError builds a ValidationError for callers outside core.
func NewValidationError(entity Kind, field string, err error) error {
	return invalid(entity, field, err)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %v", e.Entity, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// ReferenceError reports an entity pointing at a category that does not exist.
// Category holds the unresolved ID or name.
type ReferenceError struct {
	Entity   Kind
	Category string
	Reason   string
}

func (e *ReferenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s references category %q: %s", e.Entity, e.Category, e.Reason)
	}
	return fmt.Sprintf("%s references unknown category %q", e.Entity, e.Category)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// PersistenceError reports a storage failure.
type PersistenceError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

type WarningCode string

const (
	WarnZeroBudget            WarningCode = "zero_budget"
	WarnOverBudget            WarningCode = "over_budget"
	WarnOverTarget            WarningCode = "over_target"
	WarnProjectionUnavailable WarningCode = "projection_unavailable"
)

// ComputationWarning is a non-fatal signal carried as data, never returned as
// an error.
type ComputationWarning struct {
	Code    WarningCode
	Message string
}

func (w ComputationWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
