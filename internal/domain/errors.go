package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors returned by the service layer. Callers wrap them with
// fmt.Errorf("...: %w", err) to add context and match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSelfTransaction     = errors.New("self transaction not allowed")
	ErrSelfRating          = errors.New("self rating not allowed")
	ErrDuplicateRating     = errors.New("duplicate rating")
	ErrInvalidMethodParams = errors.New("invalid method params")
	ErrInvalidScore        = errors.New("invalid score")
	ErrInvalidState        = errors.New("invalid state")
	ErrEmailTaken          = errors.New("email already registered")
	ErrConflict            = errors.New("concurrent modification, retry")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
	ErrUnimplemented       = errors.New("not implemented")
)

// ValidationError reports malformed or missing input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
