package models

import (
	"errors"
	"sort"
	"strings"
)

// NonFieldErrors is the key under which cross-field rule violations are reported.
const NonFieldErrors = "__all__"

var (
	// ErrInvalid is matched by every *ValidationError.
	ErrInvalid = errors.New("invalid entity")
	// ErrNotPermitted is returned when an immutable entity is asked to be removed.
	ErrNotPermitted = errors.New("operation not permitted")
)

// ValidationError collects the rule violations of a single entity, keyed by field.
type ValidationError struct {
	Entity string
	Fields map[string]string
}

// NewValidationError returns an error carrying a single violation.
func NewValidationError(entity, field, msg string) *ValidationError {
	e := &ValidationError{Entity: entity}
	e.Add(field, msg)
	return e
}

// Add records msg for field. The first message recorded for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns e when at least one violation was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == NonFieldErrors {
			parts = append(parts, e.Fields[k])
			continue
		}
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid " + e.Entity + ": " + strings.Join(parts, "; ")
}

// Is reports ErrInvalid so callers can use errors.Is without caring about the entity.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// FieldErrors extracts the per-field messages from err, or nil when err is not a validation failure.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
