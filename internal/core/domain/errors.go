package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidTransition    = errors.New("invalid workflow transition")
	ErrSessionNotFound      = errors.New("registration session not found")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrFollowUpNotFound     = errors.New("follow-up not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrValidation           = errors.New("validation error")
	ErrPersistence          = errors.New("persistence error")
)

// ValidationError reports missing or malformed fields.
// Fields maps a field path (e.g. "members[1].name") to a short reason.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with optional field details
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// PersistenceError wraps a failure from the record store during submission.
// Rows written before the failure stay written.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save registration (table %s): %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
