// Package apperr defines the error taxonomy shared by the services and
// the HTTP layer: configuration errors are fatal, validation errors map
// to 400, upstream failures carry the offending service and status.
package apperr

import (
	"errors"
	"fmt"
)

// ErrConfiguration signals a missing required credential or setting.
// It is surfaced before any work begins.
var ErrConfiguration = errors.New("missing configuration")

// ErrNotFound signals an unknown resource (phone number, record).
var ErrNotFound = errors.New("not found")

// NotFoundError carries a user-facing message while matching
// errors.Is(err, ErrNotFound).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError with a plain message.
func NotFound(message string) error {
	return &NotFoundError{Message: message}
}

// ValidationError is malformed caller input; it never has side effects.
// The message is user-facing and may be localized.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation builds a ValidationError with a plain message.
func Validation(message string) error {
	return &ValidationError{Message: message}
}

// UpstreamError is a failure of an external collaborator (scraper, model,
// messaging). Non-fatal to a batch run; recorded per item.
type UpstreamError struct {
	Stage   string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Stage, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Upstream builds an UpstreamError for the given stage.
func Upstream(stage string, status int, message string) error {
	return &UpstreamError{Stage: stage, Status: status, Message: message}
}

// PersistenceError is a storage write/read failure. It aborts the single
// item being processed, not the batch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps a storage error with the failing operation.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsValidation reports whether err is caller-input related.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamStatus returns the upstream HTTP status carried by err, or 0.
func UpstreamStatus(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}
