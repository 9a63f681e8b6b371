// Package apperr holds the error kinds shared by the store, the orchestrators
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrStatusConflict = errors.New("status changed concurrently")
	ErrVideoBusy      = errors.New("video already has an active job")
)

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Validation wraps ErrValidation with a client-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProviderError is a failure of an external transcription or MCQ provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError is a failure of the data store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MappingError records a generated question whose correct-answer label did not
// match any of its options. It is recoverable: the question is kept with an
// empty correct option id.
type MappingError struct {
	QuestionID string
	Label      string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("question %s: correct answer %q matches no option", e.QuestionID, e.Label)
}

// HTTPStatus maps an error to the response code a synchronous caller gets.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrVideoBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
