package core

import "github.com/pkg/errors"

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

type notFound struct {
	resource string
}

// NewNotFoundError reports a missing resource, ie: "application not found".
func NewNotFoundError(resource string) error {
	return &notFound{resource: resource}
}

func (nf notFound) Error() string {
	return nf.resource + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFound)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
