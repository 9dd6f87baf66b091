package progression

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the engine. Match them with errors.Is.
var (
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrRetakeNotAllowed    = errors.New("retake not allowed")
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
	ErrInvalidAnswerShape  = errors.New("invalid answer shape")
	ErrDataIntegrity       = errors.New("data integrity error")
)

// Error carries a human readable message for one of the error kinds above.
type Error struct {
	kind    error
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the sentinel the error wraps.
func (e *Error) Kind() error {
	return e.kind
}

func newError(kind error, format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		message = kind.Error()
	}
	return &Error{kind: kind, message: message}
}

func AccessDenied(format string, args ...interface{}) error {
	return newError(ErrAccessDenied, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

func DataIntegrity(format string, args ...interface{}) error {
	return newError(ErrDataIntegrity, format, args...)
}

// KindOf returns the engine error kind of err, or nil when err is not an engine error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrAccessDenied,
		ErrNotFound,
		ErrRetakeNotAllowed,
		ErrMaxAttemptsExceeded,
		ErrInvalidAnswerShape,
		ErrDataIntegrity,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
