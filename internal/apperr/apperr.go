package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Code string

const (
	CodeValidation Code = "VALIDATION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeExpired    Code = "EXPIRED"
	CodeStorage    Code = "STORAGE_ERROR"
	CodeEncoding   Code = "ENCODING_ERROR"
)

// ErrUnchanged is returned by an update callback when the patch changes nothing.
var ErrUnchanged = errors.New("no changes detected")

// Error is an application error carrying its HTTP mapping.
type Error struct {
	Code    Code
	Message string
	Status  int
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string, details map[string]any) error {
	return &Error{Code: CodeValidation, Message: message, Status: http.StatusBadRequest, Details: details}
}

func NotFound(resource string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func Expired(message string) error {
	return &Error{Code: CodeExpired, Message: message, Status: http.StatusGone}
}

// Storage wraps a driver failure. The driver text stays in Err and never reaches clients.
func Storage(err error, op string) error {
	return &Error{Code: CodeStorage, Message: "storage failure", Status: http.StatusInternalServerError, Err: errors.Wrap(err, op)}
}

func Encoding(err error, op string) error {
	return &Error{Code: CodeEncoding, Message: "artifact encoding failed", Status: http.StatusInternalServerError, Err: errors.Wrap(err, op)}
}

// From maps any error onto the taxonomy. Unknown errors become storage errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeStorage, Message: "storage failure", Status: http.StatusInternalServerError, Err: err}
}

func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
