package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Values are part of the HTTP error body.
type Code string

const (
	Unauthenticated  Code = "UNAUTHENTICATED"
	InvalidArgument  Code = "INVALID_ARGUMENT"
	PermissionDenied Code = "PERMISSION_DENIED"
	NotFound         Code = "NOT_FOUND"
	ScoringFailed    Code = "SCORING_FAILED"
	UploadFailed     Code = "UPLOAD_FAILED"
	Internal         Code = "INTERNAL"
)

// Error carries a code, a caller-safe message and an optional cause.
// The cause is for server-side logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code so errors.Is(err, apperr.E(NotFound)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Code == e.Code
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// E returns a bare sentinel for errors.Is comparisons.
func E(code Code) *Error { return &Error{Code: code} }

// CodeOf returns the code of err, or Internal for anything that is not an *Error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage is what may be shown to a caller. Internal details are suppressed.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) || ae.Code == Internal {
		return "internal error"
	}
	return ae.Message
}

func HTTPStatus(code Code) int {
	switch code {
	case Unauthenticated:
		return http.StatusUnauthorized
	case InvalidArgument:
		return http.StatusBadRequest
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ScoringFailed:
		return http.StatusBadGateway
	case UploadFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse mapping used by HTTP clients.
func FromHTTPStatus(status int) Code {
	switch status {
	case http.StatusUnauthorized:
		return Unauthenticated
	case http.StatusBadRequest:
		return InvalidArgument
	case http.StatusForbidden:
		return PermissionDenied
	case http.StatusNotFound:
		return NotFound
	case http.StatusBadGateway:
		return ScoringFailed
	case http.StatusUnprocessableEntity:
		return UploadFailed
	default:
		return Internal
	}
}
