package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures so callers can pick a recovery policy
type ErrorType string

const (
	ErrorTypeDiscovery       ErrorType = "discovery"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeHTTP            ErrorType = "http"
	ErrorTypeInvalidFilename ErrorType = "invalid_filename"
	ErrorTypeSave            ErrorType = "save"
	ErrorTypeParsing         ErrorType = "parsing"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeURLNotAllowed   ErrorType = "url_not_allowed"
	ErrorTypeAlreadyRunning  ErrorType = "already_running"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// CodeURLNotAllowed is the fixed code returned by the fetch allow-list.
const CodeURLNotAllowed = "URL_NOT_ALLOWED"

// Error carries a type tag alongside the failing operation and cause
type Error struct {
	Type    ErrorType
	Op      string
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Type, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Op == "" && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrDiscovery       = &Error{Type: ErrorTypeDiscovery}
	ErrInvalidFilename = &Error{Type: ErrorTypeInvalidFilename}
	ErrURLNotAllowed   = &Error{Type: ErrorTypeURLNotAllowed}
	ErrAlreadyRunning  = &Error{Type: ErrorTypeAlreadyRunning}
	ErrValidation      = &Error{Type: ErrorTypeValidation}
)

// New builds a typed error.
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap tags err with a type. A nil err yields nil.
func Wrap(t ErrorType, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Err: err}
}

// TypeOf returns the type of the outermost *Error in the chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether any *Error in the chain has type t.
func IsType(err error, t ErrorType) bool {
	return stderrors.Is(err, &Error{Type: t})
}

// IsRetryable reports whether a failure is worth another attempt.
// Only transport failures qualify; HTTP status failures are final.
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeNetwork)
}
