package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents the broad category of an error.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeNetwork
	ErrorTypeNotFound
	ErrorTypeAuth
	ErrorTypeValidation
	ErrorTypeOperation
	ErrorTypeTimeout
	ErrorTypeResourceBusy
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNetwork:
		return "NetworkError"
	case ErrorTypeNotFound:
		return "NotFoundError"
	case ErrorTypeAuth:
		return "AuthError"
	case ErrorTypeValidation:
		return "ValidationError"
	case ErrorTypeOperation:
		return "OperationError"
	case ErrorTypeTimeout:
		return "TimeoutError"
	case ErrorTypeResourceBusy:
		return "ResourceBusyError"
	default:
		return "UnknownError"
	}
}

// TypedError is an error carrying a category and an optional HTTP status code,
// used to classify remote/transport failures returned by a DriveClient.
type TypedError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

func (e *TypedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *TypedError) Unwrap() error {
	return e.Err
}

func NewNetworkError(message string, err error) error {
	return &TypedError{Type: ErrorTypeNetwork, Message: message, StatusCode: http.StatusServiceUnavailable, Err: err}
}

func NewNotFoundError(message string, err error) error {
	return &TypedError{Type: ErrorTypeNotFound, Message: message, StatusCode: http.StatusNotFound, Err: err}
}

func NewOperationError(message string, err error) error {
	return &TypedError{Type: ErrorTypeOperation, Message: message, StatusCode: http.StatusInternalServerError, Err: err}
}

func NewResourceBusyError(message string, err error) error {
	return &TypedError{Type: ErrorTypeResourceBusy, Message: message, StatusCode: http.StatusConflict, Err: err}
}

func NewAuthError(message string, err error) error {
	return &TypedError{Type: ErrorTypeAuth, Message: message, StatusCode: http.StatusUnauthorized, Err: err}
}

func NewValidationError(message string, err error) error {
	return &TypedError{Type: ErrorTypeValidation, Message: message, StatusCode: http.StatusBadRequest, Err: err}
}

// IsNetworkError reports whether err (or something it wraps) is a TypedError
// of type network. retry.Do predicates use this to decide whether to retry.
func IsNetworkError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeNetwork
	}
	return false
}

func IsNotFoundError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeNotFound
	}
	return false
}

func IsOperationError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeOperation
	}
	return false
}

func IsResourceBusyError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeResourceBusy
	}
	return false
}

func IsAuthError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeAuth
	}
	return false
}

func IsValidationError(err error) bool {
	var typedErr *TypedError
	if As(err, &typedErr) {
		return typedErr.Type == ErrorTypeValidation
	}
	return false
}
