// Package errors provides the closed set of error kinds used across the monitor.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError.
type Kind string

// Error kinds.
const (
	KindNotFound              Kind = "NOT_FOUND"
	KindTimeout               Kind = "TIMEOUT"
	KindProcessIO             Kind = "PROCESS_IO"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindInvalidToken          Kind = "INVALID_TOKEN"
	KindMalformed             Kind = "MALFORMED"
	KindConfigurationConflict Kind = "CONFIGURATION_CONFLICT"
	KindInvalidParams         Kind = "INVALID_PARAMS"
	KindInternal              Kind = "INTERNAL"
)

// AppError represents an application-specific error with additional context.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// NotFound creates a not found error with a ready-to-show message.
func NotFound(message string) *AppError {
	return New(KindNotFound, message)
}

// Timeout creates a timeout error.
func Timeout(message string, err error) *AppError {
	return &AppError{Kind: KindTimeout, Message: message, Err: err}
}

// ProcessIO creates an error for a failed spawn, read or write on a child process.
func ProcessIO(message string, err error) *AppError {
	return &AppError{Kind: KindProcessIO, Message: message, Err: err}
}

// Unauthorized is returned for requests on a connection that has not authenticated.
func Unauthorized() *AppError {
	return New(KindUnauthorized, "unauthorized")
}

// InvalidToken is returned when an auth request carries the wrong token.
func InvalidToken() *AppError {
	return New(KindInvalidToken, "invalid token")
}

// Malformed creates an error for an unparsable protocol line or frame.
func Malformed(message string, err error) *AppError {
	return &AppError{Kind: KindMalformed, Message: message, Err: err}
}

// ConfigurationConflict signals that a running process must be restarted.
func ConfigurationConflict(message string) *AppError {
	return New(KindConfigurationConflict, message)
}

// InvalidParams creates an error for a missing or badly typed request parameter.
func InvalidParams(message string) *AppError {
	return New(KindInvalidParams, message)
}

// MissingParam is the InvalidParams error for an absent key.
func MissingParam(key string) *AppError {
	return InvalidParams(fmt.Sprintf("missing `%s`", key))
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// Wrap wraps an existing error with additional context, returning an AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	// Preserve the kind of an existing AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:    appErr.Kind,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     err,
		}
	}

	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

// UserMessage converts any error into the text sent back to clients.
// AppErrors contribute their message only; process and internal errors
// also carry the wrapped cause.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Kind {
	case KindProcessIO, KindInternal, KindMalformed:
		if appErr.Err != nil && appErr.Message != "" {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
	}
	return appErr.Message
}
