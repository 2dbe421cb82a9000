package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeOpen        ErrorType = "open"
	ErrorTypeRender      ErrorType = "render"
	ErrorTypeObservation ErrorType = "observation"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeAPI         ErrorType = "api"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeIO          ErrorType = "io"
)

// Reason narrows an open or render failure down to its cause
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonUnreachable   Reason = "unreachable"
	ReasonUndecodable   Reason = "undecodable"
	ReasonOutOfRange    Reason = "out_of_range"
	ReasonReleased      Reason = "released"
	ReasonEngineFailure Reason = "engine_failure"
)

// Sentinel errors shared across packages
var (
	// ErrNotFound is returned by a DocumentSource when the reference does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrTransport is returned by a DocumentSource when the bytes could not be fetched.
	ErrTransport = errors.New("document transport failed")
	// ErrObservationUnavailable reports that the viewport mechanism is not supported.
	ErrObservationUnavailable = errors.New("viewport observation unavailable")
	// ErrInvalidTransition reports an out-of-order page state transition.
	ErrInvalidTransition = errors.New("invalid page state transition")
	// ErrNoSession is returned when an operation needs an active session.
	ErrNoSession = errors.New("no active document session")
	// ErrSuperseded is returned by OpenSession when a newer session replaced it.
	ErrSuperseded = errors.New("session superseded by a newer one")
	// ErrStaleGeneration reports a notification for a session that is no longer current.
	ErrStaleGeneration = errors.New("stale session generation")
	// ErrClosed is returned once a viewer has been closed.
	ErrClosed = errors.New("viewer closed")
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Reason  Reason
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	kind := string(e.Type)
	if e.Reason != ReasonNone {
		kind = fmt.Sprintf("%s/%s", e.Type, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, reason Reason, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// OpenError reports that a document could not be opened.
func OpenError(reason Reason, message string, err error) *DomainError {
	return NewError(ErrorTypeOpen, reason, message, err)
}

// RenderError reports that a single page could not be rendered.
func RenderError(reason Reason, message string, err error) *DomainError {
	return NewError(ErrorTypeRender, reason, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, ReasonNone, message, err)
}

func TransportError(message string, err error) *DomainError {
	return NewError(ErrorTypeTransport, ReasonNone, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, ReasonNone, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, ReasonNone, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, ReasonNone, message, err)
}

// IsType reports whether err carries a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Type == errType
}

// IsReason reports whether err carries a DomainError with the given reason.
func IsReason(err error, reason Reason) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Reason == reason
}

// ReasonOf returns the reason of the first DomainError in err's chain.
func ReasonOf(err error) Reason {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonNone
}
