package client

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNetwork matches every request failure: transport errors, non-2xx
	// responses and breaker rejections.
	ErrNetwork = errors.New("catalog network error")

	// ErrParse matches malformed response bodies.
	ErrParse = errors.New("catalog parse error")
)

// ErrorKind is the user-facing error taxonomy of a list fetch.
type ErrorKind string

const (
	// KindNetwork covers failed requests and non-2xx statuses.
	KindNetwork ErrorKind = "network"

	// KindParse covers response bodies that do not decode into a page.
	KindParse ErrorKind = "parse"
)

// ErrorClass refines KindNetwork for observability and breaker accounting.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other unexpected statuses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassTransport represents connection and timeout errors.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassCircuitOpen represents requests rejected by the breaker.
	ErrorClassCircuitOpen ErrorClass = "circuit_open"

	// ErrorClassBody represents malformed response bodies.
	ErrorClassBody ErrorClass = "body"
)

// Error represents a failed list fetch with additional context.
type Error struct {
	Kind       ErrorKind
	Class      ErrorClass
	StatusCode int
	Resource   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	status := ""
	if e.StatusCode > 0 {
		status = fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error%s: %s: %v", e.Kind, status, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error%s: %s", e.Kind, status, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// countsAsOutage reports whether err says the catalog is unhealthy. Only
// those errors move the circuit breaker; a 404 or a bad body does not.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return true
	}
	switch ce.Class {
	case ErrorClassServer, ErrorClassTransport:
		return true
	default:
		return false
	}
}
