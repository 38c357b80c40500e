package core

import (
	"context"
	"net"

	"github.com/pkg/errors"
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
		return ""
	}
	return err.Err.Error()
}

// UpstreamError reports a failed call to an external (AI engine) service.
// Code is the upstream HTTP status, 0 when the service could not be reached.
type UpstreamError struct {
	Service string
	Code    int
	Msg     string
	Timeout bool
	Err     error
}

func (err UpstreamError) Error() string {
	if err.Msg != "" {
		return err.Msg
	}
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Service + " error"
}

// Unwrap returns the transport error, if any.
func (err UpstreamError) Unwrap() error { return err.Err }

// IsUpstream reports whether err was caused by an UpstreamError; it returns it if so.
func IsUpstream(err error) (*UpstreamError, bool) {
	var uErr *UpstreamError
	if errors.As(err, &uErr) {
		return uErr, true
	}
	return nil, false
}

// NewUpstreamStatusError is the error of an upstream service answering with a non-2xx status.
func NewUpstreamStatusError(service string, code int, body string) error {
	return &UpstreamError{Service: service, Code: code, Msg: body}
}

// NewUpstreamTransportError is the error of an upstream service that could not be reached in time (or at all).
func NewUpstreamTransportError(service string, err error) error {
	return &UpstreamError{Service: service, Err: err, Timeout: IsTimeout(err)}
}

// IsTimeout reports whether err is a deadline/timeout error.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
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
