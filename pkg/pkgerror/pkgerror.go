// Package pkgerror defines the error taxonomy shared across the control
// plane: a small set of kinds, not language types, each carrying an HTTP
// status and a stable error code for the REST envelope.
package pkgerror

import "net/http"

// GenericError is implemented by every error kind the REST and streaming
// layers know how to render.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}

// ValidationError wraps malformed or out-of-range input. Never fatal.
type ValidationError string

func (e ValidationError) Error() string    { return string(e) }
func (e ValidationError) ErrCode() string  { return "VALIDATION_ERROR" }
func (e ValidationError) StatusCode() int  { return http.StatusBadRequest }

// NotFoundError wraps an unknown expression_id or motion group. The
// adapter returns status=error without emitting a frame; REST still
// answers 200 with a status=error payload.
type NotFoundError string

func (e NotFoundError) Error() string   { return string(e) }
func (e NotFoundError) ErrCode() string { return "NOT_FOUND_ERROR" }
func (e NotFoundError) StatusCode() int { return http.StatusOK }

// ExternalServiceError wraps a TTS or Agent failure, or a backpressure
// timeout on a direct-reply path.
type ExternalServiceError string

func (e ExternalServiceError) Error() string   { return string(e) }
func (e ExternalServiceError) ErrCode() string { return "EXTERNAL_SERVICE_ERROR" }
func (e ExternalServiceError) StatusCode() int { return http.StatusOK }

// SessionClosedError is returned when a producer observes a closed
// outbound channel.
type SessionClosedError string

func (e SessionClosedError) Error() string   { return string(e) }
func (e SessionClosedError) ErrCode() string { return "SESSION_CLOSED" }
func (e SessionClosedError) StatusCode() int { return http.StatusGone }
