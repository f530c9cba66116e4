package switchboard

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidConfig is returned when settings or routes cannot be assembled
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNilHandler is returned when a route is registered without a handler
	ErrNilHandler = errors.New("nil handler")
	// ErrInvalidPattern is returned when a dynamic route pattern does not compile
	ErrInvalidPattern = errors.New("invalid route pattern")
	// ErrHeadersAlreadySent is returned when a response tries to write its headers twice
	ErrHeadersAlreadySent = errors.New("headers already sent")
	// ErrResponseClosed is returned when writing to a response that is already closed
	ErrResponseClosed = errors.New("response closed")
	// ErrClientDisconnected is returned when the client went away mid-response.
	// The pipeline treats it as a normal termination.
	ErrClientDisconnected = errors.New("client disconnected")

	errHandlerAborted = errors.New("handler aborted")
)
