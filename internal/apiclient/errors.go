package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindTransport covers no response, request setup failures and unmapped statuses.
	KindTransport Kind = iota
	// KindRejected is a 2xx response whose envelope reports success=false.
	KindRejected
	// KindBadRequest maps HTTP 400.
	KindBadRequest
	// KindUnauthorized maps HTTP 401 and locally expired tokens.
	KindUnauthorized
	// KindForbidden maps HTTP 403.
	KindForbidden
	// KindNotFound maps HTTP 404.
	KindNotFound
	// KindServer maps HTTP 500.
	KindServer
	// KindDecode is a response body that is not a valid envelope.
	KindDecode
)

// Sentinels usable with errors.Is against *Error.
var (
	ErrTransport    = errors.New("apiclient: transport failure")
	ErrRejected     = errors.New("apiclient: request rejected")
	ErrBadRequest   = errors.New("apiclient: bad request")
	ErrUnauthorized = errors.New("apiclient: unauthorized")
	ErrForbidden    = errors.New("apiclient: forbidden")
	ErrNotFound     = errors.New("apiclient: not found")
	ErrServer       = errors.New("apiclient: server error")
	ErrDecode       = errors.New("apiclient: malformed response")
)

var kindSentinels = map[Kind]error{
	KindTransport:    ErrTransport,
	KindRejected:     ErrRejected,
	KindBadRequest:   ErrBadRequest,
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindServer:       ErrServer,
	KindDecode:       ErrDecode,
}

// Error describes a failed backend call.
type Error struct {
	Kind    Kind
	Status  int
	Method  string
	Path    string
	Message string
	// Detail is the message the backend put in an error response body.
	Detail string
	Err    error

	anonymous bool
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// UserMessage returns the text suitable for showing to the operator.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgRequestFailed
}

// BackendMessage prefers the backend's own wording over the generic text
// used for notifications.
func BackendMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return UserMessage(err)
}

// KindOf extracts the kind of err, defaulting to KindTransport.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransport
}
