package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies which of the three failure causes produced an Error.
type ErrorKind int

const (
	// KindNoResponse means the transport produced no HTTP response at all.
	KindNoResponse ErrorKind = iota + 1
	// KindApplication means the server reported an application error (HTTP 400).
	KindApplication
	// KindUnexpectedStatus means the server answered with a status the protocol does not define.
	KindUnexpectedStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoResponse:
		return "no_response"
	case KindApplication:
		return "application"
	case KindUnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

const (
	noResponseMessage  = "RPC response was not received"
	applicationPrefix  = "RPC error: "
	maxBodySnippetSize = 512
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNoResponse       error = kindError(KindNoResponse)
	ErrApplication      error = kindError(KindApplication)
	ErrUnexpectedStatus error = kindError(KindUnexpectedStatus)
)

// kindError is a comparable value standing for every *Error of one kind.
type kindError ErrorKind

func (k kindError) Error() string {
	switch ErrorKind(k) {
	case KindNoResponse:
		return noResponseMessage
	case KindApplication:
		return "RPC error"
	case KindUnexpectedStatus:
		return "unexpected server answer"
	default:
		return "rpc error"
	}
}

// Error is the single error type returned by the HTTP transport.
// Error() yields the human-readable message only.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	// Body holds at most the first 512 bytes of the response body, if any.
	Body []byte
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Unwrap returns the transport failure behind a KindNoResponse error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is compares error kinds for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch t := target.(type) {
	case kindError:
		return e.Kind == ErrorKind(t)
	case *Error:
		return t != nil && e.Kind == t.Kind
	}
	return false
}

func noResponseError(cause error) *Error {
	return &Error{
		Kind:    KindNoResponse,
		Message: noResponseMessage,
		Err:     cause,
	}
}

func applicationError(body []byte) *Error {
	return &Error{
		Kind:       KindApplication,
		StatusCode: 400,
		Message:    applicationPrefix + string(body),
		Body:       bodySnippet(body),
	}
}

func unexpectedStatusError(status int, body []byte) *Error {
	return &Error{
		Kind:       KindUnexpectedStatus,
		StatusCode: status,
		Message: fmt.Sprintf(
			"Unexpected server answer detected (code: %d).  Please report to the course staff.",
			status,
		),
		Body: bodySnippet(body),
	}
}

func bodySnippet(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	if len(body) > maxBodySnippetSize {
		body = body[:maxBodySnippetSize]
	}
	return append([]byte(nil), body...)
}

// KindOf reports the ErrorKind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsApplicationError reports whether err carries a server-supplied message and returns it.
func IsApplicationError(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindApplication {
		return "", false
	}
	return strings.TrimPrefix(e.Message, applicationPrefix), true
}
