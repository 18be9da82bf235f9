// Package apierror defines the error kinds surfaced by the Cloud Files client.
//
// Every error returned by the client can be matched against one of the sentinel
// values with errors.Is, no matter how many layers wrapped it:
//
//	if errors.Is(err, apierror.ErrNotFound) {
//	    ...
//	}
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure.
type Kind int

// Known kinds. KindHTTP covers non-2xx statuses that have no dedicated kind.
const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindBadRequest
	KindServerError
	KindTimeout
	KindHTTP
)

// Sentinels, one per Kind.
var (
	ErrInvalidArgument = &sentinel{KindInvalidArgument, "invalid argument"}
	ErrNotFound        = &sentinel{KindNotFound, "not found"}
	ErrUnauthorized    = &sentinel{KindUnauthorized, "unauthorized"}
	ErrBadRequest      = &sentinel{KindBadRequest, "bad request"}
	ErrServerError     = &sentinel{KindServerError, "server error"}
	ErrTimeout         = &sentinel{KindTimeout, "timeout"}
	ErrHTTP            = &sentinel{KindHTTP, "http error"}
)

type sentinel struct {
	kind Kind
	msg  string
}

func (s *sentinel) Error() string { return s.msg }

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	case KindBadRequest:
		return ErrBadRequest
	case KindServerError:
		return ErrServerError
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrHTTP
	}
}

// String returns the message of the kind's sentinel error.
func (k Kind) String() string {
	return k.sentinel().Error()
}

// Error is a failed remote call.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: HTTP %d (%s): %s", e.Method, e.Path, e.StatusCode, e.Kind, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
}

// Is makes errors.Is(err, ErrNotFound) and friends work.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindForStatus maps an HTTP status code to a Kind. Callers only use it for non-2xx codes.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusBadRequest:
		return KindBadRequest
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServerError
	default:
		return KindHTTP
	}
}

// FromStatus builds the error for a non-2xx response.
func FromStatus(method, path string, code int, body string) *Error {
	return &Error{
		Kind:       KindForStatus(code),
		Method:     method,
		Path:       path,
		StatusCode: code,
		Body:       body,
	}
}

// FromTransport wraps an error that happened before any response arrived.
// Deadlines and network timeouts become KindTimeout, everything else stays KindHTTP.
func FromTransport(method, path string, err error) *Error {
	kind := KindHTTP
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Method: method, Path: path, Err: err}
}

// InvalidArgument returns an ErrInvalidArgument carrying a description.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
