// Package transporttest provides a recording Transport for tests.
package transporttest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
)

// Call is one recorded request.
type Call struct {
	Method  string
	Path    string
	Headers transport.Headers
	Body    []byte
	// Length is the declared length of streaming uploads, -1 otherwise.
	Length int64
}

// HandlerFunc answers a recorded call. Returning a nil response and nil error yields an empty 200.
type HandlerFunc func(call Call) (*transport.Response, error)

// Recorder records every call and answers through Handler.
// It is safe for concurrent use.
type Recorder struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// New creates a Recorder answering every call with handler.
func New(handler HandlerFunc) *Recorder {
	return &Recorder{Handler: handler}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Respond builds a response with the given status, headers and body.
func Respond(status int, headers map[string]string, body string) *transport.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &transport.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// Fail returns the error the real transport would return for status.
func Fail(call Call, status int) error {
	return apierror.FromStatus(call.Method, call.Path, status, http.StatusText(status))
}

// Get records a GET call.
func (r *Recorder) Get(ctx context.Context, path string) (*transport.Response, error) {
	return r.record(Call{Method: http.MethodGet, Path: path, Length: -1})
}

// Head records a HEAD call.
func (r *Recorder) Head(ctx context.Context, path string) (*transport.Response, error) {
	return r.record(Call{Method: http.MethodHead, Path: path, Length: -1})
}

// Post records a POST call.
func (r *Recorder) Post(ctx context.Context, path string, body []byte, headers transport.Headers) (*transport.Response, error) {
	return r.record(Call{Method: http.MethodPost, Path: path, Headers: copyHeaders(headers), Body: body, Length: -1})
}

// Put records a PUT call without a body.
func (r *Recorder) Put(ctx context.Context, path string, headers transport.Headers) (*transport.Response, error) {
	return r.record(Call{Method: http.MethodPut, Path: path, Headers: copyHeaders(headers), Length: -1})
}

// Delete records a DELETE call.
func (r *Recorder) Delete(ctx context.Context, path string, headers transport.Headers) (*transport.Response, error) {
	return r.record(Call{Method: http.MethodDelete, Path: path, Headers: copyHeaders(headers), Length: -1})
}

// StreamingPut reads the whole body before recording the call.
func (r *Recorder) StreamingPut(ctx context.Context, path string, body io.ReadSeeker, length int64, headers transport.Headers) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, apierror.FromTransport(http.MethodPut, path, err)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return r.record(Call{Method: http.MethodPut, Path: path, Headers: copyHeaders(headers), Body: b, Length: length})
}

func (r *Recorder) record(call Call) (*transport.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.Handler == nil {
		return Respond(http.StatusOK, nil, ""), nil
	}
	resp, err := r.Handler(call)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = Respond(http.StatusOK, nil, "")
	}
	return resp, nil
}

func copyHeaders(h transport.Headers) transport.Headers {
	c := transport.Headers{}
	for k, v := range h {
		c[k] = v
	}
	return c
}
