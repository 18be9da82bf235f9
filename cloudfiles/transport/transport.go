// Package transport issues the HTTP requests of the Cloud Files client.
//
// The rest of the client only depends on the Transport interface; HTTPTransport is
// the implementation used in production.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Headers are extra request headers.
type Headers map[string]string

// Transport sends requests to one host. Paths are already escaped and may carry a query string.
// Non-2xx responses are returned as *apierror.Error, never as a Response.
type Transport interface {
	Get(ctx context.Context, path string) (*Response, error)
	Head(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body []byte, headers Headers) (*Response, error)
	Put(ctx context.Context, path string, headers Headers) (*Response, error)
	Delete(ctx context.Context, path string, headers Headers) (*Response, error)
	StreamingPut(ctx context.Context, path string, body io.ReadSeeker, length int64, headers Headers) (*Response, error)
}

// TokenSource provides the auth token sent with every request.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a token obtained elsewhere.
type StaticToken string

// AuthToken returns the token as is.
func (t StaticToken) AuthToken(context.Context) (string, error) {
	return string(t), nil
}

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ETag returns the ETag header without surrounding quotes.
func (r *Response) ETag() string {
	return strings.Trim(r.Header.Get("Etag"), `"`)
}

// ReadAll reads and closes the body.
func (r *Response) ReadAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close() //nolint:errcheck
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return b, nil
}

// Close discards the body.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return r.Body.Close()
}
