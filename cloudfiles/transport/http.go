package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	authTokenHeader = "X-Auth-Token"
	transIDHeader   = "X-Trans-Id-Extra"
	maxErrorBody    = 1024
)

// Options configure an HTTPTransport.
type Options struct {
	// BaseURL is scheme and host, e.g. "https://storage101.dfw1.clouddrive.com".
	BaseURL string
	Tokens  TokenSource
	Logger  log.Logger
	// RetryMax is the number of retries for failed requests. The client itself never
	// retries; 0 keeps every failure visible to the caller.
	RetryMax int
	// Metrics, if set, records request counts and latencies.
	Metrics *Metrics
	// Tracing wraps the HTTP client with OpenTelemetry instrumentation.
	Tracing bool
}

// HTTPTransport implements Transport on top of a retryablehttp client.
type HTTPTransport struct {
	client  *retryablehttp.Client
	baseURL string
	tokens  TokenSource
	logger  log.Logger
	metrics *Metrics
}

// New creates an HTTPTransport sending authenticated requests to paths below opts.BaseURL.
// Requests are retried at most opts.RetryMax times by the underlying retryable client.
func New(opts Options) (*HTTPTransport, error) {
	if opts.BaseURL == "" {
		return nil, apierror.InvalidArgument("transport base URL is empty")
	}
	if opts.Tokens == nil {
		return nil, apierror.InvalidArgument("transport token source is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	client := retryhttp.NewClient(logger)
	client.RetryMax = opts.RetryMax
	if opts.Tracing {
		client.HTTPClient.Transport = otelhttp.NewTransport(client.HTTPClient.Transport)
	}

	return &HTTPTransport{
		client:  client,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		tokens:  opts.Tokens,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// URL returns the absolute URL of path.
func (t *HTTPTransport) URL(path string) string {
	return t.baseURL + path
}

// Get fetches path. The caller must close the response.
func (t *HTTPTransport) Get(ctx context.Context, path string) (*Response, error) {
	return t.do(ctx, http.MethodGet, path, nil, -1, nil)
}

// Head fetches the headers of path.
func (t *HTTPTransport) Head(ctx context.Context, path string) (*Response, error) {
	return t.do(ctx, http.MethodHead, path, nil, -1, nil)
}

// Post sends body, which may be empty.
func (t *HTTPTransport) Post(ctx context.Context, path string, body []byte, headers Headers) (*Response, error) {
	return t.do(ctx, http.MethodPost, path, bytes.NewReader(body), int64(len(body)), headers)
}

// Put sends a request without body.
func (t *HTTPTransport) Put(ctx context.Context, path string, headers Headers) (*Response, error) {
	return t.do(ctx, http.MethodPut, path, nil, 0, headers)
}

// Delete removes path.
func (t *HTTPTransport) Delete(ctx context.Context, path string, headers Headers) (*Response, error) {
	return t.do(ctx, http.MethodDelete, path, nil, -1, headers)
}

// StreamingPut streams length bytes from body. The body is rewound if the request is retried.
func (t *HTTPTransport) StreamingPut(ctx context.Context, path string, body io.ReadSeeker, length int64, headers Headers) (*Response, error) {
	return t.do(ctx, http.MethodPut, path, body, length, headers)
}

// StandardClient returns a plain *http.Client that authenticates its requests like the transport does.
func (t *HTTPTransport) StandardClient() *http.Client {
	client := t.client.StandardClient()
	client.Transport = &tokenRoundTripper{next: client.Transport, tokens: t.tokens}
	return client
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body io.ReadSeeker, length int64, headers Headers) (*Response, error) {
	token, err := t.tokens.AuthToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}

	// An empty body goes out as "Content-Length: 0" rather than chunked.
	var rawBody interface{}
	if body != nil && length != 0 {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, t.URL(path), rawBody)
	if err != nil {
		return nil, apierror.InvalidArgument("create %s request for %s: %s", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(authTokenHeader, token)
	req.Header.Set(transIDHeader, uuid.NewString())
	if length >= 0 {
		req.ContentLength = length
	}

	dump, err := httputil.DumpRequest(req.Request, false)
	if err != nil {
		t.logger.Warnf("error while dumping request: %s", err)
	}
	t.logger.Debugf("Request dump: %s", redactToken(string(dump), token))

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.metrics.observe(method, 0, time.Since(start))
		return nil, apierror.FromTransport(method, path, err)
	}
	t.metrics.observe(method, resp.StatusCode, time.Since(start))
	t.logger.Debugf("%s %s: HTTP %d in %s", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unwrapError(method, path, resp)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func unwrapError(method, path string, resp *http.Response) error {
	defer resp.Body.Close() //nolint:errcheck
	errorBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		errorBody = []byte(fmt.Sprintf("<unreadable body: %s>", err))
	}
	return apierror.FromStatus(method, path, resp.StatusCode, strings.TrimSpace(string(errorBody)))
}

func redactToken(dump, token string) string {
	if token == "" {
		return dump
	}
	return strings.ReplaceAll(dump, token, "[REDACTED]")
}

type tokenRoundTripper struct {
	next   http.RoundTripper
	tokens TokenSource
}

func (rt *tokenRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := rt.tokens.AuthToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	req = req.Clone(req.Context())
	req.Header.Set(authTokenHeader, token)
	return rt.next.RoundTrip(req)
}
