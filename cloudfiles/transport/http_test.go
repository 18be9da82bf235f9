package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc, metrics *Metrics) *HTTPTransport {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tr, err := New(Options{
		BaseURL: server.URL,
		Tokens:  StaticToken("secret-token"),
		Logger:  log.NewLogger(),
		Metrics: metrics,
	})
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport_SendsAuthAndTransID(t *testing.T) {
	var got *http.Request
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	resp, err := tr.Head(context.Background(), "/v1/acct/foo%20bar")
	require.NoError(t, err)
	require.NoError(t, resp.Close())

	assert.Equal(t, http.MethodHead, got.Method)
	assert.Equal(t, "/v1/acct/foo%20bar", got.URL.EscapedPath())
	assert.Equal(t, "secret-token", got.Header.Get("X-Auth-Token"))
	assert.NotEmpty(t, got.Header.Get("X-Trans-Id-Extra"))
}

func TestHTTPTransport_StreamingPut(t *testing.T) {
	var body []byte
	var contentLength int64
	var header http.Header
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		contentLength = r.ContentLength
		header = r.Header
		w.Header().Set("Etag", `"abc123"`)
		w.WriteHeader(http.StatusCreated)
	}, nil)

	resp, err := tr.StreamingPut(context.Background(), "/v1/acct/c/o?multipart-manifest=put",
		strings.NewReader("hello"), 5, Headers{"ETag": "5d41402abc4b2a76b9719d911017c592"})
	require.NoError(t, err)
	require.NoError(t, resp.Close())

	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), contentLength)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", header.Get("Etag"))
	assert.Empty(t, header.Get("Content-Type"))
	assert.Equal(t, "abc123", resp.ETag())
}

func TestHTTPTransport_PutWithoutBody(t *testing.T) {
	var contentLength int64 = -2
	var transferEncoding []string
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		transferEncoding = r.TransferEncoding
		w.WriteHeader(http.StatusAccepted)
	}, nil)

	resp, err := tr.Put(context.Background(), "/v1/acct/new", Headers{"X-CDN-Enabled": "True"})
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	assert.Equal(t, int64(0), contentLength)
	assert.Empty(t, transferEncoding)
}

func TestHTTPTransport_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusNotFound, want: apierror.ErrNotFound},
		{status: http.StatusUnauthorized, want: apierror.ErrUnauthorized},
		{status: http.StatusBadRequest, want: apierror.ErrBadRequest},
		{status: http.StatusInternalServerError, want: apierror.ErrServerError},
		{status: http.StatusGatewayTimeout, want: apierror.ErrTimeout},
		{status: http.StatusConflict, want: apierror.ErrHTTP},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			calls := 0
			tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("details here"))
			}, nil)

			resp, err := tr.Get(context.Background(), "/v1/acct/c")
			assert.Nil(t, resp)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "details here")
			assert.Equal(t, 1, calls, "failures are not retried by default")
		})
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Get(ctx, "/v1/acct/c")
	assert.True(t, errors.Is(err, apierror.ErrTimeout), "got %v", err)
}

func TestHTTPTransport_TokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	boom := errors.New("identity down")
	tr, err := New(Options{BaseURL: server.URL, Tokens: failingTokens{boom}, Logger: log.NewLogger()})
	require.NoError(t, err)

	_, err = tr.Get(context.Background(), "/v1/acct")
	assert.True(t, errors.Is(err, boom))
}

func TestHTTPTransport_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	again, err := NewMetrics(reg)
	require.NoError(t, err, "registering twice reuses the collectors")

	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, again)

	resp, err := tr.Get(context.Background(), "/v1/acct/c")
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	_, err = tr.Get(context.Background(), "/v1/acct/missing")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "404")))
}

func TestHTTPTransport_StandardClient(t *testing.T) {
	var token string
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Auth-Token")
		_, _ = w.Write([]byte("payload"))
	}, nil)

	resp, err := tr.StandardClient().Get(tr.URL("/v1/acct/c/o"))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "payload", string(b))
	assert.Equal(t, "secret-token", token)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Tokens: StaticToken("x")})
	assert.True(t, errors.Is(err, apierror.ErrInvalidArgument))

	_, err = New(Options{BaseURL: "https://example.com"})
	assert.True(t, errors.Is(err, apierror.ErrInvalidArgument))
}

type failingTokens struct {
	err error
}

func (f failingTokens) AuthToken(context.Context) (string, error) {
	return "", f.err
}
