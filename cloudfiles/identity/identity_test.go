package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func identityServer(t *testing.T, status func(call int32) int) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2.0/tokens", r.URL.Path)

		var req authRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Auth.APIKeyCredentials.Username)
		assert.Equal(t, "secret-key", req.Auth.APIKeyCredentials.APIKey)

		code := http.StatusOK
		if status != nil {
			code = status(call)
		}
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}

		_, _ = fmt.Fprintf(w, `{"access":{
			"token":{"id":"token-%d","expires":"2024-05-02T12:00:00.000Z","tenant":{"id":"123456"}},
			"serviceCatalog":[
				{"name":"cloudFiles","type":"object-store","endpoints":[
					{"region":"DFW","publicURL":"https://storage101.dfw1.clouddrive.com/v1/MossoCloudFS_123","internalURL":"https://snet-storage101.dfw1.clouddrive.com/v1/MossoCloudFS_123"},
					{"region":"ORD","publicURL":"https://storage101.ord1.clouddrive.com/v1/MossoCloudFS_123"}
				]},
				{"name":"cloudFilesCDN","type":"rax:object-cdn","endpoints":[
					{"region":"DFW","publicURL":"https://cdn1.clouddrive.com/v1/MossoCloudFS_123"}
				]}
			]}}`, call)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestIdentity(t *testing.T, authURL string, cache Cache, now func() time.Time, retries uint) *Identity {
	id, err := New(Options{
		AuthURL:     authURL,
		Credentials: Credentials{Username: "alice", APIKey: "secret-key"},
		Cache:       cache,
		Logger:      log.NewLogger(),
		Retries:     retries,
		RetryWait:   time.Millisecond,
		Now:         now,
	})
	require.NoError(t, err)
	return id
}

func TestIdentity_AuthTokenServedFromCache(t *testing.T) {
	srv, calls := identityServer(t, nil)
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, func() time.Time { return testNow }, 0)

	for i := 0; i < 3; i++ {
		token, err := id.AuthToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdentity_SharedCacheAcrossInstances(t *testing.T) {
	srv, calls := identityServer(t, nil)
	cache := NewMemoryCache()
	now := func() time.Time { return testNow }

	first := newTestIdentity(t, srv.URL+"/v2.0", cache, now, 0)
	second := newTestIdentity(t, srv.URL+"/v2.0", cache, now, 0)

	_, err := first.AuthToken(context.Background())
	require.NoError(t, err)
	token, err := second.AuthToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-1", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdentity_RenewsExpiredToken(t *testing.T) {
	srv, calls := identityServer(t, nil)
	now := testNow
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, func() time.Time { return now }, 0)

	token, err := id.AuthToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// Within the expiry margin.
	now = time.Date(2024, 5, 2, 11, 59, 30, 0, time.UTC)
	token, err = id.AuthToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdentity_Endpoints(t *testing.T) {
	srv, _ := identityServer(t, nil)
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, func() time.Time { return testNow }, 0)
	ctx := context.Background()

	got, err := id.PublicEndpoint(ctx, ObjectStoreService, "dfw")
	require.NoError(t, err)
	assert.Equal(t, "https://storage101.dfw1.clouddrive.com/v1/MossoCloudFS_123", got)

	got, err = id.InternalEndpoint(ctx, ObjectStoreService, "DFW")
	require.NoError(t, err)
	assert.Equal(t, "https://snet-storage101.dfw1.clouddrive.com/v1/MossoCloudFS_123", got)

	got, err = id.PublicEndpoint(ctx, CDNService, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn1.clouddrive.com/v1/MossoCloudFS_123", got)

	_, err = id.InternalEndpoint(ctx, ObjectStoreService, "ORD")
	assert.True(t, errors.Is(err, apierror.ErrNotFound))

	_, err = id.PublicEndpoint(ctx, ObjectStoreService, "SYD")
	assert.True(t, errors.Is(err, apierror.ErrNotFound))

	_, err = id.PublicEndpoint(ctx, "cloudServers", "DFW")
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestIdentity_RejectedCredentialsAreNotRetried(t *testing.T) {
	srv, calls := identityServer(t, func(int32) int { return http.StatusUnauthorized })
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, nil, 3)

	_, err := id.AuthToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdentity_ServerErrorsAreRetried(t *testing.T) {
	srv, calls := identityServer(t, func(call int32) int {
		if call < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, func() time.Time { return testNow }, 2)

	token, err := id.AuthToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-3", token)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestIdentity_RetriesExhausted(t *testing.T) {
	srv, calls := identityServer(t, func(int32) int { return http.StatusInternalServerError })
	id := newTestIdentity(t, srv.URL+"/v2.0", nil, nil, 1)

	_, err := id.AuthToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrServerError))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

type failingCache struct{}

func (failingCache) Read(context.Context, string) (Token, bool, error) {
	return Token{}, false, errors.New("cache down")
}

func (failingCache) Write(context.Context, string, Token) error {
	return errors.New("cache down")
}

func TestIdentity_CacheFailuresAreNotFatal(t *testing.T) {
	srv, _ := identityServer(t, nil)
	id := newTestIdentity(t, srv.URL+"/v2.0", failingCache{}, func() time.Time { return testNow }, 0)

	token, err := id.AuthToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Credentials: Credentials{APIKey: "k"}})
	assert.True(t, errors.Is(err, apierror.ErrInvalidArgument))

	_, err = New(Options{Credentials: Credentials{Username: "u"}})
	assert.True(t, errors.Is(err, apierror.ErrInvalidArgument))

	id, err := New(Options{Credentials: Credentials{Username: "u", APIKey: "k"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthURL, id.authURL)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(DefaultAuthURL, "alice")
	assert.Equal(t, a, cacheKey(DefaultAuthURL, "alice"))
	assert.NotEqual(t, a, cacheKey(DefaultAuthURL, "bob"))
	assert.NotContains(t, a, "alice")
}
