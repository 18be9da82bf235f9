package cloudfiles

import (
	"net/url"
	"strings"
	"testing"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport/transporttest"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/require"
)

const (
	testStorage = "https://the-cloud.com/account"
	testCDN     = "https://cdn.the-cloud.com/account"
)

func newTestClient(t *testing.T, handler transporttest.HandlerFunc) (*Client, *transporttest.Recorder) {
	t.Helper()
	rec := transporttest.New(handler)
	client, err := New(rec, nil, Endpoints{Storage: testStorage}, Settings{Logger: log.NewLogger()})
	require.NoError(t, err)
	return client, rec
}

func newTestContainer(t *testing.T, handler transporttest.HandlerFunc, opts ...ContainerOption) (*Container, *transporttest.Recorder) {
	t.Helper()
	client, rec := newTestClient(t, handler)
	c, err := client.Container("test", opts...)
	require.NoError(t, err)
	return c, rec
}

// splitPath splits a recorded request path into path and query.
func splitPath(t *testing.T, p string) (string, url.Values) {
	t.Helper()
	path, rawQuery, _ := strings.Cut(p, "?")
	query, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	return path, query
}
