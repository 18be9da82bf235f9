package cloudfiles

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	return root
}

func TestContainer_UploadTree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.txt":           "b",
		"a.txt":           "a",
		"sub/c.txt":       "c",
		"sub/deep/d.txt":  "d",
		"sub/skip.log":    "log",
		"other/e.txt.bak": "bak",
	})
	c, rec := newTestContainer(t, nil)

	keys, err := c.UploadTree(context.Background(), root, "**/*.txt", "logs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/a.txt", "logs/b.txt", "logs/sub/c.txt", "logs/sub/deep/d.txt"}, keys)

	calls := rec.Calls()
	require.Len(t, calls, 4)
	var paths []string
	for _, call := range calls {
		assert.Equal(t, http.MethodPut, call.Method)
		paths = append(paths, call.Path)
	}
	assert.Equal(t, []string{
		"/account/test/logs/a.txt",
		"/account/test/logs/b.txt",
		"/account/test/logs/sub/c.txt",
		"/account/test/logs/sub/deep/d.txt",
	}, paths)
	assert.Equal(t, "d", string(calls[3].Body))
}

func TestContainer_UploadTreeNoMatch(t *testing.T) {
	root := writeTree(t, map[string]string{"a.log": "a"})
	c, rec := newTestContainer(t, nil)

	keys, err := c.UploadTree(context.Background(), root, "*.txt", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, rec.Calls())
}

func TestContainer_UploadTreeStopsAtFirstFailure(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "a", "b": "b", "c": "c"})
	c, rec := newTestContainer(t, func(call transporttest.Call) (*transport.Response, error) {
		if call.Path == "/account/test/b" {
			return nil, transporttest.Fail(call, http.StatusUnauthorized)
		}
		return nil, nil
	})

	keys, err := c.UploadTree(context.Background(), root, "*", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, []string{"a"}, keys)
	assert.Len(t, rec.Calls(), 2)
}

func TestContainer_UploadTreeInvalid(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})
	c, _ := newTestContainer(t, nil)
	ctx := context.Background()

	_, err := c.UploadTree(ctx, filepath.Join(root, "a.txt"), "*", "")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = c.UploadTree(ctx, filepath.Join(root, "nope"), "*", "")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = c.UploadTree(ctx, root, "[", "")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
