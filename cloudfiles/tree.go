package cloudfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/segment"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
)

// UploadTree uploads every regular file under dir matching pattern (doublestar syntax, e.g.
// "**/*.log"). Each file is stored as prefix + its slash separated path relative to dir.
// Files are uploaded one by one in key order; the keys uploaded before a failure are returned
// together with the error.
func (c *Container) UploadTree(ctx context.Context, dir, pattern, prefix string) ([]string, error) {
	absDir, err := pathutil.NewPathModifier().AbsPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, apierror.InvalidArgument("upload tree root %s: %s", dir, err)
	}
	if !info.IsDir() {
		return nil, apierror.InvalidArgument("upload tree root %s is not a directory", dir)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, apierror.InvalidArgument("invalid pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(absDir), pattern, doublestar.WithNoFollow(), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("match %s in %s: %w", pattern, dir, err)
	}
	if len(matches) == 0 {
		c.logger.Warnf("No match for pattern %s in %s", pattern, dir)
		return []string{}, nil
	}
	sort.Strings(matches)

	uploaded := make([]string, 0, len(matches))
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		key := prefix + match
		if _, err := c.Upload(ctx, key, segment.FromPath(filepath.Join(absDir, filepath.FromSlash(match))), nil); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, key)
	}

	c.logger.Donef("Uploaded %d files from %s", len(uploaded), dir)
	return uploaded, nil
}
