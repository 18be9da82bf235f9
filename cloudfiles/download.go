package cloudfiles

import (
	"context"
	"fmt"
	"io"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/melbahja/got"
)

// Get opens key for reading. The caller must close the returned body.
func (c *Container) Get(ctx context.Context, key string) (io.ReadCloser, ObjectMetadata, error) {
	if err := checkKey(key); err != nil {
		return nil, ObjectMetadata{}, err
	}
	resp, err := c.client.storage.Get(ctx, c.path(key))
	if err != nil {
		return nil, ObjectMetadata{}, fmt.Errorf("get %s: %w", key, err)
	}

	md, err := parseObjectMetadata(resp)
	if err != nil {
		_ = resp.Close()
		return nil, ObjectMetadata{}, err
	}
	return resp.Body, md, nil
}

// DownloadToFile downloads key to dest, fetching byte ranges in parallel when the object allows it.
func (c *Container) DownloadToFile(ctx context.Context, key, dest string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if dest == "" {
		return apierror.InvalidArgument("download destination is empty")
	}
	if c.client.downloadClient == nil {
		return apierror.InvalidArgument("client has no download HTTP client")
	}

	downloader := got.New()
	downloader.Client = c.client.downloadClient

	url := c.client.storageHost + c.path(key)
	c.logger.Debugf("Downloading %s to %s", key, dest)
	if err := downloader.Do(got.NewDownload(ctx, url, dest)); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}
