package cloudfiles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/internal/urlpath"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Container is a handle to one container. It holds no mutable state and is safe for
// concurrent use.
type Container struct {
	client *Client
	name   string
	upload UploadConfig
	logger log.Logger
	now    func() time.Time
}

// ContainerOption overrides a client setting for one container.
type ContainerOption func(*Container)

// WithLargeObjectThreshold sets the largest size uploaded with a single PUT.
func WithLargeObjectThreshold(size int64) ContainerOption {
	return func(c *Container) {
		if size > 0 {
			c.upload.LargeObjectThreshold = size
		}
	}
}

// WithSegmentSize sets the segment size of large objects.
func WithSegmentSize(size int64) ContainerOption {
	return func(c *Container) {
		if size > 0 {
			c.upload.SegmentSize = size
		}
	}
}

// WithSegmentConcurrency sets how many segments are uploaded at once.
func WithSegmentConcurrency(n int) ContainerOption {
	return func(c *Container) {
		if n > 0 {
			c.upload.SegmentConcurrency = n
		}
	}
}

// WithClock replaces the clock used for temp URL expiry.
func WithClock(now func() time.Time) ContainerOption {
	return func(c *Container) {
		if now != nil {
			c.now = now
		}
	}
}

// Container returns a handle to the named container without checking that it exists.
// Names must be non-empty and must not contain '/'.
func (c *Client) Container(name string, opts ...ContainerOption) (*Container, error) {
	if name == "" {
		return nil, apierror.InvalidArgument("container name is empty")
	}
	if strings.Contains(name, "/") {
		return nil, apierror.InvalidArgument("container name %q contains '/'", name)
	}

	cont := &Container{
		client: c,
		name:   name,
		upload: c.upload,
		logger: c.logger,
		now:    c.now,
	}
	for _, opt := range opts {
		opt(cont)
	}
	return cont, nil
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// Path returns the escaped path of key, or of the container itself if key is empty.
func (c *Container) Path(key string) string {
	return c.path(key)
}

func (c *Container) path(key string) string {
	return urlpath.Join(c.client.accountPath, c.name, key)
}

func (c *Container) cdnPath(key string) string {
	return urlpath.Join(c.client.cdnAccountPath, c.name, key)
}

func checkKey(key string) error {
	if key == "" {
		return apierror.InvalidArgument("object key is empty")
	}
	return nil
}

// Delete removes an object. Deleting a manifest leaves its segments in place.
func (c *Container) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	resp, err := c.client.storage.Delete(ctx, c.path(key), nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return resp.Close()
}

// DeleteLargeObject removes a segmented object together with its segments.
func (c *Container) DeleteLargeObject(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	resp, err := c.client.storage.Delete(ctx, c.path(key)+"?multipart-manifest=delete", nil)
	if err != nil {
		return fmt.Errorf("delete large object %s: %w", key, err)
	}
	return resp.Close()
}
