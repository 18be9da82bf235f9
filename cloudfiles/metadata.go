package cloudfiles

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
)

const (
	objectMetaPrefix    = "X-Object-Meta-"
	containerMetaPrefix = "X-Container-Meta-"
)

// ObjectMetadata describes a stored object.
type ObjectMetadata struct {
	Bytes        int64
	ContentType  string
	ETag         string
	LastModified time.Time
	// Custom holds the X-Object-Meta-* headers keyed by their lowercase suffix.
	Custom map[string]string
}

// ContainerMetadata describes a container.
type ContainerMetadata struct {
	Objects int64
	Bytes   int64
	// Custom holds the X-Container-Meta-* headers keyed by their lowercase suffix.
	Custom map[string]string
}

// ObjectMetadata fetches the metadata of key with a HEAD request.
func (c *Container) ObjectMetadata(ctx context.Context, key string) (ObjectMetadata, error) {
	if err := checkKey(key); err != nil {
		return ObjectMetadata{}, err
	}
	resp, err := c.client.storage.Head(ctx, c.path(key))
	if err != nil {
		return ObjectMetadata{}, fmt.Errorf("head %s: %w", key, err)
	}
	defer resp.Close() //nolint:errcheck

	return parseObjectMetadata(resp)
}

// Metadata fetches the container's object count, size and custom metadata.
func (c *Container) Metadata(ctx context.Context) (ContainerMetadata, error) {
	resp, err := c.client.storage.Head(ctx, c.path(""))
	if err != nil {
		return ContainerMetadata{}, fmt.Errorf("head container %s: %w", c.name, err)
	}
	defer resp.Close() //nolint:errcheck

	objects, err := intHeader(resp.Header, "X-Container-Object-Count")
	if err != nil {
		return ContainerMetadata{}, err
	}
	bytes, err := intHeader(resp.Header, "X-Container-Bytes-Used")
	if err != nil {
		return ContainerMetadata{}, err
	}
	return ContainerMetadata{
		Objects: objects,
		Bytes:   bytes,
		Custom:  customMetadata(resp.Header, containerMetaPrefix),
	}, nil
}

// SetMetadata posts headers, typically X-Container-Meta-* ones, to the container.
func (c *Container) SetMetadata(ctx context.Context, headers transport.Headers) error {
	resp, err := c.client.storage.Post(ctx, c.path(""), []byte{}, headers)
	if err != nil {
		return fmt.Errorf("set metadata of container %s: %w", c.name, err)
	}
	return resp.Close()
}

func parseObjectMetadata(resp *transport.Response) (ObjectMetadata, error) {
	size, err := intHeader(resp.Header, "Content-Length")
	if err != nil {
		return ObjectMetadata{}, err
	}

	md := ObjectMetadata{
		Bytes:       size,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.ETag(),
		Custom:      customMetadata(resp.Header, objectMetaPrefix),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			md.LastModified = t
		}
	}
	return md, nil
}

// intHeader parses a numeric header; a missing header is 0.
func intHeader(h http.Header, name string) (int64, error) {
	v := h.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s header %q: %w", name, v, err)
	}
	return n, nil
}

func customMetadata(h http.Header, prefix string) map[string]string {
	custom := map[string]string{}
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		if len(values) == 0 || !strings.HasPrefix(canonical, prefix) || len(canonical) == len(prefix) {
			continue
		}
		custom[strings.ToLower(canonical[len(prefix):])] = values[0]
	}
	return custom
}
