package cloudfiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/listing"
)

// ListOptions narrow a listing.
type ListOptions struct {
	Prefix string
}

// ObjectInfo is a detailed object listing entry.
type ObjectInfo struct {
	Name         string `json:"name"`
	Hash         string `json:"hash"`
	Bytes        int64  `json:"bytes"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

// lastModifiedLayout is the timestamp format of JSON listings, always UTC.
const lastModifiedLayout = "2006-01-02T15:04:05.999999"

// Modified parses LastModified.
func (o ObjectInfo) Modified() (time.Time, error) {
	return time.ParseInLocation(lastModifiedLayout, o.LastModified, time.UTC)
}

// List returns up to max object names in name order.
func (c *Container) List(ctx context.Context, max int, opts ListOptions) ([]string, error) {
	fetch := func(ctx context.Context, page listing.Page) ([]string, error) {
		body, err := c.client.listPage(ctx, c.path(""), page, opts.Prefix, false)
		if err != nil || body == nil {
			return nil, err
		}
		var names []string
		for _, line := range strings.Split(string(body), "\n") {
			if line != "" {
				names = append(names, line)
			}
		}
		return names, nil
	}

	names, err := listing.Collect(ctx, max, fetch, func(name string) string { return name })
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	return names, nil
}

// ListDetails returns up to max objects with their size, hash and type, in name order.
func (c *Container) ListDetails(ctx context.Context, max int, opts ListOptions) ([]ObjectInfo, error) {
	fetch := func(ctx context.Context, page listing.Page) ([]ObjectInfo, error) {
		body, err := c.client.listPage(ctx, c.path(""), page, opts.Prefix, true)
		if err != nil || body == nil {
			return nil, err
		}
		var infos []ObjectInfo
		if err := json.Unmarshal(body, &infos); err != nil {
			return nil, fmt.Errorf("decode object list: %w", err)
		}
		return infos, nil
	}

	infos, err := listing.Collect(ctx, max, fetch, func(info ObjectInfo) string { return info.Name })
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	return infos, nil
}

// Search returns the names starting with term, at most listing.MaxPageSize of them.
func (c *Container) Search(ctx context.Context, term string) ([]string, error) {
	return c.List(ctx, listing.MaxPageSize, ListOptions{Prefix: term})
}
