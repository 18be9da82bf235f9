package cloudfiles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
)

// CDNMetadata is the CDN state of a container.
type CDNMetadata struct {
	Enabled      bool
	LogRetention bool
	TTL          int
	URI          string
	SSLURI       string
	StreamingURI string
	IOSURI       string
}

// CDNMetadata fetches the CDN state of the container.
func (c *Container) CDNMetadata(ctx context.Context) (CDNMetadata, error) {
	cdn, err := c.cdnTransport()
	if err != nil {
		return CDNMetadata{}, err
	}
	resp, err := cdn.Head(ctx, c.cdnPath(""))
	if err != nil {
		return CDNMetadata{}, fmt.Errorf("head CDN container %s: %w", c.name, err)
	}
	defer resp.Close() //nolint:errcheck

	ttl, err := intHeader(resp.Header, "X-TTL")
	if err != nil {
		return CDNMetadata{}, err
	}
	return CDNMetadata{
		Enabled:      isTrue(resp.Header.Get("X-CDN-Enabled")),
		LogRetention: isTrue(resp.Header.Get("X-Log-Retention")),
		TTL:          int(ttl),
		URI:          resp.Header.Get("X-CDN-URI"),
		SSLURI:       resp.Header.Get("X-CDN-SSL-URI"),
		StreamingURI: resp.Header.Get("X-CDN-Streaming-URI"),
		IOSURI:       resp.Header.Get("X-CDN-iOS-URI"),
	}, nil
}

// CDNEnable publishes the container on the CDN with the given cache TTL in seconds.
func (c *Container) CDNEnable(ctx context.Context, ttl int) error {
	if ttl < 0 {
		return apierror.InvalidArgument("CDN TTL must not be negative, got %d", ttl)
	}
	cdn, err := c.cdnTransport()
	if err != nil {
		return err
	}
	resp, err := cdn.Put(ctx, c.cdnPath(""), transport.Headers{
		"X-CDN-Enabled": "True",
		"X-TTL":         strconv.Itoa(ttl),
	})
	if err != nil {
		return fmt.Errorf("enable CDN for %s: %w", c.name, err)
	}
	return resp.Close()
}

// PurgeFromAkamai removes key from the CDN edge caches; email is notified when done.
func (c *Container) PurgeFromAkamai(ctx context.Context, key, email string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	cdn, err := c.cdnTransport()
	if err != nil {
		return err
	}
	resp, err := cdn.Delete(ctx, c.cdnPath(key), transport.Headers{"X-Purge-Email": email})
	if err != nil {
		return fmt.Errorf("purge %s from CDN: %w", key, err)
	}
	return resp.Close()
}

func (c *Container) cdnTransport() (transport.Transport, error) {
	if c.client.cdn == nil {
		return nil, fmt.Errorf("%w: account has no CDN endpoint", apierror.ErrNotFound)
	}
	return c.client.cdn, nil
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true")
}
