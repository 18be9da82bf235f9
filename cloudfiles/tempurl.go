package cloudfiles

import (
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/tempurl"
	"github.com/bitrise-io/go-cloudfiles/internal/urlpath"
)

// TempURL returns a URL granting method (GET or PUT) access to key until the unix time expires,
// signed with the account's temp URL key secret.
func (c *Container) TempURL(key, secret string, expires int64, method string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if secret == "" {
		return "", apierror.InvalidArgument("temp URL secret is empty")
	}

	rawPath := urlpath.Raw(c.client.rawAccountPath, c.name, key)
	return tempurl.NewSigner(secret).URL(method, c.client.publicHost, rawPath, c.path(key), expires)
}

// TempURLFor is TempURL with an expiry ttl from now.
func (c *Container) TempURLFor(key, secret string, ttl time.Duration, method string) (string, error) {
	if ttl <= 0 {
		return "", apierror.InvalidArgument("temp URL TTL must be positive, got %s", ttl)
	}
	return c.TempURL(key, secret, c.now().Add(ttl).Unix(), method)
}
