// Package identity authenticates against the Rackspace identity service (v2.0) and resolves
// service endpoints from the returned catalog.
package identity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultAuthURL is the public Rackspace identity endpoint.
const DefaultAuthURL = "https://identity.api.rackspacecloud.com/v2.0"

const (
	defaultRetryWait    = 2 * time.Second
	defaultExpiryMargin = time.Minute
	maxErrorBody        = 1024
)

// Credentials identify a Rackspace account.
type Credentials struct {
	Username string
	APIKey   string
}

// Options configure an Identity.
type Options struct {
	// AuthURL defaults to DefaultAuthURL.
	AuthURL     string
	Credentials Credentials
	// Cache defaults to a MemoryCache.
	Cache  Cache
	Logger log.Logger
	// Retries is the number of extra authentication attempts after a failure.
	// Rejected credentials are never retried.
	Retries   uint
	RetryWait time.Duration
	// ExpiryMargin is how long before its expiry a token is renewed.
	ExpiryMargin time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Identity hands out auth tokens and service endpoints.
// It is safe for concurrent use; concurrent callers share a single authentication request.
type Identity struct {
	authURL      string
	credentials  Credentials
	cache        Cache
	cacheKey     string
	client       *retryablehttp.Client
	logger       log.Logger
	retries      uint
	retryWait    time.Duration
	expiryMargin time.Duration
	now          func() time.Time

	mu sync.Mutex
}

// New creates an Identity for the given credentials. Unset options fall back to the
// public identity endpoint, an in-memory token cache and the default retry settings.
func New(opts Options) (*Identity, error) {
	if opts.Credentials.Username == "" {
		return nil, apierror.InvalidArgument("username is empty")
	}
	if opts.Credentials.APIKey == "" {
		return nil, apierror.InvalidArgument("API key is empty")
	}

	authURL := strings.TrimSuffix(opts.AuthURL, "/")
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	retryWait := opts.RetryWait
	if retryWait == 0 {
		retryWait = defaultRetryWait
	}
	margin := opts.ExpiryMargin
	if margin == 0 {
		margin = defaultExpiryMargin
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	client := retryhttp.NewClient(logger)
	client.RetryMax = 0

	return &Identity{
		authURL:      authURL,
		credentials:  opts.Credentials,
		cache:        cache,
		cacheKey:     cacheKey(authURL, opts.Credentials.Username),
		client:       client,
		logger:       logger,
		retries:      opts.Retries,
		retryWait:    retryWait,
		expiryMargin: margin,
		now:          now,
	}, nil
}

// AuthToken returns a valid token id, authenticating if the cached one is missing or about to expire.
func (i *Identity) AuthToken(ctx context.Context) (string, error) {
	t, err := i.Token(ctx)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// PublicEndpoint returns the public URL of service in region.
func (i *Identity) PublicEndpoint(ctx context.Context, service, region string) (string, error) {
	e, err := i.endpoint(ctx, service, region)
	if err != nil {
		return "", err
	}
	return e.PublicURL, nil
}

// InternalEndpoint returns the ServiceNet URL of service in region.
func (i *Identity) InternalEndpoint(ctx context.Context, service, region string) (string, error) {
	e, err := i.endpoint(ctx, service, region)
	if err != nil {
		return "", err
	}
	if e.InternalURL == "" {
		return "", fmt.Errorf("%w: service %s has no internal endpoint in region %q", apierror.ErrNotFound, service, region)
	}
	return e.InternalURL, nil
}

func (i *Identity) endpoint(ctx context.Context, service, region string) (Endpoint, error) {
	t, err := i.Token(ctx)
	if err != nil {
		return Endpoint{}, err
	}
	return t.Endpoint(service, region)
}

// Token returns the current token with its catalog.
func (i *Identity) Token(ctx context.Context) (Token, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	cached, ok, err := i.cache.Read(ctx, i.cacheKey)
	if err != nil {
		i.logger.Warnf("Failed to read cached token: %s", err)
	} else if ok && cached.Valid(i.now(), i.expiryMargin) {
		return cached, nil
	}

	var token Token
	err = retry.Times(i.retries).Wait(i.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			i.logger.Debugf("Retrying authentication (%d/%d)", attempt, i.retries)
		}

		t, err := i.authenticate(ctx)
		if err != nil {
			if errors.Is(err, apierror.ErrUnauthorized) || errors.Is(err, apierror.ErrBadRequest) || ctx.Err() != nil {
				return err, true
			}
			return err, false
		}

		token = t
		return nil, true
	})
	if err != nil {
		return Token{}, fmt.Errorf("authenticate %s: %w", i.credentials.Username, err)
	}

	if err := i.cache.Write(ctx, i.cacheKey, token); err != nil {
		i.logger.Warnf("Failed to cache token: %s", err)
	}
	return token, nil
}

type authRequest struct {
	Auth struct {
		APIKeyCredentials struct {
			Username string `json:"username"`
			APIKey   string `json:"apiKey"`
		} `json:"RAX-KSKEY:apiKeyCredentials"`
	} `json:"auth"`
}

type authResponse struct {
	Access struct {
		Token struct {
			ID      string    `json:"id"`
			Expires time.Time `json:"expires"`
			Tenant  struct {
				ID string `json:"id"`
			} `json:"tenant"`
		} `json:"token"`
		ServiceCatalog []Service `json:"serviceCatalog"`
	} `json:"access"`
}

func (i *Identity) authenticate(ctx context.Context) (Token, error) {
	var body authRequest
	body.Auth.APIKeyCredentials.Username = i.credentials.Username
	body.Auth.APIKeyCredentials.APIKey = i.credentials.APIKey
	payload, err := json.Marshal(body)
	if err != nil {
		return Token{}, err
	}

	url := i.authURL + "/tokens"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	i.logger.Debugf("Authenticating %s at %s", i.credentials.Username, url)
	resp, err := i.client.Do(req)
	if err != nil {
		return Token{}, apierror.FromTransport(http.MethodPost, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNonAuthoritativeInfo {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Token{}, apierror.FromStatus(http.MethodPost, url, resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Token{}, fmt.Errorf("decode identity response: %w", err)
	}
	if parsed.Access.Token.ID == "" {
		return Token{}, fmt.Errorf("identity response has no token")
	}

	i.logger.Debugf("Token issued, expires at %s", parsed.Access.Token.Expires)
	return Token{
		ID:       parsed.Access.Token.ID,
		Expires:  parsed.Access.Token.Expires,
		TenantID: parsed.Access.Token.Tenant.ID,
		Catalog:  parsed.Access.ServiceCatalog,
	}, nil
}

// cacheKey identifies the account without exposing the API key.
func cacheKey(authURL, username string) string {
	sum := sha256.Sum256([]byte(authURL + "\n" + username))
	return "cloudfiles-token:" + hex.EncodeToString(sum[:])
}
