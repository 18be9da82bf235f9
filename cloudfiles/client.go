// Package cloudfiles is a client for Rackspace Cloud Files.
//
// A Client is bound to one account in one region. Objects are managed through the
// Container values it hands out:
//
//	client, err := cloudfiles.NewClient(ctx, cloudfiles.Options{Username: "me", APIKey: key, Region: "DFW"})
//	...
//	c, err := client.Container("backups")
//	...
//	etag, err := c.Upload(ctx, "db/dump.sql", segment.FromPath("/tmp/dump.sql"), nil)
//
// Objects larger than the large object threshold are uploaded in segments and stitched
// together with a static large object manifest.
package cloudfiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/config"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/identity"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/listing"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
	"github.com/bitrise-io/go-utils/v2/log"
)

// UploadConfig tunes Container.Upload.
type UploadConfig struct {
	// LargeObjectThreshold is the largest size uploaded with a single PUT.
	// Default: 64 MiB
	LargeObjectThreshold int64

	// SegmentSize is the size of the segments of larger objects. The last one may be shorter.
	// Default: 64 MiB
	SegmentSize int64

	// SegmentConcurrency is the number of segments uploaded at once.
	// Default: 1 (sequential)
	SegmentConcurrency int
}

// DefaultUploadConfig returns the default upload configuration.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		LargeObjectThreshold: config.DefaultLargeObjectThreshold,
		SegmentSize:          config.DefaultSegmentSize,
		SegmentConcurrency:   config.DefaultSegmentConcurrency,
	}
}

func (u UploadConfig) withDefaults() UploadConfig {
	def := DefaultUploadConfig()
	if u.LargeObjectThreshold <= 0 {
		u.LargeObjectThreshold = def.LargeObjectThreshold
	}
	if u.SegmentSize <= 0 {
		u.SegmentSize = def.SegmentSize
	}
	if u.SegmentConcurrency <= 0 {
		u.SegmentConcurrency = def.SegmentConcurrency
	}
	return u
}

// Settings are the Client settings that don't depend on how the transports were built.
type Settings struct {
	Logger log.Logger
	Upload UploadConfig
	// DownloadClient is used by Container.DownloadToFile and must authenticate its requests.
	DownloadClient *http.Client
	// Now defaults to time.Now.
	Now func() time.Time
}

// Options configure NewClient.
type Options struct {
	Username string
	APIKey   string
	// Region defaults to DFW.
	Region string
	// AuthURL defaults to identity.DefaultAuthURL.
	AuthURL string
	// InternalNetwork sends storage requests over ServiceNet. Temp URLs still use the public endpoint.
	InternalNetwork bool
	// TokenCache defaults to an in-memory cache.
	TokenCache  identity.Cache
	AuthRetries uint
	// HTTPRetries is the retry count of the HTTP transport.
	HTTPRetries int
	Metrics     *transport.Metrics
	Tracing     bool

	Settings
}

// Endpoints are the account URLs, e.g. "https://storage101.dfw1.clouddrive.com/v1/MossoCloudFS_123".
type Endpoints struct {
	// Storage is where requests go.
	Storage string
	// Public is used for temp URLs. Defaults to Storage.
	Public string
	// CDN is the CDN management account URL. Empty if the account has no CDN service.
	CDN string
}

// Client talks to one Cloud Files account.
type Client struct {
	storage        transport.Transport
	cdn            transport.Transport
	storageHost    string
	publicHost     string
	accountPath    string
	rawAccountPath string
	cdnAccountPath string
	logger         log.Logger
	upload         UploadConfig
	downloadClient *http.Client
	now            func() time.Time
}

// NewClient authenticates and resolves the account endpoints of the region.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	region := opts.Region
	if region == "" {
		region = config.DefaultRegion
	}

	id, err := identity.New(identity.Options{
		AuthURL:     opts.AuthURL,
		Credentials: identity.Credentials{Username: opts.Username, APIKey: opts.APIKey},
		Cache:       opts.TokenCache,
		Logger:      logger,
		Retries:     opts.AuthRetries,
	})
	if err != nil {
		return nil, err
	}

	var endpoints Endpoints
	endpoints.Public, err = id.PublicEndpoint(ctx, identity.ObjectStoreService, region)
	if err != nil {
		return nil, fmt.Errorf("resolve storage endpoint: %w", err)
	}
	endpoints.Storage = endpoints.Public
	if opts.InternalNetwork {
		endpoints.Storage, err = id.InternalEndpoint(ctx, identity.ObjectStoreService, region)
		if err != nil {
			return nil, fmt.Errorf("resolve internal storage endpoint: %w", err)
		}
	}
	endpoints.CDN, err = id.PublicEndpoint(ctx, identity.CDNService, region)
	if errors.Is(err, apierror.ErrNotFound) {
		logger.Warnf("No CDN endpoint in region %s, CDN calls will fail", region)
		endpoints.CDN = ""
	} else if err != nil {
		return nil, fmt.Errorf("resolve CDN endpoint: %w", err)
	}

	newTransport := func(endpoint string) (*transport.HTTPTransport, error) {
		e, err := parseEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		return transport.New(transport.Options{
			BaseURL:  e.host,
			Tokens:   id,
			Logger:   logger,
			RetryMax: opts.HTTPRetries,
			Metrics:  opts.Metrics,
			Tracing:  opts.Tracing,
		})
	}

	storage, err := newTransport(endpoints.Storage)
	if err != nil {
		return nil, err
	}
	var cdn transport.Transport
	if endpoints.CDN != "" {
		cdnTransport, err := newTransport(endpoints.CDN)
		if err != nil {
			return nil, err
		}
		cdn = cdnTransport
	}

	settings := opts.Settings
	settings.Logger = logger
	if settings.DownloadClient == nil {
		settings.DownloadClient = storage.StandardClient()
	}
	return New(storage, cdn, endpoints, settings)
}

// NewClientFromConfig builds a Client from a loaded configuration.
func NewClientFromConfig(ctx context.Context, cfg config.Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewLogger()
	}

	var cache identity.Cache
	if cfg.RedisURL != "" {
		redisCache, err := identity.NewRedisCacheFromURL(ctx, cfg.RedisURL, "cloudfiles:")
		if err != nil {
			return nil, fmt.Errorf("set up token cache: %w", err)
		}
		cache = redisCache
	}

	return NewClient(ctx, Options{
		Username:        cfg.Username,
		APIKey:          cfg.APIKey,
		Region:          cfg.Region,
		AuthURL:         cfg.AuthURL,
		InternalNetwork: cfg.InternalNetwork,
		TokenCache:      cache,
		HTTPRetries:     cfg.HTTPRetries,
		Tracing:         cfg.Tracing,
		Settings: Settings{
			Logger: logger,
			Upload: UploadConfig{
				LargeObjectThreshold: cfg.LargeObjectThreshold,
				SegmentSize:          cfg.SegmentSize,
				SegmentConcurrency:   cfg.SegmentConcurrency,
			},
		},
	})
}

// New builds a Client on top of existing transports. cdn may be nil.
func New(storage, cdn transport.Transport, endpoints Endpoints, settings Settings) (*Client, error) {
	if storage == nil {
		return nil, apierror.InvalidArgument("storage transport is nil")
	}
	storageEndpoint, err := parseEndpoint(endpoints.Storage)
	if err != nil {
		return nil, err
	}
	publicHost := storageEndpoint.host
	if endpoints.Public != "" {
		public, err := parseEndpoint(endpoints.Public)
		if err != nil {
			return nil, err
		}
		publicHost = public.host
	}
	var cdnAccountPath string
	if cdn != nil {
		if endpoints.CDN == "" {
			return nil, apierror.InvalidArgument("CDN transport given without CDN endpoint")
		}
		cdnEndpoint, err := parseEndpoint(endpoints.CDN)
		if err != nil {
			return nil, err
		}
		cdnAccountPath = cdnEndpoint.path
	}

	logger := settings.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		storage:        storage,
		cdn:            cdn,
		storageHost:    storageEndpoint.host,
		publicHost:     publicHost,
		accountPath:    storageEndpoint.path,
		rawAccountPath: storageEndpoint.rawPath,
		cdnAccountPath: cdnAccountPath,
		logger:         logger,
		upload:         settings.Upload.withDefaults(),
		downloadClient: settings.DownloadClient,
		now:            now,
	}, nil
}

// AccountPath returns the escaped account path, e.g. "/v1/MossoCloudFS_123".
func (c *Client) AccountPath() string {
	return c.accountPath
}

// CreateContainer creates the container if it doesn't exist yet.
func (c *Client) CreateContainer(ctx context.Context, name string, opts ...ContainerOption) (*Container, error) {
	cont, err := c.Container(name, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := c.storage.Put(ctx, cont.path(""), nil)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", name, err)
	}
	_ = resp.Close()
	return cont, nil
}

// DeleteContainer deletes an empty container.
func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	cont, err := c.Container(name)
	if err != nil {
		return err
	}
	resp, err := c.storage.Delete(ctx, cont.path(""), nil)
	if err != nil {
		return fmt.Errorf("delete container %s: %w", name, err)
	}
	return resp.Close()
}

// ContainerInfo is a detailed container listing entry.
type ContainerInfo struct {
	Name    string `json:"name"`
	Objects int64  `json:"count"`
	Bytes   int64  `json:"bytes"`
}

// ListContainers returns up to max containers of the account in name order.
func (c *Client) ListContainers(ctx context.Context, max int) ([]ContainerInfo, error) {
	fetch := func(ctx context.Context, page listing.Page) ([]ContainerInfo, error) {
		body, err := c.listPage(ctx, c.accountPath, page, "", true)
		if err != nil || body == nil {
			return nil, err
		}
		var infos []ContainerInfo
		if err := json.Unmarshal(body, &infos); err != nil {
			return nil, fmt.Errorf("decode container list: %w", err)
		}
		return infos, nil
	}
	return listing.Collect(ctx, max, fetch, func(i ContainerInfo) string { return i.Name })
}

// listPage issues one list request and returns its body, or nil for an empty (204) page.
func (c *Client) listPage(ctx context.Context, path string, page listing.Page, prefix string, details bool) ([]byte, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(page.Limit))
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if page.Marker != "" {
		query.Set("marker", page.Marker)
	}
	if details {
		query.Set("format", "json")
	}

	resp, err := c.storage.Get(ctx, path+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		_ = resp.Close()
		return nil, nil
	}
	return resp.ReadAll()
}

type endpoint struct {
	// host is scheme and host.
	host string
	// path is the escaped account path, rawPath its unescaped form.
	path    string
	rawPath string
}

func parseEndpoint(rawURL string) (endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return endpoint{}, apierror.InvalidArgument("parse endpoint %q: %s", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return endpoint{}, apierror.InvalidArgument("endpoint %q is not an absolute URL", rawURL)
	}
	e := endpoint{
		host:    u.Scheme + "://" + u.Host,
		path:    strings.TrimSuffix(u.EscapedPath(), "/"),
		rawPath: strings.TrimSuffix(u.Path, "/"),
	}
	if e.path == "" {
		return endpoint{}, apierror.InvalidArgument("endpoint %q has no account path", rawURL)
	}
	return e, nil
}
