// Package config reads the client settings from environment variables or .env files.
package config

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

// Defaults applied to unset variables.
const (
	DefaultRegion               = "DFW"
	DefaultLargeObjectThreshold = 64 * units.MiB
	DefaultSegmentSize          = 64 * units.MiB
	DefaultSegmentConcurrency   = 1

	// MaxObjectSize is the largest object (or segment) the service accepts in one PUT.
	MaxObjectSize = 5 * units.GiB
)

// Inputs are the raw variables.
type Inputs struct {
	Username             string          `env:"CLOUDFILES_USERNAME,required"`
	APIKey               stepconf.Secret `env:"CLOUDFILES_API_KEY,required"`
	Region               string          `env:"CLOUDFILES_REGION"`
	AuthURL              string          `env:"CLOUDFILES_AUTH_URL"`
	LargeObjectThreshold string          `env:"CLOUDFILES_LARGE_OBJECT_THRESHOLD"`
	SegmentSize          string          `env:"CLOUDFILES_SEGMENT_SIZE"`
	SegmentConcurrency   int             `env:"CLOUDFILES_SEGMENT_CONCURRENCY"`
	HTTPRetries          int             `env:"CLOUDFILES_HTTP_RETRIES"`
	InternalNetwork      bool            `env:"CLOUDFILES_INTERNAL_NETWORK"`
	RedisURL             stepconf.Secret `env:"CLOUDFILES_REDIS_URL"`
	Tracing              bool            `env:"CLOUDFILES_TRACING"`
}

// Config is the validated configuration with defaults applied.
type Config struct {
	Username             string
	APIKey               string
	Region               string
	AuthURL              string
	LargeObjectThreshold int64
	SegmentSize          int64
	SegmentConcurrency   int
	HTTPRetries          int
	InternalNetwork      bool
	RedisURL             string
	Tracing              bool
}

// Load parses the configuration from envRepo.
func Load(envRepo env.Repository) (Config, error) {
	var in Inputs
	if err := stepconf.NewInputParser(envRepo).Parse(&in); err != nil {
		return Config{}, fmt.Errorf("%w: %s", apierror.ErrInvalidArgument, err)
	}
	return in.Config()
}

// LoadFile parses the configuration from a .env file. Variables set in the process
// environment take precedence over the file.
func LoadFile(path string) (Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(newLayeredRepository(env.NewRepository(), values))
}

// Config validates the inputs and applies defaults.
func (in Inputs) Config() (Config, error) {
	threshold, err := parseSize("CLOUDFILES_LARGE_OBJECT_THRESHOLD", in.LargeObjectThreshold, DefaultLargeObjectThreshold)
	if err != nil {
		return Config{}, err
	}
	segmentSize, err := parseSize("CLOUDFILES_SEGMENT_SIZE", in.SegmentSize, DefaultSegmentSize)
	if err != nil {
		return Config{}, err
	}

	concurrency := in.SegmentConcurrency
	if concurrency == 0 {
		concurrency = DefaultSegmentConcurrency
	}
	if concurrency < 0 {
		return Config{}, apierror.InvalidArgument("CLOUDFILES_SEGMENT_CONCURRENCY must be positive, got %d", concurrency)
	}
	if in.HTTPRetries < 0 {
		return Config{}, apierror.InvalidArgument("CLOUDFILES_HTTP_RETRIES must not be negative, got %d", in.HTTPRetries)
	}

	region := strings.ToUpper(strings.TrimSpace(in.Region))
	if region == "" {
		region = DefaultRegion
	}

	return Config{
		Username:             in.Username,
		APIKey:               string(in.APIKey),
		Region:               region,
		AuthURL:              in.AuthURL,
		LargeObjectThreshold: threshold,
		SegmentSize:          segmentSize,
		SegmentConcurrency:   concurrency,
		HTTPRetries:          in.HTTPRetries,
		InternalNetwork:      in.InternalNetwork,
		RedisURL:             string(in.RedisURL),
		Tracing:              in.Tracing,
	}, nil
}

// Log prints the configuration without secrets.
func (c Config) Log(logger log.Logger) {
	logger.Printf("Cloud Files configuration:")
	logger.Printf("- Username: %s", c.Username)
	logger.Printf("- Region: %s", c.Region)
	if c.AuthURL != "" {
		logger.Printf("- Auth URL: %s", c.AuthURL)
	}
	logger.Printf("- Large object threshold: %s", units.BytesSize(float64(c.LargeObjectThreshold)))
	logger.Printf("- Segment size: %s", units.BytesSize(float64(c.SegmentSize)))
	logger.Printf("- Segment concurrency: %d", c.SegmentConcurrency)
	logger.Printf("- HTTP retries: %d", c.HTTPRetries)
	logger.Printf("- Internal network: %t", c.InternalNetwork)
	logger.Printf("- Token cache: %s", tokenCacheName(c.RedisURL))
	logger.Printf("- Tracing: %t", c.Tracing)
}

func tokenCacheName(redisURL string) string {
	if redisURL == "" {
		return "memory"
	}
	return "redis"
}

func parseSize(name, value string, def int64) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, apierror.InvalidArgument("%s: %s", name, err)
	}
	if size <= 0 {
		return 0, apierror.InvalidArgument("%s must be positive, got %s", name, value)
	}
	if size > MaxObjectSize {
		return 0, apierror.InvalidArgument("%s must not exceed %s, got %s", name, units.BytesSize(float64(MaxObjectSize)), value)
	}
	return size, nil
}
