package cloudfiles

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/segment"
	"github.com/bitrise-io/go-cloudfiles/cloudfiles/transport"
	"github.com/docker/go-units"
)

const (
	contentTypeHeader  = "Content-Type"
	etagHeader         = "ETag"
	defaultContentType = "application/octet-stream"
)

// Upload stores src under key and returns the ETag reported by the server.
//
// Sources up to the large object threshold go out in a single PUT carrying their MD5.
// Larger ones are split into segments named "<key>.000", "<key>.001", ... which are
// published as key by a manifest once all of them were uploaded. headers are only sent
// with single-shot objects, where Content-Type defaults to a guess from the key's extension.
// Segments carry application/octet-stream and the manifest goes out without extra headers.
//
// Failed uploads are not retried and uploaded segments of a failed upload are not removed.
func (c *Container) Upload(ctx context.Context, key string, src segment.Source, headers transport.Headers) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if src == nil {
		return "", apierror.InvalidArgument("upload source is nil")
	}

	body, err := src.Open()
	if err != nil {
		return "", fmt.Errorf("open upload source for %s: %w", key, err)
	}
	defer body.Close() //nolint:errcheck

	size := body.Size()
	if size <= c.upload.LargeObjectThreshold {
		return c.uploadObject(ctx, key, body, size, headers)
	}

	c.logger.Infof("%s is %s, larger than %s: uploading in segments", key,
		units.HumanSize(float64(size)), units.HumanSize(float64(c.upload.LargeObjectThreshold)))
	return c.uploadSegmented(ctx, key, body, size)
}

func (c *Container) uploadObject(ctx context.Context, key string, body segment.Body, size int64, headers transport.Headers) (string, error) {
	digest, err := segment.DigestRange(body, 0, size)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", key, err)
	}

	h := copyHeaders(headers)
	if !hasHeader(h, contentTypeHeader) {
		h[contentTypeHeader] = contentTypeOf(key)
	}
	setHeader(h, etagHeader, digest)

	c.logger.Debugf("Uploading %s (%s, md5: %s)", key, units.HumanSize(float64(size)), digest)
	resp, err := c.client.storage.StreamingPut(ctx, c.path(key), segment.NewWindow(body, 0, size), size, h)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Close() //nolint:errcheck

	etag := resp.ETag()
	if etag == "" {
		c.logger.Warnf("No ETag returned for %s", key)
	}
	return etag, nil
}

func (c *Container) uploadSegmented(ctx context.Context, key string, body segment.Body, size int64) (string, error) {
	plan, err := segment.NewPlan(key, size, c.upload.SegmentSize)
	if err != nil {
		return "", err
	}

	uploader := segment.NewUploader(c.upload.SegmentConcurrency, c.logger)
	err = uploader.Upload(ctx, plan, body, func(ctx context.Context, seg segment.Segment, w *segment.Window, digest string) (string, error) {
		resp, err := c.client.storage.StreamingPut(ctx, c.path(seg.Key), w, seg.Length, transport.Headers{
			contentTypeHeader: defaultContentType,
			etagHeader:        digest,
		})
		if err != nil {
			return "", err
		}
		defer resp.Close() //nolint:errcheck
		return resp.ETag(), nil
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	manifest, err := plan.ManifestJSON(c.name)
	if err != nil {
		return "", err
	}

	stats := uploader.Stats()
	c.logger.Debugf("Uploaded %d segments (%s), avg %v per segment at %s/s, publishing manifest",
		stats.FinishedCount(), units.HumanSize(float64(stats.Bytes())),
		stats.Average().Round(time.Millisecond), units.HumanSize(stats.Throughput()))
	resp, err := c.client.storage.StreamingPut(ctx, c.path(key)+"?multipart-manifest=put",
		bytes.NewReader(manifest), int64(len(manifest)), transport.Headers{})
	if err != nil {
		return "", fmt.Errorf("publish manifest of %s: %w", key, err)
	}
	defer resp.Close() //nolint:errcheck

	return resp.ETag(), nil
}

// contentTypeOf guesses the media type from the key's extension, without parameters.
func contentTypeOf(key string) string {
	t := mime.TypeByExtension(path.Ext(key))
	if t == "" {
		return defaultContentType
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return defaultContentType
}

func copyHeaders(headers transport.Headers) transport.Headers {
	h := make(transport.Headers, len(headers)+2)
	for k, v := range headers {
		h[k] = v
	}
	return h
}

func hasHeader(headers transport.Headers, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			return true
		}
	}
	return false
}

func deleteHeader(headers transport.Headers, name string) {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			delete(headers, k)
		}
	}
}

func setHeader(headers transport.Headers, name, value string) {
	deleteHeader(headers, name)
	headers[name] = value
}
