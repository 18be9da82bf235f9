package segment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
)

// PutFunc uploads one segment. body is positioned at the start of the segment and
// digest is its MD5. It returns the ETag reported by the server.
type PutFunc func(ctx context.Context, seg Segment, body *Window, digest string) (string, error)

// Uploader pushes the segments of a plan through a bounded pool.
//
// With a concurrency of 1 segments go out strictly one after the other in index order.
// Higher values upload up to that many segments at once. Either way the first failure
// stops scheduling, cancels in-flight uploads and is the error returned.
type Uploader struct {
	concurrency int
	logger      log.Logger
	stats       *Stats
}

// NewUploader creates an Uploader running at most concurrency uploads at once.
// Values below 1 are treated as 1.
func NewUploader(concurrency int, logger log.Logger) *Uploader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Uploader{
		concurrency: concurrency,
		logger:      logger,
		stats:       NewStats(),
	}
}

// Stats returns the statistics of the uploads done so far.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// Upload uploads every segment of plan read from src and stores the returned ETags in the plan.
func (u *Uploader) Upload(ctx context.Context, plan *Plan, src io.ReaderAt, put PutFunc) error {
	total := len(plan.Segments)
	u.logger.Debugf("Uploading %d segments of %s each (concurrency: %d)",
		total, units.HumanSize(float64(plan.SegmentSize)), u.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	var scheduleErr error
	for i := range plan.Segments {
		if err := gctx.Err(); err != nil {
			scheduleErr = apierror.FromTransport(http.MethodPut, plan.Segments[i].Key, err)
			break
		}

		// Each goroutine writes only its own slot of plan.Segments.
		seg := &plan.Segments[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return apierror.FromTransport(http.MethodPut, seg.Key, err)
			}

			etag, err := u.uploadSegment(gctx, *seg, src, put, total)
			if err != nil {
				return fmt.Errorf("upload segment %d/%d (%s): %w", seg.Index+1, total, seg.Key, err)
			}
			seg.ETag = etag
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return scheduleErr
}

func (u *Uploader) uploadSegment(ctx context.Context, seg Segment, src io.ReaderAt, put PutFunc, total int) (string, error) {
	digest, err := DigestRange(src, seg.Offset, seg.Length)
	if err != nil {
		return "", err
	}

	u.logger.Debugf("Uploading segment %d/%d, %s at offset %d [finished=%d] [avg=%v]",
		seg.Index+1, total, units.HumanSize(float64(seg.Length)), seg.Offset,
		u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

	start := time.Now()
	etag, err := put(ctx, seg, NewWindow(src, seg.Offset, seg.Length), digest)
	if err != nil {
		return "", err
	}
	if etag == "" {
		u.logger.Warnf("No ETag returned for segment %s, using local digest", seg.Key)
		etag = digest
	}

	took := time.Since(start)
	u.stats.Update(took, seg.Length)
	u.logger.Debugf("Segment %d uploaded in %v, ETag: %s", seg.Index+1, took.Round(time.Millisecond), etag)

	return etag, nil
}
