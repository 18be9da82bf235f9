// Package segment carves large uploads into fixed-size segments and publishes them
// as one object through a static large object manifest.
package segment

import (
	"fmt"

	"github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"
)

// Segment is one contiguous byte range of a large upload.
type Segment struct {
	Index  int
	Offset int64
	Length int64
	// Key is the remote object name of the segment, e.g. "backup.tar.003".
	Key string
	// ETag is filled in once the segment has been uploaded.
	ETag string
}

// Plan is the ordered list of segments covering a source exactly once.
// It is computed before any request is made; uploads only fill in each segment's ETag.
type Plan struct {
	Key         string
	Size        int64
	SegmentSize int64
	Segments    []Segment
}

// SegmentKey names the index-th segment of key.
func SegmentKey(key string, index int) string {
	return fmt.Sprintf("%s.%03d", key, index)
}

// NewPlan splits size bytes into ceil(size/segmentSize) segments.
func NewPlan(key string, size, segmentSize int64) (*Plan, error) {
	if segmentSize <= 0 {
		return nil, apierror.InvalidArgument("segment size must be positive, got %d", segmentSize)
	}
	if size <= 0 {
		return nil, apierror.InvalidArgument("cannot segment %d bytes", size)
	}

	count := int((size + segmentSize - 1) / segmentSize)
	segments := make([]Segment, count)
	for i := 0; i < count; i++ {
		offset := int64(i) * segmentSize
		length := segmentSize
		if remaining := size - offset; remaining < length {
			length = remaining
		}
		segments[i] = Segment{
			Index:  i,
			Offset: offset,
			Length: length,
			Key:    SegmentKey(key, i),
		}
	}

	return &Plan{
		Key:         key,
		Size:        size,
		SegmentSize: segmentSize,
		Segments:    segments,
	}, nil
}
