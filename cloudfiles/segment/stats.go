package segment

import (
	"sync"
	"time"
)

// Stats accumulates the finished segment uploads of one Uploader.
type Stats struct {
	mu       sync.Mutex
	finished int64
	bytes    int64
	busy     time.Duration
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a segment of size bytes that took d to upload.
func (s *Stats) Update(d time.Duration, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	s.bytes += size
	s.busy += d
}

// Average is the mean upload time of a finished segment.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished == 0 {
		return 0
	}
	return s.busy / time.Duration(s.finished)
}

// Throughput is bytes per second of upload time, summed over segments.
// With parallel uploads the wall clock rate is higher.
func (s *Stats) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy <= 0 {
		return 0
	}
	return float64(s.bytes) / s.busy.Seconds()
}

// FinishedCount returns the number of uploaded segments.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Bytes returns the number of uploaded bytes.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
