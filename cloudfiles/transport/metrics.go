package transport

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records one counter and one latency histogram per request.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Registering twice on the same registry
// reuses the collectors already there.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudfiles_requests_total",
		Help: "Cloud Files requests by method and status code.",
	}, []string{"method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudfiles_request_duration_seconds",
		Help:    "Cloud Files request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return &Metrics{requests: requests, duration: duration}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// code 0 means the request failed before a response arrived.
func (m *Metrics) observe(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
