// Package metrics provides the prometheus collectors recorded by the DAM client
package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the client-side metrics. A nil *Collectors records nothing.
type Collectors struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Collectors already registered by another client are reused. A nil reg returns nil.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		return nil, nil
	}

	c := &Collectors{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dam_client_requests_total",
			Help: "Total number of HTTP requests sent to the DAM API",
		}, []string{"method", "route", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dam_client_request_duration_seconds",
			Help:    "DAM API request duration in seconds, retries included",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method", "route"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dam_client_errors_total",
			Help: "Total number of failed DAM API calls by error kind",
		}, []string{"route", "kind"}),

		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dam_client_retries_total",
			Help: "Total number of retried DAM API requests",
		}, []string{"method"}),
	}

	var err error
	if c.RequestsTotal, err = register(reg, c.RequestsTotal); err != nil {
		return nil, err
	}
	if c.RequestDuration, err = register(reg, c.RequestDuration); err != nil {
		return nil, err
	}
	if c.ErrorsTotal, err = register(reg, c.ErrorsTotal); err != nil {
		return nil, err
	}
	if c.RetriesTotal, err = register(reg, c.RetriesTotal); err != nil {
		return nil, err
	}
	return c, nil
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

// ObserveRequest records one completed round trip
func (c *Collectors) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveError records a failed call
func (c *Collectors) ObserveError(route, kind string) {
	if c == nil {
		return
	}
	c.ErrorsTotal.WithLabelValues(route, kind).Inc()
}

// ObserveRetry records one retry attempt
func (c *Collectors) ObserveRetry(method string) {
	if c == nil {
		return
	}
	c.RetriesTotal.WithLabelValues(method).Inc()
}

// Route collapses file identifiers in an API path so it can be used as a label
func Route(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		prev := segments[i-1]
		if prev != "files" && prev != "transform" {
			continue
		}
		switch segments[i] {
		case "bulk-delete", "serve", "thumbnail":
			continue
		}
		segments[i] = "{id}"
	}
	return "/" + strings.Join(segments, "/")
}
