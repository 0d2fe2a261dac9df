package transport

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/damsdk/internal/metrics"
)

type loggingTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("route", metrics.Route(req.URL.Path)),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		t.logger.Debug("dam request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.logger.Debug("dam request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

type metricsTransport struct {
	next    http.RoundTripper
	metrics *metrics.Collectors
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.ObserveRequest(req.Method, metrics.Route(req.URL.Path), status, time.Since(start))
	return resp, err
}
