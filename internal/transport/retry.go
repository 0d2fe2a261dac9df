package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/example/damsdk/internal/metrics"
)

// errRetryableStatus marks a response whose status code asks for another attempt
var errRetryableStatus = errors.New("retryable status")

type retryTransport struct {
	next          http.RoundTripper
	maxRetries    int
	backoffFactor time.Duration
	statuses      map[int]bool
	methods       map[string]bool
	logger        *zap.Logger
	metrics       *metrics.Collectors
}

func newRetryTransport(next http.RoundTripper, opts Options, logger *zap.Logger) *retryTransport {
	statuses := opts.RetryStatuses
	if len(statuses) == 0 {
		statuses = DefaultRetryStatuses
	}
	methods := opts.RetryMethods
	if len(methods) == 0 {
		methods = DefaultRetryMethods
	}
	factor := opts.BackoffFactor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}

	t := &retryTransport{
		next:          next,
		maxRetries:    opts.MaxRetries,
		backoffFactor: factor,
		statuses:      make(map[int]bool, len(statuses)),
		methods:       make(map[string]bool, len(methods)),
		logger:        logger,
		metrics:       opts.Metrics,
	}
	for _, s := range statuses {
		t.statuses[s] = true
	}
	for _, m := range methods {
		t.methods[m] = true
	}
	return t
}

func (t *retryTransport) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.backoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = DefaultMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxRetries)), ctx)
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.methods[req.Method] || !replayable(req) {
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()
	var (
		resp    *http.Response
		attempt int
	)

	operation := func() error {
		current := req
		if attempt > 0 {
			discard(resp)
			resp = nil

			rewound, err := rewind(req)
			if err != nil {
				return backoff.Permanent(err)
			}
			current = rewound
		}
		attempt++

		r, err := t.next.RoundTrip(current)
		if err != nil {
			if ctx.Err() != nil || IsBreakerOpen(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		if t.statuses[r.StatusCode] {
			return errRetryableStatus
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("route", metrics.Route(req.URL.Path)),
			zap.String("request_id", req.Header.Get(HeaderRequestID)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		}
		if errors.Is(err, errRetryableStatus) && resp != nil {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		} else {
			fields = append(fields, zap.Error(err))
		}
		t.logger.Warn("retrying dam request", fields...)
		t.metrics.ObserveRetry(req.Method)
	}

	err := backoff.RetryNotify(operation, t.newBackOff(ctx), notify)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errRetryableStatus) && resp != nil:
		// Retries exhausted: the caller classifies the final response
		return resp, nil
	default:
		discard(resp)
		return nil, err
	}
}

// replayable reports whether the request body can be sent again
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
