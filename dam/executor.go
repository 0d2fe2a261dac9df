package dam

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/damsdk/internal/auth"
	"github.com/example/damsdk/internal/metrics"
	"github.com/example/damsdk/internal/transport"
	"github.com/example/damsdk/models"
)

// executor owns the HTTP client and runs the build, send, classify steps for a call.
// It is shared by Client and AsyncClient.
type executor struct {
	cfg     Config
	http    *http.Client
	pooled  *http.Transport
	logger  *zap.Logger
	metrics *metrics.Collectors

	// stream shares the transport of http but has no total timeout
	stream *http.Client
}

func newExecutor(cfg Config) (*executor, error) {
	collectors, err := metrics.New(cfg.MetricsRegisterer)
	if err != nil {
		return nil, wrapError(KindConfiguration, err, "failed to register metrics")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &executor{cfg: cfg, logger: logger, metrics: collectors}

	base := cfg.Transport
	if base == nil {
		e.pooled = transport.NewPooledTransport(transport.PoolConfig{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			InsecureSkipVerify:  cfg.SkipTLSVerify,
		})
		base = e.pooled
	}

	opts := transport.Options{
		Headers: map[string]string{
			HeaderKeyID:     cfg.KeyID,
			HeaderKeySecret: cfg.KeySecret,
			"User-Agent":    cfg.UserAgent,
			"Accept":        "application/json",
		},
		BackoffFactor: cfg.BackoffFactor,
		Logger:        logger,
		Metrics:       collectors,
	}
	if !cfg.DisableRetries {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.CircuitBreaker {
		opts.Breaker = transport.NewBreaker(transport.BreakerSettings{Name: "dam-" + hostOf(cfg.APIURL), Logger: logger})
	}

	rt := auth.Transport(cfg.TokenSource, transport.Chain(base, opts))
	e.http = &http.Client{Transport: rt, Timeout: cfg.Timeout}
	e.stream = &http.Client{Transport: rt}
	return e, nil
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}

// send executes r and returns the raw response. Transport failures are mapped to SDK errors.
func (e *executor) send(ctx context.Context, r *request) (*http.Response, func(), error) {
	req, release, err := r.build(ctx, e.cfg.APIURL)
	if err != nil {
		return nil, release, err
	}

	resp, err := e.http.Do(req)
	if err != nil {
		release()
		return nil, func() {}, e.transportError(err)
	}
	return resp, release, nil
}

// sendStream is send for content downloads. Config.Timeout bounds the wait for
// the response headers only; the body is read until ctx is done.
func (e *executor) sendStream(ctx context.Context, r *request) (*http.Response, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	req, release, err := r.build(ctx, e.cfg.APIURL)
	if err != nil {
		cancel()
		return nil, release, err
	}

	timer := time.AfterFunc(e.cfg.Timeout, cancel)
	resp, err := e.stream.Do(req)
	expired := !timer.Stop()
	switch {
	case err != nil && expired:
		err = wrapError(KindTimeout, err, "request timed out after %s", e.cfg.Timeout)
	case err != nil:
		err = e.transportError(err)
	case expired:
		resp.Body.Close()
		err = newError(KindTimeout, "request timed out after %s", e.cfg.Timeout)
	}
	if err != nil {
		release()
		cancel()
		return nil, func() {}, err
	}
	return resp, func() {
		release()
		cancel()
	}, nil
}

// do executes r and classifies the response
func (e *executor) do(ctx context.Context, r *request) (models.Envelope, error) {
	env, err := e.exchange(ctx, r)
	if err != nil {
		e.metrics.ObserveError(metrics.Route(r.endpoint), KindOf(err).String())
		return nil, err
	}
	return env, nil
}

func (e *executor) exchange(ctx context.Context, r *request) (models.Envelope, error) {
	resp, release, err := e.send(ctx, r)
	defer release()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.transportError(err)
	}
	return Classify(resp.StatusCode, body)
}

// transportError maps a failed round trip to an SDK error. Timeouts are checked
// first because dial timeouts are also network errors.
func (e *executor) transportError(err error) error {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return wrapError(KindTimeout, err, "request timed out after %s", e.cfg.Timeout)
	case isConnectionError(err):
		return wrapError(KindNetwork, err, "network connection failed")
	default:
		return wrapError(KindUnknown, err, "request failed")
	}
}

func isConnectionError(err error) bool {
	if transport.IsBreakerOpen(err) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func (e *executor) close() {
	if e.pooled != nil {
		e.pooled.CloseIdleConnections()
		return
	}
	e.http.CloseIdleConnections()
}

func (e *executor) decodeError(err error, what string) error {
	return wrapError(KindDecode, err, "failed to decode %s", what)
}
