package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// errServerStatus marks 5xx responses as breaker failures. It never leaves this package.
var errServerStatus = errors.New("server error status")

// BreakerSettings configures NewBreaker
type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // requests allowed through while half-open
	Interval    time.Duration // cyclic period of the closed state
	Timeout     time.Duration // open duration before switching to half-open
	MinRequests uint32
	FailureRate float64
	Logger      *zap.Logger
}

// NewBreaker creates a circuit breaker that trips once at least MinRequests calls
// were made and the failure ratio reached FailureRate
func NewBreaker(s BreakerSettings) *gobreaker.CircuitBreaker {
	if s.Name == "" {
		s.Name = "dam-client"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 5
	}
	if s.Interval <= 0 {
		s.Interval = 30 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRate <= 0 {
		s.FailureRate = 0.5
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= s.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRate
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// IsBreakerOpen reports whether err was produced by an open or saturated circuit
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	_, err := t.cb.Execute(func() (interface{}, error) {
		r, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return nil, errServerStatus
		}
		return nil, nil
	})

	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if IsBreakerOpen(err) {
		return nil, fmt.Errorf("circuit %s: %w", t.cb.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
