package transport

import (
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries a per-call identifier shared by all retry attempts
const HeaderRequestID = "X-Request-ID"

type headerTransport struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}
	return t.next.RoundTrip(r)
}
