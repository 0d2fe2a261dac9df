package dam

import (
	"errors"
	"fmt"
)

// Kind classifies SDK errors
type Kind int

// Error kinds. KindUnknown is the generic catch-all for API and transport failures
// that have no narrower kind.
const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindValidation
	KindRateLimit
	KindFileTooLarge
	KindNetwork
	KindTimeout
	KindServer
	KindConfiguration
	KindNotImplemented
	KindDecode
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindAuthentication: "authentication",
	KindAuthorization:  "authorization",
	KindNotFound:       "not_found",
	KindValidation:     "validation",
	KindRateLimit:      "rate_limit",
	KindFileTooLarge:   "file_too_large",
	KindNetwork:        "network",
	KindTimeout:        "timeout",
	KindServer:         "server",
	KindConfiguration:  "configuration",
	KindNotImplemented: "not_implemented",
	KindDecode:         "decode",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type returned by the SDK
type Error struct {
	Kind    Kind
	Message string

	// StatusCode and Body are set for errors derived from an HTTP response
	StatusCode int
	Body       map[string]any

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrDAM and any *Error of the same kind, so the sentinels below
// can be used with errors.Is
func (e *Error) Is(target error) bool {
	if target == ErrDAM {
		return true
	}
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ErrDAM matches every error produced by the SDK
var ErrDAM = errors.New("dam error")

// Sentinels for errors.Is
var (
	ErrUnknown        = &Error{Kind: KindUnknown, Message: "dam request failed"}
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrAuthorization  = &Error{Kind: KindAuthorization, Message: "insufficient permissions"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrRateLimit      = &Error{Kind: KindRateLimit, Message: "rate limit exceeded"}
	ErrFileTooLarge   = &Error{Kind: KindFileTooLarge, Message: "file too large"}
	ErrNetwork        = &Error{Kind: KindNetwork, Message: "network connection failed"}
	ErrTimeout        = &Error{Kind: KindTimeout, Message: "request timed out"}
	ErrServer         = &Error{Kind: KindServer, Message: "server error"}
	ErrConfiguration  = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrNotImplemented = &Error{Kind: KindNotImplemented, Message: "not implemented"}
	ErrDecode         = &Error{Kind: KindDecode, Message: "unexpected response shape"}
)

// Causes of async call errors raised by the client itself
var (
	// ErrClientClosed is the cause for calls discarded by Close
	ErrClientClosed = errors.New("client closed")
	// ErrQueueFull is the cause for calls rejected by a full queue with AsyncFailFast set
	ErrQueueFull = errors.New("async queue is full")
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
