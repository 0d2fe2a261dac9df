package damtest

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Middleware defines a function to process http requests
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to a http.Handler. The last middleware is the outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for _, middleware := range middlewares {
		handler = middleware(handler)
	}
	return handler
}

// Logger returns a middleware that logs requests at debug level
func Logger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Debug("fake dam request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// Recover returns a middleware that turns handler panics into 500 responses
func Recover(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("fake dam panic", zap.Any("panic", err), zap.ByteString("stack", debug.Stack()))
					sendJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Internal Server Error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type requestIndexKey struct{}

// record appends every request to the server log before anything else runs
func (s *Server) record() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.requests = append(s.requests, Request{
				Method:   r.Method,
				Path:     r.URL.EscapedPath(),
				RawQuery: r.URL.RawQuery,
				Header:   r.Header.Clone(),
			})
			index := len(s.requests) - 1
			s.mu.Unlock()

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIndexKey{}, index)))
		})
	}
}

// inject serves queued faults and applies the configured delay
func (s *Server) inject() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			delay := s.delay
			var f *fault
			if len(s.faults) > 0 {
				current := s.faults[0]
				f = &current
				s.faults[0].remaining--
				if s.faults[0].remaining <= 0 {
					s.faults = s.faults[1:]
				}
			}
			s.mu.Unlock()

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			if f != nil {
				w.Header().Set("Content-Type", f.contentType)
				w.WriteHeader(f.status)
				w.Write([]byte(f.body))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// apiKey rejects requests without the configured credential headers
func (s *Server) apiKey() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(headerKeyID) != s.keyID || r.Header.Get(headerKeySecret) != s.keySecret {
				sendJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid API credentials"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and passes it to the underlying ResponseWriter
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements the http.Flusher interface
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
