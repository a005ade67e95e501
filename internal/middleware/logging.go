// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries a per-request id so client and server logs can be joined.
const RequestIDHeader = "X-Request-ID"

// LogTransport wraps next so every outgoing request is logged with Logrus.
// Logs the method, path, status, duration and request id. A request without an
// X-Request-ID gets one.
func LogTransport(logger *logrus.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, reqID)
		}

		start := time.Now()
		resp, err := next.RoundTrip(r)

		fields := logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start),
			"request_id": reqID,
		}
		if err != nil {
			fields["error"] = err
			logger.WithFields(fields).Warn("HTTP request failed")
			return nil, err
		}
		fields["status"] = resp.StatusCode
		logger.WithFields(fields).Debug("HTTP request")
		return resp, nil
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, request id and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.WithFields(logrus.Fields{
				"method":     method,
				"path":       path,
				"duration":   duration,
				"remote":     r.RemoteAddr,
				"request_id": r.Header.Get(RequestIDHeader),
			}).Info("HTTP Request")
		})
	}
}
