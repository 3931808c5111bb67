package testutil

import (
	"context"
	"net/http"
	"time"

	"nietos/pkg/requestcontext"
)

// WithRequestID adds a request ID to the request context, as the request
// middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithClient adds client IP and User-Agent metadata to the request context.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}

// FixedTimeContext returns a context whose request time is now, so services
// stamp createdAt and updatedAt deterministically.
func FixedTimeContext(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
