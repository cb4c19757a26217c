package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID propagates X-Request-ID (minting one when absent) and attaches a
// request-scoped logger carrying it.
func RequestID(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = uuid.NewString()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			ctx = l.With().Str("request_id", rid).Logger().WithContext(ctx)
			w.Header().Set(RequestIDHeader, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext returns the request logger, or a disabled one outside a
// request.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
