package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDPropagatesAndLogs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	var seen string
	h := RequestID(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		LoggerFromContext(r.Context()).Info().Msg("inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("seen = %q header = %q", seen, rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Fatalf("log = %s", buf.String())
	}
}

func TestRequestIDMintsWhenMissing(t *testing.T) {
	h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("minted id = %q", rec.Header().Get(RequestIDHeader))
	}
}
