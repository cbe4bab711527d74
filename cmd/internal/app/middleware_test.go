package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_CapturesStatus(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status not passed through: %d", rr.Code)
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("body not passed through: %q", rr.Body.String())
	}
}

func TestWithRequestLogging_DefaultStatusOK(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", rr.Code)
	}
}

// WebSocket upgrades need Hijacker to survive the wrapper.
func TestLoggingResponseWriter_PreservesOptionalInterfaces(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	var w http.ResponseWriter = lrw
	if _, ok := w.(http.Flusher); !ok {
		t.Fatalf("Flusher lost")
	}
	if _, ok := w.(http.Hijacker); !ok {
		t.Fatalf("Hijacker lost")
	}
	if _, ok := w.(io.ReaderFrom); !ok {
		t.Fatalf("ReaderFrom lost")
	}
	if lrw.Unwrap() != rr {
		t.Fatalf("Unwrap must return the inner writer")
	}

	// httptest.ResponseRecorder cannot actually hijack; the wrapper must
	// surface an error instead of panicking.
	if _, _, err := lrw.Hijack(); err == nil {
		t.Fatalf("expected hijack error on a non-hijackable writer")
	}
}
