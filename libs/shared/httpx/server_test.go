package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	server := New(nil)

	recorder := httptest.NewRecorder()
	server.Router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if got := recorder.Header().Get("X-Request-Id"); got != "" {
		t.Fatalf("request id should not leak into response headers: %s", got)
	}
}

func TestErrorWithDetails(t *testing.T) {
	recorder := httptest.NewRecorder()
	ErrorWithDetails(recorder, http.StatusUnprocessableEntity, "invalid", "fields", []string{"email"})

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "invalid" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	fields, ok := body["fields"].([]any)
	if !ok || len(fields) != 1 || fields[0] != "email" {
		t.Fatalf("unexpected fields: %v", body["fields"])
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	if err := New(nil).Shutdown(testContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartAfterShutdownReturns(t *testing.T) {
	server := New(nil)
	if err := server.Shutdown(testContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := server.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start after shutdown: %v", err)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	server := New(nil)

	recorder := httptest.NewRecorder()
	server.Router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "route not found" {
		t.Fatalf("unexpected error: %v", body["error"])
	}

	recorder = httptest.NewRecorder()
	server.Router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
}

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
