package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ironhearth/anvil/internal/config"
)

type fakeRenderer struct {
	body []byte
	err  error
}

func (f *fakeRenderer) Render(context.Context) ([]byte, error) { return f.body, f.err }

func testServer(t *testing.T, renderer Renderer) http.Handler {
	t.Helper()
	cfg := config.HTTPConfig{
		Listen:  ":0",
		Timeout: config.Duration{Duration: 5 * time.Second},
	}
	return New(cfg, renderer, zap.NewNop()).srv.Handler
}

func TestMetricsEndpoint(t *testing.T) {
	body := "test_metric 42\n"
	handler := testServer(t, &fakeRenderer{body: []byte(body)})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != body {
		t.Errorf("body = %q, want %q", got, body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain exposition", ct)
	}
}

func TestMetricsRenderErrorIs500(t *testing.T) {
	handler := testServer(t, &fakeRenderer{err: errors.New("encoding broke")})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMetricsMethodNotAllowed(t *testing.T) {
	handler := testServer(t, &fakeRenderer{body: []byte("x 1\n")})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /metrics status = %d, want 405", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := testServer(t, &fakeRenderer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
	if _, ok := resp["uptime"]; !ok {
		t.Error("health response missing uptime field")
	}
}
