package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/telq/internal/testutil"
	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*echo.Echo, *telq.Client) {
	t.Helper()

	logger := zerolog.Nop()
	cfg := telq.DefaultConfig()
	cfg.Logger = &logger

	client, err := telq.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create telq client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return newServer(client, nil, logger), client
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func fetchURL(target string, extra string) string {
	u := "/fetch?url=" + url.QueryEscape(target)
	if extra != "" {
		u += "&" + extra
	}
	return u
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got %s", rec.Body.String())
	}
}

func TestReadyEndpoint_WithoutRedis(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "telq_cache_entries") {
		t.Error("metrics output should contain telq_cache_entries")
	}
}

func TestFetchEndpoint(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("GET /resource", testutil.NewJSONResponse(`{"datum":"some data"}`))

	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, fetchURL(mock.URL()+"/resource", "page=2&expires=1"), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["datum"] != "some data" {
		t.Errorf("body = %v", body)
	}

	req, _ := mock.LastRequest()
	if req.Query != "page=2" {
		t.Errorf("forwarded query = %q, want page=2", req.Query)
	}

	if etag := rec.Header().Get("ETag"); !strings.HasPrefix(etag, `"`) || len(etag) != 34 {
		t.Errorf("ETag = %q, want quoted 32 hex chars", etag)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.HasPrefix(cc, "max-age=") {
		t.Errorf("Cache-Control = %q, want max-age", cc)
	}
}

func TestFetchEndpoint_Uncached(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, fetchURL(mock.URL()+"/status", ""), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
}

func TestFetchEndpoint_CachedAndConditional(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("GET /resource", testutil.NewJSONResponse(`[1,2,3]`))

	e, _ := newTestServer(t)
	target := fetchURL(mock.URL()+"/resource", "expires=1")

	first := serve(e, httptest.NewRequest(http.MethodGet, target, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	etag := first.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("If-None-Match", etag)
	second := serve(e, req)

	if second.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", second.Code)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", mock.RequestCount())
	}
}

func TestFetchEndpoint_Errors(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("GET /broken", testutil.NewServerErrorResponse("some error"))

	e, _ := newTestServer(t)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedField  string
	}{
		{
			name:           "missing url",
			target:         "/fetch",
			expectedStatus: http.StatusBadRequest,
			expectedField:  "error",
		},
		{
			name:           "bad expires",
			target:         fetchURL(mock.URL()+"/broken", "expires=soon"),
			expectedStatus: http.StatusBadRequest,
			expectedField:  "error",
		},
		{
			name:           "upstream failure",
			target:         fetchURL(mock.URL()+"/broken", ""),
			expectedStatus: http.StatusBadGateway,
			expectedField:  "statusCode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.expectedStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if _, ok := body[tt.expectedField]; !ok {
				t.Errorf("body %v missing %q", body, tt.expectedField)
			}
		})
	}
}

func TestKVEndpoint_NotConfigured(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/kv/user:1", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, cfg config)
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg config) {
				if cfg.Port != "8080" || !cfg.CacheEnabled || cfg.CacheUnit != time.Minute || cfg.RedisURL != "" {
					t.Errorf("unexpected defaults: %+v", cfg)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"PORT":          "9090",
				"CACHE_ENABLED": "false",
				"CACHE_UNIT":    "1s",
				"REDIS_URL":     "redis://localhost:6379/0",
				"LOG_LEVEL":     "debug",
			},
			check: func(t *testing.T, cfg config) {
				if cfg.Port != "9090" || cfg.CacheEnabled || cfg.CacheUnit != time.Second {
					t.Errorf("overrides not applied: %+v", cfg)
				}
				if cfg.Logging.Level != "debug" || cfg.Logging.Service != "telq-proxy" {
					t.Errorf("logging config = %+v", cfg.Logging)
				}
			},
		},
		{name: "bad cache flag", env: map[string]string{"CACHE_ENABLED": "maybe"}, expectError: true},
		{name: "bad cache unit", env: map[string]string{"CACHE_UNIT": "soon"}, expectError: true},
		{name: "zero cache unit", env: map[string]string{"CACHE_UNIT": "0s"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(func(key string) string { return tt.env[key] })
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestNewRedis(t *testing.T) {
	for _, addr := range []string{"localhost:6379", "redis://localhost:6379/1"} {
		rdb, err := newRedis(addr)
		if err != nil {
			t.Errorf("newRedis(%q) error = %v", addr, err)
			continue
		}
		if rdb.Options().Addr != "localhost:6379" {
			t.Errorf("newRedis(%q) addr = %s", addr, rdb.Options().Addr)
		}
		rdb.Close()
	}

	if _, err := newRedis("redis://localhost:notaport"); err == nil {
		t.Error("newRedis should reject an invalid URL")
	}
}
