package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/modelhub/internal/app"
)

func testPort(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	parts := strings.TrimPrefix(srv.URL, "http://")
	return parts[strings.LastIndex(parts, ":"):]
}

func TestRunHealthCheck_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	require.NoError(t, runHealthCheck(testPort(t, srv)))
}

func TestRunHealthCheck_HostPort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	require.NoError(t, runHealthCheck("0.0.0.0"+testPort(t, srv)))
}

func TestRunHealthCheck_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := runHealthCheck(testPort(t, srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check returned status 503")
}

func TestRunHealthCheck_ConnectionError(t *testing.T) {
	err := runHealthCheck(":19")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check request failed")
}

func TestListenPort(t *testing.T) {
	assert.Equal(t, ":8080", listenPort(":8080"))
	assert.Equal(t, ":9000", listenPort("127.0.0.1:9000"))
	assert.Equal(t, ":7000", listenPort("7000"))
}

func TestVersionIsSet(t *testing.T) {
	assert.Equal(t, "dev", version)
}

func TestCheckConfigMasksToken(t *testing.T) {
	t.Setenv("MODELHUB_ADMIN_TOKEN", "super-secret")
	t.Setenv("MODELHUB_DB_DSN", ":memory:")
	t.Setenv("MODELHUB_LOG_LEVEL", "warn")

	var out bytes.Buffer
	require.NoError(t, checkConfig(&out))
	assert.Contains(t, out.String(), "AdminToken:********")
	assert.Contains(t, out.String(), "LogLevel:warn")
	assert.NotContains(t, out.String(), "super-secret")
}

func TestCheckConfigInvalid(t *testing.T) {
	t.Setenv("MODELHUB_LOG_LEVEL", "chatty")
	var out bytes.Buffer
	err := checkConfig(&out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODELHUB_LOG_LEVEL")
}

func TestServeUntilCancelled(t *testing.T) {
	cfg := app.Config{
		ListenAddr:            "127.0.0.1:0",
		LogLevel:              "error",
		DBDSN:                 ":memory:",
		AdminToken:            "admin-secret",
		RateLimitRPS:          100,
		RateLimitBurst:        100,
		RequireAPIKey:         true,
		CacheTTL:              time.Minute,
		CacheMaxEntries:       100,
		IdempotencyTTL:        time.Hour,
		SeedFile:              app.BuiltinSeed,
		StoreFailureThreshold: 3,
		StoreCooldown:         time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server never became ready")
	}
	require.NoError(t, runHealthCheck(addr))

	resp, err := http.Get("http://" + addr + "/api/models?limit=1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeListenError(t *testing.T) {
	cfg := app.Config{
		ListenAddr:            "256.0.0.1:bad",
		LogLevel:              "error",
		DBDSN:                 ":memory:",
		AdminToken:            "admin-secret",
		RateLimitRPS:          1,
		RateLimitBurst:        1,
		CacheTTL:              time.Minute,
		CacheMaxEntries:       10,
		IdempotencyTTL:        time.Hour,
		StoreFailureThreshold: 3,
		StoreCooldown:         time.Second,
	}
	err := serve(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
