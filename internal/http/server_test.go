package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"trackrelay/internal/core"
)

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s body failed: %v", url, err)
	}
	return resp, string(body)
}

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(config, mux)

	if server.Addr != "0.0.0.0:9090" {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, "0.0.0.0:9090")
	}
	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}
	if server.ReadTimeout != config.ReadTimeout || server.WriteTimeout != config.WriteTimeout {
		t.Errorf("createHTTPServer() timeouts = %v/%v", server.ReadTimeout, server.WriteTimeout)
	}
}

func TestLivenessEndpoint(t *testing.T) {
	server := httptest.NewServer(setupRoutes(zap.NewNop(), prometheus.NewRegistry(), func() bool { return true }))
	defer server.Close()

	for _, path := range []string{"/", "/anything/else"} {
		t.Run(path, func(t *testing.T) {
			resp, body := get(t, server.URL+path)

			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s returned status %d, expected 200", path, resp.StatusCode)
			}
			if contentType := resp.Header.Get("Content-Type"); contentType != "text/plain" {
				t.Errorf("%s Content-Type = %q, expected text/plain", path, contentType)
			}
			if body != "Bot is running\n" {
				t.Errorf("%s body = %q, expected %q", path, body, "Bot is running\n")
			}
		})
	}
}

func TestHealthzEndpoint(t *testing.T) {
	server := httptest.NewServer(setupRoutes(zap.NewNop(), prometheus.NewRegistry(), func() bool { return false }))
	defer server.Close()

	resp, body := get(t, server.URL+"/healthz")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("/healthz Content-Type = %q, expected application/json", contentType)
	}
	if body != `{"status":"ok","service":"trackrelay"}` {
		t.Errorf("unexpected /healthz body %q", body)
	}
}

func TestReadyzEndpoint(t *testing.T) {
	var ready atomic.Bool
	server := httptest.NewServer(setupRoutes(zap.NewNop(), prometheus.NewRegistry(), ready.Load))
	defer server.Close()

	resp, body := get(t, server.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz before ready returned %d, expected 503", resp.StatusCode)
	}
	if !strings.Contains(body, `"starting"`) {
		t.Errorf("unexpected /readyz body %q", body)
	}

	ready.Store(true)
	resp, body = get(t, server.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz after ready returned %d, expected 200", resp.StatusCode)
	}
	if body != `{"status":"ready","service":"trackrelay"}` {
		t.Errorf("unexpected /readyz body %q", body)
	}
}

func TestServerMetrics(t *testing.T) {
	s := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())

	s.RequestStarted()
	s.RequestStarted()
	s.RequestFinished("delivered", 2*time.Second)
	s.RecordDelivery("delivered")
	s.ObserveProviderCall("primary", "failure")
	s.ObserveProviderCall("secondary", "success")

	m := s.metrics
	if got := testutil.ToFloat64(m.ActiveRequests); got != 1 {
		t.Errorf("active requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("delivered")); got != 1 {
		t.Errorf("requests{delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("delivered")); got != 1 {
		t.Errorf("deliveries{delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("primary", "failure")); got != 1 {
		t.Errorf("provider_calls{primary,failure} = %v, want 1", got)
	}

	server := httptest.NewServer(setupRoutes(zap.NewNop(), s.registry, func() bool { return true }))
	defer server.Close()

	resp, body := get(t, server.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics returned status %d", resp.StatusCode)
	}
	for _, name := range []string{
		"trackrelay_requests_total",
		"trackrelay_provider_calls_total",
		"trackrelay_deliveries_total",
		"trackrelay_request_duration_seconds",
		"trackrelay_active_requests",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics is missing %s", name)
		}
	}
}

func TestServersDoNotShareRegistries(t *testing.T) {
	// A second server must not panic on duplicate registration.
	first := NewServer(&core.ServerConfig{}, zap.NewNop())
	second := NewServer(&core.ServerConfig{}, zap.NewNop())

	if first.registry == second.registry {
		t.Error("servers should have private registries")
	}
}

func TestSetReady(t *testing.T) {
	s := NewServer(&core.ServerConfig{}, zap.NewNop())
	if s.ready.Load() {
		t.Error("server should start not ready")
	}
	s.SetReady(true)
	if !s.ready.Load() {
		t.Error("SetReady(true) did not take effect")
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	s := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}
