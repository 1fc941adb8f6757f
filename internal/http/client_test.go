package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PentesterFlow/apisurface/internal/errors"
	"github.com/PentesterFlow/apisurface/internal/ratelimit"
)

// =============================================================================
// ClientConfig Tests
// =============================================================================

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	if config.Timeout != 8*time.Second {
		t.Errorf("Timeout = %v, want 8s", config.Timeout)
	}
	if config.MaxBodySize != 5*1024*1024 {
		t.Errorf("MaxBodySize = %d, want 5MB", config.MaxBodySize)
	}
	if config.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{UserAgent: "Bot/1.0"})

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.maxBodySize != DefaultClientConfig().MaxBodySize {
		t.Errorf("maxBodySize = %d, want default", client.maxBodySize)
	}
	if client.userAgent != "Bot/1.0" {
		t.Errorf("userAgent = %s", client.userAgent)
	}
}

// =============================================================================
// Response Tests
// =============================================================================

func TestResponse_OK(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{204, true},
		{299, true},
		{301, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		r := &Response{StatusCode: tt.status}
		if got := r.OK(); got != tt.want {
			t.Errorf("OK(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}

	var nilResp *Response
	if nilResp.OK() {
		t.Error("nil response should not be OK")
	}
}

func TestResponse_ContentType(t *testing.T) {
	r := &Response{Header: http.Header{"Content-Type": []string{"application/json"}}}
	if got := r.ContentType(); got != "application/json" {
		t.Errorf("ContentType() = %q", got)
	}

	if got := (&Response{}).ContentType(); got != "" {
		t.Errorf("ContentType() on empty header = %q", got)
	}
}

// =============================================================================
// Get Tests
// =============================================================================

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	defer client.Close()

	resp, err := client.Get(context.Background(), &Request{URL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if resp.ContentType() != "application/json" {
		t.Errorf("ContentType = %s", resp.ContentType())
	}
	if !strings.HasSuffix(resp.URL, "/api") {
		t.Errorf("URL = %s", resp.URL)
	}
}

func TestClient_Get_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	resp, err := client.Get(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Get() error = %v, status codes are not errors", err)
	}
	if resp.StatusCode != 404 || resp.OK() {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestClient_Get_Headers(t *testing.T) {
	var gotAccept, gotUA, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
	}))
	defer server.Close()

	config := DefaultClientConfig()
	config.UserAgent = "TestBot/1.0"
	config.Headers = map[string]string{"X-Custom": "base", "Accept": "text/plain"}
	client := NewClient(config)

	_, err := client.Get(context.Background(), &Request{
		URL:     server.URL,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, per-request header should win", gotAccept)
	}
	if gotUA != "TestBot/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCustom != "base" {
		t.Errorf("X-Custom = %q", gotCustom)
	}
}

func TestClient_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	_, err := client.Get(context.Background(), &Request{URL: server.URL, Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("Get() should time out")
	}
	if errors.GetErrorType(err) != errors.Timeout {
		t.Errorf("error type = %v, want timeout", errors.GetErrorType(err))
	}
	if !errors.IsSuppressed(err) {
		t.Error("timeout should be suppressed")
	}
}

func TestClient_Get_Cancelled(t *testing.T) {
	client := NewClient(DefaultClientConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, &Request{URL: "http://127.0.0.1:1/"})
	if err == nil {
		t.Fatal("Get() should fail on cancelled context")
	}
	if !errors.IsSuppressed(err) {
		t.Errorf("cancelled request should be suppressed, got %v", err)
	}
}

func TestClient_Get_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(DefaultClientConfig())
	_, err := client.Get(context.Background(), &Request{URL: addr})
	if err == nil {
		t.Fatal("Get() should fail against closed server")
	}
	if errors.GetErrorType(err) != errors.Network {
		t.Errorf("error type = %v, want network", errors.GetErrorType(err))
	}
}

func TestClient_Get_InvalidURL(t *testing.T) {
	client := NewClient(DefaultClientConfig())

	_, err := client.Get(context.Background(), &Request{URL: "http://[::1"})
	if err == nil {
		t.Fatal("Get() should fail on malformed URL")
	}
	if errors.GetErrorType(err) != errors.Request {
		t.Errorf("error type = %v, want request", errors.GetErrorType(err))
	}
	if errors.IsSuppressed(err) {
		t.Error("request error should be unexpected")
	}
}

func TestClient_Get_MaxBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer server.Close()

	config := DefaultClientConfig()
	config.MaxBodySize = 100
	client := NewClient(config)

	resp, err := client.Get(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(resp.Body) != 100 {
		t.Errorf("len(Body) = %d, want 100", len(resp.Body))
	}
}

func TestClient_Get_DecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1
		w.Write([]byte{'<', 'p', '>', 'c', 'a', 'f', 0xe9, '<', '/', 'p', '>'})
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	resp, err := client.Get(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(resp.Body) != "<p>café</p>" {
		t.Errorf("Body = %q, want UTF-8 decoded", resp.Body)
	}
}

type countingWaiter struct {
	calls atomic.Int32
}

func (w *countingWaiter) Wait(ctx context.Context) error {
	w.calls.Add(1)
	return ctx.Err()
}

func TestClient_Get_UsesLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	waiter := &countingWaiter{}
	config := DefaultClientConfig()
	config.Limiter = waiter
	client := NewClient(config)

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), &Request{URL: server.URL}); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if got := waiter.calls.Load(); got != 3 {
		t.Errorf("limiter calls = %d, want 3", got)
	}
}

func TestClient_Get_RateLimitDoesNotConsumeTimeout(t *testing.T) {
	var served atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
	}))
	defer server.Close()

	config := DefaultClientConfig()
	config.Limiter = ratelimit.NewLimiter(20, 1)
	client := NewClient(config)

	// 12 requests at 20/s queue for ~550ms, well past each 100ms timeout.
	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), &Request{URL: server.URL, Timeout: 100 * time.Millisecond})
			if err != nil {
				failed.Add(1)
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("%d requests failed while queued on the limiter", failed.Load())
	}
	if got := served.Load(); got != 12 {
		t.Errorf("served = %d, want 12", got)
	}
}

func TestClient_Get_RateLimitPastDeadline(t *testing.T) {
	var served atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
	}))
	defer server.Close()

	config := DefaultClientConfig()
	config.Limiter = ratelimit.NewLimiter(1, 1)
	client := NewClient(config)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, &Request{URL: server.URL}); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}

	// The next token is a second away, past the caller's deadline.
	_, err := client.Get(ctx, &Request{URL: server.URL})
	if err == nil {
		t.Fatal("second Get() should fail")
	}
	if errors.GetErrorType(err) != errors.Timeout {
		t.Errorf("error type = %v, want timeout", errors.GetErrorType(err))
	}
	if !errors.IsSuppressed(err) {
		t.Error("limiter deadline failure should be suppressed")
	}
	if got := served.Load(); got != 1 {
		t.Errorf("served = %d, want 1", got)
	}
}

func TestClient_Get_RateLimitCancelled(t *testing.T) {
	config := DefaultClientConfig()
	config.Limiter = ratelimit.NewLimiter(1, 1)
	client := NewClient(config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, &Request{URL: "http://127.0.0.1:1/"})
	if errors.GetErrorType(err) != errors.Cancelled {
		t.Errorf("error type = %v, want cancelled", errors.GetErrorType(err))
	}
}
