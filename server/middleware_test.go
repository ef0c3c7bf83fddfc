package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		expectedCost int64
	}{
		{"metrics is free", "/metrics", 0},
		{"health endpoint", "/health", 5},
		{"mcp endpoint", "/mcp", 2},
		{"statistics", "/v1/statistics", 50},
		{"medicine search", "/v1/medicines", 20},
		{"medicine detail", "/v1/medicines/0000001", 20},
		{"pharmacies", "/v1/pharmacies", 20},
		{"unknown endpoint", "/unknown", 10},
		{"root path", "/", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if cost := getTokenCost(req); cost != tt.expectedCost {
				t.Errorf("Expected cost %d for path %s, got %d", tt.expectedCost, tt.path, cost)
			}
		})
	}
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"single forwarded ip", "203.0.113.7", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "10.0.0.1:1234", "203.0.113.7"},
		{"no header", "", "10.0.0.1:1234", "10.0.0.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	handler := RequestSizeMiddleware(100, 200)(http.HandlerFunc(okHandler))

	tests := []struct {
		name       string
		body       string
		header     string
		wantStatus int
	}{
		{"small body", strings.Repeat("a", 50), "", http.StatusOK},
		{"exactly max size", strings.Repeat("a", 100), "", http.StatusOK},
		{"body too large", strings.Repeat("a", 101), "", http.StatusRequestEntityTooLarge},
		{"headers too large", "", strings.Repeat("h", 300), http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("X-Padding", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware_UnknownLengthIsCapped(t *testing.T) {
	var readErr error
	handler := RequestSizeMiddleware(10, 1000)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(strings.Repeat("a", 50)))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Errorf("expected MaxBytesError for oversized chunked body, got %v", readErr)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 10)
	defer rl.Stop()
	handler := rl.Middleware(http.HandlerFunc(okHandler))

	request := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	// health costs 5, so a bucket of 10 allows two calls
	for i := 0; i < 2; i++ {
		if rr := request("192.0.2.1:1000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := request("192.0.2.1:2000")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on a new port of the same client, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("missing rate limit headers: %v", rr.Header())
	}

	if rr := request("192.0.2.2:1000"); rr.Code != http.StatusOK {
		t.Errorf("Other clients should not be limited, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 10)
	defer rl.Stop()

	rl.getBucket("192.0.2.1")
	rl.getBucket("192.0.2.2").TakeAvailable(10)

	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.clients["192.0.2.1"]; ok {
		t.Error("full bucket should be removed")
	}
	if _, ok := rl.clients["192.0.2.2"]; !ok {
		t.Error("drained bucket should be kept")
	}
}
