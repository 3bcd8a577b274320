package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

var testCreds = auth.Credentials{KeyID: "test-key", SecretKey: "test-secret"}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", testCreds)

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.creds.KeyID != "test-key" {
			t.Errorf("creds.KeyID = %q, want %q", c.creds.KeyID, "test-key")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want 0", c.maxRetries)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("empty base URL uses default", func(t *testing.T) {
		c := NewClient("", testCreds)
		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		c := NewClient("https://api.example.com", testCreds,
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithUserAgent("bars/1.0"),
		)
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.userAgent != "bars/1.0" {
			t.Errorf("userAgent = %q", c.userAgent)
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Message: "Not Found"}
		expected := "alpaca api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{401, false},
			{403, false},
			{404, false},
			{422, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})

	t.Run("IsAuth", func(t *testing.T) {
		if !(&APIError{StatusCode: 401}).IsAuth() || !(&APIError{StatusCode: 403}).IsAuth() {
			t.Error("401/403 should be auth errors")
		}
		if (&APIError{StatusCode: 500}).IsAuth() {
			t.Error("500 should not be an auth error")
		}
	})
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request sends key headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get(auth.HeaderKeyID) != "test-key" {
				t.Errorf("%s = %q, want %q", auth.HeaderKeyID, r.Header.Get(auth.HeaderKeyID), "test-key")
			}
			if r.Header.Get(auth.HeaderSecretKey) != "test-secret" {
				t.Errorf("%s = %q, want %q", auth.HeaderSecretKey, r.Header.Get(auth.HeaderSecretKey), "test-secret")
			}
			if r.Header.Get("User-Agent") != "bars-test" {
				t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithUserAgent("bars-test"))
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("error envelope message is used", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code": 42210000, "message": "invalid timeframe"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 422 {
			t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
		}
		if apiErr.Message != "invalid timeframe" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "invalid timeframe")
		}
	})

	t.Run("plain error body keeps status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != "Internal Server Error" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if !strings.Contains(string(apiErr.Body), "internal error") {
			t.Errorf("Body = %q", string(apiErr.Body))
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("no retries by default", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry auth failures", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error = %v, want max retries exceeded", err)
		}
		// 1 initial + 2 retries = 3 attempts
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})
}

// TestGetBars tests the single-symbol bars endpoint.
func TestGetBars(t *testing.T) {
	t.Run("query parameters", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/stocks/AAPL/bars" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/stocks/AAPL/bars")
			}
			q := r.URL.Query()
			want := map[string]string{
				"timeframe":  "1Day",
				"start":      "2024-01-01T00:00:00Z",
				"end":        "2024-01-03T00:00:00Z",
				"limit":      "500",
				"page_token": "tok-1",
				"feed":       "sip",
			}
			for k, v := range want {
				if q.Get(k) != v {
					t.Errorf("%s = %q, want %q", k, q.Get(k), v)
				}
			}
			w.Write([]byte(`{"bars":[{"t":"2024-01-02T05:00:00Z","o":187.15,"h":188.44,"l":183.885,"c":185.64,"v":82488674,"n":1009074,"vw":185.894}],"symbol":"AAPL","next_page_token":"tok-2"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		resp, err := c.GetBars(context.Background(), "AAPL", GetBarsOptions{
			Timeframe: model.Timeframe1Day,
			Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Limit:     500,
			PageToken: "tok-1",
			Feed:      model.FeedSIP,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Bars) != 1 {
			t.Fatalf("len(Bars) = %d, want 1", len(resp.Bars))
		}
		if resp.Bars[0].Symbol != "AAPL" {
			t.Errorf("Bars[0].Symbol = %q, want AAPL", resp.Bars[0].Symbol)
		}
		if resp.Bars[0].Low != "183.885" {
			t.Errorf("Bars[0].Low = %q, want 183.885", resp.Bars[0].Low)
		}
		if resp.NextToken() != "tok-2" {
			t.Errorf("NextToken = %q, want tok-2", resp.NextToken())
		}
	})

	t.Run("last page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"bars":[],"symbol":"AAPL","next_page_token":null}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		resp, err := c.GetBars(context.Background(), "AAPL", GetBarsOptions{Timeframe: model.Timeframe1Day})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.NextToken() != "" {
			t.Errorf("NextToken = %q, want empty", resp.NextToken())
		}
		if len(resp.Bars) != 0 {
			t.Errorf("len(Bars) = %d, want 0", len(resp.Bars))
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.GetBars(context.Background(), "AAPL", GetBarsOptions{Timeframe: model.Timeframe1Day})
		if err == nil || !strings.Contains(err.Error(), "unmarshal response") {
			t.Errorf("error = %v, want unmarshal failure", err)
		}
	})

	t.Run("error wraps symbol", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.GetBars(context.Background(), "MSFT", GetBarsOptions{Timeframe: model.Timeframe1Day})
		if err == nil || !strings.Contains(err.Error(), "get bars MSFT") {
			t.Errorf("error = %v, want symbol context", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsAuth() {
			t.Errorf("error = %v, want auth APIError", err)
		}
	})
}
