package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected method GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/rhacs/v1/centrals" {
			t.Errorf("Expected path /api/rhacs/v1/centrals, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer abc123" {
			t.Errorf("Expected Authorization: Bearer abc123, got %s", got)
		}
		if got := r.Header.Get("User-Agent"); got != "loadtest-test" {
			t.Errorf("Expected User-Agent: loadtest-test, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"kind":"CentralRequestList","items":[]}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithUserAgent("loadtest-test"),
		WithBaseURL(server.URL),
	)

	req := NewRequest(http.MethodGet, "/api/rhacs/v1/centrals").
		WithHeader("authorization", "Bearer abc123")

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !resp.IsSuccess() {
		t.Error("Expected IsSuccess() to be true")
	}
	if resp.GetHeader("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", resp.GetHeader("Content-Type"))
	}

	body, err := resp.GetBodyAsString()
	if err != nil {
		t.Fatalf("Error reading response body: %v", err)
	}
	if body != `{"kind":"CentralRequestList","items":[]}` {
		t.Errorf("Unexpected body %s", body)
	}
	if resp.Size() != int64(len(body)) {
		t.Errorf("Size() = %d, want %d", resp.Size(), len(body))
	}
	if resp.Timing.TotalTime <= 0 {
		t.Error("Expected TotalTime to be recorded")
	}
}

func TestClient_DefaultUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.Do(context.Background(), NewRequest(http.MethodGet, "/")); err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if got != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
	}
}

func TestClient_RequestHeaderWins(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHeader("Authorization", "Bearer client"))
	req := NewRequest(http.MethodGet, "/").WithHeader("Authorization", "Bearer request")
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if got != "Bearer request" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer request")
	}
}

func TestClient_GetNeverSendsBody(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	req := NewRequest(http.MethodGet, "/").WithBody(strings.NewReader("ignored"))
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("GET request carried a body: %q", body)
	}
}

func TestClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))
	if _, err := client.Do(context.Background(), NewRequest(http.MethodGet, "/")); err == nil {
		t.Error("Expected an error for a closed server")
	}
}

func TestClient_WithOptions(t *testing.T) {
	shared := &http.Client{}
	client := NewClient(
		WithHTTPClient(shared),
		WithTimeout(10*time.Second),
		WithBaseURL("https://example.com"),
		WithHeader("X-Test", "test-value"),
	)

	if client.httpClient != shared {
		t.Error("Expected the shared client to be used")
	}
	if shared.Timeout != 10*time.Second {
		t.Errorf("Expected timeout %v, got %v", 10*time.Second, shared.Timeout)
	}
	if client.BaseURL() != "https://example.com" {
		t.Errorf("Expected baseURL https://example.com, got %s", client.BaseURL())
	}
	if client.headers.Get("X-Test") != "test-value" {
		t.Errorf("Expected header X-Test: test-value, got %s", client.headers.Get("X-Test"))
	}
}

func TestClient_WithInsecureSkipVerify(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithInsecureSkipVerify())
	resp, err := client.Do(context.Background(), NewRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}
