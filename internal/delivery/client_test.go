package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/trackforge/postback-engine/internal/domain"
)

func newTestClient(t *testing.T, timeout time.Duration) *HTTPClient {
	t.Helper()

	restyClient := resty.New()
	restyClient.SetTimeout(timeout)
	client, err := NewHTTPClientWithResty(restyClient, "")
	if err != nil {
		t.Fatalf("NewHTTPClientWithResty() error = %v", err)
	}
	return client
}

func TestAttemptGetSendsPayloadAsQueryParams(t *testing.T) {
	t.Parallel()

	var gotQuery map[string][]string
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	client := newTestClient(t, 5*time.Second)
	result := client.Attempt(context.Background(), domain.Postback{
		URL:     server.URL + "/cb?click_id=c1",
		Method:  domain.MethodGet,
		Payload: map[string]string{"extra": "1"},
	})

	if result.ErrorMessage != "" {
		t.Fatalf("errorMessage = %q, want empty", result.ErrorMessage)
	}
	if result.ResponseCode == nil || *result.ResponseCode != http.StatusOK {
		t.Fatalf("responseCode = %v, want 200", result.ResponseCode)
	}
	if result.ResponseBody != "ok" {
		t.Fatalf("responseBody = %q, want ok", result.ResponseBody)
	}
	if got := gotQuery["click_id"]; len(got) != 1 || got[0] != "c1" {
		t.Fatalf("click_id = %v, want [c1]", got)
	}
	if got := gotQuery["extra"]; len(got) != 1 || got[0] != "1" {
		t.Fatalf("extra = %v, want [1]", got)
	}
	if gotUserAgent != DefaultUserAgent {
		t.Fatalf("user-agent = %q, want default %q", gotUserAgent, DefaultUserAgent)
	}
}

func TestAttemptPostSendsJSONBody(t *testing.T) {
	t.Parallel()

	var gotContentType string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(t, 5*time.Second)
	result := client.Attempt(context.Background(), domain.Postback{
		URL:     server.URL,
		Method:  domain.MethodPost,
		Payload: map[string]string{"order_id": "o-1"},
		Headers: map[string]string{"X-Token": "secret"},
	})

	if result.ResponseCode == nil || *result.ResponseCode != http.StatusCreated {
		t.Fatalf("responseCode = %v, want 201", result.ResponseCode)
	}
	if !strings.HasPrefix(gotContentType, "application/json") {
		t.Fatalf("content-type = %q, want application/json", gotContentType)
	}
	if gotBody["order_id"] != "o-1" {
		t.Fatalf("body = %v, want order_id o-1", gotBody)
	}
}

func TestAttemptCustomUserAgentPreserved(t *testing.T) {
	t.Parallel()

	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := newTestClient(t, 5*time.Second)
	client.Attempt(context.Background(), domain.Postback{
		URL:     server.URL,
		Method:  domain.MethodGet,
		Headers: map[string]string{"user-agent": "custom/2.0"},
	})

	if gotUserAgent != "custom/2.0" {
		t.Fatalf("user-agent = %q, want custom/2.0", gotUserAgent)
	}
}

func TestAttemptNon2xxIsNotTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	client := newTestClient(t, 5*time.Second)
	result := client.Attempt(context.Background(), domain.Postback{
		URL:    server.URL,
		Method: domain.MethodGet,
	})

	if result.ErrorMessage != "" {
		t.Fatalf("errorMessage = %q, want empty for HTTP 503", result.ErrorMessage)
	}
	if result.ResponseCode == nil || *result.ResponseCode != http.StatusServiceUnavailable {
		t.Fatalf("responseCode = %v, want 503", result.ResponseCode)
	}
	if result.ResponseBody != "upstream down" {
		t.Fatalf("responseBody = %q, want upstream down", result.ResponseBody)
	}
}

func TestAttemptConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, 2*time.Second)
	result := client.Attempt(context.Background(), domain.Postback{
		URL:    server.URL,
		Method: domain.MethodGet,
	})

	if result.ResponseCode != nil {
		t.Fatalf("responseCode = %v, want nil on transport failure", result.ResponseCode)
	}
	if result.ErrorMessage == "" {
		t.Fatal("errorMessage should describe the transport failure")
	}
}

func TestAttemptTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client := newTestClient(t, 50*time.Millisecond)
	result := client.Attempt(context.Background(), domain.Postback{
		URL:    server.URL,
		Method: domain.MethodGet,
	})

	if result.ResponseCode != nil {
		t.Fatalf("responseCode = %v, want nil on timeout", result.ResponseCode)
	}
	if result.ErrorMessage != "timeout" {
		t.Fatalf("errorMessage = %q, want timeout", result.ErrorMessage)
	}
}
