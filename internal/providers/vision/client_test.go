package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"thealttext/internal/domain"
)

func TestClientDescribe(t *testing.T) {
	var gotAuth, gotReferer string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"\"A lighthouse at dusk\""}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: server.URL, Referer: "https://thealttext.test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := client.Describe(context.Background(), "google/gemini-2.5-flash", domain.GenerationRequest{
		Source:    domain.ImageSource{URL: "https://example.com/pic.jpg"},
		Language:  "en",
		WCAGLevel: "AAA",
	})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if text != "A lighthouse at dusk" {
		t.Errorf("text = %q, want quotes stripped", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReferer != "https://thealttext.test" {
		t.Errorf("HTTP-Referer = %q", gotReferer)
	}
	if gotBody.Model != "google/gemini-2.5-flash" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if gotBody.MaxTokens != 300 {
		t.Errorf("max_tokens = %d, want 300", gotBody.MaxTokens)
	}
}

func TestClientDescribeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client, _ := NewClient(Options{APIKey: "test-key", BaseURL: server.URL})
	_, err := client.Describe(context.Background(), "any", domain.GenerationRequest{
		Source: domain.ImageSource{URL: "https://example.com/pic.jpg"},
	})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want 429", statusErr.Code)
	}
}

func TestClientDescribeMissingKey(t *testing.T) {
	client, _ := NewClient(Options{})
	_, err := client.Describe(context.Background(), "any", domain.GenerationRequest{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestClientDescribeEncodesUploadedBytes(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok text"}}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(Options{APIKey: "test-key", BaseURL: server.URL})
	_, err := client.Describe(context.Background(), "any", domain.GenerationRequest{
		Source: domain.ImageSource{Data: []byte{0x1, 0x2}, MIMEType: "image/png"},
	})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	raw, _ := json.Marshal(gotBody)
	if want := `data:image/png;base64,AQI=`; !strings.Contains(string(raw), want) {
		t.Errorf("request body missing data url %q: %s", want, raw)
	}
}
