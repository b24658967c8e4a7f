package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/services"
	"archivist/internal/services/anthropic"
)

func reply(w http.ResponseWriter, text string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"content":     []any{map[string]string{"type": "text", "text": text}},
		"stop_reason": "end_turn",
	})
}

func TestCompleteJSONSendsMessagesRequest(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected version header %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		reply(w, `{"summary":"x"}`)
	}))
	defer server.Close()

	client := anthropic.NewClient(config.Provider{APIKey: "key", BaseURL: server.URL, Model: "m"})
	text, err := client.CompleteJSON(context.Background(), "You summarize.", "Document text")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if text != `{"summary":"x"}` {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "m" || got.MaxTokens != 1000 {
		t.Fatalf("unexpected request %+v", got)
	}
	if !strings.HasPrefix(got.System, "You summarize.") || !strings.Contains(got.System, "JSON") {
		t.Fatalf("unexpected system prompt %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("retry-after", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(w, "ok")
	}))
	defer server.Close()

	var slept []time.Duration
	client := anthropic.NewClient(config.Provider{APIKey: "key", BaseURL: server.URL},
		anthropic.WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	if _, err := client.Complete(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if calls.Load() != 2 || len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("calls=%d slept=%v", calls.Load(), slept)
	}
}

func TestErrorsCarryMarkers(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusBadRequest, services.ErrExternalTool},
		{http.StatusUnauthorized, services.ErrExternalTool},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := anthropic.NewClient(config.Provider{APIKey: "key", BaseURL: server.URL},
			anthropic.WithSleeper(func(time.Duration) {}))
		_, err := client.Complete(context.Background(), "sys", "user")
		server.Close()
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestMissingKeyIsConfigurationError(t *testing.T) {
	client := anthropic.NewClient(config.Provider{})
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if client.Model() == "" {
		t.Fatal("expected default model")
	}
	_, err := client.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmptyContentFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}))
	defer server.Close()

	client := anthropic.NewClient(config.Provider{APIKey: "key", BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "sys", "user"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
