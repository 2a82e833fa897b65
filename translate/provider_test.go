// Package translate contains tests for the HTTP provider plumbing.
package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// extractResponseText
// ---------------------------------------------------------------------------

func TestExtractResponseText_OpenAIFormat(t *testing.T) {
	body := `{"choices":[{"message":{"role":"assistant","content":"Hello world"}}]}`
	text, err := extractResponseText([]byte(body))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("got %q, want Hello world", text)
	}
}

func TestExtractResponseText_GeminiFormat(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"Bonjour"}],"role":"model"}}]}`
	text, err := extractResponseText([]byte(body))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if text != "Bonjour" {
		t.Errorf("got %q, want Bonjour", text)
	}
}

func TestExtractResponseText_APIError(t *testing.T) {
	body := `{"error":{"message":"invalid API key","code":401}}`
	_, err := extractResponseText([]byte(body))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("error = %v, want the API message", err)
	}
}

func TestExtractResponseText_UnknownShape(t *testing.T) {
	if _, err := extractResponseText([]byte(`{"something":"else"}`)); err == nil {
		t.Error("expected error for unknown response shape")
	}
	if _, err := extractResponseText([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// ---------------------------------------------------------------------------
// parseRetryDelay
// ---------------------------------------------------------------------------

func TestParseRetryDelay_GoogleRetryInfo(t *testing.T) {
	body := `{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}}`
	d := parseRetryDelay([]byte(body))
	if d != 35*time.Second {
		t.Errorf("got %v, want 35s (30s + 5s buffer)", d)
	}
}

func TestParseRetryDelay_Default(t *testing.T) {
	want := 65 * time.Second
	if d := parseRetryDelay([]byte(`{}`)); d != want {
		t.Errorf("empty body: got %v, want %v", d, want)
	}
	if d := parseRetryDelay([]byte(`garbage`)); d != want {
		t.Errorf("garbage body: got %v, want %v", d, want)
	}
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func TestBuildHTTPRequest_OpenAIChat(t *testing.T) {
	prov := Provider{
		ID:      ProviderOpenAI,
		BaseURL: "https://api.openai.com/v1/",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}
	endpoint, headers, body, err := buildHTTPRequest(prov, "sys", "user", formatOpenAIChat)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if endpoint != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("endpoint = %q", endpoint)
	}
	if headers["Authorization"] != "Bearer sk-test" {
		t.Errorf("Authorization = %q", headers["Authorization"])
	}

	var req struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if req.Model != "gpt-4o-mini" || req.Stream {
		t.Errorf("req = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestBuildHTTPRequest_Gemini(t *testing.T) {
	prov := Provider{
		ID:      ProviderGoogle,
		BaseURL: "https://generativelanguage.googleapis.com",
		APIKey:  "g-key",
		Model:   "gemini-2.0-flash",
	}
	endpoint, headers, body, err := buildHTTPRequest(prov, "sys", "user", formatGeminiNative)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if endpoint != "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("endpoint = %q", endpoint)
	}
	if headers["x-goog-api-key"] != "g-key" {
		t.Errorf("x-goog-api-key = %q", headers["x-goog-api-key"])
	}
	if !strings.Contains(string(body), "systemInstruction") {
		t.Errorf("body missing systemInstruction: %s", body)
	}
}

func TestBuildHTTPRequest_NoAuthHeaderWithoutKey(t *testing.T) {
	prov := Provider{ID: ProviderOllama, BaseURL: "http://localhost:11434", Model: "llama3"}
	_, headers, _, err := buildHTTPRequest(prov, "sys", "user", formatOpenAIChat)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if _, ok := headers["Authorization"]; ok {
		t.Error("Authorization header set without an API key")
	}
}

// ---------------------------------------------------------------------------
// callHTTPProvider
// ---------------------------------------------------------------------------

func TestCallHTTPProvider_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"translated"}}]}`))
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderCustomOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", Timeout: 5 * time.Second}
	text, err := callHTTPProvider(context.Background(), prov, "sys", "user", formatOpenAIChat, &rateLimitState{}, 1, false)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if text != "translated" {
		t.Errorf("got %q", text)
	}
}

func TestCallHTTPProvider_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderCustomOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", Timeout: 5 * time.Second}
	text, err := callHTTPProvider(context.Background(), prov, "sys", "user", formatOpenAIChat, &rateLimitState{}, 2, false)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if text != "ok" {
		t.Errorf("got %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d calls, want 2", calls.Load())
	}
}

func TestCallHTTPProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderCustomOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", Timeout: 5 * time.Second}
	_, err := callHTTPProvider(context.Background(), prov, "sys", "user", formatOpenAIChat, &rateLimitState{}, 3, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("got %d calls, want 1 (4xx must not retry)", calls.Load())
	}
}

func TestCallHTTPProvider_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prov := Provider{ID: ProviderCustomOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", Timeout: 5 * time.Second}
	if _, err := callHTTPProvider(ctx, prov, "sys", "user", formatOpenAIChat, &rateLimitState{}, 1, false); err == nil {
		t.Error("expected error for canceled context")
	}
}

// ---------------------------------------------------------------------------
// rateLimitState
// ---------------------------------------------------------------------------

func TestRateLimitState_PauseUnpause(t *testing.T) {
	rl := &rateLimitState{}
	if rl.isPaused() {
		t.Error("new state must not be paused")
	}

	rl.pause(time.Minute)
	if !rl.isPaused() {
		t.Error("want paused after pause()")
	}

	rl.unpause()
	if rl.isPaused() {
		t.Error("want unpaused after unpause()")
	}
}

func TestRateLimitState_WaitClearsExpiredPause(t *testing.T) {
	rl := &rateLimitState{}
	rl.pause(10 * time.Millisecond)

	if err := rl.waitIfPaused(context.Background()); err != nil {
		t.Fatalf("error: %v", err)
	}
	if rl.isPaused() {
		t.Error("want unpaused after the pause window passed")
	}
}

func TestRateLimitState_WaitRespectsContext(t *testing.T) {
	rl := &rateLimitState{}
	rl.pause(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.waitIfPaused(ctx); err == nil {
		t.Error("expected context error while paused")
	}
}

// ---------------------------------------------------------------------------
// truncate
// ---------------------------------------------------------------------------

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a very long string", 6); got != "a very..." {
		t.Errorf("got %q", got)
	}
}
