package llm

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
)

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	return NewClient(Config{APIKey: "test", BaseURL: url, Model: "demo-model"}, opts...)
}

func TestGenerateSceneSendsInstructionAndPrompt(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(completion("from manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n        self.wait()\n"))
	}))
	defer server.Close()

	temp := 0.2
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Temperature: &temp})
	code, err := client.GenerateScene(context.Background(), "  draw a circle  ")
	if err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if !strings.HasPrefix(code, "from manim import *") {
		t.Fatalf("unexpected code %q", code)
	}
	if got.Model != "demo-model" || got.Temperature != 0.2 {
		t.Fatalf("unexpected request settings: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != SceneInstruction {
		t.Fatalf("system message not sent: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "draw a circle" {
		t.Fatalf("unexpected user message: %+v", got.Messages[1])
	}
}

func TestGenerateSceneDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if client.Model() != "gpt-4" || client.temperature != 0.7 {
		t.Fatalf("unexpected defaults: model=%q temperature=%v", client.Model(), client.temperature)
	}
	if client.cfg.BaseURL != defaultBaseURL {
		t.Fatalf("unexpected base url %q", client.cfg.BaseURL)
	}
}

func TestGenerateSceneRequiresInputs(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}).GenerateScene(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if _, err := NewClient(Config{}).GenerateScene(context.Background(), "circle"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGenerateSceneQuotaSignals(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"payment required", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"message":"billing"}}`))
		}},
		{"insufficient quota", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","code":"insufficient_quota"}}`))
		}},
		{"error body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
		}},
		{"model signal", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(completion(QuotaSignal))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, WithRetryMaxAttempts(5)).GenerateScene(context.Background(), "circle")
			if !errors.Is(err, ErrQuotaExhausted) {
				t.Fatalf("expected ErrQuotaExhausted, got %v", err)
			}
			if calls.Load() != 1 {
				t.Fatalf("quota errors must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestGenerateSceneRateLimitIsRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completion("class GeneratedScene(Scene): pass"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.GenerateScene(context.Background(), "circle"); err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestGenerateSceneRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = "class GeneratedScene(Scene): pass"
		}
		_ = json.NewEncoder(w).Encode(completion(content))
	}))
	defer server.Close()

	code, err := newTestClient(server.URL, WithRetryMaxAttempts(5)).GenerateScene(context.Background(), "circle")
	if err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if code != "class GeneratedScene(Scene): pass" || calls != 3 {
		t.Fatalf("code=%q calls=%d", code, calls)
	}
}

func TestGenerateSceneEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion(""))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateScene(context.Background(), "circle")
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestGenerateSceneAlternatePayloadShapes(t *testing.T) {
	tests := map[string]map[string]any{
		"delta": {"choices": []any{map[string]any{"delta": map[string]any{"content": "scene"}}}},
		"text":  {"choices": []any{map[string]any{"finish_reason": "stop", "text": "scene"}}},
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(payload)
			}))
			defer server.Close()

			code, err := newTestClient(server.URL).GenerateScene(context.Background(), "circle")
			if err != nil || code != "scene" {
				t.Fatalf("GenerateScene = %q, %v", code, err)
			}
		})
	}
}

func TestGenerateSceneClientErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, WithRetryMaxAttempts(5)).GenerateScene(context.Background(), "circle")
	if err == nil || errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected plain failure, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"ok\":true}\n```"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative retry-after accepted")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage retry-after accepted")
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	got := []time.Duration{client.backoffDelay(1), client.backoffDelay(2), client.backoffDelay(3), client.backoffDelay(4)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoffDelay(%d) = %v, want %v", i+1, got[i], want[i])
		}
	}
}
