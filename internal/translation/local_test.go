package translation

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

func chatResponse(content string) string {
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestLocalProviderTranslatesDocument(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req localChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) == 1 {
			gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse(`{"title":"Hallo","id":"r1"}`)))
	}))
	defer server.Close()

	provider := NewLocalProvider(server.URL, "test-model")
	resp, err := provider.Translate(context.Background(), TranslateRequest{
		Document:      map[string]any{"title": "Hello", "id": "r1"},
		SourceLang:    "en",
		TargetLang:    "de",
		ProtectedKeys: []string{"id"},
		Hints:         []string{"Keep it short"},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}

	if resp.Document["title"] != "Hallo" {
		t.Fatalf("document = %v", resp.Document)
	}
	if resp.TargetLang != "de" || resp.SourceLang != "en" {
		t.Fatalf("langs = %s -> %s", resp.SourceLang, resp.TargetLang)
	}
	if gotModel != "test-model" {
		t.Fatalf("model = %q", gotModel)
	}
	if !strings.Contains(gotPrompt, "German") {
		t.Fatalf("prompt does not name the target language: %q", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "id") {
		t.Fatalf("prompt does not list protected keys: %q", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "Keep it short") {
		t.Fatalf("prompt does not carry hints: %q", gotPrompt)
	}
}

func TestLocalProviderModelOverride(t *testing.T) {
	t.Parallel()

	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req localChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_, _ = w.Write([]byte(chatResponse(`{"title":"Merhaba"}`)))
	}))
	defer server.Close()

	provider := NewLocalProvider(server.URL, "default-model")
	resp, err := provider.Translate(context.Background(), TranslateRequest{
		Document:   map[string]any{"title": "Hello"},
		TargetLang: "tr",
		Model:      "override-model",
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if gotModel != "override-model" {
		t.Fatalf("model = %q, want override", gotModel)
	}
	if resp.Model != "override-model" {
		t.Fatalf("response model = %q", resp.Model)
	}
}

func TestLocalProviderToleratesCodeFences(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("```json\n{\"title\":\"Bonjour\"}\n```")))
	}))
	defer server.Close()

	provider := NewLocalProvider(server.URL, "")
	resp, err := provider.Translate(context.Background(), TranslateRequest{
		Document:   map[string]any{"title": "Hello"},
		TargetLang: "fr",
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if resp.Document["title"] != "Bonjour" {
		t.Fatalf("document = %v", resp.Document)
	}
}

func TestLocalProviderSurfacesEndpointError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	provider := NewLocalProvider(server.URL, "")
	_, err := provider.Translate(context.Background(), TranslateRequest{
		Document:   map[string]any{"title": "Hello"},
		TargetLang: "de",
	})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("err = %v, want endpoint error message", err)
	}
}

func TestLocalProviderRequiresTargetLanguage(t *testing.T) {
	t.Parallel()

	provider := NewLocalProvider(DefaultLocalEndpoint, "")
	_, err := provider.Translate(context.Background(), TranslateRequest{
		Document: map[string]any{"title": "Hello"},
	})
	if err == nil {
		t.Fatalf("expected missing target language to fail")
	}
}

func TestChatCompletionsURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://host:1234":                     "http://host:1234/v1/chat/completions",
		"http://host:1234/v1":                  "http://host:1234/v1/chat/completions",
		"http://host:1234/v1/chat/completions": "http://host:1234/v1/chat/completions",
		"http://host:1234/custom":              "http://host:1234/custom/v1/chat/completions",
	}
	for input, want := range cases {
		if got := chatCompletionsURL(input); got != want {
			t.Fatalf("chatCompletionsURL(%q) = %q, want %q", input, got, want)
		}
	}
}

type flakyProvider struct {
	failures int32
	calls    int32
}

func (p *flakyProvider) Name() string                 { return "flaky" }
func (p *flakyProvider) SupportedLanguages() []string { return []string{"de"} }

func (p *flakyProvider) Translate(_ context.Context, req TranslateRequest) (*TranslateResponse, error) {
	call := atomic.AddInt32(&p.calls, 1)
	if call <= atomic.LoadInt32(&p.failures) {
		return nil, context.DeadlineExceeded
	}
	return &TranslateResponse{Document: req.Document, TargetLang: req.TargetLang}, nil
}

func TestTranslateWithRetryRecoversFromTransientFaults(t *testing.T) {
	t.Parallel()

	provider := &flakyProvider{failures: 2}
	resp, err := TranslateWithRetry(context.Background(), provider, TranslateRequest{
		Document:   map[string]any{"title": "Hello"},
		TargetLang: "de",
	}, RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resp == nil || resp.Document["title"] != "Hello" {
		t.Fatalf("response = %+v", resp)
	}
	if got := atomic.LoadInt32(&provider.calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestTranslateWithRetryGivesUp(t *testing.T) {
	t.Parallel()

	provider := &flakyProvider{failures: 10}
	_, err := TranslateWithRetry(context.Background(), provider, TranslateRequest{
		Document:   map[string]any{"title": "Hello"},
		TargetLang: "de",
	}, RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	if err == nil {
		t.Fatalf("expected retry exhaustion error")
	}
	if got := atomic.LoadInt32(&provider.calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestRegistryResolvesDefaultAndNamed(t *testing.T) {
	t.Parallel()

	registry := NewRegistry("flaky")
	provider := &flakyProvider{}
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolved, err := registry.Provider("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if resolved.Name() != "flaky" {
		t.Fatalf("resolved = %q", resolved.Name())
	}

	if _, err := registry.Provider("nope"); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}
