package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"courseware.fit/polyglot/internal/kvstore"
	"courseware.fit/polyglot/internal/resource"
	"courseware.fit/polyglot/internal/translation"
)

// countingStore wraps a Store and records writes per key.
type countingStore struct {
	kvstore.Store

	mu   sync.Mutex
	puts map[string]int
}

func newCountingStore(inner kvstore.Store) *countingStore {
	return &countingStore{Store: inner, puts: make(map[string]int)}
}

func (s *countingStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.puts[key]++
	s.mu.Unlock()
	return s.Store.Put(ctx, key, value)
}

func (s *countingStore) putCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

// stubProvider translates documents by prefixing string values with the
// target language. Individual languages can be made to fail, and the mailbox
// document can be truncated for a number of calls.
type stubProvider struct {
	mu                  sync.Mutex
	calls               int
	mailboxCalls        int
	failLangs           map[string]string
	truncateMailboxFor  int
	lastProtectedKeys   []string
	protectedKeysByCall [][]string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) SupportedLanguages() []string { return []string{"en", "de", "tr", "fr"} }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) Translate(_ context.Context, req translation.TranslateRequest) (*translation.TranslateResponse, error) {
	p.mu.Lock()
	p.calls++
	isMailbox := false
	if _, ok := req.Document["messages"]; ok {
		isMailbox = true
		p.mailboxCalls++
		p.protectedKeysByCall = append(p.protectedKeysByCall, append([]string{}, req.ProtectedKeys...))
	}
	p.lastProtectedKeys = append([]string{}, req.ProtectedKeys...)
	truncate := isMailbox && p.mailboxCalls <= p.truncateMailboxFor
	failMsg := ""
	if p.failLangs != nil {
		failMsg = p.failLangs[req.TargetLang]
	}
	p.mu.Unlock()

	if failMsg != "" {
		return nil, fmt.Errorf("%s", failMsg)
	}

	translated := translateDoc(req.Document, req.TargetLang, req.ProtectedKeys)
	if truncate {
		delete(translated, "subject")
	}

	return &translation.TranslateResponse{
		Document:   translated,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Model:      req.Model,
		LatencyMs:  1,
	}, nil
}

func translateDoc(doc map[string]any, lang string, protected []string) map[string]any {
	protectedSet := make(map[string]struct{}, len(protected))
	for _, key := range protected {
		protectedSet[key] = struct{}{}
	}

	out := make(map[string]any, len(doc))
	for key, value := range doc {
		if _, skip := protectedSet[key]; skip {
			out[key] = value
			continue
		}
		switch typed := value.(type) {
		case string:
			out[key] = "[" + lang + "] " + typed
		case map[string]any:
			out[key] = translateDoc(typed, lang, protected)
		case []any:
			items := make([]any, len(typed))
			for i, item := range typed {
				if nested, ok := item.(map[string]any); ok {
					items[i] = translateDoc(nested, lang, protected)
				} else if text, ok := item.(string); ok {
					items[i] = "[" + lang + "] " + text
				} else {
					items[i] = item
				}
			}
			out[key] = items
		default:
			out[key] = value
		}
	}
	return out
}

type fixture struct {
	store    *countingStore
	repo     *resource.Repository
	provider *stubProvider
	orch     *Orchestrator
	coord    *Coordinator
}

func newFixture(t *testing.T, provider *stubProvider) *fixture {
	t.Helper()

	store := newCountingStore(kvstore.NewMemory())
	repo := resource.NewRepository(store, zerolog.Nop())

	registry := translation.NewRegistry("stub")
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	verifier := NewVerifier(store, zerolog.Nop(), VerifyPolicy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		MaxTotalWait: 10 * time.Millisecond,
	})

	orch := NewOrchestrator(repo, registry, verifier, zerolog.Nop(), OrchestratorOptions{
		RetryPolicy:      translation.RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond},
		MailboxRetryWait: time.Millisecond,
	})
	orch.sleep = func(context.Context, time.Duration) {}

	return &fixture{
		store:    store,
		repo:     repo,
		provider: provider,
		orch:     orch,
		coord:    NewCoordinator(orch, repo, zerolog.Nop(), DefaultMaxTargetLanguages),
	}
}

func (f *fixture) seedResource(t *testing.T, res *resource.Resource) {
	t.Helper()
	if err := f.repo.PutResource(context.Background(), res); err != nil {
		t.Fatalf("seed resource: %v", err)
	}
}

func (f *fixture) seedContent(t *testing.T, resourceID, lang string, doc map[string]any) {
	t.Helper()
	if err := f.repo.PutContent(context.Background(), resourceID, lang, doc); err != nil {
		t.Fatalf("seed content: %v", err)
	}
}

func (f *fixture) seedMailbox(t *testing.T, resourceID, group, lang string, doc map[string]any) {
	t.Helper()
	if err := f.repo.PutMailbox(context.Background(), resourceID, group, lang, doc); err != nil {
		t.Fatalf("seed mailbox: %v", err)
	}
}

func phishingResource() *resource.Resource {
	return &resource.Resource{
		ID:                 "r1",
		Kind:               resource.KindPhishingSim,
		Title:              "Spot the phish",
		Language:           "en",
		AvailableLanguages: []string{"en"},
		DefaultGroup:       "it",
		Version:            1,
	}
}

func sampleContent() map[string]any {
	return map[string]any{
		"title": "Spot the phish",
		"intro": "Learn to recognize suspicious email",
		"sections": []any{
			map[string]any{"heading": "Sender checks", "body": "Inspect the address"},
		},
	}
}

func sampleMailbox() map[string]any {
	return map[string]any{
		"subject": "Inbox simulation",
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Reset your password</p>"},
		},
	}
}

func decodeStoredDoc(t *testing.T, store kvstore.Store, key string) map[string]any {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	if raw == nil {
		t.Fatalf("key %s is not stored", key)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return doc
}

func containsNote(result JobResult, fragment string) bool {
	return strings.Contains(result.Note, fragment)
}
