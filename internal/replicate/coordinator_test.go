package replicate

import (
	"context"
	"fmt"
	"testing"

	"courseware.fit/polyglot/internal/kvstore"
)

func TestReplicatePartialBatch(t *testing.T) {
	t.Parallel()

	// Scenario: the translator rejects German only.
	provider := &stubProvider{failLangs: map[string]string{"de": "model refused"}}
	f := newFixture(t, provider)
	f.seedResource(t, phishingResource())
	f.seedContent(t, "r1", "en", sampleContent())
	f.seedMailbox(t, "r1", "it", "en", sampleMailbox())

	result, err := f.coord.Replicate(context.Background(), BatchRequest{
		ResourceID:      "r1",
		TargetLanguages: []string{"tr", "de"},
	})
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}

	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", result.SuccessCount, result.FailureCount)
	}
	if result.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", result.Status)
	}
	if result.Success {
		t.Fatalf("partial batch must not report overall success")
	}

	byLang := make(map[string]JobResult, len(result.Results))
	for _, jobResult := range result.Results {
		byLang[jobResult.Language] = jobResult
	}
	if !byLang["tr"].Success {
		t.Fatalf("tr job failed: %+v", byLang["tr"])
	}
	if byLang["de"].Success {
		t.Fatalf("de job unexpectedly succeeded")
	}
	if byLang["de"].ErrorKind != KindTranslationFailed {
		t.Fatalf("de error kind = %q, want %q", byLang["de"].ErrorKind, KindTranslationFailed)
	}

	// Exactly one availability update, carrying only the succeeded language.
	if puts := f.store.putCount(kvstore.ResourceKey("r1")); puts != 2 {
		// one seed write plus one availability update
		t.Fatalf("resource metadata writes = %d, want 2", puts)
	}
	res, err := f.repo.GetResource(context.Background(), "r1")
	if err != nil {
		t.Fatalf("reload resource: %v", err)
	}
	if !res.HasLanguage("tr") {
		t.Fatalf("tr missing from available languages: %v", res.AvailableLanguages)
	}
	if res.HasLanguage("de") {
		t.Fatalf("failed language must not be marked available: %v", res.AvailableLanguages)
	}
}

func TestReplicateAllLanguagesSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubProvider{})
	f.seedResource(t, phishingResource())
	f.seedContent(t, "r1", "en", sampleContent())
	f.seedMailbox(t, "r1", "it", "en", sampleMailbox())

	result, err := f.coord.Replicate(context.Background(), BatchRequest{
		ResourceID:      "r1",
		TargetLanguages: []string{"TR", "de", "fr"},
	})
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}

	if result.Status != StatusSuccess || !result.Success {
		t.Fatalf("status = %q success=%t, want full success", result.Status, result.Success)
	}
	if result.SuccessCount != 3 || result.FailureCount != 0 {
		t.Fatalf("counts = %d/%d, want 3/0", result.SuccessCount, result.FailureCount)
	}
	if result.BatchID == "" {
		t.Fatalf("batch id must be set")
	}
	if result.TotalDuration == "" {
		t.Fatalf("total duration label must be set")
	}

	// Requested languages come back case-normalized, in request order.
	wantLangs := []string{"tr", "de", "fr"}
	for i, lang := range wantLangs {
		if result.Languages[i] != lang {
			t.Fatalf("languages = %v, want %v", result.Languages, wantLangs)
		}
		if result.Results[i].Language != lang {
			t.Fatalf("result %d language = %q, want %q", i, result.Results[i].Language, lang)
		}
	}

	res, err := f.repo.GetResource(context.Background(), "r1")
	if err != nil {
		t.Fatalf("reload resource: %v", err)
	}
	for _, lang := range wantLangs {
		if !res.HasLanguage(lang) {
			t.Fatalf("%s missing from available languages: %v", lang, res.AvailableLanguages)
		}
	}
	// Single atomic update: seed write + one availability write.
	if puts := f.store.putCount(kvstore.ResourceKey("r1")); puts != 2 {
		t.Fatalf("resource metadata writes = %d, want 2", puts)
	}
}

func TestReplicateAllLanguagesFail(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{failLangs: map[string]string{
		"de": "model refused",
		"tr": "model refused",
	}}
	f := newFixture(t, provider)
	f.seedResource(t, phishingResource())
	f.seedContent(t, "r1", "en", sampleContent())

	result, err := f.coord.Replicate(context.Background(), BatchRequest{
		ResourceID:      "r1",
		TargetLanguages: []string{"de", "tr"},
	})
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}

	if result.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}
	if result.SuccessCount != 0 || result.FailureCount != 2 {
		t.Fatalf("counts = %d/%d, want 0/2", result.SuccessCount, result.FailureCount)
	}
	// No availability update when nothing succeeded: only the seed write.
	if puts := f.store.putCount(kvstore.ResourceKey("r1")); puts != 1 {
		t.Fatalf("resource metadata writes = %d, want 1", puts)
	}
}

func TestReplicateRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	f := newFixture(t, provider)
	f.seedResource(t, phishingResource())
	f.seedContent(t, "r1", "en", sampleContent())

	targets := make([]string, 13)
	for i := range targets {
		targets[i] = fmt.Sprintf("l%d", i)
	}

	_, err := f.coord.Replicate(context.Background(), BatchRequest{
		ResourceID:      "r1",
		TargetLanguages: targets,
	})
	if !IsKind(err, KindTooManyTargets) {
		t.Fatalf("err = %v, want kind %s", err, KindTooManyTargets)
	}
	if !IsBatchFatal(err) {
		t.Fatalf("oversized batch must be batch-fatal")
	}
	if provider.callCount() != 0 {
		t.Fatalf("no job may start before validation, provider calls = %d", provider.callCount())
	}
}

func TestReplicateRejectsEmptyResourceID(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	f := newFixture(t, provider)

	_, err := f.coord.Replicate(context.Background(), BatchRequest{
		TargetLanguages: []string{"de"},
	})
	if !IsKind(err, KindValidation) {
		t.Fatalf("err = %v, want kind %s", err, KindValidation)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider calls = %d, want 0", provider.callCount())
	}
}

func TestReplicateRejectsEmptyTargetList(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubProvider{})

	_, err := f.coord.Replicate(context.Background(), BatchRequest{ResourceID: "r1"})
	if !IsKind(err, KindValidation) {
		t.Fatalf("err = %v, want kind %s", err, KindValidation)
	}
}

func TestReplicateAcceptsMaximumBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubProvider{})
	f.seedResource(t, phishingResource())
	f.seedContent(t, "r1", "en", sampleContent())
	f.seedMailbox(t, "r1", "it", "en", sampleMailbox())

	targets := []string{"de", "tr", "fr", "es", "it", "pt", "nl", "pl", "sv", "cs", "ja", "ko"}
	result, err := f.coord.Replicate(context.Background(), BatchRequest{
		ResourceID:      "r1",
		TargetLanguages: targets,
	})
	if err != nil {
		t.Fatalf("replicate 12 languages: %v", err)
	}
	if result.SuccessCount != len(targets) {
		t.Fatalf("success count = %d, want %d", result.SuccessCount, len(targets))
	}
}
