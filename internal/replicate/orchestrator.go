package replicate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"courseware.fit/polyglot/internal/kvstore"
	"courseware.fit/polyglot/internal/langdetect"
	"courseware.fit/polyglot/internal/language"
	"courseware.fit/polyglot/internal/resource"
	"courseware.fit/polyglot/internal/translation"
)

// DefaultSourceLanguage is the final fallback when neither the request, the
// resource metadata, nor language detection yields a source language.
const DefaultSourceLanguage = "en"

// DefaultMailboxRetryWait is the fixed pause before the single mailbox retry
// with the enlarged protected-key set.
const DefaultMailboxRetryWait = 2 * time.Second

// Keys carried over verbatim on every translation call.
var baseProtectedKeys = []string{"id", "kind", "version", "language", "url", "image_url", "link"}

// Additional keys protected on the first mailbox attempt.
var mailboxProtectedKeys = []string{"from", "to", "cc"}

// Further keys protected on the mailbox retry, when the first attempt came
// back structurally invalid.
var mailboxExpandedProtectedKeys = []string{"sender", "recipient", "reply_to", "message_id", "date"}

// JobRequest is one per-language unit of replication work.
type JobRequest struct {
	ResourceID     string
	TargetLanguage string
	// SourceLanguage overrides the derived source language when non-empty.
	SourceLanguage string
	// GroupKey is the preferred mailbox group (for example, a department).
	GroupKey string
	Provider string
	Model    string
	// MarkAvailability makes the job update the resource's availability set
	// itself. Only set for jobs run outside a batch; inside a batch the
	// coordinator issues the single update after all jobs settle.
	MarkAvailability bool
}

// JobResult is the settled outcome of one language job.
type JobResult struct {
	Language   string `json:"language"`
	Success    bool   `json:"success"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Note       string `json:"note,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorKind  Kind   `json:"error_kind,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// OrchestratorOptions tunes the per-language pipeline.
type OrchestratorOptions struct {
	RetryPolicy           translation.RetryPolicy
	MailboxRetryWait      time.Duration
	DefaultSourceLanguage string
}

// Orchestrator runs one language job: load the resource, translate content and
// mailbox simulation in parallel, persist, and verify store visibility.
type Orchestrator struct {
	repo     *resource.Repository
	registry *translation.Registry
	verifier *Verifier
	logger   zerolog.Logger
	opts     OrchestratorOptions

	sleep func(ctx context.Context, d time.Duration)
}

func NewOrchestrator(
	repo *resource.Repository,
	registry *translation.Registry,
	verifier *Verifier,
	logger zerolog.Logger,
	opts OrchestratorOptions,
) *Orchestrator {
	if opts.RetryPolicy.MaxAttempts <= 0 {
		opts.RetryPolicy = translation.DefaultRetryPolicy
	}
	if opts.MailboxRetryWait <= 0 {
		opts.MailboxRetryWait = DefaultMailboxRetryWait
	}
	if strings.TrimSpace(opts.DefaultSourceLanguage) == "" {
		opts.DefaultSourceLanguage = DefaultSourceLanguage
	}
	return &Orchestrator{
		repo:     repo,
		registry: registry,
		verifier: verifier,
		logger:   logger,
		opts:     opts,
		sleep:    sleepWithContext,
	}
}

type mailboxOutcome struct {
	success bool
	// group is the mailbox group an artifact was written for; empty when the
	// branch was skipped or failed.
	group string
	note  string
}

// Run executes one language job. A returned error is fatal to this job only
// and carries a Kind; a degraded job (content ok, mailbox failed) returns a
// successful result with a note.
func (o *Orchestrator) Run(ctx context.Context, req JobRequest) (JobResult, error) {
	if o == nil || o.repo == nil {
		return JobResult{}, newError(KindInternal, "orchestrator is not initialized")
	}

	started := time.Now()

	target := language.NormalizeCode(req.TargetLanguage)
	if target == "" {
		return JobResult{}, newError(KindValidation, "target language %q is not a valid language code", req.TargetLanguage)
	}

	res, err := o.repo.GetResource(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return JobResult{}, wrapError(KindNotFound, err, "resource %s", req.ResourceID)
		}
		return JobResult{}, wrapError(KindExternal, err, "load resource %s", req.ResourceID)
	}

	source, sourceKnown := o.deriveSourceLanguage(req.SourceLanguage, res)
	if source == target {
		return JobResult{}, newError(KindInvalidLanguagePair, "source and target language are both %q", target)
	}

	mailboxRequired := res.MailboxEnabled()

	provider, err := o.registry.Provider(req.Provider)
	if err != nil {
		return JobResult{}, wrapError(KindTranslationFailed, err, "resolve translation provider")
	}

	var (
		contentDoc map[string]any
		contentErr error
		mailbox    mailboxOutcome
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		contentDoc, contentErr = o.translateContent(groupCtx, res, provider, source, sourceKnown, target, req.Model)
		return nil
	})
	group.Go(func() error {
		mailbox = o.translateMailbox(groupCtx, res, provider, req.GroupKey, source, target, req.Model)
		return nil
	})
	_ = group.Wait()

	if contentErr != nil {
		return JobResult{}, contentErr
	}

	resultURL := fmt.Sprintf("/resources/%s?lang=%s", res.ID, target)
	expectedKeys := []string{kvstore.ContentKey(res.ID, target)}
	if mailboxRequired && mailbox.success && mailbox.group != "" {
		resultURL += "&mailbox=" + mailbox.group
		expectedKeys = append(expectedKeys, kvstore.MailboxKey(res.ID, mailbox.group, target))
	}

	if o.verifier != nil {
		o.verifier.Verify(ctx, res.ID, expectedKeys)
	}

	if req.MarkAvailability {
		if err := o.repo.MarkLanguagesAvailable(ctx, res.ID, []string{target}); err != nil {
			return JobResult{}, wrapError(KindExternal, err, "mark language %s available", target)
		}
	}

	result := JobResult{
		Language:   target,
		Success:    true,
		URL:        resultURL,
		Title:      translatedTitle(contentDoc, res),
		DurationMs: time.Since(started).Milliseconds(),
	}
	if mailboxRequired && !mailbox.success {
		result.Note = "mailbox simulation unavailable; content only"
		if mailbox.note != "" {
			result.Note = result.Note + " (" + mailbox.note + ")"
		}
	}

	o.logger.Info().
		Str("resource_id", res.ID).
		Str("source_lang", source).
		Str("target_lang", target).
		Bool("mailbox", mailboxRequired && mailbox.success).
		Int64("duration_ms", result.DurationMs).
		Msg("language job finished")
	return result, nil
}

// deriveSourceLanguage resolves the job's source language: explicit override,
// then resource metadata, then detection from the resource title, then the
// configured default. The second return is false only on the default fallback.
func (o *Orchestrator) deriveSourceLanguage(override string, res *resource.Resource) (string, bool) {
	if code := language.NormalizeCode(override); code != "" {
		return code, true
	}
	if code := language.NormalizeCode(res.Language); code != "" {
		return code, true
	}
	if code := langdetect.DetectISO6391(res.Title); code != "" {
		return code, true
	}
	return o.opts.DefaultSourceLanguage, false
}

func (o *Orchestrator) translateContent(
	ctx context.Context,
	res *resource.Resource,
	provider translation.Provider,
	source string,
	sourceKnown bool,
	target, model string,
) (map[string]any, error) {
	sourceDoc, err := o.repo.GetContent(ctx, res.ID, source)
	if err != nil {
		return nil, wrapError(KindExternal, err, "load %s content for %s", source, res.ID)
	}
	if len(sourceDoc) == 0 {
		return nil, newError(KindMissingSourceContent, "resource %s has no %s content", res.ID, source)
	}

	// The store key fixes where the source document lives; when nothing
	// declared its language, the text itself can still label the translation
	// request.
	if !sourceKnown {
		if detected := langdetect.DetectFromDocument(sourceDoc, 0); detected != "" && detected != target {
			source = detected
		}
	}

	hints := contentHints(res)
	resp, err := translation.TranslateWithRetry(ctx, provider, translation.TranslateRequest{
		Document:      sourceDoc,
		SourceLang:    source,
		TargetLang:    target,
		ProtectedKeys: baseProtectedKeys,
		Hints:         hints,
		Model:         model,
	}, o.opts.RetryPolicy)
	if err != nil {
		return nil, wrapError(KindTranslationFailed, err, "translate %s content to %s", res.ID, target)
	}
	if resp == nil || len(resp.Document) == 0 {
		return nil, newError(KindTranslationFailed, "translator returned empty %s content for %s", target, res.ID)
	}

	if err := o.repo.PutContent(ctx, res.ID, target, resp.Document); err != nil {
		return nil, wrapError(KindExternal, err, "persist %s content for %s", target, res.ID)
	}
	return resp.Document, nil
}

// translateMailbox replicates the per-group mailbox simulation. It never fails
// the job: every error degrades to success=false.
func (o *Orchestrator) translateMailbox(
	ctx context.Context,
	res *resource.Resource,
	provider translation.Provider,
	requestedGroup, source, target, model string,
) (outcome mailboxOutcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Error().
				Str("resource_id", res.ID).
				Interface("panic", recovered).
				Msg("mailbox translation panicked")
			outcome = mailboxOutcome{note: "mailbox translation panicked"}
		}
	}()

	if !res.MailboxEnabled() {
		return mailboxOutcome{success: true}
	}

	group, sourceDoc := o.findSourceMailbox(ctx, res, requestedGroup, source)
	if sourceDoc == nil {
		return mailboxOutcome{note: "no source mailbox found"}
	}

	protected := append(append([]string{}, baseProtectedKeys...), mailboxProtectedKeys...)
	translated, valid := o.translateMailboxOnce(ctx, provider, sourceDoc, source, target, model, protected)

	if !valid {
		o.sleep(ctx, o.opts.MailboxRetryWait)
		protected = append(protected, mailboxExpandedProtectedKeys...)
		translated, valid = o.translateMailboxOnce(ctx, provider, sourceDoc, source, target, model, protected)
	}

	if !valid {
		if translated == nil {
			return mailboxOutcome{note: "mailbox translation failed"}
		}
		// Deterministic repair instead of discarding the second attempt.
		translated = CorrectStructure(sourceDoc, translated)
		o.logger.Warn().
			Str("resource_id", res.ID).
			Str("group", group).
			Str("target_lang", target).
			Msg("mailbox translation structurally corrected")
	}

	if err := o.repo.PutMailbox(ctx, res.ID, group, target, translated); err != nil {
		o.logger.Error().Err(err).
			Str("resource_id", res.ID).
			Str("group", group).
			Msg("persist mailbox translation failed")
		return mailboxOutcome{note: "persist mailbox failed"}
	}

	return mailboxOutcome{success: true, group: group}
}

// translateMailboxOnce performs a single provider call and structural check.
// A nil document with valid=false means the call itself failed.
func (o *Orchestrator) translateMailboxOnce(
	ctx context.Context,
	provider translation.Provider,
	sourceDoc map[string]any,
	source, target, model string,
	protected []string,
) (map[string]any, bool) {
	resp, err := provider.Translate(ctx, translation.TranslateRequest{
		Document:      sourceDoc,
		SourceLang:    source,
		TargetLang:    target,
		ProtectedKeys: protected,
		Hints:         mailboxHints(),
		Model:         model,
	})
	if err != nil || resp == nil || len(resp.Document) == 0 {
		if err != nil {
			o.logger.Warn().Err(err).Str("target_lang", target).Msg("mailbox translation call failed")
		}
		return nil, false
	}
	return resp.Document, ValidateStructure(sourceDoc, resp.Document)
}

// findSourceMailbox searches the prioritized group candidates for an existing
// source-language mailbox, stopping at the first match.
func (o *Orchestrator) findSourceMailbox(
	ctx context.Context,
	res *resource.Resource,
	requestedGroup, source string,
) (string, map[string]any) {
	for _, candidate := range res.GroupCandidates(requestedGroup) {
		doc, err := o.repo.GetMailbox(ctx, res.ID, candidate, source)
		if err != nil {
			o.logger.Warn().Err(err).
				Str("resource_id", res.ID).
				Str("group", candidate).
				Msg("read source mailbox failed")
			continue
		}
		if len(doc) > 0 {
			return candidate, doc
		}
	}
	return "", nil
}

func contentHints(res *resource.Resource) []string {
	hints := []string{
		fmt.Sprintf("The document is a %s training resource titled %q", res.Kind, res.Title),
		"Keep placeholders such as {{name}} or %s untouched",
	}
	return hints
}

func mailboxHints() []string {
	return []string{
		"The document is a simulated email mailbox; keep the order of the messages array",
		"Message bodies are HTML; translate text content but keep tags and attributes intact",
	}
}

func translatedTitle(contentDoc map[string]any, res *resource.Resource) string {
	if title, ok := contentDoc["title"].(string); ok && strings.TrimSpace(title) != "" {
		return title
	}
	return res.Title
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
