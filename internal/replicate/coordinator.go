package replicate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"courseware.fit/polyglot/internal/language"
	"courseware.fit/polyglot/internal/resource"
)

// DefaultMaxTargetLanguages bounds a single batch. Larger batches are rejected
// at validation time rather than queued.
const DefaultMaxTargetLanguages = 12

// Batch statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// BatchRequest fans one resource out into one job per target language.
type BatchRequest struct {
	ResourceID      string   `json:"resource_id"`
	TargetLanguages []string `json:"target_languages"`
	SourceLanguage  string   `json:"source_language,omitempty"`
	GroupKey        string   `json:"group_key,omitempty"`
	Provider        string   `json:"provider,omitempty"`
	Model           string   `json:"model,omitempty"`
}

// BatchResult aggregates the settled outcomes of all jobs in one batch.
type BatchResult struct {
	BatchID       string      `json:"batch_id"`
	Success       bool        `json:"success"`
	SuccessCount  int         `json:"success_count"`
	FailureCount  int         `json:"failure_count"`
	TotalDuration string      `json:"total_duration"`
	Languages     []string    `json:"languages"`
	Results       []JobResult `json:"results"`
	Status        string      `json:"status"`
}

// Coordinator validates a batch request, runs all language jobs concurrently,
// and issues the single availability update after every job has settled.
type Coordinator struct {
	orch       *Orchestrator
	repo       *resource.Repository
	logger     zerolog.Logger
	maxTargets int
}

func NewCoordinator(orch *Orchestrator, repo *resource.Repository, logger zerolog.Logger, maxTargets int) *Coordinator {
	if maxTargets <= 0 {
		maxTargets = DefaultMaxTargetLanguages
	}
	return &Coordinator{
		orch:       orch,
		repo:       repo,
		logger:     logger,
		maxTargets: maxTargets,
	}
}

// Replicate runs one batch. It returns an error only for the up-front
// validation failures; individual job failures are reported in the result.
func (c *Coordinator) Replicate(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if c == nil || c.orch == nil || c.repo == nil {
		return nil, newError(KindInternal, "coordinator is not initialized")
	}

	targets, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	batchID := uuid.NewString()
	c.logger.Info().
		Str("batch_id", batchID).
		Str("resource_id", req.ResourceID).
		Strs("languages", targets).
		Msg("replication batch started")

	// Settle-all: every job's outcome is captured; one job's failure never
	// cancels or blocks the others.
	results := make([]JobResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(index int, lang string) {
			defer wg.Done()
			results[index] = c.runJob(ctx, req, lang)
		}(i, target)
	}
	wg.Wait()

	successCount := 0
	succeededLangs := make([]string, 0, len(targets))
	seenSucceeded := make(map[string]struct{}, len(targets))
	for _, result := range results {
		if !result.Success {
			continue
		}
		successCount++
		if _, seen := seenSucceeded[result.Language]; !seen {
			seenSucceeded[result.Language] = struct{}{}
			succeededLangs = append(succeededLangs, result.Language)
		}
	}
	failureCount := len(results) - successCount

	// The single availability update. Issuing it here, after all jobs have
	// settled, avoids the lost-update race of N jobs appending to the shared
	// language set concurrently.
	if len(succeededLangs) > 0 {
		if err := c.repo.MarkLanguagesAvailable(ctx, req.ResourceID, succeededLangs); err != nil {
			c.logger.Error().Err(err).
				Str("batch_id", batchID).
				Str("resource_id", req.ResourceID).
				Msg("availability update failed")
		}
	}

	result := &BatchResult{
		BatchID:       batchID,
		Success:       failureCount == 0 && successCount > 0,
		SuccessCount:  successCount,
		FailureCount:  failureCount,
		TotalDuration: formatDuration(time.Since(started)),
		Languages:     targets,
		Results:       results,
		Status:        batchStatus(successCount, failureCount),
	}

	c.logger.Info().
		Str("batch_id", batchID).
		Str("resource_id", req.ResourceID).
		Str("status", result.Status).
		Int("success_count", successCount).
		Int("failure_count", failureCount).
		Str("total_duration", result.TotalDuration).
		Msg("replication batch finished")
	return result, nil
}

// validate rejects the whole batch before any job starts. Target languages are
// normalized to canonical lowercase codes; duplicates are kept.
func (c *Coordinator) validate(req BatchRequest) ([]string, error) {
	if req.ResourceID == "" {
		return nil, newError(KindValidation, "resource id is required")
	}
	if len(req.TargetLanguages) == 0 {
		return nil, newError(KindValidation, "at least one target language is required")
	}
	if len(req.TargetLanguages) > c.maxTargets {
		return nil, newError(KindTooManyTargets, "batch of %d target languages exceeds the limit of %d", len(req.TargetLanguages), c.maxTargets)
	}

	targets := make([]string, 0, len(req.TargetLanguages))
	for _, raw := range req.TargetLanguages {
		normalized := language.NormalizeCode(raw)
		if normalized == "" {
			return nil, newError(KindValidation, "target language %q is not a valid language code", raw)
		}
		targets = append(targets, normalized)
	}
	return targets, nil
}

// runJob converts a job's error into a settled JobResult; it never panics the
// batch.
func (c *Coordinator) runJob(ctx context.Context, req BatchRequest, target string) (result JobResult) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error().
				Str("resource_id", req.ResourceID).
				Str("target_lang", target).
				Interface("panic", recovered).
				Msg("language job panicked")
			result = JobResult{
				Language:   target,
				Success:    false,
				Error:      fmt.Sprintf("job panicked: %v", recovered),
				ErrorKind:  KindInternal,
				DurationMs: time.Since(started).Milliseconds(),
			}
		}
	}()

	jobResult, err := c.orch.Run(ctx, JobRequest{
		ResourceID:     req.ResourceID,
		TargetLanguage: target,
		SourceLanguage: req.SourceLanguage,
		GroupKey:       req.GroupKey,
		Provider:       req.Provider,
		Model:          req.Model,
	})
	if err != nil {
		c.logger.Warn().Err(err).
			Str("resource_id", req.ResourceID).
			Str("target_lang", target).
			Str("error_kind", string(KindOf(err))).
			Msg("language job failed")
		return JobResult{
			Language:   target,
			Success:    false,
			Error:      err.Error(),
			ErrorKind:  KindOf(err),
			DurationMs: time.Since(started).Milliseconds(),
		}
	}
	return jobResult
}

func batchStatus(successCount, failureCount int) string {
	switch {
	case successCount == 0:
		return StatusFailed
	case failureCount > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
