package replicate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"courseware.fit/polyglot/internal/kvstore"
)

// VerifyPolicy bounds the store-visibility poll loop.
type VerifyPolicy struct {
	// Disabled short-circuits verification entirely.
	Disabled bool
	// MaxAttempts caps the number of read rounds.
	MaxAttempts int
	// InitialDelay is the wait after the first failed round; it doubles each
	// round, capped at MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxTotalWait caps the cumulative sleep across all rounds.
	MaxTotalWait time.Duration
}

// DefaultVerifyPolicy matches the production poll schedule.
var DefaultVerifyPolicy = VerifyPolicy{
	MaxAttempts:  6,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
	MaxTotalWait: 30 * time.Second,
}

// Verifier polls the store until a set of freshly written keys is visible or
// the poll budget runs out. It compensates for the store's eventual
// consistency on a best-effort basis and never reports failure: callers must
// not rely on it for exactness.
type Verifier struct {
	store  kvstore.Store
	logger zerolog.Logger
	policy VerifyPolicy
}

func NewVerifier(store kvstore.Store, logger zerolog.Logger, policy VerifyPolicy) *Verifier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultVerifyPolicy.MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultVerifyPolicy.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultVerifyPolicy.MaxDelay
	}
	if policy.MaxTotalWait <= 0 {
		policy.MaxTotalWait = DefaultVerifyPolicy.MaxTotalWait
	}
	return &Verifier{store: store, logger: logger, policy: policy}
}

// Verify polls until every expected key reads back non-nil. Transient read
// errors count as "not yet visible". Returns the number of attempts used.
func (v *Verifier) Verify(ctx context.Context, resourceID string, expectedKeys []string) int {
	if v == nil || v.store == nil || len(expectedKeys) == 0 {
		return 0
	}
	if v.policy.Disabled {
		return 0
	}

	waited := time.Duration(0)
	delay := v.policy.InitialDelay

	for attempt := 1; attempt <= v.policy.MaxAttempts; attempt++ {
		missing := v.missingKeys(ctx, expectedKeys)
		if len(missing) == 0 {
			v.logger.Debug().
				Str("resource_id", resourceID).
				Int("attempt", attempt).
				Int("keys", len(expectedKeys)).
				Msg("store visibility confirmed")
			return attempt
		}

		if attempt == v.policy.MaxAttempts {
			v.logger.Warn().
				Str("resource_id", resourceID).
				Strs("missing_keys", missing).
				Int("attempts", attempt).
				Dur("waited", waited).
				Msg("store visibility not confirmed within poll budget")
			return attempt
		}

		if delay > v.policy.MaxDelay {
			delay = v.policy.MaxDelay
		}
		if remaining := v.policy.MaxTotalWait - waited; delay > remaining {
			delay = remaining
		}
		if delay <= 0 {
			v.logger.Warn().
				Str("resource_id", resourceID).
				Strs("missing_keys", missing).
				Int("attempts", attempt).
				Dur("waited", waited).
				Msg("store visibility wait budget exhausted")
			return attempt
		}

		select {
		case <-ctx.Done():
			v.logger.Warn().
				Str("resource_id", resourceID).
				Strs("missing_keys", missing).
				Msg("store visibility check cancelled")
			return attempt
		case <-time.After(delay):
		}
		waited += delay
		delay *= 2
	}

	return v.policy.MaxAttempts
}

// missingKeys reads all keys concurrently and returns those not yet visible.
func (v *Verifier) missingKeys(ctx context.Context, keys []string) []string {
	var mu sync.Mutex
	missing := make([]string, 0, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, key := range keys {
		group.Go(func() error {
			value, err := v.store.Get(groupCtx, key)
			if err != nil {
				v.logger.Debug().Err(err).Str("key", key).Msg("visibility read failed, treating as missing")
			}
			if err != nil || value == nil {
				mu.Lock()
				missing = append(missing, key)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	return missing
}
