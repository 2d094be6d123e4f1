package translation

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds retries of a provider call for transient faults. The
// delay before each retry doubles, starting at InitialBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy matches the primary content translation path.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: time.Second,
}

// TranslateWithRetry calls provider.Translate up to policy.MaxAttempts times,
// sleeping between attempts. Context cancellation stops the retry loop.
func TranslateWithRetry(ctx context.Context, provider Provider, req TranslateRequest, policy RetryPolicy) (*TranslateResponse, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is nil")
	}

	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := provider.Translate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("translate failed after %d attempts: %w", attempts, lastErr)
}
