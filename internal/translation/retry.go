package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the retries a provider performs for transient errors.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// DefaultRetryPolicy is used when a provider is configured without one.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}

// WithRetry runs call with exponential backoff and jitter. Only errors that
// wrap ErrTransientFailure are retried; everything else returns immediately.
// The returned error always wraps ErrTranslationFailed.
func WithRetry(
	ctx context.Context,
	logger *slog.Logger,
	policy RetryPolicy,
	call func(ctx context.Context) (*Result, error),
) (*Result, error) {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}

	backoff := retry.NewExponential(policy.BaseDelay)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithMaxRetries(policy.MaxRetries, backoff)

	var (
		result  *Result
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := call(ctx)
		if err == nil {
			result = r
			return nil
		}

		logger.WarnContext(ctx, "translation call failed",
			"attempt", attempt,
			"error", err)

		if errors.Is(err, ErrTransientFailure) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTranslationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
	}

	return result, nil
}
