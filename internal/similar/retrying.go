package similar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vibechain/internal/core"
	"vibechain/internal/retry"
)

// Retrying repeats transient failures with linear backoff until the attempt budget runs out.
type Retrying struct {
	next   core.SimilarityService
	policy retry.Policy
	logger *zap.Logger
}

func NewRetrying(next core.SimilarityService, maxAttempts int, step time.Duration, logger *zap.Logger) *Retrying {
	r := &Retrying{next: next, logger: logger}
	r.policy = retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Linear(step),
		Retryable: func(err error) bool {
			return errors.Is(err, core.ErrTransient)
		},
	}
	return r
}

func (r *Retrying) Name() string { return r.next.Name() }

func (r *Retrying) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	policy := r.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		r.logger.Warn("Similarity request failed, retrying",
			zap.String("provider", r.next.Name()),
			zap.String("seed", seed.String()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	suggestions, err := retry.Do(ctx, policy, func(ctx context.Context) ([]core.Suggestion, error) {
		return r.next.Similar(ctx, seed, limit)
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("%w: %w", core.ErrSimilarityExhausted, err)
	}
	return suggestions, err
}
