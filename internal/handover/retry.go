package handover

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	batonerrors "baton/internal/errors"
	"baton/internal/utils/id"
	"baton/pkg/types"
)

// Retry wraps Handover with the caller-side policy the context itself
// declares in communication.errorHandling. The Coordinator stays a
// single-attempt primitive; this helper is the loop.
//
//   - "fail" (or unset): one attempt, errors surface as-is.
//   - "retry": up to MaxRetries additional attempts with exponential
//     backoff. Only retryable errors (spawn failure, timeout) are retried;
//     a SecurityViolation or corrupt payload never becomes valid by
//     retrying. Each attempt runs under a fresh context ID, since an ID is
//     unique per handover attempt.
//   - "fallback": one attempt; on error a synthesized failed TaskResult is
//     returned instead of the error, so the pipeline can continue on its
//     fallback branch. The preserved-context note travels in the result's
//     Error field.
func Retry(ctx context.Context, c *Coordinator, pc *types.PersonaContext, opts Options) (*types.TaskResult, error) {
	switch pc.Communication.ErrorHandling {
	case types.PolicyRetry:
		return retryWithBackoff(ctx, c, pc, opts)
	case types.PolicyFallback:
		result, err := c.Handover(ctx, pc, opts)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("handover %s fell back to failed result: %v", pc.Metadata.ContextID, err)
		return &types.TaskResult{
			TaskID: id.NewTaskID(),
			Status: types.StatusFailed,
			Error:  err.Error(),
		}, nil
	default:
		return c.Handover(ctx, pc, opts)
	}
}

func retryWithBackoff(ctx context.Context, c *Coordinator, pc *types.PersonaContext, opts Options) (*types.TaskResult, error) {
	maxAttempts := pc.Communication.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(30*time.Second),
	), ctx)

	var result *types.TaskResult
	attempt := 0
	operation := func() error {
		attempt++
		candidate := pc
		if attempt > 1 {
			// A context ID identifies one handover attempt, so each retry
			// carries a fresh one on a shallow copy.
			clone := *pc
			clone.Metadata.ContextID = id.NewContextID()
			clone.Metadata.CreatedAt = time.Now()
			candidate = &clone
			c.logger.Info("retrying handover as %s (attempt %d/%d)",
				clone.Metadata.ContextID, attempt, maxAttempts)
		}

		r, err := c.Handover(ctx, candidate, opts)
		if err != nil {
			if !batonerrors.IsRetryable(err) || attempt >= maxAttempts {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}
