package coordinator

import (
	"context"
	"fmt"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
)

// attempt runs req against the region's store, retrying transient failures
// up to the region's max_retry_limit additional times. There is no backoff;
// the caller blocks for the whole loop.
func (c *Coordinator) attempt(ctx context.Context, rt *region, req memory.Request) (memory.Result, error) {
	limit := rt.cfg.MaxRetryLimit
	logger := tracing.LoggerFromContext(ctx, c.logger)

	var lastErr error
	for attempt := 1; ; attempt++ {
		res, err := rt.store.Apply(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		// Validation and not-found errors surface unmodified
		if !memory.IsTransient(err) {
			return memory.Result{}, err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return memory.Result{}, fmt.Errorf("%s %s: %w after %d attempts (last error: %v)",
				rt.name, req.Op, ctxErr, attempt, lastErr)
		}

		if attempt > limit {
			observability.RecordRetryExhausted(string(rt.name))
			logger.Warn().
				Err(err).
				Str("op", string(req.Op)).
				Int("attempts", attempt).
				Msg("Retry limit exceeded")
			return memory.Result{}, &memory.RetryError{
				Region:   rt.name,
				Op:       req.Op,
				Attempts: attempt,
				Err:      lastErr,
			}
		}

		observability.RecordRetry(string(rt.name))
		logger.Debug().
			Err(err).
			Str("op", string(req.Op)).
			Int("attempt", attempt).
			Int("limit", limit).
			Msg("Retrying after transient failure")
	}
}
