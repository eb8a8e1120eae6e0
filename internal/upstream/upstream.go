// Package upstream bounds calls to external services: each attempt gets a
// timeout, a failed attempt is retried once after a backoff, and a shared
// semaphore caps how many calls are in flight across all calls.
package upstream

import (
	"context"
	"errors"
	"time"

	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"
	"barberline/pkg/metrics"

	"golang.org/x/sync/semaphore"
)

const (
	LLM       = "language model"
	Embedding = "embedding service"
	Synthesis = "speech synthesis"
)

// Attempt is passed to the wrapped function. Degraded is set on the retry so
// the caller can send a smaller request, such as a prompt without context.
type Attempt struct {
	Number   int
	Degraded bool
}

type Policy struct {
	Timeout time.Duration
	Backoff time.Duration
}

type Guard struct {
	name   string
	policy Policy
	sem    *semaphore.Weighted
	log    *logger.Logger
}

// NewLimiter returns the semaphore shared by every Guard of one process.
func NewLimiter(concurrency int) *semaphore.Weighted {
	if concurrency <= 0 {
		concurrency = 1
	}
	return semaphore.NewWeighted(int64(concurrency))
}

func NewGuard(name string, policy Policy, limiter *semaphore.Weighted, log *logger.Logger) *Guard {
	return &Guard{name: name, policy: policy, sem: limiter, log: log}
}

func (g *Guard) Name() string {
	return g.name
}

// Call runs fn under g's policy. The final failure is reported as an
// UpstreamTimeout AppError naming the upstream.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context, a Attempt) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for n := 1; n <= 2; n++ {
		if n == 2 {
			select {
			case <-ctx.Done():
				return zero, apperrors.UpstreamTimeout(g.name, ctx.Err())
			case <-time.After(g.policy.Backoff):
			}
		}

		out, err := runAttempt(ctx, g, fn, Attempt{Number: n, Degraded: n > 1})
		if err == nil {
			metrics.UpstreamCalls.WithLabelValues(g.name, outcome(n, nil)).Inc()
			return out, nil
		}
		lastErr = err
		metrics.UpstreamCalls.WithLabelValues(g.name, outcome(n, err)).Inc()
		g.log.Warn("Upstream call failed",
			"upstream", g.name,
			"attempt", n,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	return zero, apperrors.UpstreamTimeout(g.name, lastErr)
}

func runAttempt[T any](ctx context.Context, g *Guard, fn func(ctx context.Context, a Attempt) (T, error), a Attempt) (T, error) {
	var zero T
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return zero, err
		}
		defer g.sem.Release(1)
	}

	attemptCtx := ctx
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}
	return fn(attemptCtx, a)
}

func outcome(n int, err error) string {
	switch {
	case err == nil && n == 1:
		return "ok"
	case err == nil:
		return "ok_after_retry"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
