// Package resilience wraps calls to flaky upstreams (openFDA, the
// generation API) with bounded retries and a per-upstream circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the executor how to treat one failure.
type Verdict struct {
	Retry               bool
	CountAgainstBreaker bool
}

// Classifier maps an upstream error to a Verdict. A nil classifier means
// no retries and every error counts against the breaker.
type Classifier func(err error) Verdict

// Executor guards a single named upstream. Build one per upstream at
// bootstrap and share it across goroutines.
type Executor struct {
	name     string
	policy   Policy
	classify Classifier
	logger   *slog.Logger
	breaker  *gobreaker.CircuitBreaker[any]
}

func NewExecutor(name string, policy Policy, classify Classifier, logger *slog.Logger) *Executor {
	policy = policy.normalize()
	if classify == nil {
		classify = func(error) Verdict { return Verdict{CountAgainstBreaker: true} }
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		name:     name,
		policy:   policy,
		classify: classify,
		logger:   logger,
	}
	if !policy.BreakerDisabled {
		e.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: policy.HalfOpenMaxCalls,
			Timeout:     policy.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < policy.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= policy.FailureRatio
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !classify(err).CountAgainstBreaker
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("breaker_state_change", "upstream", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return e
}

// Do runs fn under the retry policy and, when enabled, the breaker.
func (e *Executor) Do(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil callback for %s", e.name)
	}
	if e.breaker == nil {
		return e.retry(ctx, fn)
	}
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.retry(ctx, fn)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, fn func(context.Context) error) error {
	wait := e.policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == e.policy.MaxAttempts || !e.classify(err).Retry {
			return err
		}

		e.logger.Warn("upstream_retry",
			"upstream", e.name,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"backoff", wait.String(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		wait = time.Duration(float64(wait) * e.policy.Multiplier)
		if wait > e.policy.MaxBackoff {
			wait = e.policy.MaxBackoff
		}
	}
}

// CircuitOpen reports whether err means the breaker is rejecting calls
// before they reach the upstream.
func CircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
