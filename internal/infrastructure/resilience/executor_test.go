package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
		Multiplier:      2,
		BreakerDisabled: true,
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	errFlaky := errors.New("flaky")
	exec := NewExecutor("upstream", fastPolicy(), func(err error) Verdict {
		return Verdict{Retry: errors.Is(err, errFlaky), CountAgainstBreaker: true}
	}, nil)

	attempts := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want success after retries", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	errBadRequest := errors.New("bad request")
	exec := NewExecutor("upstream", fastPolicy(), func(error) Verdict {
		return Verdict{Retry: false}
	}, nil)

	attempts := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		attempts++
		return errBadRequest
	})
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("Do() error = %v, want %v", err, errBadRequest)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	errFlaky := errors.New("flaky")
	exec := NewExecutor("upstream", fastPolicy(), func(error) Verdict {
		return Verdict{Retry: true}
	}, nil)

	attempts := 0
	err := exec.Do(context.Background(), func(context.Context) error {
		attempts++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("Do() error = %v, want %v", err, errFlaky)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoRespectsCancelledContext(t *testing.T) {
	exec := NewExecutor("upstream", fastPolicy(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if called {
		t.Fatal("callback must not run under a cancelled context")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	errDown := errors.New("upstream down")
	exec := NewExecutor("upstream", Policy{
		MaxAttempts:      1,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       time.Millisecond,
		Multiplier:       2,
		MinRequests:      2,
		FailureRatio:     0.5,
		OpenTimeout:      50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	}, func(error) Verdict {
		return Verdict{CountAgainstBreaker: true}
	}, nil)

	for i := 0; i < 2; i++ {
		if err := exec.Do(context.Background(), func(context.Context) error {
			return errDown
		}); !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: Do() error = %v, want %v", i, err, errDown)
		}
	}

	err := exec.Do(context.Background(), func(context.Context) error {
		t.Fatal("open breaker must not invoke the callback")
		return nil
	})
	if !CircuitOpen(err) {
		t.Fatalf("Do() error = %v, want open-circuit error", err)
	}
}

func TestBreakerIgnoresExcludedErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	exec := NewExecutor("upstream", Policy{
		MaxAttempts:      1,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       time.Millisecond,
		Multiplier:       2,
		MinRequests:      2,
		FailureRatio:     0.5,
		OpenTimeout:      50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	}, func(error) Verdict {
		return Verdict{CountAgainstBreaker: false}
	}, nil)

	for i := 0; i < 5; i++ {
		if err := exec.Do(context.Background(), func(context.Context) error {
			return errNotFound
		}); !errors.Is(err, errNotFound) {
			t.Fatalf("iteration %d: Do() error = %v, want %v", i, err, errNotFound)
		}
	}
}
