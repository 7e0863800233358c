package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Guard runs outbound calls under a retry policy and, optionally, one circuit
// breaker per operation name.
type Guard struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(policy Policy) *Guard {
	return &Guard{
		policy:   policy.withDefaults(),
		breakers: map[string]*gobreaker.CircuitBreaker[struct{}]{},
	}
}

// Do calls fn until it succeeds, the classifier stops it, attempts run out or ctx ends.
// A nil classifier fails on the first error.
func (g *Guard) Do(ctx context.Context, op string, classify Classifier, fn func(context.Context) error) error {
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unnamed"
	}
	if classify == nil {
		classify = func(error) Verdict { return Fail }
	}
	if !g.policy.Breaker.Enabled {
		return g.retry(ctx, op, classify, fn)
	}
	_, err := g.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, g.retry(ctx, op, classify, fn)
	})
	return err
}

func (g *Guard) retry(ctx context.Context, op string, classify Classifier, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if classify(lastErr) != Retry || attempt == g.policy.Attempts {
			return lastErr
		}

		wait := g.policy.Backoff.Delay(attempt)
		slog.Warn("guard_retry",
			"operation", op,
			"attempt", attempt,
			"max_attempts", g.policy.Attempts,
			"wait_ms", wait.Milliseconds(),
			"error", lastErr,
		)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (g *Guard) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[op]; ok {
		return cb
	}
	b := g.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: b.HalfOpenCalls,
		Timeout:     b.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= b.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= b.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || classify(err) == Abort
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("guard_breaker_state", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	g.breakers[op] = cb
	return cb
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
