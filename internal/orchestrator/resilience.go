package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lessonsmith/lessonsmith/internal/agent"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// CircuitBreakerRegistry manages per-capability circuit breakers. A breaker
// tripping for one capability never blocks work routed to the others.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[agent.Capability]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[agent.Capability]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given capability.
// Creates a new one if it doesn't exist.
func (r *CircuitBreakerRegistry) Get(cap agent.Capability) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[cap]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(cap),
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Don't count caller cancellation as an executor failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[cap] = cb
	return cb
}

// resilientExecutor wraps an executor with exponential backoff retry and
// circuit breaker protection.
type resilientExecutor struct {
	inner agent.Executor
	cb    *gobreaker.CircuitBreaker
	cfg   RetryConfig
}

// WrapResilience returns an executor that retries transient failures with
// exponential backoff and stops calling the inner executor while the
// capability's circuit is open.
func WrapResilience(inner agent.Executor, cb *gobreaker.CircuitBreaker, cfg RetryConfig) agent.Executor {
	return &resilientExecutor{inner: inner, cb: cb, cfg: cfg}
}

func (r *resilientExecutor) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	var result agent.Result

	operation := func() error {
		// Fail fast if the caller already gave up
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := r.cb.Execute(func() (interface{}, error) {
			return r.inner.Execute(ctx, req)
		})

		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result = out.(agent.Result)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialInterval
	policy.MaxInterval = r.cfg.MaxInterval
	policy.MaxElapsedTime = r.cfg.MaxElapsedTime
	policy.Multiplier = r.cfg.Multiplier
	policy.RandomizationFactor = r.cfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return result, err
}
