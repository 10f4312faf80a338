package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/types"
)

// ExecuteFunc is the function type to retry
type ExecuteFunc[T any] func(ctx context.Context) (T, error)

// Stats contains retry statistics
type Stats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // calls that needed more than one attempt
	TotalSuccesses  int64         // calls that eventually succeeded
	TotalFailures   int64         // calls that gave up
	TotalRetryDelay time.Duration // time spent waiting between attempts
}

// Executor runs functions under a Policy
type Executor struct {
	policy Policy
	clock  types.Clock
	name   string

	mu    sync.Mutex
	stats Stats
}

// ExecutorOption is a configuration option for Executor
type ExecutorOption func(*Executor)

// WithClock sets the clock used to wait between attempts
func WithClock(clock types.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithName labels log lines written by the executor
func WithName(name string) ExecutorOption {
	return func(e *Executor) {
		e.name = name
	}
}

// NewExecutor creates an executor for policy
func NewExecutor(policy Policy, opts ...ExecutorOption) *Executor {
	e := &Executor{policy: policy, name: "retry"}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = types.OrRealClock(e.clock)
	return e
}

// ExhaustedError is returned when the policy gives up
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Execute calls fn until it succeeds, the policy gives up, or ctx ends.
// When the policy gives up the last error is returned wrapped in an
// *ExhaustedError.
func Execute[T any](e *Executor, ctx context.Context, fn ExecuteFunc[T]) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		e.update(func(s *Stats) { s.TotalAttempts++ })
		v, err := fn(ctx)
		if err == nil {
			e.update(func(s *Stats) {
				s.TotalSuccesses++
				if attempt > 1 {
					s.TotalRetries++
				}
			})
			if attempt > 1 {
				log.DebugLog.Printf("%s: succeeded on attempt %d", e.name, attempt)
			}
			return v, nil
		}

		if !e.policy.ShouldRetry(err, attempt) {
			e.update(func(s *Stats) {
				s.TotalFailures++
				if attempt > 1 {
					s.TotalRetries++
				}
			})
			log.WarningLog.Printf("%s: giving up after attempt %d: %v", e.name, attempt, err)
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := e.policy.NextDelay(attempt)
		e.update(func(s *Stats) { s.TotalRetryDelay += delay })
		log.DebugLog.Printf("%s: attempt %d failed, retrying in %v: %v", e.name, attempt, delay, err)
		if delay <= 0 {
			continue
		}

		timer := e.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C():
		}
	}
}

// Stats returns a snapshot of the executor statistics
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Policy returns the executor policy
func (e *Executor) Policy() Policy {
	return e.policy
}

func (e *Executor) update(fn func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.stats)
}
