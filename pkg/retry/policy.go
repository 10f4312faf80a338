// Package retry re-runs a failing task function according to a Policy.
//
// A policy decides whether an error is worth another attempt and how long to
// wait before it. Execute drives the attempts on a types.Clock so waits can be
// replayed deterministically in tests:
//
//	policy := retry.NewExponentialBackoff(3, 100*time.Millisecond)
//	executor := retry.NewExecutor(policy)
//	v, err := retry.Execute(executor, ctx, func(ctx context.Context) (int, error) {
//		return fetch(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

// Policy defines the retry strategy interface
type Policy interface {
	// ShouldRetry determines whether attempt number attempt, which failed
	// with err, is followed by another one
	ShouldRetry(err error, attempt int) bool

	// NextDelay returns the wait before the attempt after attempt
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of attempts, first one included
	MaxAttempts() int
}

// Condition reports whether an error is retryable
type Condition func(error) bool

// basePolicy carries the settings shared by every policy
type basePolicy struct {
	maxAttempts  int
	condition    Condition
	jitterFactor float64
}

func newBasePolicy(maxAttempts int, opts []PolicyOption) basePolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := basePolicy{
		maxAttempts: maxAttempts,
		condition:   DefaultCondition,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// ShouldRetry determines whether to retry
func (p *basePolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	return p.condition(err)
}

// MaxAttempts returns the maximum attempts
func (p *basePolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *basePolicy) jitter(delay time.Duration) time.Duration {
	if p.jitterFactor <= 0 {
		return delay
	}
	spread := float64(delay) * p.jitterFactor
	out := delay + time.Duration((rand.Float64()-0.5)*2*spread)
	if out < 0 {
		return delay / 2
	}
	return out
}

// FixedDelay waits the same delay before every retry
type FixedDelay struct {
	basePolicy
	delay time.Duration
}

// NewFixedDelay creates a fixed delay policy
func NewFixedDelay(maxAttempts int, delay time.Duration, opts ...PolicyOption) *FixedDelay {
	return &FixedDelay{
		basePolicy: newBasePolicy(maxAttempts, opts),
		delay:      delay,
	}
}

// NextDelay returns the delay for the next retry
func (p *FixedDelay) NextDelay(int) time.Duration {
	return p.jitter(p.delay)
}

// ExponentialBackoff multiplies the delay after every failed attempt, up to
// a ceiling
type ExponentialBackoff struct {
	basePolicy
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
}

// NewExponentialBackoff creates an exponential backoff policy with a
// multiplier of 2 and a 30s ceiling
func NewExponentialBackoff(maxAttempts int, initialDelay time.Duration, opts ...PolicyOption) *ExponentialBackoff {
	return &ExponentialBackoff{
		basePolicy:   newBasePolicy(maxAttempts, opts),
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     30 * time.Second,
	}
}

// WithMultiplier sets the growth factor
func (p *ExponentialBackoff) WithMultiplier(m float64) *ExponentialBackoff {
	if m >= 1 {
		p.multiplier = m
	}
	return p
}

// WithMaxDelay sets the delay ceiling
func (p *ExponentialBackoff) WithMaxDelay(d time.Duration) *ExponentialBackoff {
	if d > 0 {
		p.maxDelay = d
	}
	return p
}

// NextDelay returns the delay for the next retry
func (p *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1)))
	if delay > p.maxDelay || delay < 0 {
		delay = p.maxDelay
	}
	return p.jitter(delay)
}

// PolicyOption is a configuration option for retry policies
type PolicyOption func(*basePolicy)

// WithCondition sets the retry condition
func WithCondition(condition Condition) PolicyOption {
	return func(p *basePolicy) {
		if condition != nil {
			p.condition = condition
		}
	}
}

// WithJitter spreads each delay uniformly by +/- factor of itself
func WithJitter(factor float64) PolicyOption {
	return func(p *basePolicy) {
		if factor > 0 && factor <= 1.0 {
			p.jitterFactor = factor
		}
	}
}

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so DefaultCondition refuses to retry it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// DefaultCondition retries every error except cancellation, closed queues,
// recovered panics and errors wrapped with Permanent.
func DefaultCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, types.ErrClosed) {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var pe *types.PanicError
	return !errors.As(err, &pe)
}
