// Package result provides a one-shot channel carrying either a value or an
// error from one goroutine to any number of readers.
package result

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

// Status is the outcome of a bounded wait
type Status int

const (
	// Timeout means the channel was still unset when the wait ended
	Timeout Status = iota
	// Ready means the channel holds a value or an error
	Ready
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Promise is the write side of a Channel
type Promise[T any] interface {
	SetValue(v T) error
	SetError(err error) error
}

// Future is the read side of a Channel
type Future[T any] interface {
	Get(ctx context.Context) (T, error)
	WaitFor(timeout time.Duration) Status
	Done() <-chan struct{}
}

// Option configures a Channel
type Option func(*options)

type options struct {
	clock types.Clock
}

// WithClock sets the clock used by WaitFor
func WithClock(clock types.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Channel is a single-use slot written exactly once with a value or an
// error. Reads block until the slot is written and may be repeated; every
// read observes the same outcome.
type Channel[T any] struct {
	mu        sync.Mutex
	fulfilled bool
	value     T
	err       error
	done      chan struct{} // closed once fulfilled

	clock types.Clock
}

// New creates an unset Channel
func New[T any](opts ...Option) *Channel[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel[T]{
		done:  make(chan struct{}),
		clock: types.OrRealClock(o.clock),
	}
}

// SetValue fulfils the channel with v. It returns types.ErrAlreadySatisfied
// if the channel was already written; the earlier outcome is kept.
func (c *Channel[T]) SetValue(v T) error {
	return c.fulfil(v, nil)
}

// SetError fulfils the channel with err. A nil err is rejected with
// types.ErrInvalidInput since readers could not tell it from a value.
func (c *Channel[T]) SetError(err error) error {
	if err == nil {
		return fmt.Errorf("set error: nil error: %w", types.ErrInvalidInput)
	}
	var zero T
	return c.fulfil(zero, err)
}

func (c *Channel[T]) fulfil(v T, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fulfilled {
		return types.ErrAlreadySatisfied
	}
	c.value = v
	c.err = err
	c.fulfilled = true
	close(c.done)
	return nil
}

// Get blocks until the channel is fulfilled and returns the stored value, or
// the stored error unchanged. If ctx ends first Get returns ctx.Err().
func (c *Channel[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		// prefer a result that is already there
		select {
		case <-c.done:
		default:
			var zero T
			return zero, ctx.Err()
		}
	}
	return c.load()
}

// WaitFor waits at most timeout for the channel to be fulfilled. It does not
// consume anything; after Ready, Get returns without blocking.
func (c *Channel[T]) WaitFor(timeout time.Duration) Status {
	select {
	case <-c.done:
		return Ready
	default:
	}
	if timeout <= 0 {
		return Timeout
	}

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return Ready
	case <-timer.C():
		return Timeout
	}
}

// Done returns a channel closed once the result is available
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// IsReady reports whether the channel has been fulfilled
func (c *Channel[T]) IsReady() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel[T]) load() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.err
}

var (
	_ Promise[int] = (*Channel[int])(nil)
	_ Future[int]  = (*Channel[int])(nil)
)
