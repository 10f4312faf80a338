package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jzx17/workchan/internal/cond"
	"github.com/jzx17/workchan/pkg/types"
)

// Option configures a Queue
type Option func(*options)

type options struct {
	clock           types.Clock
	broadcastOnPush bool
	initialCapacity int
}

// WithClock sets the clock used by PopTimed
func WithClock(clock types.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithBroadcastOnPush makes Push wake every waiting consumer instead of one.
// Each item is still delivered to exactly one consumer; the others re-check
// and go back to sleep.
func WithBroadcastOnPush(enabled bool) Option {
	return func(o *options) {
		o.broadcastOnPush = enabled
	}
}

// WithInitialCapacity pre-allocates room for n items
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCapacity = n
		}
	}
}

// Queue is a mutex and condition-variable protected FIFO buffer.
//
// Items are delivered in the order their Push acquired the lock. Close stops
// new pushes but pending items are still delivered; only a closed and
// drained queue reports types.ErrClosed to consumers.
type Queue[T any] struct {
	mu     sync.Mutex
	ready  *cond.Cond // items available or queue closed
	items  []T
	head   int
	closed bool

	clock     types.Clock
	broadcast bool
}

// New creates an empty open queue
func New[T any](opts ...Option) *Queue[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	q := &Queue[T]{
		items:     make([]T, 0, o.initialCapacity),
		clock:     types.OrRealClock(o.clock),
		broadcast: o.broadcastOnPush,
	}
	q.ready = cond.New(&q.mu)
	return q
}

// Push appends item to the back of the queue and wakes a waiting consumer.
// It never blocks. Pushing to a closed queue returns types.ErrClosed.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return types.ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	if q.broadcast {
		q.ready.Broadcast()
	} else {
		q.ready.Signal()
	}
	return nil
}

// Pop removes and returns the front item, blocking while the queue is empty
// and open. It returns types.ErrClosed once the queue is closed and drained,
// or ctx.Err() if ctx ends first.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size() == 0 && !q.closed {
		if err := q.ready.Wait(ctx, nil); err != nil {
			var zero T
			return zero, err
		}
	}
	return q.takeLocked()
}

// PopTimed is Pop with the wait bounded by timeout. When the timeout elapses
// with nothing to deliver it returns ok=false and a nil error, so a consumer
// loop can do housekeeping and come back.
func (q *Queue[T]) PopTimed(ctx context.Context, timeout time.Duration) (item T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size() == 0 && !q.closed {
		deadline := q.clock.Now().Add(timeout)
		timer := q.clock.NewTimer(timeout)
		defer timer.Stop()

		for q.size() == 0 && !q.closed {
			// a wakeup that raced the timer may have consumed its only tick
			if !q.clock.Now().Before(deadline) {
				return item, false, nil
			}
			werr := q.ready.Wait(ctx, timer.C())
			if errors.Is(werr, types.ErrTimeout) {
				return item, false, nil
			}
			if werr != nil {
				return item, false, werr
			}
		}
	}

	item, err = q.takeLocked()
	return item, err == nil, err
}

// TryPop returns the front item without waiting. ok is false when the queue
// is empty and open.
func (q *Queue[T]) TryPop() (item T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size() == 0 && !q.closed {
		return item, false, nil
	}
	item, err = q.takeLocked()
	return item, err == nil, err
}

// Close marks the queue as shut down and wakes every waiting consumer.
// It is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.ready.Broadcast()
}

// Len returns the number of items waiting to be popped
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

// IsClosed reports whether Close has been called
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) size() int {
	return len(q.items) - q.head
}

// takeLocked pops the front item; q.mu must be held.
func (q *Queue[T]) takeLocked() (T, error) {
	var zero T
	if q.size() == 0 {
		return zero, types.ErrClosed
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// reclaim the consumed prefix once it dominates the backing array
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, nil
}
