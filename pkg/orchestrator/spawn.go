package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"

	errs "github.com/jzx17/workchan/internal/errors"
	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/queue"
	"github.com/jzx17/workchan/pkg/result"
	"github.com/jzx17/workchan/pkg/retry"
	"github.com/jzx17/workchan/pkg/types"
	"github.com/jzx17/workchan/pkg/worker"
)

// ProducerFunc pushes items through its Emitter and returns when done
type ProducerFunc[T any] func(ctx context.Context, emit *Emitter[T]) error

// ConsumerFunc handles one popped item
type ConsumerFunc[T any] func(ctx context.Context, item T) error

// TaskFunc computes a single value
type TaskFunc[R any] func(ctx context.Context) (R, error)

// Emitter is a producer's handle on its queue
type Emitter[T any] struct {
	o       *Orchestrator
	q       *queue.Queue[T]
	id      types.WorkerID
	limiter *rate.Limiter
	emitted atomic.Int64
}

// Emit pushes item onto the queue, waiting for the producer rate limiter
// first if one is configured. It returns types.ErrClosed once the queue was
// closed by Cancel.
func (e *Emitter[T]) Emit(ctx context.Context, item T) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := e.q.Push(item); err != nil {
		return err
	}
	e.emitted.Add(1)
	e.o.obs.ItemProduced(e.o.ctx, e.id)
	return nil
}

// ID returns the producer's worker ID
func (e *Emitter[T]) ID() types.WorkerID {
	return e.id
}

// Emitted returns how many items this producer pushed
func (e *Emitter[T]) Emitted() int {
	return int(e.emitted.Load())
}

// SpawnProducer starts a producer feeding q. The queue is closed once every
// producer of the orchestrator has returned.
func SpawnProducer[T any](o *Orchestrator, q *queue.Queue[T], name string, fn ProducerFunc[T]) (*worker.Handle, error) {
	if q == nil || fn == nil {
		return nil, types.ErrInvalidInput
	}

	var limiter *rate.Limiter
	if o.cfg.ProduceRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.cfg.ProduceRate), o.cfg.ProduceBurst)
	}

	return o.spawn(types.RoleProducer, name, q, func(id types.WorkerID) worker.Func {
		em := &Emitter[T]{o: o, q: q, id: id, limiter: limiter}
		return func(ctx context.Context) error {
			err := fn(ctx, em)
			if err != nil && o.shutdown.Load() && isShutdownErr(err) {
				log.DebugLog.Printf("%s: stopped by shutdown after %d items", id, em.Emitted())
				return nil
			}
			return err
		}
	})
}

// isShutdownErr reports errors a worker returns because the run was cancelled
func isShutdownErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, types.ErrClosed)
}

// SpawnConsumer starts a consumer loop on q. It pops with a bounded wait of
// Config.PollInterval and calls fn for every item until the queue is closed
// and drained, the orchestrator is cancelled, or the error handler stops it.
func SpawnConsumer[T any](o *Orchestrator, q *queue.Queue[T], name string, fn ConsumerFunc[T]) (*worker.Handle, error) {
	if q == nil || fn == nil {
		return nil, types.ErrInvalidInput
	}

	return o.spawn(types.RoleConsumer, name, q, func(id types.WorkerID) worker.Func {
		return func(ctx context.Context) error {
			return consume(ctx, o, id, q, fn)
		}
	})
}

func consume[T any](ctx context.Context, o *Orchestrator, id types.WorkerID, q *queue.Queue[T], fn ConsumerFunc[T]) error {
	liveness := log.NewEveryWithClock(o.cfg.LivenessLogInterval, o.clock)
	failures := 0
	consumed := 0

	for {
		if o.shutdown.Load() {
			log.DebugLog.Printf("%s: shutdown after %d items", id, consumed)
			return nil
		}

		item, ok, err := q.PopTimed(ctx, o.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, types.ErrClosed) || ctx.Err() != nil {
				log.DebugLog.Printf("%s: queue done after %d items", id, consumed)
				return nil
			}
			return err
		}
		if !ok {
			if liveness.ShouldLog() {
				log.InfoLog.Printf("%s: waiting for items (%d consumed)", id, consumed)
			}
			continue
		}

		start := o.clock.Now()
		herr := callConsumer(ctx, fn, item)
		o.obs.ItemConsumed(o.ctx, id, o.clock.Since(start), herr)
		consumed++
		if herr == nil {
			continue
		}

		failures++
		errCtx := errs.NewErrorContext(herr, id, item, o.clock.Now(), failures)
		if stop := o.handler.HandleError(ctx, errCtx); stop != nil {
			log.WarningLog.Printf("%s: stopping after error: %v", id, stop)
			// the worker boxes stop; keep the item's own failure when stop does not carry it
			if !errors.Is(stop, herr) {
				o.box.Deposit(herr, id)
			}
			return stop
		}
		o.box.Deposit(herr, id)
	}
}

// callConsumer runs fn for one item; a panic fails only that item
func callConsumer[T any](ctx context.Context, fn ConsumerFunc[T], item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewPanicError(r)
		}
	}()
	return fn(ctx, item)
}

// TaskOption configures SpawnTask
type TaskOption func(*taskOptions)

type taskOptions struct {
	policy retry.Policy
}

// WithRetry re-runs a failing task under policy before reporting its error
func WithRetry(policy retry.Policy) TaskOption {
	return func(o *taskOptions) {
		o.policy = policy
	}
}

// SpawnTask starts a worker computing one value. The outcome is written to
// the returned channel exactly once; a failure is also boxed.
func SpawnTask[R any](o *Orchestrator, name string, fn TaskFunc[R], opts ...TaskOption) (*result.Channel[R], *worker.Handle, error) {
	if fn == nil {
		return nil, nil, types.ErrInvalidInput
	}
	var to taskOptions
	for _, opt := range opts {
		opt(&to)
	}

	ch := result.New[R](result.WithClock(o.clock))
	run := fn
	if to.policy != nil {
		executor := retry.NewExecutor(to.policy, retry.WithClock(o.clock), retry.WithName("task "+name))
		run = func(ctx context.Context) (R, error) {
			return retry.Execute(executor, ctx, retry.ExecuteFunc[R](fn))
		}
	}

	h, err := o.spawn(types.RoleTask, name, nil, func(types.WorkerID) worker.Func {
		return func(ctx context.Context) error {
			return fulfil(ctx, ch, run)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, h, nil
}

// fulfil runs fn and writes its outcome to ch, converting a panic into a
// *types.PanicError on the channel. The error is returned for boxing.
func fulfil[R any](ctx context.Context, ch *result.Channel[R], fn TaskFunc[R]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := types.NewPanicError(r)
			_ = ch.SetError(pe)
			err = pe
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		_ = ch.SetError(err)
		return err
	}
	return ch.SetValue(v)
}

// Async runs fn on its own goroutine and returns the channel carrying its
// outcome. The caller joins it through Get, WaitFor or Done.
func Async[R any](ctx context.Context, fn TaskFunc[R]) *result.Channel[R] {
	return AsyncWithClock(ctx, nil, fn)
}

// AsyncWithClock is Async with the channel's WaitFor driven by clock
func AsyncWithClock[R any](ctx context.Context, clock types.Clock, fn TaskFunc[R]) *result.Channel[R] {
	ch := result.New[R](result.WithClock(clock))
	if fn == nil {
		_ = ch.SetError(types.ErrInvalidInput)
		return ch
	}
	go func() {
		if err := fulfil(ctx, ch, fn); err != nil {
			log.DebugLog.Printf("async: %v", err)
		}
	}()
	return ch
}
