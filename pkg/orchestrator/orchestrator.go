package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	errs "github.com/jzx17/workchan/internal/errors"
	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/errbox"
	"github.com/jzx17/workchan/pkg/types"
	"github.com/jzx17/workchan/pkg/worker"
)

var (
	// ErrNotAcceptingWorkers is returned by the spawn functions once
	// RunToCompletion has begun
	ErrNotAcceptingWorkers = errors.New("orchestrator is not accepting workers")

	// ErrAlreadyRun is returned by a second RunToCompletion call
	ErrAlreadyRun = errors.New("orchestrator already ran to completion")
)

// State is the orchestrator lifecycle state
type State int32

const (
	// StateIdle means no worker was spawned yet
	StateIdle State = iota
	// StateRunning means workers are running and producers may still push
	StateRunning
	// StateDraining means every producer returned and the queues are closed
	StateDraining
	// StateJoined means every worker was joined
	StateJoined
	// StateReported means the boxed failures were drained and reported
	StateReported
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateJoined:
		return "joined"
	case StateReported:
		return "reported"
	default:
		return "unknown"
	}
}

// closer is the part of a queue the orchestrator needs to shut it down
type closer interface {
	Close()
}

// Orchestrator owns a set of producer, consumer and task workers, the
// failure box they share, and the queues that connect them. It joins every
// worker before reporting.
type Orchestrator struct {
	cfg     Config
	ctx     context.Context
	cancel  context.CancelCauseFunc
	clock   types.Clock
	obs     Observer
	handler errs.ErrorHandler

	state    int32 // atomic State
	shutdown atomic.Bool
	box      *errbox.Box

	producers errgroup.Group // producer goroutines
	workers   errgroup.Group // consumer and task goroutines

	mu        sync.Mutex
	accepting bool
	handles   []*worker.Handle
	queues    []closer
	queueSet  map[closer]struct{}
	seq       map[types.Role]int
}

// New creates an idle orchestrator. A nil config means DefaultConfig().
func New(cfg *Config) (*Orchestrator, error) {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext creates an idle orchestrator whose workers run under a
// context derived from parent.
func NewWithContext(parent context.Context, cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancelCause(parent)
	o := &Orchestrator{
		cfg:       *cfg,
		ctx:       ctx,
		cancel:    cancel,
		clock:     types.OrRealClock(cfg.Clock),
		obs:       cfg.Observer,
		handler:   cfg.ConsumerErrorHandler,
		accepting: true,
		queueSet:  make(map[closer]struct{}),
		seq:       make(map[types.Role]int),
	}
	if o.obs == nil {
		o.obs = NopObserver{}
	}
	if o.handler == nil {
		o.handler = errs.NewHandler(cfg.ConsumerErrorStrategy)
	}
	o.box = errbox.NewWithClock(o.clock)
	return o, nil
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	return State(atomic.LoadInt32(&o.state))
}

// Box returns the failure box shared by every worker
func (o *Orchestrator) Box() *errbox.Box {
	return o.box
}

// Context returns the context workers run under
func (o *Orchestrator) Context() context.Context {
	return o.ctx
}

// Handles returns every spawned worker in spawn order
func (o *Orchestrator) Handles() []*worker.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*worker.Handle, len(o.handles))
	copy(out, o.handles)
	return out
}

// IsAccepting reports whether spawn calls are still accepted
func (o *Orchestrator) IsAccepting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.accepting
}

// IsShutdown reports whether Cancel was called
func (o *Orchestrator) IsShutdown() bool {
	return o.shutdown.Load()
}

func (o *Orchestrator) setState(to State) {
	from := State(atomic.SwapInt32(&o.state, int32(to)))
	if from != to {
		log.DebugLog.Printf("orchestrator: %s -> %s", from, to)
		o.obs.StateChanged(o.ctx, from, to)
	}
}

// spawn registers and starts a worker. build receives the worker's ID before
// the goroutine starts. q, when non-nil, is closed once the producers are
// done, or on Cancel.
func (o *Orchestrator) spawn(role types.Role, name string, q closer, build func(types.WorkerID) worker.Func) (*worker.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.accepting {
		return nil, ErrNotAcceptingWorkers
	}
	if atomic.CompareAndSwapInt32(&o.state, int32(StateIdle), int32(StateRunning)) {
		o.obs.StateChanged(o.ctx, StateIdle, StateRunning)
	}

	if q != nil {
		if _, ok := o.queueSet[q]; !ok {
			o.queueSet[q] = struct{}{}
			o.queues = append(o.queues, q)
		}
		// a late registration on a cancelled run must not leave its queue open
		if o.shutdown.Load() {
			q.Close()
		}
	}

	id := types.WorkerID{Seq: o.seq[role], Role: role, Name: name}
	o.seq[role]++

	group := &o.workers
	if role == types.RoleProducer {
		group = &o.producers
	}
	h := worker.New(id, build(id),
		worker.WithBox(o.box),
		worker.WithClock(o.clock),
		worker.WithGroup(group),
		worker.WithOnFinish(o.workerFinished),
	)
	o.handles = append(o.handles, h)

	o.obs.WorkerStarted(o.ctx, id)
	if err := h.Start(o.ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (o *Orchestrator) workerFinished(h *worker.Handle, elapsed time.Duration, err error) {
	var pe *types.PanicError
	o.obs.WorkerFinished(o.ctx, h.ID(), elapsed, err, errors.As(err, &pe))
}

// Cancel requests cooperative shutdown: the shutdown flag is set, the worker
// context is cancelled with cause, and every registered queue is closed.
// Consumers stop at their next iteration. It is idempotent.
func (o *Orchestrator) Cancel(cause error) {
	if !o.shutdown.CompareAndSwap(false, true) {
		return
	}
	if cause == nil {
		cause = context.Canceled
	}
	log.InfoLog.Printf("orchestrator: cancelled: %v", cause)
	o.cancel(cause)
	o.closeQueues()
	o.obs.RunCancelled(o.ctx, cause)
}

func (o *Orchestrator) closeQueues() {
	o.mu.Lock()
	queues := make([]closer, len(o.queues))
	copy(queues, o.queues)
	o.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

// RunToCompletion waits for every producer, closes the queues, joins every
// worker and reports the boxed failures:
//
//	Running -> Draining -> Joined -> Reported
//
// It returns nil when no worker failed. Otherwise it returns, per
// ReportPolicy, a *types.AggregateError with every failure in deposit order
// or the first *types.WorkerFailure. If ctx ends first the run is cancelled
// with ctx's cause and the joins still complete. A cancelled run without
// failures returns the cancel cause.
func (o *Orchestrator) RunToCompletion(ctx context.Context) error {
	o.mu.Lock()
	if !o.accepting {
		o.mu.Unlock()
		return ErrAlreadyRun
	}
	o.accepting = false
	o.mu.Unlock()

	o.wait(ctx, &o.producers)
	o.setState(StateDraining)
	o.closeQueues()

	o.wait(ctx, &o.workers)
	o.setState(StateJoined)

	records := o.box.Drain()
	o.setState(StateReported)
	o.obs.RunReported(o.ctx, len(records))

	if len(records) == 0 {
		if o.shutdown.Load() {
			return context.Cause(o.ctx)
		}
		return nil
	}

	failures := errbox.Failures(records)
	log.InfoLog.Printf("orchestrator: %d worker failure(s)", len(failures))
	if o.cfg.ReportPolicy == ReportFirst {
		return failures[0]
	}
	return &types.AggregateError{Failures: failures}
}

// wait blocks until g is done. If ctx ends first the run is cancelled and the
// wait continues; workers stop cooperatively.
func (o *Orchestrator) wait(ctx context.Context, g *errgroup.Group) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Wait()
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		o.Cancel(context.Cause(ctx))
	}
	<-done
}
