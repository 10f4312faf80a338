package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/errbox"
	"github.com/jzx17/workchan/pkg/types"
)

// ErrAlreadyStarted is returned by Start on a handle that already ran
var ErrAlreadyStarted = errors.New("worker already started")

// State defines the state of a worker
type State int32

const (
	// StateIdle means the handle was created but its goroutine not started
	StateIdle State = iota
	// StateRunning means the worker function is executing
	StateRunning
	// StateFinished means the worker function returned or panicked
	StateFinished
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Func is the body of a worker
type Func func(ctx context.Context) error

// Group launches goroutines; *errgroup.Group satisfies it
type Group interface {
	Go(f func() error)
}

// Option configures a Handle
type Option func(*Handle)

// WithBox deposits the worker's error or recovered panic into box
func WithBox(box *errbox.Box) Option {
	return func(h *Handle) {
		h.box = box
	}
}

// WithClock sets the clock used for start and finish timestamps
func WithClock(clock types.Clock) Option {
	return func(h *Handle) {
		h.clock = clock
	}
}

// WithGroup starts the goroutine through g instead of a bare go statement
func WithGroup(g Group) Option {
	return func(h *Handle) {
		h.group = g
	}
}

// WithOnFinish registers a callback run on the worker goroutine after fn
// returns and before Done is closed.
func WithOnFinish(fn func(h *Handle, elapsed time.Duration, err error)) Option {
	return func(h *Handle) {
		h.onFinish = fn
	}
}

// Handle owns one worker goroutine. A handle is started once and must be
// joined by its owner; it is never detached.
type Handle struct {
	id    types.WorkerID
	fn    Func
	state int32 // atomic State
	done  chan struct{}

	box      *errbox.Box
	clock    types.Clock
	group    Group
	onFinish func(*Handle, time.Duration, error)

	mu         sync.Mutex
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// New creates an idle handle for fn
func New(id types.WorkerID, fn Func, opts ...Option) *Handle {
	h := &Handle{
		id:   id,
		fn:   fn,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.clock = types.OrRealClock(h.clock)
	return h
}

// Spawn creates a handle and starts it immediately. Calling Start on the
// returned handle again reports ErrAlreadyStarted.
func Spawn(ctx context.Context, id types.WorkerID, fn Func, opts ...Option) *Handle {
	h := New(id, fn, opts...)
	// Start only fails on a handle that left StateIdle; h was created above
	_ = h.Start(ctx)
	return h
}

// ID returns the worker ID
func (h *Handle) ID() types.WorkerID {
	return h.id
}

// Role returns the role the worker plays
func (h *Handle) Role() types.Role {
	return h.id.Role
}

// State returns the current worker state
func (h *Handle) State() State {
	return State(atomic.LoadInt32(&h.state))
}

// Start launches the worker goroutine. It returns ErrAlreadyStarted if the
// handle is not idle.
func (h *Handle) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&h.state, int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	h.mu.Lock()
	h.startedAt = h.clock.Now()
	h.mu.Unlock()

	body := func() error {
		h.run(ctx)
		return nil
	}
	if h.group != nil {
		h.group.Go(body)
	} else {
		go func() { _ = body() }()
	}
	return nil
}

// run executes fn and boxes whatever it reports. Nothing unwinds past it.
func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	log.DebugLog.Printf("%s: started", h.id)
	err := h.execute(ctx)
	finishedAt := h.clock.Now()

	h.mu.Lock()
	h.err = err
	h.finishedAt = finishedAt
	elapsed := finishedAt.Sub(h.startedAt)
	h.mu.Unlock()

	atomic.StoreInt32(&h.state, int32(StateFinished))

	if err != nil {
		if h.box != nil {
			h.box.Deposit(err, h.id)
		}
		log.WarningLog.Printf("%s: finished with error: %v", h.id, err)
	} else {
		log.DebugLog.Printf("%s: finished", h.id)
	}

	if h.onFinish != nil {
		h.onFinish(h, elapsed, err)
	}
}

// execute runs fn with panic recovery
func (h *Handle) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := types.NewPanicError(r)
			log.ErrorLog.Printf("%s: recovered panic: %v\n%s", h.id, r, pe.Stack)
			err = pe
		}
	}()

	if h.fn == nil {
		return types.ErrInvalidInput
	}
	return h.fn(ctx)
}

// Done returns a channel closed once the worker has finished
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Join blocks until the worker finishes or ctx ends. It returns ctx.Err()
// only when ctx ended first; the worker's own outcome is reported through
// its box, or Err.
func (h *Handle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		select {
		case <-h.done:
			return nil
		default:
			return ctx.Err()
		}
	}
}

// Err returns what the worker function returned, or a *types.PanicError if
// it panicked. It is nil until the worker has finished.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stats gets worker statistics
func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		ID:         h.id,
		State:      h.State(),
		StartedAt:  h.startedAt,
		FinishedAt: h.finishedAt,
		Err:        h.err,
	}
}

// Stats is a snapshot of one worker
type Stats struct {
	ID         types.WorkerID
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Duration returns how long the worker ran; zero until it finished
func (s Stats) Duration() time.Duration {
	if s.State != StateFinished {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Failed reports whether the worker finished with an error or a panic
func (s Stats) Failed() bool {
	return s.Err != nil
}

// JoinAll joins every handle in order. It stops at the first ctx error.
func JoinAll(ctx context.Context, handles []*Handle) error {
	for _, h := range handles {
		if err := h.Join(ctx); err != nil {
			return err
		}
	}
	return nil
}
