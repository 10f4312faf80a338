package orchestrator

import (
	"context"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

// Observer receives orchestrator events. Methods are called from worker
// goroutines and must be safe for concurrent use.
type Observer interface {
	StateChanged(ctx context.Context, from, to State)
	WorkerStarted(ctx context.Context, id types.WorkerID)
	WorkerFinished(ctx context.Context, id types.WorkerID, dur time.Duration, err error, panicked bool)
	ItemProduced(ctx context.Context, id types.WorkerID)
	ItemConsumed(ctx context.Context, id types.WorkerID, dur time.Duration, err error)
	RunCancelled(ctx context.Context, cause error)
	RunReported(ctx context.Context, failures int)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) StateChanged(context.Context, State, State)                                 {}
func (NopObserver) WorkerStarted(context.Context, types.WorkerID)                              {}
func (NopObserver) WorkerFinished(context.Context, types.WorkerID, time.Duration, error, bool) {}
func (NopObserver) ItemProduced(context.Context, types.WorkerID)                               {}
func (NopObserver) ItemConsumed(context.Context, types.WorkerID, time.Duration, error)         {}
func (NopObserver) RunCancelled(context.Context, error)                                        {}
func (NopObserver) RunReported(context.Context, int)                                           {}

var _ Observer = NopObserver{}
