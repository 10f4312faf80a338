// Package errbox collects failures raised on worker goroutines so the owner
// can report them after every worker has been joined.
package errbox

import (
	"sync"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

// Record is one boxed failure
type Record struct {
	Err    error
	Origin types.WorkerID
	At     time.Time
}

// Failure converts the record into the error reported for a run
func (r Record) Failure() *types.WorkerFailure {
	return types.NewWorkerFailure(r.Origin, r.Err)
}

// Box is a mutex-guarded list of failure records. It is safe for concurrent
// Deposit from any number of goroutines.
type Box struct {
	mu      sync.Mutex
	records []Record
	clock   types.Clock
}

// New creates an empty Box using the real clock
func New() *Box {
	return NewWithClock(nil)
}

// NewWithClock creates an empty Box stamping records with clock
func NewWithClock(clock types.Clock) *Box {
	return &Box{clock: types.OrRealClock(clock)}
}

// Deposit appends a failure attributed to origin. It never fails and never
// panics; a nil err is ignored.
func (b *Box) Deposit(err error, origin types.WorkerID) {
	if err == nil {
		return
	}
	at := b.clock.Now()

	b.mu.Lock()
	b.records = append(b.records, Record{Err: err, Origin: origin, At: at})
	b.mu.Unlock()
}

// Drain removes and returns every record in deposit order. The box is empty
// afterwards.
func (b *Box) Drain() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.records
	b.records = nil
	return out
}

// Len returns the number of records currently boxed
func (b *Box) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Failures converts records into worker failures, keeping their order
func Failures(records []Record) []*types.WorkerFailure {
	if len(records) == 0 {
		return nil
	}
	out := make([]*types.WorkerFailure, len(records))
	for i, r := range records {
		out[i] = r.Failure()
	}
	return out
}
