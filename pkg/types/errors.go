package types

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Predefined errors
var (
	// ErrClosed indicates a pop on a queue that is closed and fully drained,
	// or a push on a queue that no longer accepts items
	ErrClosed = errors.New("queue is closed")

	// ErrAlreadySatisfied indicates a second write to a one-shot result channel
	ErrAlreadySatisfied = errors.New("result already satisfied")

	// ErrTimeout indicates a bounded wait elapsed; informational, not a failure
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidInput indicates invalid input
	ErrInvalidInput = errors.New("invalid input")
)

// WorkerFailure is a failure boxed from a worker goroutine. It carries the
// originating worker so the owner can attribute it after the join.
type WorkerFailure struct {
	// Origin identifies the worker that produced the failure
	Origin WorkerID

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("worker %s failed: %v", e.Origin, e.Cause)
}

// Unwrap returns the underlying error
func (e *WorkerFailure) Unwrap() error {
	return e.Cause
}

// NewWorkerFailure creates a new worker failure
func NewWorkerFailure(origin WorkerID, cause error) *WorkerFailure {
	return &WorkerFailure{Origin: origin, Cause: cause}
}

// PanicError wraps a value recovered from a panicking worker together with
// the goroutine stack at the point of recovery.
type PanicError struct {
	// Value is the value passed to panic()
	Value any

	// Stack is the goroutine stack trace
	Stack string
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// NewPanicError captures the current goroutine stack. Call it from the
// deferred function that recovered v.
func NewPanicError(v any) *PanicError {
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// AggregateError reports every boxed failure of a run, in drain order.
type AggregateError struct {
	Failures []*WorkerFailure
}

// Error implements the error interface
func (e *AggregateError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d workers failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap returns every failure so errors.Is and errors.As can match any of them.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Failures extracts the boxed failures carried by err. A single
// *WorkerFailure yields a one-element slice; nil or unrelated errors yield nil.
func Failures(err error) []*WorkerFailure {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Failures
	}
	var wf *WorkerFailure
	if errors.As(err, &wf) {
		return []*WorkerFailure{wf}
	}
	return nil
}
