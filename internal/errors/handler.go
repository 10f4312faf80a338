// Package errors decides what a consumer loop does after its handler fails
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/types"
)

// ErrorHandler decides the fate of a failed item
type ErrorHandler interface {
	// HandleError returns nil to keep consuming, or the error that ends the loop
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string
}

// ErrorContext describes one failed item
type ErrorContext struct {
	// Error returned by the consumer function
	Error error

	// Origin is the consumer that failed
	Origin types.WorkerID

	// Item is the value being consumed
	Item any

	// Timestamp when the error occurred
	Timestamp time.Time

	// Failures counts failed items of this consumer, this one included
	Failures int
}

// NewErrorContext creates an error context
func NewErrorContext(err error, origin types.WorkerID, item any, at time.Time, failures int) *ErrorContext {
	return &ErrorContext{
		Error:     err,
		Origin:    origin,
		Item:      item,
		Timestamp: at,
		Failures:  failures,
	}
}

// Strategy selects a built-in ErrorHandler
type Strategy int

const (
	// ContinueOnErrorStrategy boxes the failure and keeps consuming
	ContinueOnErrorStrategy Strategy = iota
	// FailFastStrategy boxes the failure and stops the consumer
	FailFastStrategy
)

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s {
	case FailFastStrategy:
		return "FailFast"
	case ContinueOnErrorStrategy:
		return "ContinueOnError"
	default:
		return "Unknown"
	}
}

// ParseStrategy accepts "continue" or "failfast" (case-insensitive) as well
// as the String forms
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "continue", "continueonerror":
		return ContinueOnErrorStrategy, nil
	case "failfast", "stop", "stoponerror":
		return FailFastStrategy, nil
	default:
		return 0, fmt.Errorf("unknown error strategy %q: %w", s, types.ErrInvalidInput)
	}
}

// NewHandler returns the built-in handler for strategy
func NewHandler(strategy Strategy) ErrorHandler {
	if strategy == FailFastStrategy {
		return NewFailFastHandler()
	}
	return NewContinueOnErrorHandler(nil)
}

// FailFastHandler stops on the first failure
type FailFastHandler struct {
	name string
}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{name: "FailFast"}
}

// HandleError returns the original error so the consumer stops
func (h *FailFastHandler) HandleError(_ context.Context, errCtx *ErrorContext) error {
	return errCtx.Error
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return h.name
}

// ContinueOnErrorHandler keeps consuming unless the error is fatal or the
// failure budget is spent
type ContinueOnErrorHandler struct {
	name        string
	fatal       []error
	maxFailures int
	logEvery    *log.Every
	mu          sync.RWMutex
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// FatalErrors stop the consumer even in continue mode (matched with errors.Is)
	FatalErrors []error
	// MaxFailures stops the consumer once reached; zero means unlimited
	MaxFailures int
	// LogInterval rate-limits the "ignored error" log line
	LogInterval time.Duration
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	h := &ContinueOnErrorHandler{
		name:     "ContinueOnError",
		logEvery: log.NewEvery(time.Second),
	}
	if config != nil {
		h.maxFailures = config.MaxFailures
		for _, err := range config.FatalErrors {
			if err != nil {
				h.fatal = append(h.fatal, err)
			}
		}
		if config.LogInterval > 0 {
			h.logEvery = log.NewEvery(config.LogInterval)
		}
	}
	return h
}

// HandleError returns nil unless the error is fatal or too many items failed
func (h *ContinueOnErrorHandler) HandleError(_ context.Context, errCtx *ErrorContext) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, fatal := range h.fatal {
		if stderrors.Is(errCtx.Error, fatal) {
			return errCtx.Error
		}
	}
	if h.maxFailures > 0 && errCtx.Failures >= h.maxFailures {
		return fmt.Errorf("%d failures: %w", errCtx.Failures, errCtx.Error)
	}

	if h.logEvery.ShouldLog() {
		log.WarningLog.Printf("%s: continuing after error: %v", errCtx.Origin, errCtx.Error)
	}
	return nil
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return h.name
}

// AddFatalError makes err stop the consumer
func (h *ContinueOnErrorHandler) AddFatalError(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatal = append(h.fatal, err)
}
