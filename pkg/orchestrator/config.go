package orchestrator

import (
	"fmt"
	"strings"
	"time"

	errs "github.com/jzx17/workchan/internal/errors"
	"github.com/jzx17/workchan/pkg/types"
)

// ReportPolicy selects what RunToCompletion returns when workers failed
type ReportPolicy int

const (
	// ReportAll returns a *types.AggregateError listing every failure
	ReportAll ReportPolicy = iota
	// ReportFirst returns the first boxed *types.WorkerFailure only
	ReportFirst
)

// String returns the string representation of ReportPolicy
func (p ReportPolicy) String() string {
	switch p {
	case ReportAll:
		return "all"
	case ReportFirst:
		return "first"
	default:
		return "unknown"
	}
}

// ParseReportPolicy accepts "all" or "first"
func ParseReportPolicy(s string) (ReportPolicy, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return ReportAll, nil
	case "first":
		return ReportFirst, nil
	default:
		return 0, fmt.Errorf("unknown report policy %q: %w", s, types.ErrInvalidInput)
	}
}

// Config holds the orchestrator configuration
type Config struct {
	// ReportPolicy selects the error returned by RunToCompletion
	ReportPolicy ReportPolicy

	// ConsumerErrorStrategy decides whether a consumer keeps going after its
	// handler fails. Ignored when ConsumerErrorHandler is set.
	ConsumerErrorStrategy errs.Strategy

	// ConsumerErrorHandler overrides ConsumerErrorStrategy
	ConsumerErrorHandler errs.ErrorHandler

	// PollInterval bounds each consumer wait so the shutdown flag is
	// re-checked at least this often
	PollInterval time.Duration

	// LivenessLogInterval rate-limits the "still waiting" consumer log line
	LivenessLogInterval time.Duration

	// ProduceRate caps items per second for each producer; zero means unlimited
	ProduceRate float64

	// ProduceBurst is the limiter burst size when ProduceRate is set
	ProduceBurst int

	// Clock drives timed waits; nil means the real clock
	Clock types.Clock

	// Observer receives lifecycle events; nil means none
	Observer Observer
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		ReportPolicy:          ReportAll,
		ConsumerErrorStrategy: errs.ContinueOnErrorStrategy,
		PollInterval:          100 * time.Millisecond,
		LivenessLogInterval:   5 * time.Second,
		ProduceBurst:          1,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v: %w", c.PollInterval, types.ErrInvalidInput)
	}
	if c.LivenessLogInterval < 0 {
		return fmt.Errorf("liveness log interval must not be negative: %w", types.ErrInvalidInput)
	}
	if c.ProduceRate < 0 {
		return fmt.Errorf("produce rate must not be negative, got %v: %w", c.ProduceRate, types.ErrInvalidInput)
	}
	if c.ProduceRate > 0 && c.ProduceBurst < 1 {
		return fmt.Errorf("produce burst must be at least 1 when rate limiting: %w", types.ErrInvalidInput)
	}
	if c.ReportPolicy != ReportAll && c.ReportPolicy != ReportFirst {
		return fmt.Errorf("unknown report policy %d: %w", c.ReportPolicy, types.ErrInvalidInput)
	}
	return nil
}
