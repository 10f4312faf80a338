package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

func TestFixedDelay(t *testing.T) {
	policy := NewFixedDelay(3, 100*time.Millisecond)

	for attempt := 1; attempt <= 3; attempt++ {
		if got := policy.NextDelay(attempt); got != 100*time.Millisecond {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, 100*time.Millisecond)
		}
	}
	if policy.MaxAttempts() != 3 {
		t.Errorf("MaxAttempts() = %d, want 3", policy.MaxAttempts())
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		maxDelay   time.Duration
		attempt    int
		wantDelay  time.Duration
	}{
		{name: "first attempt", multiplier: 2, attempt: 1, wantDelay: 100 * time.Millisecond},
		{name: "second attempt", multiplier: 2, attempt: 2, wantDelay: 200 * time.Millisecond},
		{name: "third attempt", multiplier: 2, attempt: 3, wantDelay: 400 * time.Millisecond},
		{name: "multiplier 3", multiplier: 3, attempt: 3, wantDelay: 900 * time.Millisecond},
		{name: "capped", multiplier: 2, maxDelay: 250 * time.Millisecond, attempt: 3, wantDelay: 250 * time.Millisecond},
		{name: "huge attempt stays capped", multiplier: 2, attempt: 200, wantDelay: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewExponentialBackoff(5, 100*time.Millisecond).WithMultiplier(tt.multiplier)
			if tt.maxDelay > 0 {
				policy.WithMaxDelay(tt.maxDelay)
			}
			if got := policy.NextDelay(tt.attempt); got != tt.wantDelay {
				t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.wantDelay)
			}
		})
	}
}

func TestWithJitter(t *testing.T) {
	policy := NewFixedDelay(3, 100*time.Millisecond, WithJitter(0.2))

	for i := 0; i < 100; i++ {
		got := policy.NextDelay(1)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("NextDelay() = %v, want within [80ms, 120ms]", got)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	retryable := errors.New("transient")
	policy := NewFixedDelay(3, time.Millisecond)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "retryable error", err: retryable, attempt: 1, want: true},
		{name: "last attempt", err: retryable, attempt: 3, want: false},
		{name: "nil error", err: nil, attempt: 1, want: false},
		{name: "canceled", err: context.Canceled, attempt: 1, want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), attempt: 1, want: false},
		{name: "closed queue", err: types.ErrClosed, attempt: 1, want: false},
		{name: "permanent", err: Permanent(retryable), attempt: 1, want: false},
		{name: "panic", err: types.NewPanicError("boom"), attempt: 1, want: false},
		{name: "timeout", err: types.ErrTimeout, attempt: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldRetry(tt.err, tt.attempt); got != tt.want {
				t.Errorf("ShouldRetry(%v, %d) = %v, want %v", tt.err, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestWithCondition(t *testing.T) {
	only := errors.New("only this one")
	policy := NewFixedDelay(5, time.Millisecond, WithCondition(func(err error) bool {
		return errors.Is(err, only)
	}))

	if !policy.ShouldRetry(only, 1) {
		t.Error("expected matching error to be retried")
	}
	if policy.ShouldRetry(errors.New("other"), 1) {
		t.Error("expected other error not to be retried")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	cause := errors.New("bad input")
	err := Permanent(cause)
	if !errors.Is(err, cause) {
		t.Error("Permanent should unwrap to its cause")
	}
	if err.Error() != "bad input" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewPolicyClampsAttempts(t *testing.T) {
	policy := NewFixedDelay(0, time.Millisecond)
	if policy.MaxAttempts() != 1 {
		t.Errorf("MaxAttempts() = %d, want 1", policy.MaxAttempts())
	}
}
