// Package testutils provides shared helpers for workchan tests
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every blocking call made from a test
const DefaultTimeout = 5 * time.Second

// Context returns a context cancelled after DefaultTimeout or at test cleanup
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireClosed fails the test unless ch is closed (or delivers) within timeout
func RequireClosed[T any](t testing.TB, ch <-chan T, timeout time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.FailNow(t, "channel was not closed in time", msgAndArgs...)
	}
}

// RequireBlocked fails the test if ch is closed (or delivers) within d
func RequireBlocked[T any](t testing.TB, ch <-chan T, d time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-ch:
		require.FailNow(t, "expected operation to still be blocked", msgAndArgs...)
	case <-time.After(d):
	}
}

// Go runs fn on a new goroutine and returns a channel closed when it returns
func Go(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
