package cond

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jzx17/workchan/internal/testutils"
	"github.com/jzx17/workchan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitForWaiters blocks until n goroutines are parked in c.Wait
func waitForWaiters(t *testing.T, c *Cond, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Waiters() == n }, time.Second, time.Millisecond)
}

func TestCond_SignalWakesOne(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	ctx := testutils.Context(t)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			mu.Lock()
			defer mu.Unlock()
			results <- c.Wait(ctx, nil)
		}()
	}
	waitForWaiters(t, c, 2)

	c.Signal()
	select {
	case err := <-results:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("signal did not wake a waiter")
	}

	// second waiter must still be parked
	testutils.RequireBlocked(t, results, 30*time.Millisecond)
	assert.Equal(t, 1, c.Waiters())

	c.Signal()
	assert.NoError(t, <-results)
	assert.Equal(t, 0, c.Waiters())
}

func TestCond_BroadcastWakesAll(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	ctx := testutils.Context(t)

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			assert.NoError(t, c.Wait(ctx, nil))
		}()
	}
	waitForWaiters(t, c, n)

	c.Broadcast()
	done := testutils.Go(wg.Wait)
	testutils.RequireClosed(t, done, time.Second)
}

func TestCond_SignalWithoutWaitersIsNoop(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	c.Signal()
	c.Broadcast()
	assert.Equal(t, 0, c.Waiters())
}

func TestCond_Timeout(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	mClock := testutils.NewMockClock(t)
	clock := testutils.NewClockWrapper(mClock)
	ctx := testutils.Context(t)

	errCh := make(chan error, 1)
	done := testutils.Go(func() {
		mu.Lock()
		defer mu.Unlock()
		errCh <- c.Wait(ctx, clock.After(100*time.Millisecond))
	})

	require.True(t, testutils.AdvanceUntil(ctx, mClock, done))
	assert.ErrorIs(t, <-errCh, types.ErrTimeout)
	assert.Equal(t, 0, c.Waiters(), "timed-out waiter must unregister")
}

func TestCond_ContextCancel(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		errCh <- c.Wait(ctx, nil)
	}()
	waitForWaiters(t, c, 1)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, c.Waiters())
}

func TestCond_RelocksBeforeReturning(t *testing.T) {
	var mu sync.Mutex
	c := New(&mu)
	ctx := testutils.Context(t)

	returned := make(chan struct{})
	go func() {
		mu.Lock()
		_ = c.Wait(ctx, nil)
		close(returned)
		mu.Unlock()
	}()
	waitForWaiters(t, c, 1)

	mu.Lock()
	c.Signal()
	// waiter cannot return while we hold the lock
	testutils.RequireBlocked(t, returned, 30*time.Millisecond)
	mu.Unlock()
	testutils.RequireClosed(t, returned, time.Second)
}

func TestCond_SignalRacingTimeoutIsNotLost(t *testing.T) {
	// Expired timeout and a signal delivered together: whichever select branch
	// wins, a signalled waiter must report a wakeup.
	for i := 0; i < 200; i++ {
		var mu sync.Mutex
		c := New(&mu)
		expired := make(chan time.Time, 1)

		errCh := make(chan error, 1)
		go func() {
			mu.Lock()
			defer mu.Unlock()
			errCh <- c.Wait(context.Background(), expired)
		}()
		waitForWaiters(t, c, 1)

		expired <- time.Now()
		c.Signal()
		err := <-errCh
		if err != nil {
			// timeout won and the waiter unregistered before Signal ran
			assert.ErrorIs(t, err, types.ErrTimeout)
		}
		assert.Equal(t, 0, c.Waiters())
	}
}

func BenchmarkCond_SignalWait(b *testing.B) {
	var mu sync.Mutex
	c := New(&mu)
	ctx := context.Background()
	pending := 0

	go func() {
		for i := 0; i < b.N; i++ {
			mu.Lock()
			pending++
			mu.Unlock()
			c.Signal()
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mu.Lock()
		for pending == 0 {
			_ = c.Wait(ctx, nil)
		}
		pending--
		mu.Unlock()
	}
}
