package result

import (
	"context"
	"errors"
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

func TestChannel_SetValueGet(t *testing.T) {
	ch := New[int]()
	ctx := testutils.Context(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, ch.SetValue(42))
	}()

	v, err := ch.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, ch.IsReady())
}

func TestChannel_SetError(t *testing.T) {
	ch := New[string]()
	ctx := testutils.Context(t)
	expected := errors.New("task failed")

	require.NoError(t, ch.SetError(expected))

	v, err := ch.Get(ctx)
	assert.Same(t, expected, err, "stored error must come back unchanged")
	assert.Empty(t, v)
}

func TestChannel_SetErrorNil(t *testing.T) {
	ch := New[int]()

	err := ch.SetError(nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.False(t, ch.IsReady(), "rejected write must not fulfil the channel")
}

func TestChannel_WriteTwice(t *testing.T) {
	tests := []struct {
		name   string
		first  func(*Channel[int]) error
		second func(*Channel[int]) error
		value  int
		err    error
	}{
		{
			name:   "value then value",
			first:  func(c *Channel[int]) error { return c.SetValue(1) },
			second: func(c *Channel[int]) error { return c.SetValue(2) },
			value:  1,
		},
		{
			name:   "value then error",
			first:  func(c *Channel[int]) error { return c.SetValue(1) },
			second: func(c *Channel[int]) error { return c.SetError(errors.New("late")) },
			value:  1,
		},
		{
			name:   "error then value",
			first:  func(c *Channel[int]) error { return c.SetError(types.ErrTimeout) },
			second: func(c *Channel[int]) error { return c.SetValue(2) },
			err:    types.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := New[int]()
			require.NoError(t, tt.first(ch))

			err := tt.second(ch)
			assert.ErrorIs(t, err, types.ErrAlreadySatisfied)

			v, err := ch.Get(testutils.Context(t))
			assert.Equal(t, tt.value, v)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChannel_ConcurrentWritersExactlyOnce(t *testing.T) {
	ch := New[int]()

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if err := ch.SetValue(i); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, types.ErrAlreadySatisfied)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestChannel_GetIdempotentAcrossGoroutines(t *testing.T) {
	ch := New[[]string]()
	ctx := testutils.Context(t)
	payload := []string{"a", "b"}

	const readers = 8
	results := make(chan []string, readers)
	for i := 0; i < readers; i++ {
		go func() {
			v, err := ch.Get(ctx)
			assert.NoError(t, err)
			results <- v
		}()
	}

	require.NoError(t, ch.SetValue(payload))
	for i := 0; i < readers; i++ {
		v := <-results
		assert.Equal(t, payload, v)
	}

	// and again after the fact
	v1, err1 := ch.Get(ctx)
	v2, err2 := ch.Get(ctx)
	assert.Equal(t, v1, v2)
	assert.Equal(t, err1, err2)
}

func TestChannel_GetContext(t *testing.T) {
	t.Run("cancelled before result", func(t *testing.T) {
		ch := New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		v, err := ch.Get(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, v)
	})

	t.Run("result wins over cancelled context", func(t *testing.T) {
		ch := New[int]()
		require.NoError(t, ch.SetValue(3))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		v, err := ch.Get(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 3, v)
	})
}

func TestChannel_WaitFor(t *testing.T) {
	t.Run("ready immediately", func(t *testing.T) {
		ch := New[int]()
		require.NoError(t, ch.SetValue(1))
		assert.Equal(t, Ready, ch.WaitFor(0))
		assert.Equal(t, Ready, ch.WaitFor(time.Hour))
	})

	t.Run("zero timeout on unset channel", func(t *testing.T) {
		ch := New[int]()
		assert.Equal(t, Timeout, ch.WaitFor(0))
	})

	t.Run("times out", func(t *testing.T) {
		mClock := testutils.NewMockClock(t)
		ch := New[int](WithClock(testutils.NewClockWrapper(mClock)))
		ctx := testutils.Context(t)

		var status Status
		done := testutils.Go(func() {
			status = ch.WaitFor(300 * time.Millisecond)
		})

		require.True(t, testutils.AdvanceUntil(ctx, mClock, done))
		assert.Equal(t, Timeout, status)
		assert.False(t, ch.IsReady())
	})

	t.Run("polling until ready", func(t *testing.T) {
		mClock := testutils.NewMockClock(t)
		ch := New[int](WithClock(testutils.NewClockWrapper(mClock)))
		ctx := testutils.Context(t)

		polls := 0
		done := testutils.Go(func() {
			for ch.WaitFor(300*time.Millisecond) != Ready {
				polls++
				if polls == 3 {
					assert.NoError(t, ch.SetValue(24))
				}
			}
		})

		require.True(t, testutils.AdvanceUntil(ctx, mClock, done))
		assert.Equal(t, 3, polls)

		// Ready observed, Get must not block even with an expired context
		expired, cancel := context.WithCancel(context.Background())
		cancel()
		v, err := ch.Get(expired)
		require.NoError(t, err)
		assert.Equal(t, 24, v)
	})

	t.Run("multiple observers", func(t *testing.T) {
		ch := New[int]()
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.Equal(t, Ready, ch.WaitFor(5*time.Second))
			}()
		}
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, ch.SetValue(1))
		wg.Wait()
	})
}

func TestChannel_Done(t *testing.T) {
	ch := New[int]()
	testutils.RequireBlocked(t, ch.Done(), 10*time.Millisecond)

	require.NoError(t, ch.SetError(errors.New("x")))
	testutils.RequireClosed(t, ch.Done(), time.Second)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "unknown", Status(9).String())
}

func BenchmarkChannel_SetGet(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		ch := New[int]()
		_ = ch.SetValue(i)
		_, _ = ch.Get(ctx)
	}
}
