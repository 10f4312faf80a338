// Package cond provides a condition variable whose Wait can be bounded by a
// timer or a context, which sync.Cond cannot do.
package cond

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

// Cond is a condition variable associated with the Locker L. Waiters are
// woken in FIFO order by Signal, or all at once by Broadcast.
//
// As with sync.Cond, a wakeup does not imply the awaited condition holds;
// callers must re-check their predicate in a loop.
type Cond struct {
	L sync.Locker

	mu      sync.Mutex
	waiters list.List // of chan struct{}
}

// New returns a Cond bound to l
func New(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Wait atomically unlocks c.L and suspends the caller until Signal or
// Broadcast selects it, ctx is done, or timeout delivers. c.L is re-locked
// before Wait returns. A nil timeout channel never fires.
//
// Wait returns nil when woken by a signal, types.ErrTimeout when the timeout
// fired first, or ctx.Err(). A signal that races with the timeout or the
// context is reported as a wakeup, so notifications are never lost.
func (c *Cond) Wait(ctx context.Context, timeout <-chan time.Time) error {
	ch := make(chan struct{})
	c.mu.Lock()
	elem := c.waiters.PushBack(ch)
	c.mu.Unlock()

	c.L.Unlock()

	var err error
	select {
	case <-ch:
	case <-timeout:
		err = types.ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.L.Lock()

	if err != nil && !c.remove(elem) {
		// selected by Signal/Broadcast while we were leaving
		err = nil
	}
	return err
}

// remove unregisters a waiter. It reports false if a signal already took it.
func (c *Cond) remove(elem *list.Element) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem.Value == nil {
		return false
	}
	c.waiters.Remove(elem)
	elem.Value = nil
	return true
}

// Signal wakes the longest-waiting goroutine, if any.
// It is allowed but not required for the caller to hold c.L.
func (c *Cond) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if front := c.waiters.Front(); front != nil {
		c.wake(front)
	}
}

// Broadcast wakes every waiting goroutine.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.waiters.Front(); e != nil; e = c.waiters.Front() {
		c.wake(e)
	}
}

// Waiters reports how many goroutines are currently blocked in Wait.
func (c *Cond) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.Len()
}

func (c *Cond) wake(e *list.Element) {
	ch := c.waiters.Remove(e).(chan struct{})
	e.Value = nil
	close(ch)
}
