/*
Package queue provides a generic FIFO hand-off for producer and consumer goroutines.

# Overview

Queue wraps a slice, a mutex and a condition variable so callers never write
the wait-and-recheck loop themselves:

  - Push never blocks and wakes one waiting consumer (or all, with WithBroadcastOnPush)
  - Pop blocks until an item is available, the queue is closed and drained, or the context ends
  - PopTimed bounds the wait and reports "no item yet" instead of blocking forever
  - Close stops new pushes and wakes every waiter; pending items are still delivered

# Ordering

Items are delivered in the order in which pushes acquired the queue lock.
Items pushed by a single goroutine are therefore always observed in the order
that goroutine pushed them, whatever the interleaving with other producers.

# Usage

	q := queue.New[int]()

	go func() {
		defer q.Close()
		for i := 0; i < 3; i++ {
			_ = q.Push(i)
		}
	}()

	for {
		v, err := q.Pop(ctx)
		if errors.Is(err, types.ErrClosed) {
			break
		}
		fmt.Println(v)
	}

A consumer that needs periodic housekeeping polls with PopTimed:

	for {
		v, ok, err := q.PopTimed(ctx, time.Second)
		if err != nil {
			return err
		}
		if !ok {
			log.Println("still waiting")
			continue
		}
		handle(v)
	}
*/
package queue
