/*
Package worker runs one function on its own goroutine and hands the owner a
Handle to join it.

# Lifecycle

A Handle moves Idle -> Running -> Finished exactly once. New creates an idle
handle, Start launches it, Spawn does both. The owner must Join every handle
it started; there is no detach.

# Failure capture

The goroutine entry point recovers panics and converts them into a
*types.PanicError carrying the stack. A returned error or a recovered panic
is deposited into the handle's errbox.Box (see WithBox) together with the
worker's types.WorkerID, so the owner can report it after the join. Nothing
unwinds past the entry point.

# Groups

WithGroup routes the goroutine through a Group such as *errgroup.Group so an
owner can wait for a set of workers with a single Wait:

	var g errgroup.Group
	box := errbox.New()
	h := worker.Spawn(ctx, id, fn, worker.WithBox(box), worker.WithGroup(&g))
	_ = g.Wait()
	fmt.Println(h.State(), box.Drain())

The body passed to the group always returns nil; failures travel through the
box, never through the group.
*/
package worker
