/*
Package orchestrator wires producers, consumers and single-result tasks
around shared queues, joins all of them, and reports every failure after
the join.

# Lifecycle

	Idle -> Running -> Draining -> Joined -> Reported

The first spawn moves Idle to Running. RunToCompletion stops accepting new
workers and waits for every producer. It then closes every registered queue
(Draining), joins every consumer and task (Joined), and finally drains the
failure box (Reported).

# Failures

Each worker deposits its returned error or recovered panic into the
orchestrator's errbox.Box, tagged with its types.WorkerID. With ReportAll,
RunToCompletion returns a *types.AggregateError holding every failure in
deposit order. With ReportFirst it returns only the first
*types.WorkerFailure. Consumer handler errors are boxed per item. The
configured error handler decides whether the consumer keeps going.

# Example

	o, _ := orchestrator.New(nil)
	q := queue.New[int]()
	for p := 0; p < 5; p++ {
		orchestrator.SpawnProducer(o, q, "", func(ctx context.Context, e *orchestrator.Emitter[int]) error {
			for i := 0; i < 3; i++ {
				if err := e.Emit(ctx, p*10+i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	orchestrator.SpawnConsumer(o, q, "printer", func(ctx context.Context, v int) error {
		fmt.Println(v)
		return nil
	})
	answer, _, _ := orchestrator.SpawnTask(o, "answer", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err := o.RunToCompletion(ctx); err != nil {
		for _, f := range types.Failures(err) {
			fmt.Println(f.Origin, f.Cause)
		}
	}
	v, _ := answer.Get(ctx)

# Cancellation

Cancel sets the shutdown flag, cancels the worker context with a cause and
closes every registered queue. Producers blocked in Emit or on the context
return. Consumers leave their loop at the next iteration. RunToCompletion
still joins everything before it returns.
*/
package orchestrator
