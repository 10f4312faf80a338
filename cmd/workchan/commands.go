package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jzx17/workchan/pkg/orchestrator"
	"github.com/jzx17/workchan/pkg/queue"
	"github.com/jzx17/workchan/pkg/result"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Producers push onto one queue, consumers drain it",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := scenario.Pipeline
		if v, _ := cmd.Flags().GetInt("producers"); v > 0 {
			p.Producers = v
		}
		if v, _ := cmd.Flags().GetInt("items"); v > 0 {
			p.Items = v
		}
		if v, _ := cmd.Flags().GetInt("consumers"); v > 0 {
			p.Consumers = v
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		partition, runErr := runPipeline(cmd.Context(), o, p)

		colorPrintf(out, Bold, "%d producer(s) x %d item(s), %d consumer(s)\n", p.Producers, p.Items, p.Consumers)
		renderPartition(out, partition)
		renderWorkers(out, o.Handles())
		renderReport(out, runErr)
		return finish(cmd)
	},
}

var promiseCmd = &cobra.Command{
	Use:   "promise",
	Short: "One task sets a value, another task reads it",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		v, err := runPromise(cmd.Context(), o)
		if err != nil {
			renderReport(out, err)
			return finish(cmd)
		}
		colorPrintf(out, Green, "received %d\n", v)
		return finish(cmd)
	},
}

var asyncCmd = &cobra.Command{
	Use:   "async",
	Short: "Poll a background computation with bounded waits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := scenario.Async
		if v, _ := cmd.Flags().GetDuration("poll"); v > 0 {
			a.Poll = v
		}
		if v, _ := cmd.Flags().GetDuration("work"); v > 0 {
			a.Work = v
		}

		out := cmd.OutOrStdout()
		v, polls, err := runAsync(cmd.Context(), out, a)
		if err != nil {
			colorPrintf(out, Red, "async failed after %d poll(s): %v\n", polls, err)
			return nil
		}
		colorPrintf(out, Green, "result %d after %d poll(s)\n", v, polls)
		return nil
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Several workers fail; every failure is reported",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := scenario.Failures
		if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
			f.Workers = v
		}
		if cmd.Flags().Changed("panic") {
			f.Panic, _ = cmd.Flags().GetBool("panic")
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		runErr := runFailures(cmd.Context(), o, f)

		colorPrintf(out, Bold, "%d failing worker(s), policy %s\n", f.Workers, scenario.ReportPolicy)
		renderWorkers(out, o.Handles())
		renderReport(out, runErr)
		return finish(cmd)
	},
}

type pipelineItem struct {
	producer int
	value    int
}

// runPipeline spawns the producers and consumers on one queue and returns the
// values each producer delivered, in the order consumers received them.
func runPipeline(ctx context.Context, o *orchestrator.Orchestrator, p PipelineScenario) (map[int][]int, error) {
	q := queue.New[pipelineItem]()

	var mu sync.Mutex
	partition := make(map[int][]int, p.Producers)

	for i := 0; i < p.Producers; i++ {
		producer := i
		_, err := orchestrator.SpawnProducer(o, q, "", func(ctx context.Context, e *orchestrator.Emitter[pipelineItem]) error {
			for n := 0; n < p.Items; n++ {
				if err := e.Emit(ctx, pipelineItem{producer: producer, value: producer*100 + n}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for i := 0; i < p.Consumers; i++ {
		_, err := orchestrator.SpawnConsumer(o, q, "", func(ctx context.Context, item pipelineItem) error {
			mu.Lock()
			partition[item.producer] = append(partition[item.producer], item.value)
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err := o.RunToCompletion(ctx)
	mu.Lock()
	defer mu.Unlock()
	return partition, err
}

// runPromise has one task produce a value and a second task wait on it.
func runPromise(ctx context.Context, o *orchestrator.Orchestrator) (int, error) {
	answer, _, err := orchestrator.SpawnTask(o, "setter", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		return 0, err
	}
	reader, _, err := orchestrator.SpawnTask(o, "reader", func(ctx context.Context) (int, error) {
		return answer.Get(ctx)
	})
	if err != nil {
		return 0, err
	}

	if err := o.RunToCompletion(ctx); err != nil {
		return 0, err
	}
	return reader.Get(ctx)
}

// runAsync starts a computation lasting a.Work and polls it every a.Poll,
// writing a dot per unsuccessful poll.
func runAsync(ctx context.Context, w io.Writer, a AsyncScenario) (int, int, error) {
	ch := orchestrator.Async(ctx, func(ctx context.Context) (int, error) {
		timer := time.NewTimer(a.Work)
		defer timer.Stop()
		select {
		case <-timer.C:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	polls := 0
	for ch.WaitFor(a.Poll) == result.Timeout {
		polls++
		_, _ = fmt.Fprint(w, ".")
	}
	if polls > 0 {
		_, _ = fmt.Fprintln(w)
	}

	v, err := ch.Get(ctx)
	return v, polls, err
}

// runFailures spawns f.Workers tasks that all fail. With f.Panic the last one
// panics instead of returning an error.
func runFailures(ctx context.Context, o *orchestrator.Orchestrator, f FailureScenario) error {
	for i := 0; i < f.Workers; i++ {
		n := i
		last := n == f.Workers-1
		_, _, err := orchestrator.SpawnTask(o, fmt.Sprintf("failing-%d", n), func(ctx context.Context) (struct{}, error) {
			if f.Panic && last {
				panic(fmt.Sprintf("worker %d panicked", n))
			}
			return struct{}{}, fmt.Errorf("worker %d failed", n)
		})
		if err != nil {
			return err
		}
	}
	return o.RunToCompletion(ctx)
}
