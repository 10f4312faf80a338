package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	errs "github.com/jzx17/workchan/internal/errors"
	"github.com/jzx17/workchan/internal/testutils"
	"github.com/jzx17/workchan/pkg/orchestrator"
	"github.com/jzx17/workchan/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadScenario(t *testing.T) {
	t.Run("defaults without a path", func(t *testing.T) {
		sc, err := LoadScenario("")
		require.NoError(t, err)
		assert.Equal(t, DefaultScenario(), sc)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeScenario(t, `
report_policy: first
consumer_error_strategy: failfast
poll_interval: 20ms
produce_rate: 50
produce_burst: 4
pipeline:
  producers: 2
  items: 7
async:
  poll: 1s
failures:
  workers: 3
  panic: true
`)
		sc, err := LoadScenario(path)
		require.NoError(t, err)

		assert.Equal(t, "first", sc.ReportPolicy)
		assert.Equal(t, 20*time.Millisecond, sc.PollInterval)
		assert.Equal(t, 2, sc.Pipeline.Producers)
		assert.Equal(t, 7, sc.Pipeline.Items)
		assert.Equal(t, 1, sc.Pipeline.Consumers, "unset fields keep their default")
		assert.Equal(t, time.Second, sc.Async.Poll)
		assert.Equal(t, time.Second, sc.Async.Work)
		assert.Equal(t, FailureScenario{Workers: 3, Panic: true}, sc.Failures)

		cfg, err := sc.OrchestratorConfig()
		require.NoError(t, err)
		assert.Equal(t, orchestrator.ReportFirst, cfg.ReportPolicy)
		assert.Equal(t, errs.FailFastStrategy, cfg.ConsumerErrorStrategy)
		assert.Equal(t, 20*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 50.0, cfg.ProduceRate)
		assert.Equal(t, 4, cfg.ProduceBurst)
	})

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "pipeline: [unclosed"},
		{"bad policy", "report_policy: sometimes"},
		{"bad strategy", "consumer_error_strategy: retry-forever"},
		{"no producers", "pipeline:\n  producers: 0"},
		{"no consumers", "pipeline:\n  consumers: 0"},
		{"zero poll", "async:\n  poll: 0s"},
		{"negative workers", "failures:\n  workers: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func newTestOrchestrator(t *testing.T, policy string) *orchestrator.Orchestrator {
	t.Helper()
	sc := DefaultScenario()
	sc.ReportPolicy = policy
	sc.PollInterval = 5 * time.Millisecond
	cfg, err := sc.OrchestratorConfig()
	require.NoError(t, err)
	o, err := orchestrator.New(cfg)
	require.NoError(t, err)
	return o
}

func TestRunPipeline(t *testing.T) {
	o := newTestOrchestrator(t, "all")

	partition, err := runPipeline(testutils.Context(t), o, PipelineScenario{Producers: 5, Items: 3, Consumers: 1})
	require.NoError(t, err)

	require.Len(t, partition, 5)
	for p := 0; p < 5; p++ {
		// one consumer sees each producer's items in push order
		assert.Equal(t, []int{p * 100, p*100 + 1, p*100 + 2}, partition[p], "producer %d", p)
	}
	assert.Len(t, o.Handles(), 6)
	assert.Equal(t, orchestrator.StateReported, o.State())
}

func TestRunPromise(t *testing.T) {
	o := newTestOrchestrator(t, "all")

	v, err := runPromise(testutils.Context(t), o)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunAsync(t *testing.T) {
	var out bytes.Buffer
	v, polls, err := runAsync(testutils.Context(t), &out, AsyncScenario{Poll: 5 * time.Millisecond, Work: 40 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Positive(t, polls)
	assert.Equal(t, strings.Repeat(".", polls)+"\n", out.String())
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		sc     FailureScenario
		want   int
		panics int
	}{
		{"all reported", "all", FailureScenario{Workers: 2}, 2, 0},
		{"panic reported", "all", FailureScenario{Workers: 3, Panic: true}, 3, 1},
		{"first only", "first", FailureScenario{Workers: 2}, 1, 0},
		{"none", "all", FailureScenario{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, tt.policy)
			err := runFailures(testutils.Context(t), o, tt.sc)

			failures := types.Failures(err)
			require.Len(t, failures, tt.want)
			panics := 0
			for _, f := range failures {
				var pe *types.PanicError
				if errors.As(f.Cause, &pe) {
					panics++
				}
			}
			assert.Equal(t, tt.panics, panics)
		})
	}
}

func TestRootCommand(t *testing.T) {
	path := writeScenario(t, `
poll_interval: 5ms
pipeline:
  producers: 2
  items: 2
async:
  poll: 5ms
  work: 20ms
`)

	tests := []struct {
		args     []string
		contains []string
	}{
		{[]string{"pipeline", "--config", path}, []string{"2 producer(s) x 2 item(s)", "producer-0", "producer-1", "without failures"}},
		{[]string{"pipeline", "--config", path, "--producers", "3", "--metrics"}, []string{"3 producer(s)", "workchan_items_produced_total 6"}},
		{[]string{"promise", "--config", path}, []string{"received 42"}},
		{[]string{"async", "--config", path}, []string{"result 42"}},
		{[]string{"failures", "--config", path}, []string{"2 failure(s) reported", "worker 0 failed", "worker 1 failed"}},
		{[]string{"failures", "--config", path, "--policy", "first"}, []string{"1 failure(s) reported"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			registry = nil
			metricsFlag = false

			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.ExecuteContext(testutils.Context(t)))

			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
