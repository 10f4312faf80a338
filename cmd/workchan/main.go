// Command workchan runs the work channel scenarios from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jzx17/workchan/internal/log"
	"github.com/jzx17/workchan/pkg/observe/prom"
	"github.com/jzx17/workchan/pkg/orchestrator"
)

var (
	configFlag   string
	debugFlag    bool
	policyFlag   string
	strategyFlag string
	metricsFlag  bool

	scenario *Scenario
	registry *prometheus.Registry

	rootCmd = &cobra.Command{
		Use:           "workchan",
		Short:         "workchan runs producer/consumer scenarios on a shared queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugFlag {
				log.SetDebug(true)
			}
			log.Initialize(os.Stderr, "[workchan] ")

			sc, err := LoadScenario(configFlag)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("policy") {
				sc.ReportPolicy = policyFlag
			}
			if cmd.Flags().Changed("strategy") {
				sc.ConsumerErrorStrategy = strategyFlag
			}
			if err := sc.Validate(); err != nil {
				return err
			}
			scenario = sc
			return nil
		},
	}
)

// newOrchestrator builds an orchestrator from the loaded scenario, wiring
// metrics when --metrics is set.
func newOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	cfg, err := scenario.OrchestratorConfig()
	if err != nil {
		return nil, err
	}
	if metricsFlag {
		registry = prometheus.NewRegistry()
		m, err := prom.New("workchan", "", registry)
		if err != nil {
			return nil, err
		}
		cfg.Observer = m
	}
	return orchestrator.NewWithContext(cmd.Context(), cfg)
}

// finish prints collected metrics if any were requested.
func finish(cmd *cobra.Command) error {
	if registry == nil {
		return nil
	}
	return renderMetrics(cmd.OutOrStdout(), registry)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Scenario YAML file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&policyFlag, "policy", "all", "Failure report policy: all or first")
	rootCmd.PersistentFlags().StringVar(&strategyFlag, "strategy", "continue", "Consumer error strategy: continue or failfast")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Print Prometheus metrics after the run")

	pipelineCmd.Flags().Int("producers", 0, "Number of producers (overrides the scenario)")
	pipelineCmd.Flags().Int("items", 0, "Items per producer (overrides the scenario)")
	pipelineCmd.Flags().Int("consumers", 0, "Number of consumers (overrides the scenario)")
	asyncCmd.Flags().Duration("poll", 0, "Poll interval (overrides the scenario)")
	asyncCmd.Flags().Duration("work", 0, "Simulated work duration (overrides the scenario)")
	failuresCmd.Flags().Int("workers", 0, "Number of failing workers (overrides the scenario)")
	failuresCmd.Flags().Bool("panic", false, "Make the last worker panic instead of returning an error")

	rootCmd.AddCommand(pipelineCmd, promiseCmd, asyncCmd, failuresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
