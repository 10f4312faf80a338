package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/jzx17/workchan/internal/errors"
	"github.com/jzx17/workchan/pkg/orchestrator"
)

// Scenario is the optional YAML file passed with --config
type Scenario struct {
	ReportPolicy          string        `yaml:"report_policy"`
	ConsumerErrorStrategy string        `yaml:"consumer_error_strategy"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	ProduceRate           float64       `yaml:"produce_rate"`
	ProduceBurst          int           `yaml:"produce_burst"`

	Pipeline PipelineScenario `yaml:"pipeline"`
	Async    AsyncScenario    `yaml:"async"`
	Failures FailureScenario  `yaml:"failures"`
}

// PipelineScenario sizes the producer/consumer run
type PipelineScenario struct {
	Producers int `yaml:"producers"`
	Items     int `yaml:"items"`
	Consumers int `yaml:"consumers"`
}

// AsyncScenario shapes the polling run
type AsyncScenario struct {
	Poll time.Duration `yaml:"poll"`
	Work time.Duration `yaml:"work"`
}

// FailureScenario shapes the failure reporting run
type FailureScenario struct {
	Workers int  `yaml:"workers"`
	Panic   bool `yaml:"panic"`
}

// DefaultScenario returns the built-in scenario
func DefaultScenario() *Scenario {
	return &Scenario{
		ReportPolicy:          "all",
		ConsumerErrorStrategy: "continue",
		PollInterval:          100 * time.Millisecond,
		ProduceBurst:          1,
		Pipeline: PipelineScenario{
			Producers: 5,
			Items:     3,
			Consumers: 1,
		},
		Async: AsyncScenario{
			Poll: 300 * time.Millisecond,
			Work: time.Second,
		},
		Failures: FailureScenario{
			Workers: 2,
		},
	}
}

// LoadScenario reads path over the defaults. An empty path returns the defaults.
func LoadScenario(path string) (*Scenario, error) {
	sc := DefaultScenario()
	if path == "" {
		return sc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the scenario sizes
func (s *Scenario) Validate() error {
	if s.Pipeline.Producers < 1 || s.Pipeline.Consumers < 1 || s.Pipeline.Items < 0 {
		return fmt.Errorf("pipeline needs at least one producer and one consumer")
	}
	if s.Async.Poll <= 0 {
		return fmt.Errorf("async poll interval must be positive")
	}
	if s.Failures.Workers < 0 {
		return fmt.Errorf("failure workers must not be negative")
	}
	_, err := s.OrchestratorConfig()
	return err
}

// OrchestratorConfig translates the scenario into an orchestrator config
func (s *Scenario) OrchestratorConfig() (*orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()

	policy, err := orchestrator.ParseReportPolicy(s.ReportPolicy)
	if err != nil {
		return nil, err
	}
	strategy, err := errs.ParseStrategy(s.ConsumerErrorStrategy)
	if err != nil {
		return nil, err
	}

	cfg.ReportPolicy = policy
	cfg.ConsumerErrorStrategy = strategy
	if s.PollInterval > 0 {
		cfg.PollInterval = s.PollInterval
	}
	cfg.ProduceRate = s.ProduceRate
	if s.ProduceBurst > 0 {
		cfg.ProduceBurst = s.ProduceBurst
	}
	return cfg, cfg.Validate()
}
