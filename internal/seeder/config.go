// Package seeder generates realistic SDK envelopes and posts them to a
// running ingest endpoint, for demos and load testing.
package seeder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario names understood by the generator.
const (
	ScenarioError       = "error"
	ScenarioTransaction = "transaction"
	ScenarioNPlusOne    = "n_plus_one"
)

// Scenario pairs a generator scenario with a selection weight.
type Scenario struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

// Config controls a seeding run.
type Config struct {
	URL       string        `yaml:"url"`
	Project   string        `yaml:"project"`
	Key       string        `yaml:"key"`
	Count     int           `yaml:"count"`
	Interval  time.Duration `yaml:"interval"`
	Scenarios []Scenario    `yaml:"scenarios"`
}

// DefaultConfig returns a config seeding a local ingest server.
func DefaultConfig() *Config {
	return &Config{
		URL:     "http://localhost:8200",
		Project: "backend",
		Key:     "dev-public-key",
		Count:   100,
		Scenarios: []Scenario{
			{Name: ScenarioError, Weight: 6},
			{Name: ScenarioTransaction, Weight: 3},
			{Name: ScenarioNPlusOne, Weight: 1},
		},
	}
}

// LoadConfig reads a YAML scenario file, filling gaps from the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse seed config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	total := 0
	for _, s := range c.Scenarios {
		if s.Weight < 0 {
			return fmt.Errorf("scenario %q has negative weight", s.Name)
		}
		switch s.Name {
		case ScenarioError, ScenarioTransaction, ScenarioNPlusOne:
		default:
			return fmt.Errorf("unknown scenario %q", s.Name)
		}
		total += s.Weight
	}
	if total == 0 {
		return fmt.Errorf("scenario weights sum to zero")
	}
	return nil
}
