// Copyright 2020 Aleksandr Demakin. All rights reserved.

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/avdva/posit"
)

// Config holds the defaults of positcalc. Command line flags override it.
type Config struct {
	// Format is a predefined format as "nbits,es".
	Format string `yaml:"format"`
	// Output is either "text" or "json".
	Output string `yaml:"output"`
	// Policy is the exception policy: "propagate-nar" or "signal-invalid".
	Policy string `yaml:"policy"`
	// LogLevel is a zap level name.
	LogLevel string `yaml:"log_level"`
	// Partitions is the default number of partitions for dot.
	Partitions int `yaml:"partitions"`
	// Dimension is the default system size for solve.
	Dimension int `yaml:"dimension"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Format:     "32,2",
		Output:     "text",
		Policy:     posit.PropagateNaR.String(),
		LogLevel:   "info",
		Partitions: runtime.GOMAXPROCS(0),
		Dimension:  5,
	}
}

// LoadConfig reads a YAML config. Missing keys keep their default values,
// a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as YAML, see the config init command.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the config values.
func (c *Config) Validate() error {
	c.Format = strings.ReplaceAll(c.Format, " ", "")
	if _, found := calculators[posit.PropagateNaR][c.Format]; !found {
		return fmt.Errorf("unknown format %q (valid: %s)", c.Format, strings.Join(formatNames(), " "))
	}
	if _, err := posit.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("invalid policy %q (valid: %s %s)", c.Policy, posit.PropagateNaR, posit.SignalInvalid)
	}
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output %q (valid: text json)", c.Output)
	}
	if c.Partitions < 1 {
		return fmt.Errorf("invalid number of partitions %d", c.Partitions)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("invalid dimension %d", c.Dimension)
	}
	return nil
}

// calculator returns the calculator for a validated config.
func (c *Config) calculator() calculator {
	policy, _ := posit.ParsePolicy(c.Policy)
	return calculators[policy][c.Format]
}
