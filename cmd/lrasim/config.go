package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gmessina/lrasim/internal/sim"
)

// Config is the TOML scenario file. The file is merged after the command
// line is parsed, so a key present in the file wins over the matching
// flag; flags only take effect for keys the file leaves out.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Output     OutputConfig     `toml:"output"`
}

type SimulationConfig struct {
	// Nodes is the network size; the last node is the sink.
	Nodes int `toml:"nodes"`

	// Side is the deployment area side length, meters.
	Side float64 `toml:"side"`

	// Range is the radio range, meters.
	Range float64 `toml:"range"`

	// Packets is the number of data packets per non-sink node.
	Packets int `toml:"packets"`

	// IntervalMs spaces consecutive sends of one node.
	IntervalMs int `toml:"interval_ms"`

	// DurationMs bounds the simulated time; zero auto-sizes it.
	DurationMs int `toml:"duration_ms"`

	// Seed makes placement, jitter and protocol streams reproducible.
	Seed int64 `toml:"seed"`

	// Script optionally points at a link-state script replacing the
	// geometric topology.
	Script string `toml:"script"`
}

type OutputConfig struct {
	// CSV is the results file new rows are appended to.
	CSV string `toml:"csv"`

	// Routes is where to dump the final routing tables, empty to skip.
	Routes string `toml:"routes"`
}

func defaultConfig() Config {
	return Config{
		Simulation: SimulationConfig{
			Nodes:      10,
			Side:       10,
			Range:      5,
			Packets:    3,
			IntervalMs: 1000,
			Seed:       12345,
		},
		Output: OutputConfig{
			CSV: "data_results.csv",
		},
	}
}

// loadConfig merges the TOML file at path, when given, into cfg.
func loadConfig(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

// benchmark translates the file/flag surface into a runnable config.
func (c Config) benchmark() (sim.BenchmarkConfig, func(), error) {
	cfg := sim.BenchmarkConfig{
		Nodes:    c.Simulation.Nodes,
		Side:     c.Simulation.Side,
		Range:    c.Simulation.Range,
		Packets:  c.Simulation.Packets,
		Interval: time.Duration(c.Simulation.IntervalMs) * time.Millisecond,
		Duration: time.Duration(c.Simulation.DurationMs) * time.Millisecond,
		Seed:     c.Simulation.Seed,
	}
	cleanup := func() {}
	if c.Simulation.Script != "" {
		f, err := os.Open(c.Simulation.Script)
		if err != nil {
			return cfg, cleanup, fmt.Errorf("open topology script: %w", err)
		}
		cfg.Script = f
		cleanup = func() { f.Close() }
	}
	return cfg, cleanup, nil
}
