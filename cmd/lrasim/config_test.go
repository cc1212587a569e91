package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[simulation]
nodes = 25
seed = 7
interval_ms = 250

[output]
csv = "out.csv"
`), 0o644))

	cfg := defaultConfig()
	require.NoError(t, loadConfig(path, &cfg))

	require.Equal(t, 25, cfg.Simulation.Nodes)
	require.Equal(t, int64(7), cfg.Simulation.Seed)
	require.Equal(t, 250, cfg.Simulation.IntervalMs)
	require.Equal(t, "out.csv", cfg.Output.CSV)

	// Values the file does not mention keep their defaults.
	require.Equal(t, 3, cfg.Simulation.Packets)
	require.Equal(t, float64(10), cfg.Simulation.Side)
}

func TestLoadConfigEmptyPathIsNoop(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, loadConfig("", &cfg))
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg := defaultConfig()
	require.Error(t, loadConfig(filepath.Join(t.TempDir(), "nope.toml"), &cfg))
}

func TestConfigBenchmarkMapping(t *testing.T) {
	cfg := defaultConfig()
	cfg.Simulation.Nodes = 4
	cfg.Simulation.IntervalMs = 500
	cfg.Simulation.DurationMs = 30000

	bench, cleanup, err := cfg.benchmark()
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, 4, bench.Nodes)
	require.Equal(t, 500*time.Millisecond, bench.Interval)
	require.Equal(t, 30*time.Second, bench.Duration)
	require.Nil(t, bench.Script)
}

func TestConfigBenchmarkOpensScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links")
	require.NoError(t, os.WriteFile(path, []byte("0 UP 10.0.0.1 10.0.0.2\n"), 0o644))

	cfg := defaultConfig()
	cfg.Simulation.Script = path

	bench, cleanup, err := cfg.benchmark()
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, bench.Script)
}
