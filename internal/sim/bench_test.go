package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBenchmarkFullMesh(t *testing.T) {
	// Every node within radio range of every other: all traffic reaches
	// the sink in one hop and nothing is lost.
	bench, err := NewBenchmark(BenchmarkConfig{
		Nodes:      5,
		Side:       1,
		Range:      10,
		Packets:    3,
		Interval:   time.Second,
		StartDelay: 8 * time.Second,
		Seed:       7,
	})
	require.NoError(t, err)

	res := bench.Run()
	require.Equal(t, 12, res.TotalPackets)
	require.Equal(t, 0, res.Lost)
	require.Equal(t, float64(0), res.LossPercentage)
	require.Equal(t, float64(63), res.AverageHop)
	require.Len(t, res.PerNodeLoss, 4)

	sinkStats, ok := res.PerNodeLoss[bench.Sink().Addr()]
	require.False(t, ok, "the sink must not appear as a sender, got loss %d", sinkStats)
}

func TestBenchmarkScriptedTopology(t *testing.T) {
	script := "0 UP 10.0.0.1 10.0.0.2\n0 UP 10.0.0.2 10.0.0.1\n"
	bench, err := NewBenchmark(BenchmarkConfig{
		Nodes:   2,
		Packets: 2,
		Script:  strings.NewReader(script),
		Seed:    3,
	})
	require.NoError(t, err)

	res := bench.Run()
	require.Equal(t, 2, res.TotalPackets)
	require.Equal(t, 0, res.Lost)
	require.Equal(t, float64(63), res.AverageHop)
}

func TestBenchmarkRejectsBadSizes(t *testing.T) {
	for _, nodes := range []int{1, 255, 1000} {
		_, err := NewBenchmark(BenchmarkConfig{Nodes: nodes})
		require.Error(t, err, "node count %d", nodes)
	}
}

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	res := BenchmarkResult{
		Nodes:          10,
		Side:           10,
		PacketsPerNode: 3,
		TotalPackets:   27,
		Lost:           3,
		LossPercentage: 100.0 / 9,
		AverageHop:     61.5,
		SimTime:        20 * time.Second,
		Elapsed:        time.Millisecond,
	}

	require.NoError(t, AppendCSV(path, res))
	require.NoError(t, AppendCSV(path, res))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3, "one header and two rows")
	require.Equal(t,
		"n_nodes,area_side,packets_per_node,tot_packets,n_package_loss,loss_percentage,averageHop,simulation_time,real_elapsed_time",
		lines[0])
	require.True(t, strings.HasPrefix(lines[1], "10,10,3,27,3,"))
}
