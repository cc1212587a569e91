package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gmessina/lrasim/internal/sim"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "lrasim",
		Short: "Benchmark simulator for link reversal ad-hoc routing",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(logrus.WarnLevel)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCommand())
	root.AddCommand(newRoutesCommand())
	return root
}

func addSimulationFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	flags.IntVar(&cfg.Simulation.Nodes, "size", cfg.Simulation.Nodes, "number of nodes")
	flags.Float64Var(&cfg.Simulation.Side, "side", cfg.Simulation.Side, "simulation area side length, m")
	flags.Float64Var(&cfg.Simulation.Range, "range", cfg.Simulation.Range, "radio range, m")
	flags.IntVar(&cfg.Simulation.Packets, "npackets", cfg.Simulation.Packets, "number of packets per node")
	flags.IntVar(&cfg.Simulation.DurationMs, "time", cfg.Simulation.DurationMs, "simulation time, ms (0 auto-sizes)")
	flags.Int64Var(&cfg.Simulation.Seed, "seed", cfg.Simulation.Seed, "RNG seed")
	flags.StringVar(&cfg.Simulation.Script, "topology", cfg.Simulation.Script, "link-state script replacing the geometric topology")
}

func newRunCommand() *cobra.Command {
	cfg := defaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark and append the results row to the CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(configPath, &cfg); err != nil {
				return err
			}

			benchCfg, cleanup, err := cfg.benchmark()
			if err != nil {
				return err
			}
			defer cleanup()

			bench, err := sim.NewBenchmark(benchCfg)
			if err != nil {
				return err
			}
			res := bench.Run()
			report(cmd.OutOrStdout(), res)

			if cfg.Output.Routes != "" {
				if err := dumpRoutes(bench, cfg.Output.Routes); err != nil {
					return err
				}
			}
			if cfg.Output.CSV != "" {
				if err := sim.AppendCSV(cfg.Output.CSV, res); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addSimulationFlags(cmd, &cfg)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML scenario file")
	cmd.Flags().StringVar(&cfg.Output.CSV, "csv", cfg.Output.CSV, "results CSV file, empty to skip")
	cmd.Flags().StringVar(&cfg.Output.Routes, "routes", cfg.Output.Routes, "routing table dump file, empty to skip")
	return cmd
}

func newRoutesCommand() *cobra.Command {
	cfg := defaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print every node's routing table after bootstrap",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(configPath, &cfg); err != nil {
				return err
			}

			// Minimal traffic (zero packets would fall back to the default
			// count): one packet per node, in a run just long enough for
			// discovery to settle and that packet to go out.
			cfg.Simulation.Packets = 1
			cfg.Simulation.DurationMs = (cfg.Simulation.Nodes + 3) * 1000

			benchCfg, cleanup, err := cfg.benchmark()
			if err != nil {
				return err
			}
			defer cleanup()

			bench, err := sim.NewBenchmark(benchCfg)
			if err != nil {
				return err
			}
			bench.Run()
			bench.DumpRoutes(cmd.OutOrStdout())
			return nil
		},
	}

	addSimulationFlags(cmd, &cfg)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML scenario file")
	return cmd
}

// report prints the per-node loss table and the run summary.
func report(w io.Writer, res sim.BenchmarkResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Packets Lost"})
	for _, addr := range res.SortedLossAddrs() {
		table.Append([]string{addr.String(), strconv.Itoa(res.PerNodeLoss[addr])})
	}
	table.Render()

	fmt.Fprintf(w, "Total packets: %d, lost: %d, loss: %.2f%%, average hop count: %.2f\n",
		res.TotalPackets, res.Lost, res.LossPercentage, res.AverageHop)
	fmt.Fprintf(w, "Simulated %s in %s\n", res.SimTime, res.Elapsed.Round(time.Millisecond))
}

func dumpRoutes(bench *sim.Benchmark, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create routes file: %w", err)
	}
	defer f.Close()
	bench.DumpRoutes(f)
	return nil
}
