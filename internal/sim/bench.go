package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gmessina/lrasim/lra"
)

// csvHeader matches the historical results file so runs keep appending
// to the same datasets.
var csvHeader = []string{
	"n_nodes", "area_side", "packets_per_node", "tot_packets",
	"n_package_loss", "loss_percentage", "averageHop",
	"simulation_time", "real_elapsed_time",
}

// BenchmarkConfig parameterises one simulation run.
type BenchmarkConfig struct {
	// Nodes is the network size; the last node is the sink.
	Nodes int

	// Side is the square deployment area side length, meters.
	Side float64

	// Range is the radio range, meters. Nodes within range of each
	// other get a duplex link.
	Range float64

	// Packets is how many data packets each non-sink node sends.
	Packets int

	// Interval spaces consecutive sends of one node.
	Interval time.Duration

	// StartDelay postpones the first send past the bootstrap window.
	// Zero means one second after the last staggered HELLO.
	StartDelay time.Duration

	// Duration bounds the simulated time. Reversal cascades in a
	// partitioned component never quiesce, so the bound is mandatory;
	// zero picks one generous enough for all traffic.
	Duration time.Duration

	// Seed drives node placement, app jitter and the protocol RNG
	// streams, making runs reproducible.
	Seed int64

	// Script optionally replaces the geometric topology with a
	// link-state script.
	Script io.Reader
}

func (c *BenchmarkConfig) withDefaults() BenchmarkConfig {
	out := *c
	if out.Nodes == 0 {
		out.Nodes = 10
	}
	if out.Side == 0 {
		out.Side = 10
	}
	if out.Range == 0 {
		out.Range = out.Side / 2
	}
	if out.Packets == 0 {
		out.Packets = 3
	}
	if out.Interval == 0 {
		out.Interval = time.Second
	}
	if out.StartDelay == 0 {
		out.StartDelay = time.Duration(out.Nodes+1) * time.Second
	}
	if out.Seed == 0 {
		out.Seed = 12345
	}
	if out.Duration == 0 {
		out.Duration = out.StartDelay +
			time.Duration(out.Packets)*out.Interval + 10*time.Second
	}
	return out
}

// BenchmarkResult is one row of the results CSV plus the per-node loss
// breakdown for the console report.
type BenchmarkResult struct {
	Nodes          int
	Side           float64
	PacketsPerNode int
	TotalPackets   int
	Lost           int
	LossPercentage float64
	AverageHop     float64
	SimTime        time.Duration
	Elapsed        time.Duration

	// PerNodeLoss maps each sender to its undelivered packet count.
	PerNodeLoss map[netip.Addr]int
}

// Benchmark builds a network of LRA nodes, generates echo traffic toward
// the sink and accounts deliveries and losses.
type Benchmark struct {
	cfg     BenchmarkConfig
	sched   *Scheduler
	network *Network
	protos  []*lra.RoutingProtocol
	sink    *Node
	log     *logrus.Entry
}

// NewBenchmark assembles the scenario without running it.
func NewBenchmark(cfg BenchmarkConfig) (*Benchmark, error) {
	cfg = cfg.withDefaults()
	if cfg.Nodes < 2 || cfg.Nodes > 254 {
		return nil, fmt.Errorf("benchmark: node count %d outside [2, 254]", cfg.Nodes)
	}

	sched := NewScheduler()
	rng := rand.New(rand.NewSource(cfg.Seed))

	addrs := make([]netip.Addr, cfg.Nodes)
	for i := range addrs {
		addrs[i] = netip.AddrFrom4([4]byte{10, 0, 0, byte(i + 1)})
	}

	topo, err := buildTopology(cfg, addrs, rng)
	if err != nil {
		return nil, err
	}

	network := NewNetwork(sched, topo, netip.AddrFrom4([4]byte{10, 255, 255, 255}))

	var helper lra.Helper
	hosts := make([]lra.Host, 0, cfg.Nodes)
	protos := make([]*lra.RoutingProtocol, 0, cfg.Nodes)
	for i, addr := range addrs {
		node := network.AddNode(addr, i)
		proto := helper.Create(node)
		proto.NotifyInterfaceUp(1)
		hosts = append(hosts, node)
		protos = append(protos, proto)
	}

	helper.AssignStreams(hosts, cfg.Seed)

	// The last node carries the highest address: the DAG roots at it.
	sinkAddr := addrs[len(addrs)-1]
	for i, proto := range protos {
		proto.InitializeNode(sinkAddr, i)
	}

	// Echo clients toward the sink, jittered to avoid collisions.
	payload := []byte("LRA_BENCHMARK_ECHO_PAYLOAD")
	for _, node := range network.Nodes() {
		if node.Addr() == sinkAddr {
			continue
		}
		jitter := time.Duration(rng.Intn(1000)) * time.Millisecond
		node.StartEcho(sinkAddr, cfg.Packets, cfg.Interval, cfg.StartDelay+jitter, payload)
	}

	return &Benchmark{
		cfg:     cfg,
		sched:   sched,
		network: network,
		protos:  protos,
		sink:    network.Node(sinkAddr),
		log:     logrus.WithField("component", "benchmark"),
	}, nil
}

func buildTopology(cfg BenchmarkConfig, addrs []netip.Addr, rng *rand.Rand) (*Topology, error) {
	if cfg.Script != nil {
		return NewTopologyFromScript(cfg.Script)
	}

	type point struct{ x, y float64 }
	positions := make([]point, len(addrs))
	for i := range positions {
		positions[i] = point{x: rng.Float64() * cfg.Side, y: rng.Float64() * cfg.Side}
	}

	topo := NewTopology()
	for i := 0; i < len(addrs); i++ {
		for j := i + 1; j < len(addrs); j++ {
			dx := positions[i].x - positions[j].x
			dy := positions[i].y - positions[j].y
			if math.Hypot(dx, dy) <= cfg.Range {
				topo.SetDuplexLink(addrs[i], addrs[j], 0, UP)
			}
		}
	}
	return topo, nil
}

// Network exposes the assembled medium, mainly for tests and dumps.
func (b *Benchmark) Network() *Network { return b.network }

// Sink is the node all traffic converges on.
func (b *Benchmark) Sink() *Node { return b.sink }

// Protocols returns the per-node protocol instances in creation order.
func (b *Benchmark) Protocols() []*lra.RoutingProtocol { return b.protos }

// Run drives the scheduler and collects the results.
func (b *Benchmark) Run() BenchmarkResult {
	start := time.Now()
	b.sched.RunUntil(b.cfg.Duration)

	res := BenchmarkResult{
		Nodes:          b.cfg.Nodes,
		Side:           b.cfg.Side,
		PacketsPerNode: b.cfg.Packets,
		AverageHop:     b.sink.routingProtocol().AverageHopCount(),
		SimTime:        b.sched.Now(),
		Elapsed:        time.Since(start),
		PerNodeLoss:    make(map[netip.Addr]int),
	}

	for _, node := range b.network.Nodes() {
		if node == b.sink {
			continue
		}
		res.TotalPackets += node.Sent()
		loss := node.Sent() - b.sink.ReceivedFrom(node.Addr())
		res.PerNodeLoss[node.Addr()] = loss
		res.Lost += loss
	}
	if res.TotalPackets > 0 {
		res.LossPercentage = float64(res.Lost) / float64(res.TotalPackets) * 100
	}

	b.log.WithFields(logrus.Fields{
		"packets": res.TotalPackets,
		"lost":    res.Lost,
		"avg_hop": res.AverageHop,
	}).Info("benchmark finished")
	return res
}

// DumpRoutes writes every node's routing table to w.
func (b *Benchmark) DumpRoutes(w io.Writer) {
	for _, proto := range b.protos {
		proto.PrintRoutingTable(w)
	}
}

func (n *Node) routingProtocol() *lra.RoutingProtocol {
	proto, _ := lra.Find(n.routing)
	return proto
}

// SortedLossAddrs returns the loss map keys in address order, for stable
// reporting.
func (r BenchmarkResult) SortedLossAddrs() []netip.Addr {
	out := make([]netip.Addr, 0, len(r.PerNodeLoss))
	for addr := range r.PerNodeLoss {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// AppendCSV appends the result row to path, writing the header first
// when the file is new or empty.
func AppendCSV(path string, res BenchmarkResult) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat results file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write results header: %w", err)
		}
	}
	row := []string{
		strconv.Itoa(res.Nodes),
		strconv.FormatFloat(res.Side, 'g', -1, 64),
		strconv.Itoa(res.PacketsPerNode),
		strconv.Itoa(res.TotalPackets),
		strconv.Itoa(res.Lost),
		strconv.FormatFloat(res.LossPercentage, 'g', -1, 64),
		strconv.FormatFloat(res.AverageHop, 'g', -1, 64),
		strconv.FormatFloat(res.SimTime.Seconds(), 'g', -1, 64),
		strconv.FormatFloat(res.Elapsed.Seconds(), 'g', -1, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write results row: %w", err)
	}
	w.Flush()
	return w.Error()
}
