package sim

import (
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gmessina/lrasim/lra"
)

// hopDelay is the fixed per-hop propagation plus transmission delay.
const hopDelay = time.Millisecond

// Network couples the nodes through the time-varying topology and acts
// as the wireless medium. Only the simulation is centralized like this;
// a real ad-hoc network has no such coordinator.
type Network struct {
	sched *Scheduler
	topo  *Topology

	// broadcast is the subnet broadcast address; a transmission to it
	// reaches every node with an up link from the sender.
	broadcast netip.Addr

	nodes map[netip.Addr]*Node

	// order keeps the nodes by creation index for deterministic
	// broadcast fan-out.
	order []*Node

	log *logrus.Entry
}

func NewNetwork(sched *Scheduler, topo *Topology, broadcast netip.Addr) *Network {
	return &Network{
		sched:     sched,
		topo:      topo,
		broadcast: broadcast,
		nodes:     make(map[netip.Addr]*Node),
		log:       logrus.WithField("component", "network"),
	}
}

// AddNode creates a node with the given address and creation index and
// attaches it to the medium.
func (nw *Network) AddNode(addr netip.Addr, index int) *Node {
	n := &Node{
		index:            index,
		addr:             addr,
		network:          nw,
		receivedByOrigin: make(map[netip.Addr]int),
		log:              logrus.WithField("node", addr),
	}
	nw.nodes[addr] = n
	nw.order = append(nw.order, n)
	return n
}

// Node returns the node bound to addr, nil when unknown.
func (nw *Network) Node(addr netip.Addr) *Node {
	return nw.nodes[addr]
}

// Nodes returns the nodes in creation order.
func (nw *Network) Nodes() []*Node {
	return nw.order
}

// Scheduler exposes the virtual clock driving the network.
func (nw *Network) Scheduler() *Scheduler {
	return nw.sched
}

// Broadcast is the subnet broadcast address.
func (nw *Network) Broadcast() netip.Addr {
	return nw.broadcast
}

// Transmit sends pkt from the sender toward gw. Unicast delivers after
// the per-hop delay when the directed link is up at send time; broadcast
// reaches every node currently linked from the sender. Down links drop
// silently, as a wireless medium would.
func (nw *Network) Transmit(from *Node, gw netip.Addr, pkt *lra.Packet, hdr lra.Header) {
	if gw == nw.broadcast {
		for _, to := range nw.order {
			if to == from {
				continue
			}
			if nw.topo.Query(from.addr, to.addr, nw.sched.Now()) {
				nw.deliver(to, pkt, hdr)
			}
		}
		return
	}

	to, ok := nw.nodes[gw]
	if !ok || !nw.topo.Query(from.addr, gw, nw.sched.Now()) {
		nw.log.WithFields(logrus.Fields{
			"from":    from.addr,
			"gateway": gw,
			"uid":     pkt.UID,
		}).Debug("frame lost: link down")
		return
	}
	nw.deliver(to, pkt, hdr)
}

// deliver stamps the hop counter and schedules the arrival. The TTL
// field counts transmissions; a packet past its hop ceiling is dropped
// here, which is what keeps TTL-tagged service packets single-hop.
func (nw *Network) deliver(to *Node, pkt *lra.Packet, hdr lra.Header) {
	next := hdr
	next.TTL++

	limit := uint8(lra.TTLMax)
	if pkt.TTLTag > 0 {
		limit = pkt.TTLTag
	}
	if next.TTL > limit {
		nw.log.WithField("uid", pkt.UID).Debug("frame dropped: hop ceiling")
		return
	}

	nw.sched.Schedule(hopDelay, func() { to.Receive(pkt, next) })
}
