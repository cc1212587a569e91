package sim

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gmessina/lrasim/lra"
)

// netDevice is the host device handed to the routing protocol. The
// simulation models exactly one radio per node, on interface 1.
type netDevice struct {
	index int
}

func (d netDevice) Index() int { return d.index }

// Node represents a network node in the ad-hoc network. It implements
// the host side of the routing-protocol contract: the L3 send surface,
// the scheduler accessor and the forwarding callbacks.
type Node struct {
	// index is the creation rank; it also staggers the bootstrap HELLO.
	index int

	// addr is the node's IPv4 address.
	addr netip.Addr

	// network is the wireless medium the node transmits on.
	network *Network

	// routing is the aggregated routing protocol, possibly a list router.
	routing lra.Router

	// sent counts locally-originated data packets.
	sent int

	// received counts data packets delivered to this node.
	received int

	// receivedByOrigin breaks received down per originating node, for
	// loss accounting at the sink.
	receivedByOrigin map[netip.Addr]int

	// noRoute counts originations and forwards that failed for lack of
	// a route.
	noRoute int

	log *logrus.Entry
}

// Addr is the node's address.
func (n *Node) Addr() netip.Addr { return n.addr }

// Index is the node's creation rank.
func (n *Node) Index() int { return n.index }

// L3 hands the node itself to the protocol as its network layer.
func (n *Node) L3() lra.L3 { return n }

// Scheduler exposes the shared virtual clock.
func (n *Node) Scheduler() lra.Scheduler { return n.network.sched }

// SetRouting aggregates the routing protocol onto the node.
func (n *Node) SetRouting(r lra.Router) { n.routing = r }

// Routing returns the aggregated routing protocol.
func (n *Node) Routing() lra.Router { return n.routing }

// Address implements lra.L3. The simulation has one subnet, so every
// interface answers with the node address and the shared broadcast.
func (n *Node) Address(iface, addrIndex int) lra.InterfaceAddress {
	return lra.InterfaceAddress{Local: n.addr, Broadcast: n.network.broadcast}
}

// NetDevice implements lra.L3.
func (n *Node) NetDevice(i int) lra.NetDevice {
	return netDevice{index: i}
}

// Send implements lra.L3: the packet goes to the route's gateway over
// the medium.
func (n *Node) Send(pkt *lra.Packet, src, dst netip.Addr, protocol uint16, route *lra.Route) {
	n.network.Transmit(n, route.Gateway, pkt, lra.Header{Source: src, Destination: dst})
}

// Receive hands an arriving packet to the routing protocol with the
// host-side callbacks wired in.
func (n *Node) Receive(pkt *lra.Packet, hdr lra.Header) {
	ucb := func(route *lra.Route, pkt *lra.Packet, hdr lra.Header) {
		n.network.Transmit(n, route.Gateway, pkt, hdr)
	}
	mcb := func(route *lra.Route, pkt *lra.Packet, hdr lra.Header) {}
	lcb := func(pkt *lra.Packet, hdr lra.Header, iface int) {
		// Service packets reach local delivery too; only data counts.
		if _, ok := lra.ParseService(pkt.Payload); ok {
			return
		}
		n.received++
		n.receivedByOrigin[hdr.Source]++
	}
	ecb := func(pkt *lra.Packet, hdr lra.Header, err error) {
		n.noRoute++
		n.log.WithFields(logrus.Fields{
			"destination": hdr.Destination,
			"uid":         pkt.UID,
		}).Debug("routing error: ", err)
	}

	n.routing.RouteInput(pkt, hdr, netDevice{index: 1}, ucb, mcb, lcb, ecb)
}

// SendTo originates one data packet toward dst, reporting whether a
// route existed at origination time.
func (n *Node) SendTo(dst netip.Addr, payload []byte) bool {
	pkt := &lra.Packet{UID: uuid.New(), Payload: payload}
	hdr := lra.Header{Source: n.addr, Destination: dst}

	n.sent++
	route, err := n.routing.RouteOutput(pkt, hdr)
	if err != nil {
		n.noRoute++
		return false
	}
	if route.Gateway == n.addr {
		// Local delivery without touching the medium.
		n.received++
		n.receivedByOrigin[n.addr]++
		return true
	}
	n.network.Transmit(n, route.Gateway, pkt, hdr)
	return true
}

// StartEcho schedules count data sends toward dst, the first after
// delay, the rest spaced by interval.
func (n *Node) StartEcho(dst netip.Addr, count int, interval, delay time.Duration, payload []byte) {
	for i := 0; i < count; i++ {
		at := delay + time.Duration(i)*interval
		n.network.sched.Schedule(at, func() { n.SendTo(dst, payload) })
	}
}

// Sent is the number of data packets originated here.
func (n *Node) Sent() int { return n.sent }

// Received is the number of data packets delivered here.
func (n *Node) Received() int { return n.received }

// ReceivedFrom is the number of data packets delivered here that origin
// originated.
func (n *Node) ReceivedFrom(origin netip.Addr) int {
	return n.receivedByOrigin[origin]
}

// NoRoute is the number of packets dropped here for lack of a route.
func (n *Node) NoRoute() int { return n.noRoute }
