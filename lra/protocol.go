package lra

import (
	"fmt"
	"io"
	"math/rand"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// probeTimeout is how long an ACK request may stay unanswered before
	// the link is declared down.
	probeTimeout = 100 * time.Millisecond

	// helloJitterMs bounds the uniform jitter applied to the initial
	// HELLO and to HELLO responses.
	helloJitterMs = 1000

	// defaultStreamSeed seeds the RNG streams of protocols that never had
	// AssignStreams called on them.
	defaultStreamSeed = 1
)

// RoutingProtocol is the per-node link reversal routing state machine. It
// maintains an oriented view of the one-hop neighborhood that collectively
// realises a DAG rooted at the sink, and reverses its links when it loses
// every outbound edge.
//
// All methods run on the host's single logical thread; none of them block.
type RoutingProtocol struct {
	// l3 is the host network layer used to emit packets.
	l3 L3

	// sched schedules deferred work on the host's virtual clock.
	sched Scheduler

	// self is this node's address, cached on the first interface-up.
	self netip.Addr

	// broadcast is the broadcast address of the local subnet.
	broadcast netip.Addr

	// sink is the single destination the DAG is oriented toward.
	sink netip.Addr

	// index ranks the node, used only to stagger the initial HELLO.
	index int

	// initialized flips true on the first HELLO emission and back to
	// false when the node discovers it is disconnected from the sink.
	initialized bool

	// neighbors is every address ever heard from. Entries are never
	// removed; only their orientation changes.
	neighbors map[netip.Addr]struct{}

	// linkStatus maps a neighbor to the link orientation seen from here.
	linkStatus map[netip.Addr]LinkStatus

	// cycleCount counts, per neighbor, consecutive observations that the
	// neighbor appears to close a cycle.
	cycleCount map[netip.Addr]uint

	// pendingProbe holds, per probed neighbor, the delayed link-down
	// event armed by an unanswered ACK request.
	pendingProbe map[netip.Addr]Event

	// telemetry accumulates the received-packet hop statistics.
	telemetry Telemetry

	// helloRand jitters the initial HELLO.
	helloRand *rand.Rand

	// jitterRand jitters HELLO responses.
	jitterRand *rand.Rand

	log *logrus.Entry
}

// New creates an empty protocol instance bound to the host scheduler.
// Addresses are populated once the host reports its interface up.
func New(sched Scheduler) *RoutingProtocol {
	p := &RoutingProtocol{
		sched:        sched,
		neighbors:    make(map[netip.Addr]struct{}),
		linkStatus:   make(map[netip.Addr]LinkStatus),
		cycleCount:   make(map[netip.Addr]uint),
		pendingProbe: make(map[netip.Addr]Event),
		log:          logrus.NewEntry(logrus.StandardLogger()),
	}
	p.seedStreams(defaultStreamSeed)
	return p
}

// SetIpv4 hands over the reference to the local L3.
func (p *RoutingProtocol) SetIpv4(l3 L3) {
	p.l3 = l3
}

// NotifyInterfaceUp caches the node and broadcast addresses from the
// first address of interface 1. The protocol assumes exactly one usable
// interface.
func (p *RoutingProtocol) NotifyInterfaceUp(i int) {
	iface := p.l3.Address(1, 0)
	p.self = iface.Local
	p.broadcast = iface.Broadcast
	p.log = logrus.WithField("node", p.self)
	p.log.WithField("interface", i).Debug("interface up")
}

// NotifyInterfaceDown is part of the host contract; nothing to do.
func (p *RoutingProtocol) NotifyInterfaceDown(i int) {
	p.log.WithField("interface", i).Debug("interface down")
}

// NotifyAddAddress is part of the host contract; nothing to do.
func (p *RoutingProtocol) NotifyAddAddress(i int, addr InterfaceAddress) {
	p.log.WithField("interface", i).WithField("address", addr.Local).Debug("address added")
}

// NotifyRemoveAddress is part of the host contract; nothing to do.
func (p *RoutingProtocol) NotifyRemoveAddress(i int, addr InterfaceAddress) {
	p.log.WithField("interface", i).WithField("address", addr.Local).Debug("address removed")
}

// InitializeNode records the sink and schedules the bootstrap HELLO after
// index seconds plus up to a second of jitter. The sink itself announces
// after one millisecond so its neighbors orient toward it first.
func (p *RoutingProtocol) InitializeNode(sink netip.Addr, index int) {
	p.sink = sink
	p.index = index

	delay := time.Duration(index)*time.Second +
		time.Duration(p.helloRand.Intn(helloJitterMs))*time.Millisecond
	if p.self == p.sink {
		delay = time.Millisecond
	}
	p.sched.Schedule(delay, func() { p.sendHello(p.broadcast) })

	p.log.WithFields(logrus.Fields{
		"sink":  sink,
		"index": index,
	}).Info("node initialized")
}

// AssignStreams seeds the two per-instance RNG streams (HELLO start
// delay, HELLO-response jitter) and returns the number of streams
// consumed.
func (p *RoutingProtocol) AssignStreams(stream int64) int64 {
	p.seedStreams(stream)
	return 2
}

func (p *RoutingProtocol) seedStreams(stream int64) {
	p.helloRand = rand.New(rand.NewSource(stream))
	p.jitterRand = rand.New(rand.NewSource(stream + 1))
}

// RouteOutput resolves a route for a locally-originated packet. Packets
// for the node itself are routed up the local stack; packets for the sink
// go to the elected next hop; anything else is a direct-send service
// packet whose gateway is its destination.
func (p *RoutingProtocol) RouteOutput(pkt *Packet, hdr Header) (*Route, error) {
	dest := hdr.Destination

	if dest == p.self {
		return &Route{
			Source:       p.self,
			Destination:  dest,
			Gateway:      dest,
			OutputDevice: p.l3.NetDevice(1),
		}, nil
	}

	neighbor, ok := dest, true
	if dest == p.sink {
		neighbor, ok = p.nextHop()
	}
	if !ok {
		return nil, ErrNoRouteToHost
	}
	return &Route{
		Source:       p.self,
		Destination:  dest,
		Gateway:      neighbor,
		OutputDevice: p.l3.NetDevice(1),
	}, nil
}

// RouteInput handles an arriving packet. Service messages addressed to
// this node or to broadcast are processed and then still handed to the
// local-deliver callback, keeping host-level tracing symmetrical. Data
// for the sink is forwarded through the elected next hop, which is then
// probed.
func (p *RoutingProtocol) RouteInput(pkt *Packet, hdr Header, dev NetDevice,
	ucb UnicastForwardCallback, mcb MulticastForwardCallback,
	lcb LocalDeliverCallback, ecb ErrorCallback) bool {

	if !p.initialized {
		return false
	}
	if hdr.TTL == 0 {
		return false
	}

	const iif = 1
	dest := hdr.Destination
	origin := hdr.Source

	if dest == p.self || dest == p.broadcast {
		switch p.recvServiceMessage(pkt.Payload, origin) {
		case recvError:
			return false
		case recvNotService:
			p.telemetry.Observe(TTLMax - int(hdr.TTL))
			p.log.WithFields(logrus.Fields{
				"origin": origin,
				"uid":    pkt.UID,
			}).Info("packet delivered")
		}
		lcb(pkt, hdr, iif)
		return true
	}

	if dest == p.sink {
		if neighbor, ok := p.nextHop(); ok {
			route := &Route{
				Source:       origin,
				Destination:  dest,
				Gateway:      neighbor,
				OutputDevice: p.l3.NetDevice(1),
			}
			p.log.WithFields(logrus.Fields{
				"origin":  origin,
				"gateway": neighbor,
				"uid":     pkt.UID,
			}).Info("packet forwarded")
			ucb(route, pkt, hdr)

			p.sendAckRequest(neighbor)
			return true
		}
	}

	p.log.WithField("destination", dest).Info("no route found for packet")
	ecb(pkt, hdr, ErrNoRouteToHost)
	return false
}

// recvServiceMessage dispatches a received payload to the matching
// service handler. Loopback broadcasts (origin == self) are consumed
// without mutating any state.
func (p *RoutingProtocol) recvServiceMessage(payload []byte, origin netip.Addr) recvStatus {
	t, ok := ParseService(payload)
	if !ok {
		return recvNotService
	}
	if origin == p.self {
		return recvService
	}

	switch t {
	case AckSend:
		p.log.WithField("origin", origin).Debug("ack request delivered")
		p.disableLinkTo(origin, false)
		if p.linkStatus[origin] == LinkOutbound {
			// The disable bounced straight back through a local
			// reversal: both ends consider the edge outbound.
			p.log.WithField("origin", origin).Info("cycle detected")
			p.cycleCount[origin]++
			return recvError
		}
		p.sendAckResponse(origin)

	case AckRecv:
		p.log.WithField("origin", origin).Debug("ack response delivered")
		p.dropProbe(origin)
		p.enableLinkTo(origin)

	case HelloSend:
		p.log.WithField("origin", origin).Debug("hello delivered")
		p.orientByAddress(origin)
		jitter := time.Duration(p.jitterRand.Intn(helloJitterMs)) * time.Millisecond
		p.sched.Schedule(jitter, func() { p.sendHelloResponse(origin) })

	case HelloRecv:
		// No further response is scheduled; the handshake terminates here.
		p.log.WithField("origin", origin).Debug("hello response delivered")
		p.orientByAddress(origin)

	case ReversalSend:
		p.disableLinkTo(origin, false)
	}
	return recvService
}

// orientByAddress applies the bootstrap tie-break: the edge points from
// the lower address to the higher one. The avoid-reverse flag keeps this
// orientation from triggering a reversal before the neighborhood
// stabilises.
func (p *RoutingProtocol) orientByAddress(origin netip.Addr) {
	if p.self.Compare(origin) < 0 {
		p.enableLinkTo(origin)
	} else {
		p.disableLinkTo(origin, true)
	}
}

// sendHello broadcasts the neighbor announcement and marks the node
// initialized.
func (p *RoutingProtocol) sendHello(dst netip.Addr) {
	p.sendServicePacket(dst, HelloSend)
	p.initialized = true
}

func (p *RoutingProtocol) sendHelloResponse(origin netip.Addr) {
	p.sendServicePacket(origin, HelloRecv)
}

// sendAckRequest probes the next hop, unless a probe to it is already
// outstanding: the link is declared down if no response arrives within
// the probe timeout.
func (p *RoutingProtocol) sendAckRequest(dst netip.Addr) {
	if _, ok := p.pendingProbe[dst]; ok {
		return
	}
	p.sendServicePacket(dst, AckSend)

	ev := p.sched.Schedule(probeTimeout, func() { p.disableLinkTo(dst, false) })
	p.pendingProbe[dst] = ev
	p.log.WithField("destination", dst).Debug("ack request sent")
}

func (p *RoutingProtocol) sendAckResponse(origin netip.Addr) {
	p.sendServicePacket(origin, AckRecv)
}

func (p *RoutingProtocol) sendReversal(dst netip.Addr) {
	p.log.Info("reversal announced")
	p.sendServicePacket(dst, ReversalSend)
}

// sendServicePacket emits one of the fixed control payloads straight to
// its one-hop target, tagged so the host never relays it.
func (p *RoutingProtocol) sendServicePacket(dst netip.Addr, t ServiceType) {
	route := &Route{
		Source:       p.self,
		Destination:  dst,
		Gateway:      dst,
		OutputDevice: p.l3.NetDevice(1),
	}
	pkt := &Packet{
		UID:     uuid.New(),
		Payload: t.Payload(),
		TTLTag:  1,
	}
	p.l3.Send(pkt, p.self, dst, ProtocolNumber, route)
}

// AverageHopCount reports the running average hop count of delivered data
// packets, zero before the first delivery.
func (p *RoutingProtocol) AverageHopCount() float64 {
	return p.telemetry.AverageHopCount()
}

// Stats returns a copy of the telemetry accumulators.
func (p *RoutingProtocol) Stats() Telemetry {
	return p.telemetry
}

// PrintRoutingTable writes one line per neighbor: self, neighbor and the
// numeric link orientation, tab separated.
func (p *RoutingProtocol) PrintRoutingTable(w io.Writer) {
	for _, n := range p.neighborsAscending() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.self, n, p.linkStatus[n])
	}
}
