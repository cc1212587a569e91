package lra

import (
	"net/netip"
	"slices"
)

// LinkStatus is the orientation of a neighbor link from this node's
// perspective.
type LinkStatus int8

const (
	// LinkUnknown is a link that exists but has never been oriented.
	LinkUnknown LinkStatus = -1

	// LinkInbound is a link this node must not send data through.
	LinkInbound LinkStatus = 0

	// LinkOutbound is a link this node may use as a next hop.
	LinkOutbound LinkStatus = 1
)

func (s LinkStatus) String() string {
	switch s {
	case LinkUnknown:
		return "UNKNOWN"
	case LinkInbound:
		return "INBOUND"
	case LinkOutbound:
		return "OUTBOUND"
	}
	return "INVALID"
}

// disableLinkTo orients the link to dst inbound and cancels any pending
// probe on it. When the update leaves a non-sink node without any
// outbound neighbor and avoidReverse is unset, the node performs a local
// reversal and broadcasts it. Whenever the node is then left without an
// outbound neighbor (the reversal found none usable, or avoidReverse
// skipped it) the node declares itself disconnected from the sink.
func (p *RoutingProtocol) disableLinkTo(dst netip.Addr, avoidReverse bool) {
	p.log.WithField("neighbor", dst).Debug("disable link")

	p.neighbors[dst] = struct{}{}
	p.linkStatus[dst] = LinkInbound
	p.dropProbe(dst)

	if p.self == p.sink {
		return
	}

	if !p.hasNextHop() && !avoidReverse {
		p.linkReversal()
		// Each neighbor will turn its own edge toward us inbound.
		p.sendReversal(p.broadcast)
	}

	if !p.hasNextHop() {
		// No outgoing route left, with or without a reversal: the node
		// is a component disconnected from the sink.
		p.initialized = false
		p.log.Warn("no outbound link left; node disconnected from sink")
	}
}

// enableLinkTo orients the link to dst outbound and cancels any pending
// probe on it.
func (p *RoutingProtocol) enableLinkTo(dst netip.Addr) {
	p.log.WithField("neighbor", dst).Debug("enable link")

	p.neighbors[dst] = struct{}{}
	p.linkStatus[dst] = LinkOutbound
	p.dropProbe(dst)
}

// initLinkTo records dst as a neighbor whose link has not been oriented
// yet. The next-hop selector orients such links on first use.
func (p *RoutingProtocol) initLinkTo(dst netip.Addr) {
	p.neighbors[dst] = struct{}{}
	p.linkStatus[dst] = LinkUnknown
	p.dropProbe(dst)
}

// dropProbe cancels and forgets the outstanding probe to dst, if any.
func (p *RoutingProtocol) dropProbe(dst netip.Addr) {
	if ev, ok := p.pendingProbe[dst]; ok {
		ev.Cancel()
		delete(p.pendingProbe, dst)
	}
}

// linkReversal flips every known neighbor link to outbound. The sink
// never reverses.
func (p *RoutingProtocol) linkReversal() {
	if p.self == p.sink {
		return
	}
	for n := range p.neighbors {
		if n != p.broadcast {
			p.linkStatus[n] = LinkOutbound
		}
	}
}

// neighborsDescending returns the neighbor set ordered from the highest
// address down.
func (p *RoutingProtocol) neighborsDescending() []netip.Addr {
	out := p.neighborsAscending()
	slices.Reverse(out)
	return out
}

func (p *RoutingProtocol) neighborsAscending() []netip.Addr {
	out := make([]netip.Addr, 0, len(p.neighbors))
	for n := range p.neighbors {
		out = append(out, n)
	}
	slices.SortFunc(out, netip.Addr.Compare)
	return out
}
