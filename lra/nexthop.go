package lra

import "net/netip"

// cycleThreshold is the cycle-suppression bound: a neighbor observed
// closing a cycle this many times is permanently excluded as next hop.
const cycleThreshold = 3

// nextHop elects the outbound neighbor to forward through. When plain
// selection comes up empty but neighbors exist, it performs a reactive
// reversal and selects once more, so forwarding never blocks when a
// reversal could help. The second return is false when no route exists.
func (p *RoutingProtocol) nextHop() (netip.Addr, bool) {
	if n, ok := p.internalNextHop(); ok {
		return n, true
	}
	if len(p.neighbors) > 0 {
		p.linkReversal()
		n, ok := p.internalNextHop()
		// Notify all nodes that this one is in active state again.
		p.sendReversal(p.broadcast)
		return n, ok
	}
	return netip.Addr{}, false
}

// internalNextHop scans the neighborhood for a usable outbound link
// without triggering reversals.
func (p *RoutingProtocol) internalNextHop() (netip.Addr, bool) {
	if p.self == p.sink {
		return netip.Addr{}, false
	}

	// Deliver toward the highest address: the sink carries the highest
	// one, so this biases the walk toward it.
	for _, n := range p.neighborsDescending() {
		if n == p.broadcast {
			continue
		}
		// The second disjunct is dead: the sink already returned above.
		// Kept as a short-circuit mirror of the selection rule.
		if p.linkStatus[n] == LinkOutbound || p.self == p.sink {
			if p.cycleCount[n] < cycleThreshold {
				return n, true
			}
			// Saturated cycle counter; check the next neighbor.
			continue
		}
		if p.linkStatus[n] == LinkUnknown {
			p.enableLinkTo(n)
			return n, true
		}
	}
	return netip.Addr{}, false
}

// hasNextHop reports whether selection would currently succeed.
func (p *RoutingProtocol) hasNextHop() bool {
	_, ok := p.internalNextHop()
	return ok
}
